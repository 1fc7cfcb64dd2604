package embedding

import (
	"context"
	"hash/fnv"
	"strings"
	"unicode"
)

// HashProvider is a deterministic feature-hashing embedder. Texts sharing
// words or character trigrams get similar vectors, which is enough for
// development and tests without a model server.
type HashProvider struct {
	dimensions int
}

func NewHashProvider(dimensions int) *HashProvider {
	return &HashProvider{dimensions: dimensions}
}

// HashFactory returns a factory that builds a HashProvider on Init.
func HashFactory(dimensions int) ProviderFactory {
	return func(ctx context.Context) (Provider, error) {
		return NewHashProvider(dimensions), nil
	}
}

func (p *HashProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.vector(text)
	}
	return out, nil
}

func (p *HashProvider) Close() error {
	return nil
}

func (p *HashProvider) vector(text string) []float32 {
	v := make([]float32, p.dimensions)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		p.add(v, "w:"+w, 1.0)
		padded := []rune(" " + w + " ")
		for i := 0; i+3 <= len(padded); i++ {
			p.add(v, "t:"+string(padded[i:i+3]), 0.5)
		}
	}
	if len(words) == 0 {
		v[0] = 1
	}
	return v
}

func (p *HashProvider) add(v []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(p.dimensions))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	v[idx] += weight
}
