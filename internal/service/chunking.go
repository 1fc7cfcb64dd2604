package service

import (
	"strings"
	"unicode/utf8"

	"github.com/etvincen/boredapi/internal/domain"
)

// ChunkConfig controls how document bodies are split for embedding.
type ChunkConfig struct {
	// MaxTokens is the word budget of a chunk. A single sentence longer
	// than the budget still forms one chunk.
	MaxTokens int
	// MaxChunks caps chunks per document; sentences past the cap are
	// appended to the last chunk, which may then exceed MaxTokens.
	MaxChunks int
}

// DefaultChunkConfig provides sane defaults for chunking.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		MaxTokens: 512,
		MaxChunks: 5,
	}
}

// Chunker splits document bodies into sentence-aligned chunks.
type Chunker struct {
	cfg ChunkConfig
}

func NewChunker(cfg ChunkConfig) *Chunker {
	defaults := DefaultChunkConfig()
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.MaxChunks <= 0 {
		cfg.MaxChunks = defaults.MaxChunks
	}
	return &Chunker{cfg: cfg}
}

// Chunk returns the ordered chunks of the document body. Joining the chunk
// texts with a single space reproduces the normalized body.
func (c *Chunker) Chunk(doc *domain.ContentDocument) ([]domain.Chunk, error) {
	body := NormalizeBody(doc.Body, doc.BodyHTML)
	if body == "" {
		return nil, domain.ErrEmptyBody
	}

	var (
		chunks  []domain.Chunk
		current []string
		tokens  int
	)
	flush := func() {
		chunks = append(chunks, domain.Chunk{
			DocumentID: doc.ID,
			Index:      len(chunks),
			Text:       strings.Join(current, " "),
			TokenCount: tokens,
		})
		current = nil
		tokens = 0
	}

	for _, s := range splitSentences(body) {
		full := tokens+s.tokens > c.cfg.MaxTokens
		if len(current) > 0 && full && len(chunks) < c.cfg.MaxChunks-1 {
			flush()
		}
		current = append(current, s.text)
		tokens += s.tokens
	}
	if len(current) > 0 {
		flush()
	}

	return chunks, nil
}

type sentence struct {
	text   string
	tokens int
}

// splitSentences groups the words of a whitespace-normalized text into
// sentences. A sentence ends at a word whose last letter-like rune is a
// terminal punctuation mark, ignoring closing quotes and brackets.
func splitSentences(text string) []sentence {
	words := strings.Fields(text)
	out := make([]sentence, 0, len(words)/8+1)
	start := 0
	for i, w := range words {
		if endsSentence(w) || i == len(words)-1 {
			out = append(out, sentence{
				text:   strings.Join(words[start:i+1], " "),
				tokens: i + 1 - start,
			})
			start = i + 1
		}
	}
	return out
}

func endsSentence(word string) bool {
	trimmed := strings.TrimRight(word, `"')]}»”’`)
	if trimmed == "" {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(trimmed)
	switch r {
	case '.', '!', '?', '…':
		return true
	}
	return false
}
