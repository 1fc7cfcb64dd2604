package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/etvincen/boredapi/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// topicEmbedder maps known texts to fixed directions, so paraphrases can be
// placed close to each other without a real model.
type topicEmbedder map[string][]float32

func (e topicEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v, ok := e[text]
	if !ok {
		return nil, domain.NewEmbeddingUnavailable("unknown text", nil)
	}
	return v, nil
}

func (e topicEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// direction returns the unit vector with the given components on the first
// axes.
func direction(components ...float64) []float32 {
	var norm float64
	for _, c := range components {
		norm += c * c
	}
	norm = math.Sqrt(norm)
	v := make([]float32, domain.EmbeddingDimensions)
	for i, c := range components {
		v[i] = float32(c / norm)
	}
	return v
}

// memoryIndex ranks stored chunks by dot product, as the cosine kNN query
// does on unit vectors, and matches lexical queries by substring.
type memoryIndex struct {
	chunks  []ChunkHit
	vectors [][]float32
}

func (m *memoryIndex) add(t *testing.T, embedder topicEmbedder, doc domain.ContentDocument) {
	t.Helper()
	v, err := embedder.Embed(context.Background(), doc.Body)
	require.NoError(t, err)
	m.chunks = append(m.chunks, ChunkHit{
		DocumentID:  doc.ID,
		Title:       doc.Title,
		Text:        doc.Body,
		URL:         doc.URL,
		ContentType: doc.ContentType,
	})
	m.vectors = append(m.vectors, v)
}

func (m *memoryIndex) SearchLexical(_ context.Context, query string, _ domain.ContentType, limit int) ([]ChunkHit, error) {
	var hits []ChunkHit
	for _, c := range m.chunks {
		if strings.Contains(strings.ToLower(c.Text), strings.ToLower(query)) {
			c.Score = 0.1
			hits = append(hits, c)
		}
	}
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *memoryIndex) SearchVector(_ context.Context, embedding []float32, _ domain.ContentType, limit int) ([]ChunkHit, error) {
	hits := make([]ChunkHit, len(m.chunks))
	for i, c := range m.chunks {
		var dot float64
		for j := range embedding {
			dot += float64(embedding[j]) * float64(m.vectors[i][j])
		}
		c.Score = dot
		hits[i] = c
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func TestSearchService_SemanticParaphrase(t *testing.T) {
	const (
		paraphrase = "incinération du corps après les funérailles"
		onTopicA   = "La crémation se déroule au crématorium dans les jours qui suivent la cérémonie."
		onTopicB   = "Après la crémation, les cendres sont remises à la famille dans une urne."
		offTopic   = "Le parking du bâtiment de crémation ferme à 18 heures pendant les travaux de voirie."
	)
	embedder := topicEmbedder{
		paraphrase: direction(0.95, 0.2, 0.1),
		onTopicA:   direction(0.9, 0.3, 0, 0.1),
		onTopicB:   direction(0.85, 0, 0.4, 0.1),
		offTopic:   direction(0.15, 0, 0, 0.95),
	}

	v1 := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	index := &memoryIndex{}
	index.add(t, embedder, testDocument("ceremonie", "Déroulement d'une crémation", onTopicA, v1))
	index.add(t, embedder, testDocument("cendres", "Que faire des cendres", onTopicB, v1))
	index.add(t, embedder, testDocument("parking", "Accès et stationnement", offTopic, v1))

	svc := NewSearchService(index, embedder, nil, SearchConfig{SearchTimeout: time.Second, VectorTimeout: time.Second})

	require.NotContains(t, paraphrase, "crémation")
	lexical, err := svc.Search(context.Background(), SearchRequest{Query: paraphrase, Mode: SearchModeKeyword})
	require.NoError(t, err)
	assert.Empty(t, lexical.Results)

	out, err := svc.Search(context.Background(), SearchRequest{Query: paraphrase, Mode: SearchModeSemantic})

	require.NoError(t, err)
	assert.Equal(t, SearchModeSemantic, out.Mode)
	require.Len(t, out.Results, 3)
	onTopic := []string{out.Results[0].DocumentID, out.Results[1].DocumentID}
	assert.ElementsMatch(t, []string{"ceremonie", "cendres"}, onTopic)
	assert.Equal(t, "parking", out.Results[2].DocumentID)
	assert.Greater(t, out.Results[1].FusedScore, out.Results[2].FusedScore)
	require.NotNil(t, out.Results[2].VectorScore)
	assert.Less(t, *out.Results[2].VectorScore, 0.5)
}
