package service

import (
	"math"
	"sort"
	"strings"

	"github.com/etvincen/boredapi/internal/domain"
)

const (
	defaultCandidateMultiplier = 4
	defaultMinCandidates       = 20
	defaultMaxCandidates       = 200
	previewMaxRunes            = 200

	weightSumTolerance = 1e-6
)

// Weights are the fusion coefficients of the two sub-queries.
type Weights struct {
	Lexical float64 `json:"lexical"`
	Vector  float64 `json:"vector"`
}

// DefaultWeights weights both sub-queries equally.
func DefaultWeights() Weights {
	return Weights{Lexical: 0.5, Vector: 0.5}
}

// Validate requires non-negative weights summing to 1.
func (w Weights) Validate() error {
	if w.Lexical < 0 || w.Vector < 0 || math.IsNaN(w.Lexical) || math.IsNaN(w.Vector) {
		return domain.NewMalformedInput("weights must be non-negative")
	}
	if math.Abs(w.Lexical+w.Vector-1) > weightSumTolerance {
		return domain.NewMalformedInput("weights must sum to 1")
	}
	return nil
}

func candidateLimit(size int) int {
	limit := size * defaultCandidateMultiplier
	if limit < defaultMinCandidates {
		limit = defaultMinCandidates
	}
	if limit > defaultMaxCandidates {
		limit = defaultMaxCandidates
	}
	return limit
}

type chunkKey struct {
	documentID string
	index      int
}

type fusionCandidate struct {
	hit        ChunkHit
	lexicalRaw *float64
	vectorRaw  *float64
	lexical    float64
	vector     float64
	fused      float64
}

// normalizeScores min-max scales raw scores into [0, 1] over one hit set.
// When every hit has the same score they all normalize to 1.
func normalizeScores(hits []ChunkHit) []float64 {
	out := make([]float64, len(hits))
	if len(hits) == 0 {
		return out
	}
	lo, hi := hits[0].Score, hits[0].Score
	for _, h := range hits[1:] {
		lo = math.Min(lo, h.Score)
		hi = math.Max(hi, h.Score)
	}
	span := hi - lo
	for i, h := range hits {
		if span == 0 {
			out[i] = 1
			continue
		}
		out[i] = (h.Score - lo) / span
	}
	return out
}

// fuseHits combines the normalized sub-query scores per chunk. A chunk seen
// by only one sub-query scores 0 on the other side.
func fuseHits(lexical, vector []ChunkHit, w Weights) []*fusionCandidate {
	candidates := make(map[chunkKey]*fusionCandidate, len(lexical)+len(vector))
	order := make([]chunkKey, 0, len(lexical)+len(vector))

	add := func(hits []ChunkHit, isLexical bool) {
		normalized := normalizeScores(hits)
		for i, h := range hits {
			key := chunkKey{documentID: h.DocumentID, index: h.ChunkIndex}
			cand, ok := candidates[key]
			if !ok {
				cand = &fusionCandidate{hit: h}
				candidates[key] = cand
				order = append(order, key)
			}
			raw := h.Score
			if isLexical {
				if cand.lexicalRaw == nil || raw > *cand.lexicalRaw {
					cand.lexicalRaw = &raw
					cand.lexical = normalized[i]
				}
			} else {
				if cand.vectorRaw == nil || raw > *cand.vectorRaw {
					cand.vectorRaw = &raw
					cand.vector = normalized[i]
				}
			}
		}
	}
	add(lexical, true)
	add(vector, false)

	out := make([]*fusionCandidate, 0, len(order))
	for _, key := range order {
		cand := candidates[key]
		cand.fused = w.Lexical*cand.lexical + w.Vector*cand.vector
		out = append(out, cand)
	}
	return out
}

// dedupByDocument keeps the best chunk of each document. Ties go to the
// lower chunk index.
func dedupByDocument(candidates []*fusionCandidate) []*fusionCandidate {
	best := make(map[string]*fusionCandidate, len(candidates))
	order := make([]string, 0, len(candidates))
	for _, c := range candidates {
		existing, ok := best[c.hit.DocumentID]
		switch {
		case !ok:
			order = append(order, c.hit.DocumentID)
			best[c.hit.DocumentID] = c
		case c.fused > existing.fused,
			c.fused == existing.fused && c.hit.ChunkIndex < existing.hit.ChunkIndex:
			best[c.hit.DocumentID] = c
		}
	}
	out := make([]*fusionCandidate, 0, len(order))
	for _, id := range order {
		out = append(out, best[id])
	}
	return out
}

// rankHits runs normalize, fuse, dedup, threshold, sort and truncate in that
// order. total counts the documents that passed the threshold.
func rankHits(lexical, vector []ChunkHit, w Weights, minScore *float64, size int, includeStats bool) ([]SearchResult, int) {
	candidates := dedupByDocument(fuseHits(lexical, vector, w))

	kept := candidates[:0]
	for _, c := range candidates {
		if minScore != nil && c.fused < *minScore {
			continue
		}
		kept = append(kept, c)
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].fused != kept[j].fused {
			return kept[i].fused > kept[j].fused
		}
		return kept[i].hit.DocumentID < kept[j].hit.DocumentID
	})

	total := len(kept)
	if size > 0 && len(kept) > size {
		kept = kept[:size]
	}

	results := make([]SearchResult, 0, len(kept))
	for _, c := range kept {
		r := SearchResult{
			DocumentID:        c.hit.DocumentID,
			Title:             c.hit.Title,
			URL:               c.hit.URL,
			ContentType:       c.hit.ContentType,
			TextPreview:       makePreview(c.hit.Text),
			LexicalScore:      c.lexicalRaw,
			VectorScore:       c.vectorRaw,
			FusedScore:        c.fused,
			MatchedChunkIndex: c.hit.ChunkIndex,
		}
		if includeStats {
			stats := c.hit.Statistics
			r.Statistics = &stats
		}
		results = append(results, r)
	}
	return results, total
}

func makePreview(text string) string {
	clean := strings.Join(strings.Fields(text), " ")
	runes := []rune(clean)
	if len(runes) <= previewMaxRunes {
		return clean
	}
	return string(runes[:previewMaxRunes]) + "..."
}
