package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/etvincen/boredapi/internal/domain"
	"github.com/etvincen/boredapi/internal/service"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// SearchRepository runs the lexical and vector sub-queries over chunks.
type SearchRepository struct {
	pool *pgxpool.Pool
}

func NewSearchRepository(pool *pgxpool.Pool) *SearchRepository {
	return &SearchRepository{pool: pool}
}

// SearchLexical ranks chunks by full text relevance with ts_rank_cd. The
// query uses web search syntax, so quotes and "-term" behave as users expect.
func (r *SearchRepository) SearchLexical(ctx context.Context, query string, contentType domain.ContentType, limit int) ([]service.ChunkHit, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx,
		`SELECT c.document_id, c.chunk_index, c.content, d.title, d.url, d.content_type, d.statistics,
		        ts_rank_cd(c.search_vector, q)::float8 AS score
		 FROM chunks c
		 JOIN documents d ON d.id = c.document_id,
		      websearch_to_tsquery('french', $1::text) q
		 WHERE c.search_vector @@ q
		   AND ($2::text = '' OR d.content_type = $2::text)
		 ORDER BY score DESC, c.document_id ASC, c.chunk_index ASC
		 LIMIT $3`,
		query, string(contentType), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkHits(rows)
}

// SearchVector returns the chunks nearest to embedding by cosine distance.
// Scores are cosine similarities.
func (r *SearchRepository) SearchVector(ctx context.Context, embedding []float32, contentType domain.ContentType, limit int) ([]service.ChunkHit, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.pool.Query(ctx,
		`SELECT c.document_id, c.chunk_index, c.content, d.title, d.url, d.content_type, d.statistics,
		        1 - (c.embedding <=> $1) AS score
		 FROM chunks c
		 JOIN documents d ON d.id = c.document_id
		 WHERE c.embedding IS NOT NULL
		   AND ($2::text = '' OR d.content_type = $2::text)
		 ORDER BY c.embedding <=> $1, c.document_id ASC, c.chunk_index ASC
		 LIMIT $3`,
		pgvector.NewVector(embedding), string(contentType), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunkHits(rows)
}

func scanChunkHits(rows pgx.Rows) ([]service.ChunkHit, error) {
	var hits []service.ChunkHit
	for rows.Next() {
		var h service.ChunkHit
		var contentType string
		var stats []byte
		if err := rows.Scan(&h.DocumentID, &h.ChunkIndex, &h.Text, &h.Title, &h.URL, &contentType, &stats, &h.Score); err != nil {
			return nil, err
		}
		h.ContentType = domain.ContentType(contentType)
		if err := json.Unmarshal(stats, &h.Statistics); err != nil {
			return nil, fmt.Errorf("failed to decode statistics: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
