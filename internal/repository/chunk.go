package repository

import (
	"context"
	"fmt"

	"github.com/etvincen/boredapi/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// insertChunkSQL weights the title ($6) above the chunk text ($3) in the
// lexical index.
const insertChunkSQL = `INSERT INTO chunks (document_id, chunk_index, content, token_count, embedding, search_vector)
	VALUES ($1, $2, $3, $4, $5, setweight(to_tsvector('french', $6::text), 'A') || setweight(to_tsvector('french', $3::text), 'B'))`

// ChunkRepository handles persistence of document chunks and their embeddings.
type ChunkRepository struct {
	db dbtx
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{db: pool}
}

func NewChunkRepositoryWithTx(tx pgx.Tx) *ChunkRepository {
	return &ChunkRepository{db: tx}
}

// ReplaceChunks deletes existing chunks for a document and inserts new ones.
// Chunks without an embedding are stored with a NULL vector.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, documentID, title string, chunks []domain.Chunk) error {
	_, err := r.db.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return err
	}

	for _, c := range chunks {
		_, err := r.db.Exec(ctx, insertChunkSQL,
			documentID,
			c.Index,
			c.Text,
			c.TokenCount,
			nullableVector(c.Embedding),
			title,
		)
		if err != nil {
			return fmt.Errorf("failed to insert chunk %d: %w", c.Index, err)
		}
	}

	return nil
}

// ListByDocument returns a document's chunks in order, with embeddings when present.
func (r *ChunkRepository) ListByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := r.db.Query(ctx,
		`SELECT document_id, chunk_index, content, token_count, embedding::text
		 FROM chunks WHERE document_id = $1 ORDER BY chunk_index`,
		documentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanChunks(rows)
}

// UpdateEmbeddings sets the vector of each given chunk.
func (r *ChunkRepository) UpdateEmbeddings(ctx context.Context, documentID string, chunks []domain.Chunk) error {
	for _, c := range chunks {
		cmdTag, err := r.db.Exec(ctx,
			`UPDATE chunks SET embedding = $1 WHERE document_id = $2 AND chunk_index = $3`,
			pgvector.NewVector(c.Embedding), documentID, c.Index,
		)
		if err != nil {
			return err
		}
		if cmdTag.RowsAffected() == 0 {
			return fmt.Errorf("chunk %s/%d not found", documentID, c.Index)
		}
	}
	return nil
}

func nullableVector(v []float32) *pgvector.Vector {
	if len(v) == 0 {
		return nil
	}
	vec := pgvector.NewVector(v)
	return &vec
}

func scanChunks(rows pgx.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var embedding *string
		if err := rows.Scan(&c.DocumentID, &c.Index, &c.Text, &c.TokenCount, &embedding); err != nil {
			return nil, err
		}
		if embedding != nil {
			var vec pgvector.Vector
			if err := vec.Scan(*embedding); err != nil {
				return nil, fmt.Errorf("failed to decode embedding: %w", err)
			}
			c.Embedding = vec.Slice()
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}
