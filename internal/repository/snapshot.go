package repository

import (
	"context"

	"github.com/etvincen/boredapi/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SnapshotRepository reads the whole index as one consistent view.
type SnapshotRepository struct {
	pool *pgxpool.Pool
}

func NewSnapshotRepository(pool *pgxpool.Pool) *SnapshotRepository {
	return &SnapshotRepository{pool: pool}
}

// Export calls fn once per document, in id order, with its chunks and
// embeddings. All reads share one repeatable-read transaction, so concurrent
// writes never produce a torn snapshot.
func (r *SnapshotRepository) Export(ctx context.Context, fn func(entry *domain.IndexEntry) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `SELECT `+documentColumns+`, embedding_attempts, indexed_at FROM documents ORDER BY id`)
	if err != nil {
		return err
	}
	var entries []*domain.IndexEntry
	for rows.Next() {
		entry, err := scanIndexEntry(rows)
		if err != nil {
			rows.Close()
			return err
		}
		entries = append(entries, entry)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	rows, err = tx.Query(ctx,
		`SELECT document_id, chunk_index, content, token_count, embedding::text
		 FROM chunks ORDER BY document_id, chunk_index`,
	)
	if err != nil {
		return err
	}
	chunks, err := scanChunks(rows)
	rows.Close()
	if err != nil {
		return err
	}

	// Both queries sort by id under the same collation, so chunks arrive
	// grouped in document order.
	next := 0
	for _, entry := range entries {
		for next < len(chunks) && chunks[next].DocumentID == entry.Document.ID {
			entry.Chunks = append(entry.Chunks, chunks[next])
			next++
		}
		if err := fn(entry); err != nil {
			return err
		}
	}
	return nil
}
