package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/etvincen/boredapi/internal/domain"
	"github.com/etvincen/boredapi/internal/suggest"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const documentColumns = `id, url, title, body, body_html, content_type, hierarchy, media, statistics, embedding_status, updated_at`

// DocumentRepository persists ContentDocuments.
type DocumentRepository struct {
	db dbtx
}

func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{db: pool}
}

func NewDocumentRepositoryWithTx(tx pgx.Tx) *DocumentRepository {
	return &DocumentRepository{db: tx}
}

func (r *DocumentRepository) Get(ctx context.Context, id string) (*domain.ContentDocument, error) {
	row := r.db.QueryRow(ctx, `SELECT `+documentColumns+` FROM documents WHERE id = $1`, id)
	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return doc, nil
}

// GetVersion returns the stored updated_at of a document.
func (r *DocumentRepository) GetVersion(ctx context.Context, id string) (time.Time, error) {
	return r.version(ctx, `SELECT updated_at FROM documents WHERE id = $1`, id)
}

// LockVersion is GetVersion with a row lock held until the transaction ends.
func (r *DocumentRepository) LockVersion(ctx context.Context, id string) (time.Time, error) {
	return r.version(ctx, `SELECT updated_at FROM documents WHERE id = $1 FOR UPDATE`, id)
}

func (r *DocumentRepository) version(ctx context.Context, query, id string) (time.Time, error) {
	var updatedAt time.Time
	err := r.db.QueryRow(ctx, query, id).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, domain.ErrDocumentNotFound
		}
		return time.Time{}, err
	}
	return updatedAt, nil
}

// Upsert inserts a document row or replaces an older one, resetting its
// embedding attempts. It reports false when the stored row is at least as
// recent as doc and was left untouched.
func (r *DocumentRepository) Upsert(ctx context.Context, doc *domain.ContentDocument) (bool, error) {
	hierarchy, media, stats, err := marshalDocumentJSON(doc)
	if err != nil {
		return false, err
	}
	status := doc.EmbeddingStatus
	if status == "" {
		status = domain.EmbeddingStatusReady
	}

	cmdTag, err := r.db.Exec(ctx,
		`INSERT INTO documents (id, url, title, body, body_html, content_type, hierarchy, media, statistics, embedding_status, embedding_attempts, updated_at, indexed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11, NOW())
		 ON CONFLICT (id) DO UPDATE SET
			url = EXCLUDED.url,
			title = EXCLUDED.title,
			body = EXCLUDED.body,
			body_html = EXCLUDED.body_html,
			content_type = EXCLUDED.content_type,
			hierarchy = EXCLUDED.hierarchy,
			media = EXCLUDED.media,
			statistics = EXCLUDED.statistics,
			embedding_status = EXCLUDED.embedding_status,
			embedding_attempts = 0,
			updated_at = EXCLUDED.updated_at,
			indexed_at = NOW()
		 WHERE documents.updated_at < EXCLUDED.updated_at`,
		doc.ID, doc.URL, doc.Title, doc.Body, doc.BodyHTML, string(doc.ContentType),
		hierarchy, media, stats, string(status), doc.UpdatedAt,
	)
	if err != nil {
		return false, err
	}
	return cmdTag.RowsAffected() > 0, nil
}

// Restore inserts a document row as it was backed up, keeping its embedding
// attempts and indexing time. The table is expected to be empty of doc.ID.
func (r *DocumentRepository) Restore(ctx context.Context, entry *domain.IndexEntry) error {
	doc := &entry.Document
	hierarchy, media, stats, err := marshalDocumentJSON(doc)
	if err != nil {
		return err
	}
	status := doc.EmbeddingStatus
	if status == "" {
		status = domain.EmbeddingStatusReady
	}
	var indexedAt *time.Time
	if !entry.IndexedAt.IsZero() {
		indexedAt = &entry.IndexedAt
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO documents (id, url, title, body, body_html, content_type, hierarchy, media, statistics, embedding_status, embedding_attempts, updated_at, indexed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, COALESCE($13::timestamptz, NOW()))`,
		doc.ID, doc.URL, doc.Title, doc.Body, doc.BodyHTML, string(doc.ContentType),
		hierarchy, media, stats, string(status), entry.EmbeddingAttempts, doc.UpdatedAt, indexedAt,
	)
	return err
}

func (r *DocumentRepository) Delete(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

// DeleteAll removes every document; chunks go with them.
func (r *DocumentRepository) DeleteAll(ctx context.Context) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM documents`)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}

func (r *DocumentRepository) ListTitles(ctx context.Context) ([]suggest.Entry, error) {
	rows, err := r.db.Query(ctx, `SELECT id, title FROM documents WHERE title <> ''`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []suggest.Entry
	for rows.Next() {
		var e suggest.Entry
		if err := rows.Scan(&e.ID, &e.Title); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListPending returns documents still waiting for embeddings, oldest first.
func (r *DocumentRepository) ListPending(ctx context.Context, limit, maxAttempts int) ([]*domain.ContentDocument, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx,
		`SELECT `+documentColumns+`
		 FROM documents
		 WHERE embedding_status = $1 AND embedding_attempts < $2
		 ORDER BY indexed_at ASC, id ASC
		 LIMIT $3`,
		string(domain.EmbeddingStatusPending), maxAttempts, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.ContentDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (r *DocumentRepository) IncrementEmbeddingAttempts(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx,
		`UPDATE documents SET embedding_attempts = embedding_attempts + 1 WHERE id = $1`,
		id,
	)
	return err
}

// MarkEmbeddingReady flips a pending document to ready if it is still at
// version updatedAt. It reports whether a row changed.
func (r *DocumentRepository) MarkEmbeddingReady(ctx context.Context, id string, updatedAt time.Time) (bool, error) {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE documents SET embedding_status = $1, embedding_attempts = 0
		 WHERE id = $2 AND updated_at = $3`,
		string(domain.EmbeddingStatusReady), id, updatedAt,
	)
	if err != nil {
		return false, err
	}
	return cmdTag.RowsAffected() > 0, nil
}

func (r *DocumentRepository) Stats(ctx context.Context) (*domain.IndexStats, error) {
	stats := &domain.IndexStats{ByContentType: make(map[domain.ContentType]int64)}

	err := r.db.QueryRow(ctx,
		`SELECT
			(SELECT COUNT(*) FROM documents),
			(SELECT COUNT(*) FROM chunks),
			(SELECT COUNT(*) FROM documents WHERE embedding_status = $1)`,
		string(domain.EmbeddingStatusPending),
	).Scan(&stats.Documents, &stats.Chunks, &stats.PendingEmbeddings)
	if err != nil {
		return nil, err
	}

	rows, err := r.db.Query(ctx, `SELECT content_type, COUNT(*) FROM documents GROUP BY content_type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var contentType string
		var count int64
		if err := rows.Scan(&contentType, &count); err != nil {
			return nil, err
		}
		stats.ByContentType[domain.ContentType(contentType)] = count
	}
	return stats, rows.Err()
}

func marshalDocumentJSON(doc *domain.ContentDocument) (hierarchy, media, stats []byte, err error) {
	h := doc.Hierarchy
	if h.Breadcrumb == nil {
		h.Breadcrumb = []string{}
	}
	if hierarchy, err = json.Marshal(h); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode hierarchy: %w", err)
	}
	mediaRefs := doc.Media
	if mediaRefs == nil {
		mediaRefs = []domain.MediaReference{}
	}
	if media, err = json.Marshal(mediaRefs); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode media: %w", err)
	}
	if stats, err = json.Marshal(doc.Statistics); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to encode statistics: %w", err)
	}
	return hierarchy, media, stats, nil
}

func scanDocument(row pgx.Row) (*domain.ContentDocument, error) {
	return scanDocumentWith(row)
}

// scanIndexEntry scans documentColumns followed by the retry state.
func scanIndexEntry(row pgx.Row) (*domain.IndexEntry, error) {
	var entry domain.IndexEntry
	doc, err := scanDocumentWith(row, &entry.EmbeddingAttempts, &entry.IndexedAt)
	if err != nil {
		return nil, err
	}
	entry.Document = *doc
	entry.IndexedAt = entry.IndexedAt.UTC()
	return &entry, nil
}

// scanDocumentWith scans documentColumns and then extra, in that order.
func scanDocumentWith(row pgx.Row, extra ...any) (*domain.ContentDocument, error) {
	var doc domain.ContentDocument
	var contentType, status string
	var hierarchy, media, stats []byte
	dest := append([]any{&doc.ID, &doc.URL, &doc.Title, &doc.Body, &doc.BodyHTML, &contentType,
		&hierarchy, &media, &stats, &status, &doc.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	doc.ContentType = domain.ContentType(contentType)
	doc.EmbeddingStatus = domain.EmbeddingStatus(status)
	doc.UpdatedAt = doc.UpdatedAt.UTC()

	if err := json.Unmarshal(hierarchy, &doc.Hierarchy); err != nil {
		return nil, fmt.Errorf("failed to decode hierarchy: %w", err)
	}
	if err := json.Unmarshal(media, &doc.Media); err != nil {
		return nil, fmt.Errorf("failed to decode media: %w", err)
	}
	if len(doc.Media) == 0 {
		doc.Media = nil
	}
	if err := json.Unmarshal(stats, &doc.Statistics); err != nil {
		return nil, fmt.Errorf("failed to decode statistics: %w", err)
	}
	return &doc, nil
}
