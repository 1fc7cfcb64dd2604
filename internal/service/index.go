package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/etvincen/boredapi/internal/domain"
	"github.com/etvincen/boredapi/internal/suggest"
	"github.com/etvincen/boredapi/internal/telemetry"
	"github.com/google/uuid"
)

// DefaultMaxEmbeddingAttempts bounds how often a pending document is re-embedded.
const DefaultMaxEmbeddingAttempts = 3

// DocumentRepositoryInterface defines the repository interface for document persistence
type DocumentRepositoryInterface interface {
	Get(ctx context.Context, id string) (*domain.ContentDocument, error)
	GetVersion(ctx context.Context, id string) (time.Time, error)
	LockVersion(ctx context.Context, id string) (time.Time, error)
	Upsert(ctx context.Context, doc *domain.ContentDocument) (bool, error)
	Restore(ctx context.Context, entry *domain.IndexEntry) error
	Delete(ctx context.Context, id string) error
	DeleteAll(ctx context.Context) (int64, error)
	ListTitles(ctx context.Context) ([]suggest.Entry, error)
	ListPending(ctx context.Context, limit, maxAttempts int) ([]*domain.ContentDocument, error)
	IncrementEmbeddingAttempts(ctx context.Context, id string) error
	MarkEmbeddingReady(ctx context.Context, id string, updatedAt time.Time) (bool, error)
	Stats(ctx context.Context) (*domain.IndexStats, error)
}

// ChunkRepositoryInterface defines the repository interface for chunk persistence
type ChunkRepositoryInterface interface {
	ReplaceChunks(ctx context.Context, documentID, title string, chunks []domain.Chunk) error
	ListByDocument(ctx context.Context, documentID string) ([]domain.Chunk, error)
	UpdateEmbeddings(ctx context.Context, documentID string, chunks []domain.Chunk) error
}

// SnapshotRepositoryInterface reads the whole index for backups
type SnapshotRepositoryInterface interface {
	Export(ctx context.Context, fn func(entry *domain.IndexEntry) error) error
}

// SnapshotStore holds backup artifacts. Get returns domain.ErrSnapshotNotFound
// for an unknown key.
type SnapshotStore interface {
	Put(ctx context.Context, key string, body io.ReadSeeker, size int64) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
}

// EmbedderInterface defines the interface for embedding generation
type EmbedderInterface interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// UUIDGenerator defines interface for UUID generation (for testing)
type UUIDGenerator interface {
	NewString() string
}

// DefaultUUIDGenerator is the default UUID generator using google/uuid
type DefaultUUIDGenerator struct{}

// NewString generates a new UUID string
func (g *DefaultUUIDGenerator) NewString() string {
	return uuid.NewString()
}

// UpsertResult tells what an upsert did.
type UpsertResult string

const (
	UpsertCreated   UpsertResult = "created"
	UpsertUpdated   UpsertResult = "updated"
	UpsertUnchanged UpsertResult = "unchanged"
)

// IndexManager is the only writer of persisted index state. Each upsert or
// delete is atomic for one document; the suggestion structure follows every
// committed change.
type IndexManager struct {
	docs        DocumentRepositoryInterface
	chunks      ChunkRepositoryInterface
	snapshots   SnapshotRepositoryInterface
	tx          TxRunner
	suggester   suggest.Suggester
	store       SnapshotStore
	embedder    EmbedderInterface
	uuidGen     UUIDGenerator
	now         func() time.Time
	maxAttempts int
	logger      *slog.Logger
}

// IndexOption configures an IndexManager.
type IndexOption func(*IndexManager)

func WithSuggester(s suggest.Suggester) IndexOption {
	return func(m *IndexManager) { m.suggester = s }
}

func WithSnapshotStore(store SnapshotStore) IndexOption {
	return func(m *IndexManager) { m.store = store }
}

// WithReembedder enables ReembedPending.
func WithReembedder(e EmbedderInterface) IndexOption {
	return func(m *IndexManager) { m.embedder = e }
}

func WithUUIDGenerator(g UUIDGenerator) IndexOption {
	return func(m *IndexManager) { m.uuidGen = g }
}

func WithClock(now func() time.Time) IndexOption {
	return func(m *IndexManager) { m.now = now }
}

func WithMaxEmbeddingAttempts(n int) IndexOption {
	return func(m *IndexManager) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

func WithIndexLogger(logger *slog.Logger) IndexOption {
	return func(m *IndexManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewIndexManager creates a new IndexManager instance
func NewIndexManager(
	docs DocumentRepositoryInterface,
	chunks ChunkRepositoryInterface,
	snapshots SnapshotRepositoryInterface,
	tx TxRunner,
	opts ...IndexOption,
) *IndexManager {
	m := &IndexManager{
		docs:        docs,
		chunks:      chunks,
		snapshots:   snapshots,
		tx:          tx,
		uuidGen:     &DefaultUUIDGenerator{},
		now:         time.Now,
		maxAttempts: DefaultMaxEmbeddingAttempts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.With("component", "index")
	return m
}

// backendErr keeps domain errors and wraps everything else as BACKEND_UNAVAILABLE.
func backendErr(message string, err error) error {
	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return err
	}
	return domain.NewBackendUnavailable(message, err)
}

// Upsert stores entry unless the index already holds the same or a newer
// version of the document. Chunks without embeddings mark the document
// pending so the re-embedding job picks it up.
func (m *IndexManager) Upsert(ctx context.Context, entry domain.IndexEntry) (UpsertResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "IndexManager.Upsert", telemetry.SpanAttributes{
		DocumentID:  entry.Document.ID,
		ContentType: string(entry.Document.ContentType),
		Operation:   "upsert",
	})
	defer span.End()

	doc := entry.Document
	if err := doc.Validate(); err != nil {
		return "", err
	}
	// Postgres keeps microseconds; comparing at that precision keeps re-ingestion idempotent.
	doc.UpdatedAt = doc.UpdatedAt.UTC().Truncate(time.Microsecond)
	doc.EmbeddingStatus = domain.EmbeddingStatusPending
	if entry.HasEmbeddings() {
		doc.EmbeddingStatus = domain.EmbeddingStatusReady
	}

	result := UpsertUnchanged
	err := m.tx.WithTx(ctx, func(repos TxRepositories) error {
		stored, err := repos.Documents().LockVersion(ctx, doc.ID)
		switch {
		case errors.Is(err, domain.ErrDocumentNotFound):
			result = UpsertCreated
		case err != nil:
			return err
		case !stored.Before(doc.UpdatedAt):
			return nil
		default:
			result = UpsertUpdated
		}

		applied, err := repos.Documents().Upsert(ctx, &doc)
		if err != nil {
			return err
		}
		if !applied {
			// a concurrent writer stored a version at least as new
			result = UpsertUnchanged
			return nil
		}
		return repos.Chunks().ReplaceChunks(ctx, doc.ID, doc.Title, entry.Chunks)
	})
	if err != nil {
		span.SetError(err)
		return "", backendErr("failed to upsert document", err)
	}
	span.SetTag("result", string(result))
	span.SetData("chunks", len(entry.Chunks))

	if result != UpsertUnchanged && m.suggester != nil {
		if err := m.suggester.Add(ctx, doc.ID, doc.Title); err != nil {
			m.logger.Warn("failed to update suggestions", "document_id", doc.ID, "error", err)
		}
	}
	return result, nil
}

// Version returns the stored updated_at of a document.
func (m *IndexManager) Version(ctx context.Context, id string) (time.Time, error) {
	v, err := m.docs.GetVersion(ctx, id)
	if err != nil {
		return time.Time{}, backendErr("failed to read document version", err)
	}
	return v, nil
}

func (m *IndexManager) Delete(ctx context.Context, id string) error {
	ctx, span := telemetry.StartSpan(ctx, "IndexManager.Delete", telemetry.SpanAttributes{
		DocumentID: id,
		Operation:  "delete",
	})
	defer span.End()

	if strings.TrimSpace(id) == "" {
		return domain.ErrMissingDocumentID
	}
	if err := m.docs.Delete(ctx, id); err != nil {
		return backendErr("failed to delete document", err)
	}

	if m.suggester != nil {
		if err := m.suggester.Remove(ctx, id); err != nil {
			m.logger.Warn("failed to update suggestions", "document_id", id, "error", err)
		}
	}
	return nil
}

func (m *IndexManager) Get(ctx context.Context, id string) (*domain.ContentDocument, error) {
	if strings.TrimSpace(id) == "" {
		return nil, domain.ErrMissingDocumentID
	}
	doc, err := m.docs.Get(ctx, id)
	if err != nil {
		return nil, backendErr("failed to read document", err)
	}
	return doc, nil
}

func (m *IndexManager) Stats(ctx context.Context) (*domain.IndexStats, error) {
	stats, err := m.docs.Stats(ctx)
	if err != nil {
		return nil, backendErr("failed to read index stats", err)
	}
	return stats, nil
}

// RebuildSuggestions reloads every title into the suggestion structure.
func (m *IndexManager) RebuildSuggestions(ctx context.Context) error {
	if m.suggester == nil {
		return nil
	}
	entries, err := m.docs.ListTitles(ctx)
	if err != nil {
		return backendErr("failed to list titles", err)
	}
	if err := m.suggester.Rebuild(ctx, entries); err != nil {
		return fmt.Errorf("failed to rebuild suggestions: %w", err)
	}
	m.logger.Info("suggestions rebuilt", "titles", len(entries))
	return nil
}

// Backup writes a snapshot of every document and chunk to the snapshot
// store and returns its handle.
func (m *IndexManager) Backup(ctx context.Context) (string, error) {
	ctx, span := telemetry.StartSpan(ctx, "IndexManager.Backup", telemetry.SpanAttributes{Operation: "backup"})
	defer span.End()

	if m.store == nil {
		return "", domain.NewBackendUnavailable("no snapshot store configured", nil)
	}

	createdAt := m.now().UTC()
	var buf bytes.Buffer
	w, err := NewSnapshotWriter(&buf, createdAt)
	if err != nil {
		return "", err
	}
	if err := m.snapshots.Export(ctx, w.Write); err != nil {
		span.SetError(err)
		return "", backendErr("failed to export index", err)
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	handle := fmt.Sprintf("snapshots/%s-%s.jsonl.gz", createdAt.Format("20060102T150405Z"), m.uuidGen.NewString())
	if err := m.store.Put(ctx, handle, bytes.NewReader(buf.Bytes()), int64(buf.Len())); err != nil {
		span.SetError(err)
		return "", backendErr("failed to store snapshot", err)
	}

	m.logger.Info("backup written", "handle", handle, "documents", w.count, "bytes", buf.Len())
	return handle, nil
}

// Restore replaces the whole index with a snapshot. The snapshot is fully
// read and validated first; if anything is wrong the index is untouched.
func (m *IndexManager) Restore(ctx context.Context, handle string) error {
	ctx, span := telemetry.StartSpan(ctx, "IndexManager.Restore", telemetry.SpanAttributes{Operation: "restore"})
	defer span.End()

	if strings.TrimSpace(handle) == "" {
		return domain.NewMalformedInput("snapshot handle is required")
	}
	if m.store == nil {
		return domain.NewBackendUnavailable("no snapshot store configured", nil)
	}

	rc, err := m.store.Get(ctx, handle)
	if err != nil {
		return backendErr("failed to open snapshot", err)
	}
	entries, err := ReadSnapshot(rc)
	rc.Close()
	if err != nil {
		span.SetError(err)
		return domain.NewDomainErrorWithCause(domain.ErrCodeMalformedInput, "snapshot cannot be restored", err)
	}

	err = m.tx.WithTx(ctx, func(repos TxRepositories) error {
		if _, err := repos.Documents().DeleteAll(ctx); err != nil {
			return err
		}
		for i := range entries {
			doc := entries[i].Document
			if err := repos.Documents().Restore(ctx, &entries[i]); err != nil {
				return fmt.Errorf("failed to restore document %s: %w", doc.ID, err)
			}
			if err := repos.Chunks().ReplaceChunks(ctx, doc.ID, doc.Title, entries[i].Chunks); err != nil {
				return fmt.Errorf("failed to restore chunks of %s: %w", doc.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		span.SetError(err)
		return backendErr("failed to restore snapshot", err)
	}

	if m.suggester != nil {
		titles := make([]suggest.Entry, 0, len(entries))
		for _, e := range entries {
			if e.Document.Title != "" {
				titles = append(titles, suggest.Entry{ID: e.Document.ID, Title: e.Document.Title})
			}
		}
		if err := m.suggester.Rebuild(ctx, titles); err != nil {
			m.logger.Warn("failed to rebuild suggestions after restore", "error", err)
		}
	}

	m.logger.Info("snapshot restored", "handle", handle, "documents", len(entries))
	return nil
}

// ReembedPending embeds up to limit documents stored without vectors. A
// document is only flipped to ready if it was not re-ingested meanwhile. It
// returns how many documents were completed.
func (m *IndexManager) ReembedPending(ctx context.Context, limit int) (int, error) {
	if m.embedder == nil {
		return 0, nil
	}

	pending, err := m.docs.ListPending(ctx, limit, m.maxAttempts)
	if err != nil {
		return 0, backendErr("failed to list pending documents", err)
	}

	done := 0
	for _, doc := range pending {
		if err := ctx.Err(); err != nil {
			return done, err
		}

		ok, err := m.reembed(ctx, doc)
		if err != nil {
			if attemptErr := m.docs.IncrementEmbeddingAttempts(ctx, doc.ID); attemptErr != nil {
				m.logger.Error("failed to record embedding attempt", "document_id", doc.ID, "error", attemptErr)
			}
			if domain.IsCode(err, domain.ErrCodeEmbeddingUnavailable) {
				// the model is down; the next cycle will try again
				return done, err
			}
			m.logger.Error("re-embedding failed", "document_id", doc.ID, "error", err)
			continue
		}
		if ok {
			done++
		}
	}
	return done, nil
}

func (m *IndexManager) reembed(ctx context.Context, doc *domain.ContentDocument) (bool, error) {
	chunks, err := m.chunks.ListByDocument(ctx, doc.ID)
	if err != nil {
		return false, backendErr("failed to read chunks", err)
	}

	if len(chunks) > 0 {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		vectors, err := m.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return false, err
		}
		for i := range chunks {
			chunks[i].Embedding = vectors[i]
		}
	}

	updated := false
	err = m.tx.WithTx(ctx, func(repos TxRepositories) error {
		stored, err := repos.Documents().LockVersion(ctx, doc.ID)
		if err != nil {
			return err
		}
		if !stored.Equal(doc.UpdatedAt) {
			return nil
		}
		if err := repos.Chunks().UpdateEmbeddings(ctx, doc.ID, chunks); err != nil {
			return err
		}
		updated, err = repos.Documents().MarkEmbeddingReady(ctx, doc.ID, doc.UpdatedAt)
		return err
	})
	if errors.Is(err, domain.ErrDocumentNotFound) {
		return false, nil
	}
	if err != nil {
		return false, backendErr("failed to store embeddings", err)
	}
	return updated, nil
}
