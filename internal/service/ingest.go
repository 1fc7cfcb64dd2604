package service

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/etvincen/boredapi/internal/domain"
	"github.com/panjf2000/ants/v2"
)

// DefaultIngestWorkers is the ingestion pool size when none is configured.
const DefaultIngestWorkers = 4

// DocumentIndexer is the part of the IndexManager used by ingestion.
type DocumentIndexer interface {
	Version(ctx context.Context, id string) (time.Time, error)
	Upsert(ctx context.Context, entry domain.IndexEntry) (UpsertResult, error)
}

// IngestError describes one document that was not indexed.
type IngestError struct {
	DocumentID string `json:"document_id"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// IngestReport summarizes a batch.
type IngestReport struct {
	Received  int           `json:"received"`
	Created   int           `json:"created"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Pending   int           `json:"pending_embeddings"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Errors    []IngestError `json:"errors,omitempty"`
}

type ingestOutcome struct {
	result  UpsertResult
	pending bool
	skipped bool
	err     error
	id      string
}

func (r *IngestReport) add(o ingestOutcome) {
	switch {
	case o.skipped:
		r.Skipped++
	case o.err != nil:
		r.Failed++
	default:
		switch o.result {
		case UpsertCreated:
			r.Created++
		case UpsertUpdated:
			r.Updated++
		case UpsertUnchanged:
			r.Unchanged++
		}
		if o.pending && o.result != UpsertUnchanged {
			r.Pending++
		}
	}
	if o.err != nil {
		code := domain.CodeOf(o.err)
		if code == "" {
			code = domain.ErrCodeInternalError
		}
		r.Errors = append(r.Errors, IngestError{DocumentID: o.id, Code: code, Message: o.err.Error()})
	}
}

// Ingestor runs documents through chunking, embedding and upsert on a
// bounded worker pool shared by all batches.
type Ingestor struct {
	index    DocumentIndexer
	chunker  *Chunker
	embedder EmbedderInterface
	pool     *ants.Pool
	retry    RetryConfig
	logger   *slog.Logger
}

// IngestOption configures an Ingestor.
type IngestOption func(*Ingestor) error

// WithIngestWorkers sets the number of documents processed concurrently.
func WithIngestWorkers(n int) IngestOption {
	return func(in *Ingestor) error {
		if n < 1 {
			n = 1
		}
		if in.pool != nil {
			in.pool.Release()
		}
		pool, err := ants.NewPool(n)
		if err != nil {
			return err
		}
		in.pool = pool
		return nil
	}
}

func WithRetryConfig(cfg RetryConfig) IngestOption {
	return func(in *Ingestor) error {
		in.retry = cfg
		return nil
	}
}

func WithIngestLogger(logger *slog.Logger) IngestOption {
	return func(in *Ingestor) error {
		if logger != nil {
			in.logger = logger
		}
		return nil
	}
}

// NewIngestor creates an Ingestor. Call Release when done.
func NewIngestor(index DocumentIndexer, chunker *Chunker, embedder EmbedderInterface, opts ...IngestOption) (*Ingestor, error) {
	in := &Ingestor{
		index:    index,
		chunker:  chunker,
		embedder: embedder,
		retry:    DefaultRetryConfig(),
		logger:   slog.Default(),
	}
	if in.chunker == nil {
		in.chunker = NewChunker(DefaultChunkConfig())
	}

	workers := DefaultIngestWorkers
	if n := runtime.NumCPU(); n < workers {
		workers = max(n, 1)
	}
	if err := WithIngestWorkers(workers)(in); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		if err := opt(in); err != nil {
			in.Release()
			return nil, err
		}
	}
	in.logger = in.logger.With("component", "ingestor")
	return in, nil
}

// Release stops the worker pool.
func (in *Ingestor) Release() {
	if in.pool != nil {
		in.pool.Release()
	}
}

// Ingest indexes a batch. Malformed documents are skipped and reported;
// documents the model could not embed are stored lexical-only and marked
// pending. The returned error is only set when ctx ends early.
func (in *Ingestor) Ingest(ctx context.Context, docs []domain.ContentDocument) (*IngestReport, error) {
	report := &IngestReport{Received: len(docs)}

	var mu sync.Mutex
	var wg sync.WaitGroup
	record := func(o ingestOutcome) {
		mu.Lock()
		report.add(o)
		mu.Unlock()
	}

	for i := range docs {
		doc := &docs[i]
		wg.Add(1)
		err := in.pool.Submit(func() {
			defer wg.Done()
			record(in.ingestOne(ctx, doc))
		})
		if err != nil {
			wg.Done()
			record(ingestOutcome{id: doc.ID, err: domain.NewBackendUnavailable("ingestion pool unavailable", err)})
		}
	}
	wg.Wait()

	sort.Slice(report.Errors, func(i, j int) bool {
		return report.Errors[i].DocumentID < report.Errors[j].DocumentID
	})
	in.logger.Info("batch ingested",
		"received", report.Received,
		"created", report.Created,
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"pending", report.Pending,
		"skipped", report.Skipped,
		"failed", report.Failed,
	)
	return report, ctx.Err()
}

func (in *Ingestor) ingestOne(ctx context.Context, doc *domain.ContentDocument) ingestOutcome {
	if err := ctx.Err(); err != nil {
		return ingestOutcome{id: doc.ID, err: err}
	}
	if err := doc.Validate(); err != nil {
		in.logger.Warn("skipping malformed document", "document_id", doc.ID, "error", err)
		return ingestOutcome{id: doc.ID, skipped: true, err: err}
	}

	incoming := doc.UpdatedAt.UTC().Truncate(time.Microsecond)
	stored, err := in.index.Version(ctx, doc.ID)
	switch {
	case err == nil && !stored.Before(incoming):
		return ingestOutcome{id: doc.ID, result: UpsertUnchanged}
	case err != nil && !errors.Is(err, domain.ErrDocumentNotFound):
		// the upsert below re-checks the version under lock
		in.logger.Debug("version check failed", "document_id", doc.ID, "error", err)
	}

	chunks, err := in.chunker.Chunk(doc)
	if err != nil {
		in.logger.Warn("skipping malformed document", "document_id", doc.ID, "error", err)
		return ingestOutcome{id: doc.ID, skipped: true, err: err}
	}

	pending := false
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := in.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		in.logger.Warn("embedding unavailable, storing lexical-only", "document_id", doc.ID, "error", err)
		pending = true
	} else {
		for i := range chunks {
			chunks[i].Embedding = vectors[i]
		}
	}

	entry := domain.IndexEntry{Document: *doc, Chunks: chunks}
	result, err := retryWithBackoff(ctx, in.retry, isBackendUnavailable, func() (UpsertResult, error) {
		return in.index.Upsert(ctx, entry)
	})
	if err != nil {
		in.logger.Error("failed to index document", "document_id", doc.ID, "error", err)
		return ingestOutcome{id: doc.ID, err: err}
	}
	return ingestOutcome{id: doc.ID, result: result, pending: pending}
}

func isBackendUnavailable(err error) bool {
	return domain.IsCode(err, domain.ErrCodeBackendUnavailable)
}
