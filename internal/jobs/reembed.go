package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/etvincen/boredapi/internal/domain"
)

// DefaultReembedBatch is how many pending documents one cycle handles.
const DefaultReembedBatch = 50

// Reembedder completes documents that were indexed without embeddings.
type Reembedder interface {
	ReembedPending(ctx context.Context, limit int) (int, error)
}

// ReembedWorker retries embedding for pending documents on every tick.
type ReembedWorker struct {
	index     Reembedder
	batchSize int
	logger    *slog.Logger
}

// NewReembedWorker creates a new ReembedWorker instance
func NewReembedWorker(index Reembedder, batchSize int, logger *slog.Logger) *ReembedWorker {
	if batchSize <= 0 {
		batchSize = DefaultReembedBatch
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ReembedWorker{
		index:     index,
		batchSize: batchSize,
		logger:    logger.With("component", "reembed"),
	}
}

// ProcessJobs implements the JobProcessor interface. An unavailable model
// is not an error for the worker; the documents stay pending.
func (w *ReembedWorker) ProcessJobs(ctx context.Context) error {
	done, err := w.index.ReembedPending(ctx, w.batchSize)
	if done > 0 {
		w.logger.Info("pending documents embedded", "count", done)
	}
	if err != nil {
		if domain.IsCode(err, domain.ErrCodeEmbeddingUnavailable) {
			w.logger.Warn("embedding model unavailable, will retry", "error", err)
			return nil
		}
		return fmt.Errorf("failed to re-embed pending documents: %w", err)
	}
	return nil
}
