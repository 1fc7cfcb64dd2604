// Package jobs runs periodic background work inside the daemon.
package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/etvincen/boredapi/internal/telemetry"
)

// JobProcessor runs one cycle of background work.
type JobProcessor interface {
	ProcessJobs(ctx context.Context) error
}

// Worker calls its processor once at start and then on every tick until the
// context ends or Stop is called. Cycles never overlap; a slow cycle delays
// the next tick instead of queueing more.
type Worker struct {
	processor    JobProcessor
	pollInterval time.Duration
	logger       *slog.Logger
	stopOnce     sync.Once
	stopChan     chan struct{}
	doneChan     chan struct{}
}

func NewWorker(processor JobProcessor, pollInterval time.Duration, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		processor:    processor,
		pollInterval: pollInterval,
		logger:       logger.With("component", "worker"),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
}

// Start blocks running cycles.
func (w *Worker) Start(ctx context.Context) {
	defer close(w.doneChan)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-w.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	w.logger.Info("worker started", "poll_interval", w.pollInterval)
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		w.runCycle(ctx)
		select {
		case <-ctx.Done():
			w.logger.Info("worker stopped")
			return
		case <-ticker.C:
		}
	}
}

func (w *Worker) runCycle(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	start := time.Now()
	if err := w.processor.ProcessJobs(ctx); err != nil && ctx.Err() == nil {
		w.logger.Error("job cycle failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		telemetry.CaptureError(ctx, err)
	}
}

// Stop cancels a running cycle and waits for Start to return. It is safe to
// call more than once, but only after Start.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
	<-w.doneChan
	w.logger.Info("worker shutdown complete")
}
