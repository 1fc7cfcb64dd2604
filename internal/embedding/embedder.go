// Package embedding maps text to unit-length vectors through a pluggable
// model provider with an explicit Init/Close lifecycle.
package embedding

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/etvincen/boredapi/internal/domain"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout   = 5 * time.Second
	DefaultCacheSize = 1000
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when a provider returns vectors of the wrong size
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrZeroVector is returned when a provider returns an all-zero vector
	ErrZeroVector = errors.New("embedding is a zero vector")
)

// Provider is a loaded embedding model.
type Provider interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Close() error
}

// ProviderFactory loads a provider. It is called once by Init.
type ProviderFactory func(ctx context.Context) (Provider, error)

// Embedder owns a provider and serializes calls into it.
type Embedder struct {
	factory    ProviderFactory
	dimensions int
	timeout    time.Duration
	limiter    *rate.Limiter
	cache      *lru.Cache[[32]byte, []float32]
	logger     *slog.Logger

	// sem is a one-slot semaphore guarding provider; model calls never run
	// concurrently within one process. closed is only set while holding it.
	sem      chan struct{}
	provider Provider
	closed   atomic.Bool
}

// Option configures an Embedder.
type Option func(*Embedder)

func WithTimeout(d time.Duration) Option {
	return func(e *Embedder) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithRateLimit caps provider calls per second. Zero disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(e *Embedder) {
		if perSecond > 0 {
			e.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

// WithCacheSize sets the number of single-text embeddings kept in memory.
// Zero disables the cache.
func WithCacheSize(n int) Option {
	return func(e *Embedder) {
		if n <= 0 {
			e.cache = nil
			return
		}
		cache, err := lru.New[[32]byte, []float32](n)
		if err == nil {
			e.cache = cache
		}
	}
}

func WithDimensions(n int) Option {
	return func(e *Embedder) {
		if n > 0 {
			e.dimensions = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Embedder) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Embedder. The provider is not loaded until Init.
func New(factory ProviderFactory, opts ...Option) *Embedder {
	e := &Embedder{
		factory:    factory,
		dimensions: domain.EmbeddingDimensions,
		timeout:    DefaultTimeout,
		logger:     slog.Default(),
		sem:        make(chan struct{}, 1),
	}
	WithCacheSize(DefaultCacheSize)(e)
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "embedder")
	return e
}

// Dimensions returns the vector size produced by this embedder.
func (e *Embedder) Dimensions() int {
	return e.dimensions
}

func (e *Embedder) acquire(ctx context.Context) error {
	select {
	case e.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return domain.NewEmbeddingUnavailable("embedder busy", ctx.Err())
	}
}

func (e *Embedder) release() {
	<-e.sem
}

// Init loads the provider. Calling Init again after success is a no-op.
func (e *Embedder) Init(ctx context.Context) error {
	if err := e.acquire(ctx); err != nil {
		return err
	}
	defer e.release()

	if e.closed.Load() {
		return domain.ErrEmbedderClosed
	}
	if e.provider != nil {
		return nil
	}

	provider, err := e.factory(ctx)
	if err != nil {
		return domain.NewEmbeddingUnavailable("failed to load embedding model", err)
	}
	e.provider = provider
	e.logger.Info("embedding model loaded", "dimensions", e.dimensions)
	return nil
}

// Close releases the provider. Later calls fail with EMBEDDING_UNAVAILABLE.
func (e *Embedder) Close() error {
	e.sem <- struct{}{}
	defer e.release()

	if e.closed.Load() {
		return nil
	}
	e.closed.Store(true)
	if e.cache != nil {
		e.cache.Purge()
	}
	if e.provider == nil {
		return nil
	}
	err := e.provider.Close()
	e.provider = nil
	return err
}

// Embed returns the unit vector for a single text. Results are cached.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if e.closed.Load() {
		return nil, domain.ErrEmbedderClosed
	}

	key := sha256.Sum256([]byte(text))
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			return copyVector(cached), nil
		}
	}

	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		e.cache.Add(key, copyVector(vectors[0]))
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in one provider call, preserving input order.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, ErrEmptyText
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := e.acquire(callCtx); err != nil {
		return nil, err
	}
	defer e.release()

	if e.closed.Load() {
		return nil, domain.ErrEmbedderClosed
	}
	if e.provider == nil {
		return nil, domain.ErrEmbedderNotInitialized
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(callCtx); err != nil {
			return nil, domain.NewEmbeddingUnavailable("embedding rate limit wait aborted", err)
		}
	}

	start := time.Now()
	vectors, err := e.provider.EmbedBatch(callCtx, texts)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, domain.NewEmbeddingUnavailable("embedding call timed out", err)
		}
		return nil, domain.NewEmbeddingUnavailable("embedding call failed", err)
	}
	if len(vectors) != len(texts) {
		return nil, domain.NewEmbeddingUnavailable("embedding call failed",
			fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(texts)))
	}

	out := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != e.dimensions {
			return nil, domain.NewEmbeddingUnavailable("embedding call failed",
				fmt.Errorf("%w: got %d, expected %d", ErrWrongDimensions, len(v), e.dimensions))
		}
		normalized, ok := Normalize(v)
		if !ok {
			return nil, domain.NewEmbeddingUnavailable("embedding call failed", ErrZeroVector)
		}
		out[i] = normalized
	}

	e.logger.Debug("embedded batch", "count", len(texts), "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

// Normalize returns a unit-length copy of v. It reports false for a zero vector.
func Normalize(v []float32) ([]float32, bool) {
	var sum float64
	for _, val := range v {
		sum += float64(val) * float64(val)
	}
	if sum == 0 {
		return nil, false
	}

	norm := math.Sqrt(sum)
	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = float32(float64(val) / norm)
	}
	return result, true
}

// Dot returns the dot product of two vectors of the same length.
func Dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		if i >= len(b) {
			break
		}
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
