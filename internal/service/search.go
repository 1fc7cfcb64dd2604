package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/etvincen/boredapi/internal/domain"
	"github.com/etvincen/boredapi/internal/suggest"
	"github.com/etvincen/boredapi/internal/telemetry"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultSearchSize  = 10
	MaxSearchSize      = 50
	DefaultSuggestSize = 5
	MaxSuggestSize     = 10

	DefaultSearchTimeout = 3 * time.Second
	DefaultVectorTimeout = time.Second
)

// SearchMode selects which sub-queries run.
type SearchMode string

const (
	SearchModeHybrid   SearchMode = "hybrid"
	SearchModeSemantic SearchMode = "semantic"
	SearchModeKeyword  SearchMode = "keyword"
	// SearchModeKeywordFallback is reported, never requested: the vector
	// side was unavailable and only lexical scores were used.
	SearchModeKeywordFallback SearchMode = "keyword-fallback"
)

// ParseSearchMode maps a request parameter to a mode. Empty means hybrid.
func ParseSearchMode(s string) (SearchMode, error) {
	switch SearchMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SearchModeHybrid:
		return SearchModeHybrid, nil
	case SearchModeSemantic:
		return SearchModeSemantic, nil
	case SearchModeKeyword:
		return SearchModeKeyword, nil
	}
	return "", domain.NewMalformedInput(fmt.Sprintf("unknown search mode %q", s))
}

// ChunkHit is one chunk returned by a sub-query, with its raw score.
type ChunkHit struct {
	DocumentID  string
	ChunkIndex  int
	Text        string
	Title       string
	URL         string
	ContentType domain.ContentType
	Statistics  domain.Statistics
	Score       float64
}

// SearchRepositoryInterface runs the backend query primitives.
type SearchRepositoryInterface interface {
	SearchLexical(ctx context.Context, query string, contentType domain.ContentType, limit int) ([]ChunkHit, error)
	SearchVector(ctx context.Context, embedding []float32, contentType domain.ContentType, limit int) ([]ChunkHit, error)
}

// SearchRequest enumerates every per-request option.
type SearchRequest struct {
	// Query is free text; required.
	Query string
	// Size caps the number of results, 1..50. Zero means 10.
	Size int
	// MinScore drops results whose fused score is lower. Nil keeps all.
	MinScore *float64
	// Mode is hybrid when empty.
	Mode SearchMode
	// Weights overrides the configured fusion weights when set.
	Weights *Weights
	// ContentType restricts results to one content type when set.
	ContentType domain.ContentType
	// IncludeStats attaches the document statistics to each result.
	IncludeStats bool
}

// SearchResult is one ranked document.
type SearchResult struct {
	DocumentID        string             `json:"document_id"`
	Title             string             `json:"title"`
	URL               string             `json:"url"`
	ContentType       domain.ContentType `json:"content_type"`
	TextPreview       string             `json:"text_preview"`
	LexicalScore      *float64           `json:"lexical_score,omitempty"`
	VectorScore       *float64           `json:"vector_score,omitempty"`
	FusedScore        float64            `json:"fused_score"`
	MatchedChunkIndex int                `json:"matched_chunk_index"`
	Statistics        *domain.Statistics `json:"statistics,omitempty"`
}

// SearchOutput is the ranked answer to one request.
type SearchOutput struct {
	Results []SearchResult
	Total   int
	Mode    SearchMode
	TookMS  int64
}

// Degraded reports whether the vector side was skipped for lack of embeddings.
func (o *SearchOutput) Degraded() bool {
	return o.Mode == SearchModeKeywordFallback
}

// SearchConfig holds the query planner settings.
type SearchConfig struct {
	SearchTimeout time.Duration
	VectorTimeout time.Duration
	Weights       Weights
}

func DefaultSearchConfig() SearchConfig {
	return SearchConfig{
		SearchTimeout: DefaultSearchTimeout,
		VectorTimeout: DefaultVectorTimeout,
		Weights:       DefaultWeights(),
	}
}

// SearchService plans queries over the index and serves title suggestions.
type SearchService struct {
	repo      SearchRepositoryInterface
	embedder  EmbedderInterface
	suggester suggest.Suggester
	cfg       SearchConfig
	now       func() time.Time
	logger    *slog.Logger
}

// SearchOption configures a SearchService.
type SearchOption func(*SearchService)

func WithSearchLogger(logger *slog.Logger) SearchOption {
	return func(s *SearchService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithSearchClock(now func() time.Time) SearchOption {
	return func(s *SearchService) { s.now = now }
}

// NewSearchService creates a SearchService. Zero config fields take defaults.
func NewSearchService(repo SearchRepositoryInterface, embedder EmbedderInterface, suggester suggest.Suggester, cfg SearchConfig, opts ...SearchOption) *SearchService {
	defaults := DefaultSearchConfig()
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = defaults.SearchTimeout
	}
	if cfg.VectorTimeout <= 0 {
		cfg.VectorTimeout = defaults.VectorTimeout
	}
	if cfg.Weights == (Weights{}) {
		cfg.Weights = defaults.Weights
	}
	s := &SearchService{
		repo:      repo,
		embedder:  embedder,
		suggester: suggester,
		cfg:       cfg,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "search")
	return s
}

func (s *SearchService) normalizeRequest(req SearchRequest) (SearchRequest, error) {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return req, domain.ErrEmptyQuery
	}
	if req.Size == 0 {
		req.Size = DefaultSearchSize
	}
	if req.Size < 1 || req.Size > MaxSearchSize {
		return req, domain.NewMalformedInput(fmt.Sprintf("size must be between 1 and %d", MaxSearchSize))
	}
	if req.MinScore != nil && (*req.MinScore < 0 || math.IsNaN(*req.MinScore)) {
		return req, domain.NewMalformedInput("min_score must be non-negative")
	}
	mode, err := ParseSearchMode(string(req.Mode))
	if err != nil {
		return req, err
	}
	req.Mode = mode
	if req.Weights == nil {
		w := s.cfg.Weights
		req.Weights = &w
	}
	if err := req.Weights.Validate(); err != nil {
		return req, err
	}
	if req.ContentType != "" && !req.ContentType.IsValid() {
		return req, domain.ErrInvalidContentType
	}
	return req, nil
}

// Search runs the lexical and vector sub-queries concurrently, then fuses and
// ranks their hits. When the query cannot be embedded in time the result is
// lexical-only and flagged keyword-fallback. A failing lexical sub-query or
// vector backend fails the whole request.
func (s *SearchService) Search(ctx context.Context, req SearchRequest) (*SearchOutput, error) {
	start := s.now()
	req, err := s.normalizeRequest(req)
	if err != nil {
		return nil, err
	}

	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		Mode:        string(req.Mode),
		ContentType: string(req.ContentType),
		Operation:   "search",
	})
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.SearchTimeout)
	defer cancel()

	limit := candidateLimit(req.Size)
	var lexicalHits, vectorHits []ChunkHit
	vectorOK := false

	g, gctx := errgroup.WithContext(ctx)
	if req.Mode != SearchModeSemantic {
		g.Go(func() error {
			hits, err := s.lexical(gctx, req, limit)
			if err != nil {
				return err
			}
			lexicalHits = hits
			return nil
		})
	}
	if req.Mode != SearchModeKeyword {
		g.Go(func() error {
			hits, err := s.vector(gctx, req, limit)
			if err != nil {
				if gctx.Err() == nil && isDegradable(err) {
					s.logger.Warn("vector search unavailable, falling back to keyword", "error", err)
					telemetry.AddBreadcrumb(gctx, "search", "vector search unavailable, keyword fallback")
					return nil
				}
				return backendErr("vector search failed", err)
			}
			vectorHits = hits
			vectorOK = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.SetError(err)
		return nil, searchErr(ctx, err)
	}

	mode := req.Mode
	weights := *req.Weights
	switch {
	case req.Mode == SearchModeKeyword:
		weights = Weights{Lexical: 1}
	case !vectorOK:
		mode = SearchModeKeywordFallback
		weights = Weights{Lexical: 1}
		vectorHits = nil
		if req.Mode == SearchModeSemantic {
			lexicalHits, err = s.lexical(ctx, req, limit)
			if err != nil {
				span.SetError(err)
				return nil, searchErr(ctx, err)
			}
		}
	case req.Mode == SearchModeSemantic:
		weights = Weights{Vector: 1}
	}
	span.SetTag("search_mode", string(mode))

	results, total := rankHits(lexicalHits, vectorHits, weights, req.MinScore, req.Size, req.IncludeStats)
	span.SetData("results", len(results))
	out := &SearchOutput{
		Results: results,
		Total:   total,
		Mode:    mode,
		TookMS:  s.now().Sub(start).Milliseconds(),
	}
	s.logger.Debug("search completed",
		"mode", mode,
		"lexical_hits", len(lexicalHits),
		"vector_hits", len(vectorHits),
		"results", len(results),
		"took_ms", out.TookMS,
	)
	return out, nil
}

func (s *SearchService) lexical(ctx context.Context, req SearchRequest, limit int) ([]ChunkHit, error) {
	hits, err := s.repo.SearchLexical(ctx, req.Query, req.ContentType, limit)
	if err != nil {
		return nil, backendErr("lexical search failed", err)
	}
	return hits, nil
}

// vector embeds the query and runs the kNN sub-query under the vector deadline.
func (s *SearchService) vector(ctx context.Context, req SearchRequest, limit int) ([]ChunkHit, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbedderNotInitialized
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.VectorTimeout)
	defer cancel()

	embedding, err := s.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	return s.repo.SearchVector(ctx, embedding, req.ContentType, limit)
}

// isDegradable reports vector side failures that fall back to keyword search.
func isDegradable(err error) bool {
	return domain.IsCode(err, domain.ErrCodeEmbeddingUnavailable) || errors.Is(err, context.DeadlineExceeded)
}

// searchErr reports an exhausted request deadline as a backend failure.
func searchErr(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && !domain.IsCode(err, domain.ErrCodeBackendUnavailable) {
		return domain.NewBackendUnavailable("search timed out", err)
	}
	return err
}

// Suggest returns titles starting with prefix, ignoring case and accents.
func (s *SearchService) Suggest(ctx context.Context, prefix string, size int) ([]string, error) {
	if size == 0 {
		size = DefaultSuggestSize
	}
	if size < 1 || size > MaxSuggestSize {
		return nil, domain.NewMalformedInput(fmt.Sprintf("size must be between 1 and %d", MaxSuggestSize))
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || s.suggester == nil {
		return []string{}, nil
	}
	titles, err := s.suggester.Suggest(ctx, prefix, size)
	if err != nil {
		return nil, backendErr("suggestion lookup failed", err)
	}
	if titles == nil {
		titles = []string{}
	}
	return titles, nil
}
