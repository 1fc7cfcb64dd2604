package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/etvincen/boredapi/internal/api"
	"github.com/etvincen/boredapi/internal/domain"
	"github.com/etvincen/boredapi/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, req service.SearchRequest) (*service.SearchOutput, error)
	Suggest(ctx context.Context, prefix string, size int) ([]string, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type PerformanceResponse struct {
	TookMS int64 `json:"took_ms"`
}

type SearchResponse struct {
	Results     []service.SearchResult `json:"results"`
	Total       int                    `json:"total"`
	Mode        string                 `json:"mode"`
	Performance PerformanceResponse    `json:"performance"`
}

type SuggestResponse struct {
	Suggestions []string `json:"suggestions"`
}

// Search handles GET /search.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	req, err := parseSearchRequest(r)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out, err := h.svc.Search(r.Context(), req)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	results := out.Results
	if results == nil {
		results = []service.SearchResult{}
	}
	api.JSON(w, http.StatusOK, SearchResponse{
		Results:     results,
		Total:       out.Total,
		Mode:        string(out.Mode),
		Performance: PerformanceResponse{TookMS: out.TookMS},
	})
}

// Suggest handles GET /suggest.
func (h *SearchHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	size, err := intParam(q.Get("size"), "size")
	if err != nil {
		api.HandleError(w, err)
		return
	}

	suggestions, err := h.svc.Suggest(r.Context(), q.Get("q"), size)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.JSON(w, http.StatusOK, SuggestResponse{Suggestions: suggestions})
}

func parseSearchRequest(r *http.Request) (service.SearchRequest, error) {
	q := r.URL.Query()
	req := service.SearchRequest{
		Query:       q.Get("q"),
		ContentType: domain.ContentType(strings.ToLower(strings.TrimSpace(q.Get("content_type")))),
	}
	if strings.TrimSpace(req.Query) == "" {
		return req, domain.NewMalformedInput("q is required")
	}

	var err error
	if req.Size, err = intParam(q.Get("size"), "size"); err != nil {
		return req, err
	}
	if raw := q.Get("min_score"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, domain.NewMalformedInput("min_score must be a number")
		}
		req.MinScore = &v
	}
	if req.Mode, err = service.ParseSearchMode(q.Get("mode")); err != nil {
		return req, err
	}
	if req.Weights, err = weightParams(q.Get("lexical_weight"), q.Get("vector_weight")); err != nil {
		return req, err
	}
	if raw := q.Get("include_stats"); raw != "" {
		if req.IncludeStats, err = strconv.ParseBool(raw); err != nil {
			return req, domain.NewMalformedInput("include_stats must be a boolean")
		}
	}
	return req, nil
}

// weightParams reads the fusion weights. Giving one weight implies the other.
func weightParams(lexical, vector string) (*service.Weights, error) {
	if lexical == "" && vector == "" {
		return nil, nil
	}
	parse := func(raw, name string) (float64, error) {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, domain.NewMalformedInput(name + " must be a number")
		}
		return v, nil
	}

	var w service.Weights
	var err error
	switch {
	case vector == "":
		if w.Lexical, err = parse(lexical, "lexical_weight"); err != nil {
			return nil, err
		}
		w.Vector = 1 - w.Lexical
	case lexical == "":
		if w.Vector, err = parse(vector, "vector_weight"); err != nil {
			return nil, err
		}
		w.Lexical = 1 - w.Vector
	default:
		if w.Lexical, err = parse(lexical, "lexical_weight"); err != nil {
			return nil, err
		}
		if w.Vector, err = parse(vector, "vector_weight"); err != nil {
			return nil, err
		}
	}
	return &w, nil
}

func intParam(raw, name string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewMalformedInput(fmt.Sprintf("%s must be an integer", name))
	}
	return v, nil
}
