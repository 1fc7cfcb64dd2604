package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/etvincen/boredapi/internal/api"
	"github.com/etvincen/boredapi/internal/domain"
	"github.com/etvincen/boredapi/internal/service"
	"github.com/go-chi/chi/v5"
)

type DocumentIndex interface {
	Get(ctx context.Context, id string) (*domain.ContentDocument, error)
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (*domain.IndexStats, error)
}

type Ingester interface {
	Ingest(ctx context.Context, docs []domain.ContentDocument) (*service.IngestReport, error)
}

type DocumentHandler struct {
	index    DocumentIndex
	ingester Ingester
}

func NewDocumentHandler(index DocumentIndex, ingester Ingester) *DocumentHandler {
	return &DocumentHandler{index: index, ingester: ingester}
}

// Get handles GET /documents/{id}.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	doc, err := h.index.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, doc)
}

// Ingest handles POST /documents with a JSON array of documents.
func (h *DocumentHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var docs []domain.ContentDocument
	if err := json.NewDecoder(r.Body).Decode(&docs); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			api.Error(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(docs) == 0 {
		api.Error(w, http.StatusBadRequest, "at least one document is required")
		return
	}

	report, err := h.ingester.Ingest(r.Context(), docs)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, report)
}

// Delete handles DELETE /documents/{id}.
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.index.Delete(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /stats.
func (h *DocumentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.index.Stats(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, stats)
}
