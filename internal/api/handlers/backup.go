package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/etvincen/boredapi/internal/api"
)

type BackupService interface {
	Backup(ctx context.Context) (string, error)
	Restore(ctx context.Context, handle string) error
}

type BackupHandler struct {
	svc BackupService
}

func NewBackupHandler(svc BackupService) *BackupHandler {
	return &BackupHandler{svc: svc}
}

type BackupResponse struct {
	Handle string `json:"handle"`
}

type RestoreRequest struct {
	Handle string `json:"handle"`
}

// Create handles POST /backups.
func (h *BackupHandler) Create(w http.ResponseWriter, r *http.Request) {
	handle, err := h.svc.Backup(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, BackupResponse{Handle: handle})
}

// Restore handles POST /backups/restore.
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	var req RestoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Handle) == "" {
		api.Error(w, http.StatusBadRequest, "handle is required")
		return
	}

	if err := h.svc.Restore(r.Context(), req.Handle); err != nil {
		api.HandleError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
