package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/etvincen/boredapi/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockBackupService struct {
	mock.Mock
}

func (m *MockBackupService) Backup(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockBackupService) Restore(ctx context.Context, handle string) error {
	args := m.Called(ctx, handle)
	return args.Error(0)
}

func TestBackupHandler_Create(t *testing.T) {
	mockSvc := new(MockBackupService)
	mockSvc.On("Backup", mock.Anything).Return("snapshots/20260301T120000Z-abc.jsonl.gz", nil)

	req := httptest.NewRequest(http.MethodPost, "/backups", nil)
	w := httptest.NewRecorder()

	NewBackupHandler(mockSvc).Create(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Data BackupResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "snapshots/20260301T120000Z-abc.jsonl.gz", resp.Data.Handle)
}

func TestBackupHandler_Create_StoreDown(t *testing.T) {
	mockSvc := new(MockBackupService)
	mockSvc.On("Backup", mock.Anything).Return("", domain.NewBackendUnavailable("failed to store snapshot", nil))

	req := httptest.NewRequest(http.MethodPost, "/backups", nil)
	w := httptest.NewRecorder()

	NewBackupHandler(mockSvc).Create(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestBackupHandler_Restore(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"restores", `{"handle":"snapshots/a.jsonl.gz"}`, nil, http.StatusNoContent},
		{"unknown snapshot", `{"handle":"snapshots/a.jsonl.gz"}`, domain.ErrSnapshotNotFound, http.StatusNotFound},
		{"corrupt snapshot", `{"handle":"snapshots/a.jsonl.gz"}`, domain.NewMalformedInput("snapshot cannot be restored"), http.StatusBadRequest},
		{"backend down", `{"handle":"snapshots/a.jsonl.gz"}`, domain.NewBackendUnavailable("failed to restore snapshot", nil), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockSvc := new(MockBackupService)
			mockSvc.On("Restore", mock.Anything, "snapshots/a.jsonl.gz").Return(tt.err)

			req := httptest.NewRequest(http.MethodPost, "/backups/restore", strings.NewReader(tt.body))
			w := httptest.NewRecorder()

			NewBackupHandler(mockSvc).Restore(w, req)

			assert.Equal(t, tt.status, w.Code)
		})
	}

	t.Run("requires a handle", func(t *testing.T) {
		mockSvc := new(MockBackupService)

		req := httptest.NewRequest(http.MethodPost, "/backups/restore", strings.NewReader(`{}`))
		w := httptest.NewRecorder()

		NewBackupHandler(mockSvc).Restore(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockSvc.AssertNotCalled(t, "Restore", mock.Anything, mock.Anything)
	})
}
