package telemetry

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/etvincen/boredapi/internal/domain"
)

func TestReportable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"canceled", fmt.Errorf("search: %w", context.Canceled), false},
		{"malformed input", domain.ErrEmptyQuery, false},
		{"not found", domain.ErrDocumentNotFound, false},
		{"backend unavailable", domain.NewBackendUnavailable("db down", nil), true},
		{"embedding unavailable", domain.NewEmbeddingUnavailable("model not loaded", nil), true},
		{"plain error", errors.New("boom"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Reportable(tt.err))
		})
	}
}

func TestSpanStatus(t *testing.T) {
	assert.Equal(t, sentry.SpanStatusOK, SpanStatus(nil))
	assert.Equal(t, sentry.SpanStatusDeadlineExceeded, SpanStatus(context.DeadlineExceeded))
	assert.Equal(t, sentry.SpanStatusInvalidArgument, SpanStatus(domain.ErrInvalidContentType))
	assert.Equal(t, sentry.SpanStatusNotFound, SpanStatus(domain.ErrSnapshotNotFound))
	assert.Equal(t, sentry.SpanStatusUnavailable, SpanStatus(domain.NewBackendUnavailable("db down", nil)))
	assert.Equal(t, sentry.SpanStatusInternalError, SpanStatus(errors.New("boom")))
}

func TestInit_WithoutDSN(t *testing.T) {
	flush, err := Init(Config{})

	require.NoError(t, err)
	assert.NotPanics(t, flush)
}

func TestSpan_WithoutClient(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "IndexManager.Upsert", SpanAttributes{DocumentID: "42", Operation: "upsert"})

	assert.NotNil(t, ctx)
	assert.NotPanics(t, func() {
		span.SetTag("result", "created")
		span.SetData("chunks", 1)
		span.SetError(domain.NewBackendUnavailable("db down", nil))
		span.End()
		AddBreadcrumb(ctx, "search", "keyword fallback")
	})
}
