// Package telemetry wraps Sentry tracing and error reporting. Every helper is
// a no-op until Init has configured a client.
package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/etvincen/boredapi/internal/domain"
)

const (
	serviceName  = "boredapi"
	flushTimeout = 5 * time.Second
)

// Config holds the configuration for Sentry initialization.
type Config struct {
	DSN              string
	Environment      string
	TracesSampleRate float64
	Debug            bool
}

// Init configures Sentry and returns a flush function for shutdown. An empty
// DSN or a failed initialization leaves telemetry disabled; neither is fatal.
func Init(cfg Config) (func(), error) {
	if cfg.DSN == "" {
		return func() {}, nil
	}
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}
	if cfg.TracesSampleRate == 0 {
		cfg.TracesSampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		EnableTracing:    true,
		TracesSampleRate: cfg.TracesSampleRate,
		Debug:            cfg.Debug,
		ServerName:       serviceName,
		TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
			if ctx.Span.Name == "GET /health" {
				return 0
			}
			var root sentry.SpanID
			if ctx.Span.ParentSpanID != root {
				if ctx.Span.Sampled.Bool() {
					return 1
				}
				return 0
			}
			return cfg.TracesSampleRate
		}),
		BeforeSend: func(event *sentry.Event, hint *sentry.EventHint) *sentry.Event {
			if hint != nil && hint.OriginalException != nil && !Reportable(hint.OriginalException) {
				return nil
			}
			return event
		},
	})
	if err != nil {
		slog.Warn("sentry: failed to initialize, continuing without tracing", "component", "telemetry", "error", err)
		return func() {}, nil
	}

	slog.Info("sentry: tracing initialized", "component", "telemetry", "environment", cfg.Environment, "sample_rate", cfg.TracesSampleRate)
	return func() { sentry.Flush(flushTimeout) }, nil
}

// Reportable reports whether err is worth an event. Caller mistakes and
// missing documents are expected traffic, not faults.
func Reportable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return !domain.IsCode(err, domain.ErrCodeMalformedInput) &&
		!domain.IsCode(err, domain.ErrCodeValidation) &&
		!domain.IsCode(err, domain.ErrCodeNotFound)
}

// SpanStatus maps err to the span status recorded for it.
func SpanStatus(err error) sentry.SpanStatus {
	var domainErr *domain.DomainError
	switch {
	case err == nil:
		return sentry.SpanStatusOK
	case errors.Is(err, context.Canceled):
		return sentry.SpanStatusCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return sentry.SpanStatusDeadlineExceeded
	case !errors.As(err, &domainErr):
		return sentry.SpanStatusInternalError
	}
	switch domainErr.Code {
	case domain.ErrCodeMalformedInput, domain.ErrCodeValidation:
		return sentry.SpanStatusInvalidArgument
	case domain.ErrCodeNotFound:
		return sentry.SpanStatusNotFound
	case domain.ErrCodeBackendUnavailable, domain.ErrCodeEmbeddingUnavailable:
		return sentry.SpanStatusUnavailable
	default:
		return sentry.SpanStatusInternalError
	}
}

// SpanAttributes are the tags shared by index and search spans.
type SpanAttributes struct {
	DocumentID  string
	ContentType string
	Mode        string
	Operation   string
}

// Span wraps sentry.Span; a nil inner span ignores every call.
type Span struct {
	inner *sentry.Span
}

func (s *Span) End() {
	if s.inner != nil {
		s.inner.Finish()
	}
}

func (s *Span) SetTag(name, value string) {
	if s.inner != nil {
		s.inner.SetTag(name, value)
	}
}

func (s *Span) SetData(name string, value any) {
	if s.inner != nil {
		s.inner.SetData(name, value)
	}
}

// SetError records err on the span and reports it when Reportable.
func (s *Span) SetError(err error) {
	if s.inner == nil || err == nil {
		return
	}
	s.inner.Status = SpanStatus(err)
	if Reportable(err) {
		CaptureError(s.inner.Context(), err)
	}
}

// StartSpan opens a child of the span in ctx, or a new transaction when
// there is none (background jobs, CLI commands).
func StartSpan(ctx context.Context, name string, attrs SpanAttributes) (context.Context, *Span) {
	var span *sentry.Span
	if parent := sentry.SpanFromContext(ctx); parent != nil {
		span = parent.StartChild(name)
	} else {
		span = sentry.StartSpan(ctx, name, sentry.WithTransactionName(name))
	}

	if attrs.DocumentID != "" {
		span.SetTag("document_id", attrs.DocumentID)
	}
	if attrs.ContentType != "" {
		span.SetTag("content_type", attrs.ContentType)
	}
	if attrs.Mode != "" {
		span.SetTag("search_mode", attrs.Mode)
	}
	if attrs.Operation != "" {
		span.SetData("operation", attrs.Operation)
	}
	return span.Context(), &Span{inner: span}
}

// CaptureError reports err on the hub carried by ctx, or the global hub.
func CaptureError(ctx context.Context, err error) {
	if !Reportable(err) {
		return
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.CaptureException(err)
		return
	}
	sentry.CaptureException(err)
}

// AddBreadcrumb records a step that explains a later event, such as a
// search that fell back to keyword scoring.
func AddBreadcrumb(ctx context.Context, category, message string) {
	breadcrumb := &sentry.Breadcrumb{
		Type:      "default",
		Category:  category,
		Message:   message,
		Level:     sentry.LevelInfo,
		Timestamp: time.Now(),
	}
	if hub := sentry.GetHubFromContext(ctx); hub != nil {
		hub.AddBreadcrumb(breadcrumb, nil)
		return
	}
	sentry.AddBreadcrumb(breadcrumb)
}
