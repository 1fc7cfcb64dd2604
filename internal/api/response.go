// Package api holds the JSON shapes shared by the HTTP handlers.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/etvincen/boredapi/internal/domain"
)

// Envelope wraps document, stats and admin responses. /search and /suggest
// answer with their own top-level shapes.
type Envelope struct {
	Data any `json:"data"`
}

// ErrorBody is the body of every non-2xx response.
type ErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// JSON writes data with the given status. A nil data writes headers only.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Warn("response encoding failed", "component", "http", "error", err)
	}
}

// Success writes data inside the {"data": ...} envelope.
func Success(w http.ResponseWriter, status int, data any) {
	JSON(w, status, Envelope{Data: data})
}

func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Error: message})
}

// StatusFor maps an error code to its HTTP status.
func StatusFor(code string) int {
	switch code {
	case domain.ErrCodeValidation, domain.ErrCodeMalformedInput:
		return http.StatusBadRequest
	case domain.ErrCodeNotFound:
		return http.StatusNotFound
	case domain.ErrCodeEmbeddingUnavailable, domain.ErrCodeBackendUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// DomainErrorToHTTP maps err to a status. Errors outside the domain are 500.
func DomainErrorToHTTP(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		return http.StatusInternalServerError
	}
	return StatusFor(domainErr.Code)
}

// HandleError writes err with its mapped status and domain message. The cause
// is appended for 4xx answers only; 5xx causes are logged, not returned.
func HandleError(w http.ResponseWriter, err error) {
	var domainErr *domain.DomainError
	if !errors.As(err, &domainErr) {
		slog.Default().Error("unhandled error", "component", "http", "error", err)
		JSON(w, http.StatusInternalServerError, ErrorBody{
			Error: http.StatusText(http.StatusInternalServerError),
			Code:  domain.ErrCodeInternalError,
		})
		return
	}

	status := StatusFor(domainErr.Code)
	message := domainErr.Message
	switch {
	case status >= http.StatusInternalServerError:
		slog.Default().Error("request failed", "component", "http", "code", domainErr.Code, "error", err)
	case domainErr.Err != nil:
		message += ": " + domainErr.Err.Error()
	}
	JSON(w, status, ErrorBody{Error: message, Code: domainErr.Code})
}
