package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError with the same code and message, so sentinel
// errors still compare equal after being wrapped with a cause.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeMalformedInput       = "MALFORMED_INPUT"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeEmbeddingUnavailable = "EMBEDDING_UNAVAILABLE"
	ErrCodeBackendUnavailable   = "BACKEND_UNAVAILABLE"
	ErrCodeInternalError        = "INTERNAL_ERROR"
)

// NewMalformedInput reports a document or request that cannot be processed.
func NewMalformedInput(message string) *DomainError {
	return NewDomainError(ErrCodeMalformedInput, message)
}

// NewEmbeddingUnavailable reports that the embedding model could not serve a call.
func NewEmbeddingUnavailable(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEmbeddingUnavailable, message, err)
}

// NewBackendUnavailable reports a failed call to the index backend or snapshot store.
func NewBackendUnavailable(message string, err error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeBackendUnavailable, message, err)
}

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// IsCode reports whether err carries a DomainError with the given code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// Not found errors
var (
	ErrDocumentNotFound = NewDomainError(ErrCodeNotFound, "document not found")
	ErrSnapshotNotFound = NewDomainError(ErrCodeNotFound, "snapshot not found")
)

// Validation errors
var (
	ErrEmptyQuery         = NewMalformedInput("query cannot be empty")
	ErrEmptyBody          = NewMalformedInput("document body is empty")
	ErrMissingDocumentID  = NewMalformedInput("document id is required")
	ErrInvalidContentType = NewMalformedInput("invalid content type")
)

// Embedding errors
var (
	ErrEmbedderClosed         = NewEmbeddingUnavailable("embedder is closed", nil)
	ErrEmbedderNotInitialized = NewEmbeddingUnavailable("embedder is not initialized", nil)
)
