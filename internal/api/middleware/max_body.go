package middleware

import (
	"net/http"

	"github.com/etvincen/boredapi/internal/api"
	"github.com/etvincen/boredapi/internal/domain"
)

// MaxBodyBytes caps ingestion and restore payloads. Requests declaring a
// larger body are refused before the handler runs; undeclared bodies are cut
// off at the limit while being read. A zero limit disables the cap.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit <= 0 || r.Body == nil || r.Body == http.NoBody {
				next.ServeHTTP(w, r)
				return
			}
			if r.ContentLength > limit {
				api.JSON(w, http.StatusRequestEntityTooLarge, api.ErrorBody{
					Error: "request body too large",
					Code:  domain.ErrCodeMalformedInput,
				})
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
