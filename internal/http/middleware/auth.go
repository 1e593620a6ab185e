package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/rotaforge/scheduler/internal/http/response"
)

// APIKeyHeader carries the trigger credential.
const APIKeyHeader = "X-Api-Key"

// Auth is HTTP middleware that validates the static trigger API key.
type Auth struct {
	keyHash [sha256.Size]byte
}

// NewAuth creates auth middleware for the configured key. Both sides of the
// comparison are hashed so key length is never observable.
func NewAuth(apiKey string) *Auth {
	return &Auth{keyHash: sha256.Sum256([]byte(apiKey))}
}

// Validate rejects requests whose X-Api-Key header does not match the
// configured key.
func (a *Auth) Validate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provided := r.Header.Get(APIKeyHeader)
		if provided == "" {
			slog.WarnContext(r.Context(), "authentication failed: missing API key header",
				"path", r.URL.Path,
				"method", r.Method)
			response.Unauthorized(w, "missing "+APIKeyHeader+" header")
			return
		}

		providedHash := sha256.Sum256([]byte(provided))
		if subtle.ConstantTimeCompare(providedHash[:], a.keyHash[:]) != 1 {
			slog.WarnContext(r.Context(), "authentication failed: invalid API key",
				"path", r.URL.Path,
				"method", r.Method)
			response.Unauthorized(w, "invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}
