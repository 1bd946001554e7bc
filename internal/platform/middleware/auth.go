package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
)

// SessionValidator validates a claim-session token and returns its session
// ID. internal/session provides the JWT-backed implementation.
type SessionValidator interface {
	ValidateToken(token string) (string, error)
}

type contextKeySessionID struct{}

// ContextKeySessionID is exported for handler tests that need to inject a
// session without going through the middleware.
var ContextKeySessionID = contextKeySessionID{}

// GetSessionID retrieves the authenticated session ID from the context.
func GetSessionID(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeySessionID).(string)
	return id
}

// RequireSession rejects requests without a valid bearer session token and
// stores the session ID in the context for handlers.
func RequireSession(validator SessionValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			sessionID, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(r.Context(), "invalid session token",
					"request_id", GetRequestID(r.Context()),
					"error", err.Error(),
				)
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			ctx := context.WithValue(r.Context(), ContextKeySessionID, sessionID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
