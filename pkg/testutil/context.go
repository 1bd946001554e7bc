package testutil

import (
	"context"
	"net/http"

	"flightclaim/internal/platform/middleware"
)

// WithSessionID stamps a session ID on the request context, simulating what
// the session middleware does for authenticated requests.
func WithSessionID(req *http.Request, sessionID string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.ContextKeySessionID, sessionID)
	return req.WithContext(ctx)
}
