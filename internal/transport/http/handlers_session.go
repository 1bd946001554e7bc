// Package httptransport is the thin HTTP layer over the wizard, search, and
// report services. Handlers decode, delegate, and encode; decisions about
// itinerary state live in the services.
package httptransport

import (
	"log/slog"
	"net/http"

	"flightclaim/internal/audit"
	"flightclaim/internal/session"
	"flightclaim/pkg/platform/httputil"
)

// SessionHandler issues claim-session tokens.
type SessionHandler struct {
	tokens    *session.TokenService
	publisher *audit.Publisher
	logger    *slog.Logger
}

func NewSessionHandler(tokens *session.TokenService, publisher *audit.Publisher, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{tokens: tokens, publisher: publisher, logger: logger}
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
	Token     string `json:"token"`
	Device    string `json:"device"`
}

// HandleCreate handles POST /session.
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	device := session.ParseUserAgent(r.UserAgent())
	sessionID, token, err := h.tokens.Issue(device)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "session token issue failed", "error", err.Error())
		httputil.WriteError(w, err)
		return
	}
	h.publisher.Emit(r.Context(), audit.Event{
		SessionID: sessionID,
		Action:    audit.ActionSessionStarted,
		Detail:    device,
	})
	httputil.WriteJSON(w, http.StatusCreated, sessionResponse{
		SessionID: sessionID,
		Token:     token,
		Device:    device,
	})
}
