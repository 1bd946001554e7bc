package httptransport

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"flightclaim/internal/platform/middleware"
	"flightclaim/internal/report"
	"flightclaim/pkg/platform/httputil"
)

// ReportHandler takes in flight-not-listed reports.
type ReportHandler struct {
	service *report.Service
	logger  *slog.Logger
}

func NewReportHandler(service *report.Service, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{service: service, logger: logger}
}

func (h *ReportHandler) Register(r chi.Router) {
	r.Post("/reports/flight-not-listed", h.HandleFlightNotListed)
}

// HandleFlightNotListed handles POST /reports/flight-not-listed.
func (h *ReportHandler) HandleFlightNotListed(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[report.FlightNotListed](w, r)
	if !ok {
		return
	}
	sessionID := middleware.GetSessionID(r.Context())
	acc, err := h.service.Accept(r.Context(), sessionID, req)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, acc)
}
