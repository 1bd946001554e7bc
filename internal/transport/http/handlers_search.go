package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"flightclaim/internal/itinerary"
	"flightclaim/internal/platform/middleware"
	"flightclaim/internal/search"
	"flightclaim/internal/wizard"
	dErrors "flightclaim/pkg/domain-errors"
	"flightclaim/pkg/platform/httputil"
)

// AirportSearcher and FlightSearcher are the upstream collaborators as the
// handlers see them; internal/search provides the HTTP-backed ones.
type AirportSearcher interface {
	Search(ctx context.Context, q search.AirportQuery) ([]search.AirportOption, error)
}

type FlightSearcher interface {
	Search(ctx context.Context, q search.FlightQuery) ([]itinerary.Flight, error)
}

// SearchHandler serves airport autocomplete and flight candidate lookups.
type SearchHandler struct {
	airports AirportSearcher
	flights  FlightSearcher
	wizard   *wizard.Service
	logger   *slog.Logger
}

func NewSearchHandler(airports AirportSearcher, flights FlightSearcher, wiz *wizard.Service, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{airports: airports, flights: flights, wizard: wiz, logger: logger}
}

func (h *SearchHandler) Register(r chi.Router) {
	r.Get("/search/airports", h.HandleAirports)
	r.Get("/search/flights", h.HandleFlights)
}

// HandleAirports handles GET /search/airports?term=&lang=.
func (h *SearchHandler) HandleAirports(w http.ResponseWriter, r *http.Request) {
	q := search.AirportQuery{
		Term: r.URL.Query().Get("term"),
		Lang: r.URL.Query().Get("lang"),
	}
	options, err := h.airports.Search(r.Context(), q)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "airport search failed",
			"request_id", middleware.GetRequestID(r.Context()), "error", err.Error())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, options)
}

type flightSearchResponse struct {
	Generation uint64             `json:"generation"`
	Flights    []itinerary.Flight `json:"flights"`
}

// HandleFlights handles GET /search/flights?from=&to=&date=&segment=&lang=.
// The response carries the search generation the session must echo back on
// flight selection; responses from an earlier search are discarded there.
func (h *SearchHandler) HandleFlights(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := search.FlightQuery{
		From: query.Get("from"),
		To:   query.Get("to"),
		Date: query.Get("date"),
		Lang: query.Get("lang"),
	}
	if q.From == "" || q.To == "" || q.Date == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "from, to and date are required"))
		return
	}

	sessionID := middleware.GetSessionID(r.Context())
	segIndex, ok := queryIndex(query.Get("segment"))
	if ok && segIndex > 0 {
		st := h.wizard.State(r.Context(), sessionID)
		if segIndex-1 < len(st.Itinerary.Segments) {
			q.Previous = st.Itinerary.Segments[segIndex-1].Flight
		}
	}

	generation := h.wizard.BeginFlightSearch(sessionID)
	flights, err := h.flights.Search(r.Context(), q)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "flight search failed",
			"request_id", middleware.GetRequestID(r.Context()), "error", err.Error())
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, flightSearchResponse{Generation: generation, Flights: flights})
}

func queryIndex(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + int(c-'0')
	}
	return n, true
}
