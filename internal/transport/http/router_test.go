package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightclaim/internal/audit"
	"flightclaim/internal/itinerary"
	"flightclaim/internal/report"
	"flightclaim/internal/search"
	"flightclaim/internal/session"
	"flightclaim/internal/wizard"
)

type stubAirports struct {
	options []search.AirportOption
	err     error
}

func (s *stubAirports) Search(_ context.Context, _ search.AirportQuery) ([]search.AirportOption, error) {
	return s.options, s.err
}

type stubFlights struct {
	flights  []itinerary.Flight
	lastPrev *itinerary.Flight
}

func (s *stubFlights) Search(_ context.Context, q search.FlightQuery) ([]itinerary.Flight, error) {
	s.lastPrev = q.Previous
	return s.flights, nil
}

type fixedCalculator struct{}

func (fixedCalculator) Estimate(context.Context, itinerary.Itinerary) (float64, error) {
	return 250, nil
}

type harness struct {
	server   *httptest.Server
	tokens   *session.TokenService
	flights  *stubFlights
	airports *stubAirports
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := audit.NewPublisher(64, logger)
	tokens := session.NewTokenService("test-signing-key", time.Hour)

	wizardSvc := wizard.NewService(
		wizard.NewSynchronizer(wizard.NewInMemorySnapshotStore(), logger),
		wizard.NewInMemoryClaimStore(),
		fixedCalculator{},
		publisher,
		logger,
		nil,
	)
	airports := &stubAirports{}
	flights := &stubFlights{}
	reportSvc := report.NewService(report.NewInMemoryStore(), publisher, logger)

	router := NewRouter(Deps{
		Session:   NewSessionHandler(tokens, publisher, logger),
		Wizard:    NewWizardHandler(wizardSvc, logger),
		Search:    NewSearchHandler(airports, flights, wizardSvc, logger),
		Report:    NewReportHandler(reportSvc, logger),
		Validator: tokens,
		Metrics:   nil,
		Logger:    logger,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &harness{server: server, tokens: tokens, flights: flights, airports: airports}
}

func (h *harness) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, h.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := h.server.Client().Do(req)
	require.NoError(t, err)
	return resp
}

func (h *harness) newSession(t *testing.T) string {
	t.Helper()
	resp := h.do(t, http.MethodPost, "/session", "", nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var body sessionResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.NotEmpty(t, body.Token)
	return body.Token
}

func decodeState(t *testing.T, resp *http.Response) stateResponse {
	t.Helper()
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st stateResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&st))
	return st
}

func TestWizardEndpointsRequireSession(t *testing.T) {
	h := newHarness(t)

	resp := h.do(t, http.MethodGet, "/wizard/state", "", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = h.do(t, http.MethodGet, "/wizard/state", "not-a-token", nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWizardFlowOverHTTP(t *testing.T) {
	h := newHarness(t)
	token := h.newSession(t)

	st := decodeState(t, h.do(t, http.MethodGet, "/wizard/state", token, nil))
	assert.Equal(t, 1, st.Phase)
	assert.Equal(t, itinerary.KindDirect, st.Kind)
	require.Len(t, st.Segments, 1)

	st = decodeState(t, h.do(t, http.MethodPost, "/wizard/kind", token,
		map[string]string{"kind": "multi"}))
	require.Len(t, st.Segments, 2)

	st = decodeState(t, h.do(t, http.MethodPost, "/wizard/segments/0/location", token,
		setLocationRequest{Field: "to", Location: &itinerary.Location{Value: "FRA", City: "Frankfurt"}}))
	require.NotNil(t, st.Segments[1].From)
	assert.Equal(t, "FRA", st.Segments[1].From.Value, "edit propagates to the next segment")

	resp := h.do(t, http.MethodPost, "/wizard/kind", token, map[string]string{"kind": "round-trip"})
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEnterPhaseOverHTTP(t *testing.T) {
	h := newHarness(t)
	token := h.newSession(t)

	st := decodeState(t, h.do(t, http.MethodPost, "/wizard/phase/3/enter", token, nil))
	assert.Equal(t, 3, st.Phase)

	resp := h.do(t, http.MethodPost, "/wizard/phase/9/enter", token, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestFlightSearchThreadsPreviousFlight(t *testing.T) {
	h := newHarness(t)
	token := h.newSession(t)

	decodeState(t, h.do(t, http.MethodPost, "/wizard/kind", token, map[string]string{"kind": "multi"}))
	decodeState(t, h.do(t, http.MethodPost, "/wizard/segments/0/flight", token, selectFlightRequest{
		Flight: itinerary.Flight{
			FlightNumber: "LH1", DepartureAirport: "BER", DepartureCity: "Berlin",
			ArrivalAirport: "FRA", ArrivalCity: "Frankfurt",
			DepartureTime: "08:00", ArrivalTime: "10:00",
		},
	}))

	resp := h.do(t, http.MethodGet, "/search/flights?from=FRA&to=MUC&date=2026-05-01&segment=1", token, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body flightSearchResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.NotZero(t, body.Generation)
	require.NotNil(t, h.flights.lastPrev, "segment 1 search must carry segment 0's chosen flight")
	assert.Equal(t, "LH1", h.flights.lastPrev.FlightNumber)
}

func TestAirportSearchOverHTTP(t *testing.T) {
	h := newHarness(t)
	token := h.newSession(t)
	h.airports.options = []search.AirportOption{{Value: "FRA", Label: "Frankfurt Airport"}}

	resp := h.do(t, http.MethodGet, "/search/airports?term=FRA", token, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var options []search.AirportOption
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&options))
	require.Len(t, options, 1)
	assert.Equal(t, "FRA", options[0].Value)
}

func TestReportEndpoint(t *testing.T) {
	h := newHarness(t)
	token := h.newSession(t)

	resp := h.do(t, http.MethodPost, "/reports/flight-not-listed", token, report.FlightNotListed{
		Salutation: "Ms", FirstName: "Eva", LastName: "Krause",
		Email: "eva@example.com", Description: "LH77 missing",
	})
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var acc report.Accepted
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&acc))
	assert.NotEmpty(t, acc.ID)

	bad := h.do(t, http.MethodPost, "/reports/flight-not-listed", token, report.FlightNotListed{
		Salutation: "Ms", FirstName: "Eva", LastName: "Krause",
		Email: "not-an-email", Description: "LH77 missing",
	})
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}

func TestSubmitFlowOverHTTP(t *testing.T) {
	h := newHarness(t)
	token := h.newSession(t)

	decodeState(t, h.do(t, http.MethodPost, "/wizard/phase/5/enter", token, nil))
	decodeState(t, h.do(t, http.MethodPost, "/wizard/segments/0/flight", token, selectFlightRequest{
		Flight: itinerary.Flight{
			FlightNumber: "LH1", DepartureAirport: "BER", DepartureCity: "Berlin",
			ArrivalAirport: "MUC", ArrivalCity: "Munich",
			DepartureTime: "08:00", ArrivalTime: "09:05",
		},
	}))

	resp := h.do(t, http.MethodPost, "/wizard/submit", token, nil)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "acceptances missing")

	accept := h.do(t, http.MethodPost, "/wizard/acceptance", token, map[string]bool{
		"termsAccepted": true, "privacyAccepted": true,
	})
	accept.Body.Close()
	require.Equal(t, http.StatusNoContent, accept.StatusCode)

	resp = h.do(t, http.MethodPost, "/wizard/submit", token, nil)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var claim wizard.Claim
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&claim))
	assert.NotEmpty(t, claim.ID)
	require.Len(t, claim.Snapshot.Segments, 1)
	assert.Equal(t, "BER", claim.Snapshot.From.Value)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t)
	resp, err := h.server.Client().Get(h.server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
