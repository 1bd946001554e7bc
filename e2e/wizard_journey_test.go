package e2e_test

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
	httptransport "flightclaim/internal/transport/http"
	"flightclaim/internal/wizard"
	"flightclaim/pkg/testutil"
)

type staticAirports struct{}

func (staticAirports) Search(context.Context, search.AirportQuery) ([]search.AirportOption, error) {
	return []search.AirportOption{{Value: "BER", Label: "Berlin Brandenburg"}}, nil
}

type staticFlights struct{}

func (staticFlights) Search(context.Context, search.FlightQuery) ([]itinerary.Flight, error) {
	return nil, nil
}

type stack struct {
	server *httptest.Server
	sink   *audit.MemorySink
	token  string
}

func newStack(t *testing.T) *stack {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := audit.NewPublisher(64, logger)
	sink := audit.NewMemorySink()
	worker := audit.NewWorker(publisher, sink, logger)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go worker.Run(ctx)

	tokens := session.NewTokenService("e2e-signing-key", time.Hour)
	wizardSvc := wizard.NewService(
		wizard.NewSynchronizer(wizard.NewInMemorySnapshotStore(), logger),
		wizard.NewInMemoryClaimStore(),
		wizard.NewSegmentBandCalculator(),
		publisher,
		logger,
		nil,
	)
	reportSvc := report.NewService(report.NewInMemoryStore(), publisher, logger)

	router := httptransport.NewRouter(httptransport.Deps{
		Session:   httptransport.NewSessionHandler(tokens, publisher, logger),
		Wizard:    httptransport.NewWizardHandler(wizardSvc, logger),
		Search:    httptransport.NewSearchHandler(staticAirports{}, staticFlights{}, wizardSvc, logger),
		Report:    httptransport.NewReportHandler(reportSvc, logger),
		Validator: tokens,
		Logger:    logger,
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)
	return &stack{server: server, sink: sink}
}

func (s *stack) call(t *testing.T, method, path string, body any) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.server.Client().Do(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, raw
}

func flight(number, from, fromCity, to, toCity, dep, arr string) itinerary.Flight {
	return itinerary.Flight{
		FlightNumber:     number,
		DepartureAirport: from, DepartureCity: fromCity,
		ArrivalAirport: to, ArrivalCity: toCity,
		DepartureTime: dep, ArrivalTime: arr,
	}
}

// TestDirectClaimJourney walks the wizard the way a passenger with a single
// delayed flight would: open a session, pick the route, choose the flight,
// accept the terms and submit.
func TestDirectClaimJourney(t *testing.T) {
	s := newStack(t)

	testutil.Given(t, "a fresh session", func(t *testing.T) {
		resp, raw := s.call(t, http.MethodPost, "/session", nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var body struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.Unmarshal(raw, &body))
		require.NotEmpty(t, body.Token)
		s.token = body.Token
	})

	testutil.When(t, "the passenger fills in a direct route", func(t *testing.T) {
		resp, _ := s.call(t, http.MethodPost, "/wizard/segments/0/location", map[string]any{
			"field":    "from",
			"location": itinerary.Location{Value: "BER", City: "Berlin"},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, raw := s.call(t, http.MethodPost, "/wizard/segments/0/location", map[string]any{
			"field":    "to",
			"location": itinerary.Location{Value: "MUC", City: "Munich"},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var st struct {
			StepValidation map[string]bool `json:"stepValidation"`
		}
		require.NoError(t, json.Unmarshal(raw, &st))
		assert.True(t, st.StepValidation["1"], "both locations set should satisfy the first step")
	})

	testutil.When(t, "the first two steps are completed", func(t *testing.T) {
		resp, _ := s.call(t, http.MethodPost, "/wizard/phase/1/complete", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = s.call(t, http.MethodPost, "/wizard/phase/2/enter", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		// Completing a step needs an edit in it; confirming the destination
		// counts as one.
		resp, _ = s.call(t, http.MethodPost, "/wizard/segments/0/location", map[string]any{
			"field":    "to",
			"location": itinerary.Location{Value: "MUC", City: "Munich"},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = s.call(t, http.MethodPost, "/wizard/phase/2/complete", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	testutil.When(t, "the passenger selects the delayed flight", func(t *testing.T) {
		resp, _ := s.call(t, http.MethodPost, "/wizard/phase/3/enter", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = s.call(t, http.MethodPost, "/wizard/segments/0/date", map[string]string{"date": "2026-05-01"})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, raw := s.call(t, http.MethodPost, "/wizard/segments/0/flight", map[string]any{
			"flight": flight("LH2031", "BER", "Berlin", "MUC", "Munich", "08:00", "09:05"),
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var st struct {
			SelectedFlights []itinerary.Flight `json:"selectedFlights"`
		}
		require.NoError(t, json.Unmarshal(raw, &st))
		require.Len(t, st.SelectedFlights, 1)

		resp, _ = s.call(t, http.MethodPost, "/wizard/phase/3/complete", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	testutil.When(t, "the passenger checks the estimate", func(t *testing.T) {
		resp, raw := s.call(t, http.MethodGet, "/wizard/compensation", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var comp struct {
			Amount   float64 `json:"amount"`
			Currency string  `json:"currency"`
		}
		require.NoError(t, json.Unmarshal(raw, &comp))
		assert.Equal(t, 250.0, comp.Amount, "single segment lands in the lowest band")
		assert.Equal(t, "EUR", comp.Currency)
	})

	testutil.Then(t, "submission succeeds once both acceptances are given", func(t *testing.T) {
		resp, _ := s.call(t, http.MethodPost, "/wizard/phase/5/enter", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		// The final phase starts from a clean slate; the flight is re-entered there.
		resp, _ = s.call(t, http.MethodPost, "/wizard/segments/0/flight", map[string]any{
			"flight": flight("LH2031", "BER", "Berlin", "MUC", "Munich", "08:00", "09:05"),
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, _ = s.call(t, http.MethodPost, "/wizard/submit", nil)
		require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, "acceptances are still missing")

		resp, _ = s.call(t, http.MethodPost, "/wizard/acceptance", map[string]bool{
			"termsAccepted": true, "privacyAccepted": true,
		})
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, raw := s.call(t, http.MethodPost, "/wizard/submit", nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var claim wizard.Claim
		require.NoError(t, json.Unmarshal(raw, &claim))
		assert.NotEmpty(t, claim.ID)
		require.Len(t, claim.Snapshot.Segments, 1)
		assert.Equal(t, "BER", claim.Snapshot.From.Value)
	})

	testutil.Then(t, "the audit trail recorded the journey", func(t *testing.T) {
		require.Eventually(t, func() bool {
			for _, ev := range s.sink.Events() {
				if ev.Action == audit.ActionClaimSubmitted {
					return true
				}
			}
			return false
		}, 2*time.Second, 10*time.Millisecond)
	})
}

// TestMultiCityJourneyPropagatesEdits covers the linking behaviour over the
// wire: in a multi-city itinerary the arrival of one segment is the departure
// of the next.
func TestMultiCityJourneyPropagatesEdits(t *testing.T) {
	s := newStack(t)

	testutil.Given(t, "a session with a multi-city itinerary", func(t *testing.T) {
		resp, raw := s.call(t, http.MethodPost, "/session", nil)
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var body struct {
			Token string `json:"token"`
		}
		require.NoError(t, json.Unmarshal(raw, &body))
		s.token = body.Token

		resp, _ = s.call(t, http.MethodPost, "/wizard/kind", map[string]string{"kind": "multi"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	testutil.When(t, "the middle destination changes", func(t *testing.T) {
		resp, raw := s.call(t, http.MethodPost, "/wizard/segments/0/location", map[string]any{
			"field":    "to",
			"location": itinerary.Location{Value: "FRA", City: "Frankfurt"},
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var st struct {
			Segments []struct {
				From *itinerary.Location `json:"fromLocation"`
			} `json:"segments"`
		}
		require.NoError(t, json.Unmarshal(raw, &st))
		require.Len(t, st.Segments, 2)
		require.NotNil(t, st.Segments[1].From)
		assert.Equal(t, "FRA", st.Segments[1].From.Value)
	})

	testutil.Then(t, "switching back to direct drops the extra segment", func(t *testing.T) {
		resp, raw := s.call(t, http.MethodPost, "/wizard/kind", map[string]string{"kind": "direct"})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var st struct {
			Segments []json.RawMessage `json:"segments"`
		}
		require.NoError(t, json.Unmarshal(raw, &st))
		assert.Len(t, st.Segments, 1)
	})
}
