package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"flightclaim/internal/itinerary"
	"flightclaim/internal/platform/metrics"
	dErrors "flightclaim/pkg/domain-errors"
)

// FlightClient queries the flight schedule upstream and transforms its raw
// records into the itinerary Flight shape.
type FlightClient struct {
	baseURL string
	client  *http.Client
	metrics *metrics.Metrics
}

func NewFlightClient(baseURL string, m *metrics.Metrics) *FlightClient {
	return &FlightClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: upstreamTimeout},
		metrics: m,
	}
}

// Search returns candidate flights for one segment. When the query carries
// the previous segment's chosen flight, candidates that do not form a legal
// connection from it are dropped.
func (c *FlightClient) Search(ctx context.Context, q FlightQuery) ([]itinerary.Flight, error) {
	start := time.Now()
	raws, err := c.fetch(ctx, q)
	c.metrics.ObserveSearch("flights", time.Since(start))
	if err != nil {
		return nil, err
	}

	flights := make([]itinerary.Flight, 0, len(raws))
	for _, r := range raws {
		f := transformFlight(r, q.Date)
		if q.Previous != nil {
			if conn := itinerary.CheckConnection(*q.Previous, f, q.Date); !conn.Valid {
				continue
			}
		}
		flights = append(flights, f)
	}
	return flights, nil
}

// SearchAll fans one query per segment out concurrently. Used to prefetch
// candidates for every leg of a multi-city itinerary at once; a single
// upstream failure fails the batch.
func (c *FlightClient) SearchAll(ctx context.Context, queries []FlightQuery) ([][]itinerary.Flight, error) {
	results := make([][]itinerary.Flight, len(queries))
	g, ctx := errgroup.WithContext(ctx)
	for i, q := range queries {
		g.Go(func() error {
			flights, err := c.Search(ctx, q)
			if err != nil {
				return err
			}
			results[i] = flights
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *FlightClient) fetch(ctx context.Context, q FlightQuery) ([]rawFlight, error) {
	params := url.Values{}
	params.Set("from_iata", q.From)
	params.Set("to_iata", q.To)
	params.Set("date", q.Date)
	params.Set("lang", q.Lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/flights?"+params.Encode(), nil)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "build flight request", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "flight upstream unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, dErrors.New(dErrors.CodeInternal,
			fmt.Sprintf("flight upstream returned %d", resp.StatusCode))
	}

	var raws []rawFlight
	if err := json.NewDecoder(resp.Body).Decode(&raws); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeInternal, "decode flight response", err)
	}
	return raws, nil
}

// transformFlight maps a raw upstream record to the Flight shape. Clock
// strings are normalized to HH:MM; malformed ones pass through empty and the
// duration stays blank rather than failing the record.
func transformFlight(r rawFlight, searchDate string) itinerary.Flight {
	f := itinerary.Flight{
		ID:               r.ID,
		FlightNumber:     r.FlightNumber,
		AirlineCode:      r.AirlineCode,
		DepartureAirport: r.DepartureIATA,
		ArrivalAirport:   r.ArrivalIATA,
		DepartureCity:    r.DepartureCity,
		ArrivalCity:      r.ArrivalCity,
		DepartureTime:    normalizeClock(r.DepartureTime),
		ArrivalTime:      normalizeClock(r.ArrivalTime),
		Date:             r.Date,
	}
	if f.AirlineCode == "" {
		f.AirlineCode = f.Airline()
	}
	if f.Date == "" {
		f.Date = searchDate
	}
	f.Duration = clockDuration(f.DepartureTime, f.ArrivalTime)
	return f
}

// normalizeClock accepts HH:MM or HHMM and returns HH:MM, or empty when the
// input is not a clock time.
func normalizeClock(s string) string {
	s = strings.TrimSpace(s)
	h, m, ok := parseClock(s)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

// clockDuration renders arrival minus departure as "2h 15m", wrapping past
// midnight when the arrival clock is earlier than the departure clock.
func clockDuration(dep, arr string) string {
	dh, dm, ok := parseClock(dep)
	if !ok {
		return ""
	}
	ah, am, ok := parseClock(arr)
	if !ok {
		return ""
	}
	minutes := (ah*60 + am) - (dh*60 + dm)
	if minutes < 0 {
		minutes += 24 * 60
	}
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}

func parseClock(s string) (hour, minute int, ok bool) {
	digits := s
	if i := strings.IndexByte(s, ':'); i >= 0 {
		digits = s[:i] + s[i+1:]
	}
	if len(digits) != 4 {
		return 0, 0, false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, 0, false
		}
	}
	hour = int(digits[0]-'0')*10 + int(digits[1]-'0')
	minute = int(digits[2]-'0')*10 + int(digits[3]-'0')
	if hour > 23 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}
