// Package itinerary holds the flight itinerary model and the pure logic that
// keeps it consistent: the connectivity validator, the segment linker, and the
// phase validity engine. Nothing in this package performs I/O; stateful
// orchestration lives in internal/wizard.
package itinerary

import (
	"fmt"
	"strings"
	"time"
)

// Kind distinguishes a single-leg trip from a multi-city one.
type Kind string

const (
	KindDirect Kind = "direct"
	KindMulti  Kind = "multi"
)

// Segment count bounds for a multi-city itinerary.
const (
	MinMultiSegments = 2
	MaxSegments      = 4
)

// Location is an airport-like place as returned by airport search.
// Value carries the IATA code; City is preferred for same-place comparison,
// with Description and Label as fallbacks.
type Location struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	City        string `json:"city,omitempty"`
}

// cityKey returns the best available city-ish string for comparison.
func (l Location) cityKey() string {
	if l.City != "" {
		return l.City
	}
	if l.Description != "" {
		return l.Description
	}
	return l.Label
}

// Flight describes one scheduled or chosen flight leg. Clock times are
// HH:MM strings local to the itinerary date; there is no timezone component.
// A Flight is never mutated in place - edits produce a new value.
type Flight struct {
	ID               string `json:"id"`
	FlightNumber     string `json:"flightNumber"`
	AirlineCode      string `json:"airlineCode"`
	DepartureAirport string `json:"departureAirport"`
	ArrivalAirport   string `json:"arrivalAirport"`
	DepartureCity    string `json:"departureCity"`
	ArrivalCity      string `json:"arrivalCity"`
	DepartureTime    string `json:"departureTime"`
	ArrivalTime      string `json:"arrivalTime"`
	ActualDeparture  string `json:"actualDeparture,omitempty"`
	ActualArrival    string `json:"actualArrival,omitempty"`
	Duration         string `json:"duration,omitempty"`
	Date             string `json:"date,omitempty"`
}

// Airline returns the airline code, deriving it from the first two characters
// of the flight number when it was not supplied by the search upstream.
func (f Flight) Airline() string {
	if f.AirlineCode != "" {
		return f.AirlineCode
	}
	if len(f.FlightNumber) >= 2 {
		return f.FlightNumber[:2]
	}
	return ""
}

// Segment is one leg of an itinerary. Any field may be nil while the user is
// still filling it in; a nil Date or missing location just means incomplete.
type Segment struct {
	From   *Location  `json:"fromLocation"`
	To     *Location  `json:"toLocation"`
	Date   *time.Time `json:"date"`
	Flight *Flight    `json:"selectedFlight"`
}

// Itinerary is the ordered collection of segments for a direct or multi-city
// trip. Direct itineraries have exactly one segment; multi-city ones 2-4.
type Itinerary struct {
	Kind     Kind      `json:"kind"`
	Segments []Segment `json:"segments"`
}

// NewItinerary returns a fresh itinerary with the empty segment layout for
// the given kind: one segment for direct, two for multi.
func NewItinerary(kind Kind) Itinerary {
	n := 1
	if kind == KindMulti {
		n = MinMultiSegments
	}
	return Itinerary{Kind: kind, Segments: make([]Segment, n)}
}

// SelectedFlights is the ordered, nil-filtered projection of the segments'
// chosen flights.
func (it Itinerary) SelectedFlights() []Flight {
	var flights []Flight
	for _, s := range it.Segments {
		if s.Flight != nil {
			flights = append(flights, *s.Flight)
		}
	}
	return flights
}

// Clone returns a deep copy. Snapshots handed to the synchronizer must never
// alias the canonical working copy.
func (it Itinerary) Clone() Itinerary {
	out := Itinerary{Kind: it.Kind, Segments: make([]Segment, len(it.Segments))}
	for i, s := range it.Segments {
		out.Segments[i] = s.Clone()
	}
	return out
}

// Clone returns a deep copy of the segment.
func (s Segment) Clone() Segment {
	out := Segment{}
	if s.From != nil {
		from := *s.From
		out.From = &from
	}
	if s.To != nil {
		to := *s.To
		out.To = &to
	}
	if s.Date != nil {
		d := *s.Date
		out.Date = &d
	}
	if s.Flight != nil {
		f := *s.Flight
		out.Flight = &f
	}
	return out
}

// Fingerprint is a deterministic snapshot of itinerary state. Two deep-equal
// itineraries produce the same fingerprint; any field change produces a
// different one. The wizard uses it to invalidate the compensation cache.
func (it Itinerary) Fingerprint() string {
	var b strings.Builder
	b.WriteString(string(it.Kind))
	for _, s := range it.Segments {
		b.WriteByte('|')
		writeLocation(&b, s.From)
		b.WriteByte('>')
		writeLocation(&b, s.To)
		b.WriteByte('@')
		if s.Date != nil {
			b.WriteString(s.Date.Format("2006-01-02"))
		}
		b.WriteByte('#')
		if s.Flight != nil {
			fmt.Fprintf(&b, "%s;%s;%s;%s;%s;%s;%s;%s;%s;%s;%s;%s",
				s.Flight.ID, s.Flight.FlightNumber, s.Flight.Airline(),
				s.Flight.DepartureAirport, s.Flight.ArrivalAirport,
				s.Flight.DepartureCity, s.Flight.ArrivalCity,
				s.Flight.DepartureTime, s.Flight.ArrivalTime,
				s.Flight.ActualDeparture, s.Flight.ActualArrival,
				s.Flight.Date)
		}
	}
	return b.String()
}

func writeLocation(b *strings.Builder, l *Location) {
	if l == nil {
		return
	}
	b.WriteString(l.Value)
	b.WriteByte(',')
	b.WriteString(l.Label)
	b.WriteByte(',')
	b.WriteString(l.Description)
	b.WriteByte(',')
	b.WriteString(l.City)
}
