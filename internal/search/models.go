// Package search wraps the airport and flight lookup upstreams. Ranking and
// connectivity filtering happen locally; the upstreams only supply raw
// records.
package search

import "flightclaim/internal/itinerary"

// AirportOption is one entry in the airport autocomplete dropdown.
type AirportOption struct {
	Value         string `json:"value"`
	Label         string `json:"label"`
	Description   string `json:"description"`
	DropdownLabel string `json:"dropdownLabel"`
}

// MinTermLength is the shortest term forwarded to the airport upstream.
// Shorter terms answer with the sentinel option instead of an empty list.
const MinTermLength = 3

// SentinelValue marks the "enter more characters" dropdown entry.
const SentinelValue = "__more_chars__"

// AirportQuery is a single autocomplete request.
type AirportQuery struct {
	Term string
	Lang string
}

// FlightQuery asks for flights between two airports on one day.
type FlightQuery struct {
	From string
	To   string
	Date string // YYYY-MM-DD
	Lang string

	// Previous is the chosen flight of the preceding segment, when there is
	// one. Candidates that do not form a legal connection from it are
	// filtered out of the response.
	Previous *itinerary.Flight
}

// rawFlight is the upstream record shape before transformation.
type rawFlight struct {
	ID            string `json:"id"`
	FlightNumber  string `json:"flight_number"`
	AirlineCode   string `json:"airline_code"`
	DepartureIATA string `json:"departure_iata"`
	ArrivalIATA   string `json:"arrival_iata"`
	DepartureCity string `json:"departure_city"`
	ArrivalCity   string `json:"arrival_city"`
	DepartureTime string `json:"departure_time"`
	ArrivalTime   string `json:"arrival_time"`
	Date          string `json:"date"`
}
