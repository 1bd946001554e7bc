package itinerary

import "strconv"

// Phase is one step of the claim wizard. Validity requirements differ by
// phase: early phases only need locations, later ones need chosen flights.
type Phase int

const (
	PhaseAssessment    Phase = 1
	PhaseEstimate      Phase = 2
	PhaseFlightDetails Phase = 3
	PhaseExperience    Phase = 4
	PhaseFinal         Phase = 5
)

// AllPhases lists the wizard phases in order.
var AllPhases = []Phase{
	PhaseAssessment, PhaseEstimate, PhaseFlightDetails, PhaseExperience, PhaseFinal,
}

// Valid reports whether p is a known wizard phase.
func (p Phase) Valid() bool {
	return p >= PhaseAssessment && p <= PhaseFinal
}

// RequiresFlights reports whether the phase needs chosen flights on top of
// locations. Phases 1-2 collect the route; from flight details onward the
// itinerary must be flown, not just described.
func (p Phase) RequiresFlights() bool {
	return p >= PhaseFlightDetails
}

// IsItineraryValid is the phase-conditioned validity predicate. It is pure
// and idempotent; recording interaction and completion flags is the caller's
// job, never this function's.
//
// Locations-only tier: every segment has both endpoints, and for multi-city
// every adjacent pair agrees. Flights-required tier additionally needs a
// chosen flight on every segment for multi (no partial itineraries) and at
// least one for direct. Once flights are chosen they are the adjacency
// authority, so the flights-required tier compares against arrival cities.
func IsItineraryValid(it Itinerary, phase Phase) bool {
	if !phase.Valid() || len(it.Segments) == 0 {
		return false
	}
	switch it.Kind {
	case KindDirect:
		if len(it.Segments) != 1 {
			return false
		}
	case KindMulti:
		if len(it.Segments) < MinMultiSegments || len(it.Segments) > MaxSegments {
			return false
		}
	default:
		return false
	}

	for _, s := range it.Segments {
		if s.From == nil || s.To == nil {
			return false
		}
		// A segment from a city to itself is the reload-collapse artifact,
		// never a real leg.
		if SameCity(*s.From, *s.To) {
			return false
		}
	}

	if it.Kind == KindMulti && !CheckAdjacency(it.Segments) {
		return false
	}

	if phase.RequiresFlights() {
		selected := len(it.SelectedFlights())
		if it.Kind == KindMulti && selected != len(it.Segments) {
			return false
		}
		if it.Kind == KindDirect && selected < 1 {
			return false
		}
	}
	return true
}

// ValidationIssues returns the human-readable problems with the itinerary
// for the given phase, in segment order. Empty means valid. These strings
// land in the per-phase error list of the wizard's validation state.
func ValidationIssues(it Itinerary, phase Phase) []string {
	var issues []string
	for i, s := range it.Segments {
		if s.From == nil {
			issues = append(issues, segmentIssue(i, "departure airport missing"))
		}
		if s.To == nil {
			issues = append(issues, segmentIssue(i, "destination airport missing"))
		}
		if s.From != nil && s.To != nil && SameCity(*s.From, *s.To) {
			issues = append(issues, segmentIssue(i, "departure and destination are the same city"))
		}
		if phase.RequiresFlights() && s.Flight == nil && (it.Kind == KindMulti || i == 0) {
			issues = append(issues, segmentIssue(i, "no flight selected"))
		}
	}
	if it.Kind == KindMulti {
		for i := 1; i < len(it.Segments); i++ {
			if adjacencyBroken(it.Segments[i-1], it.Segments[i]) {
				issues = append(issues, segmentIssue(i, "does not continue from the previous destination"))
			}
		}
	}
	return issues
}

func segmentIssue(i int, msg string) string {
	return "segment " + strconv.Itoa(i+1) + ": " + msg
}
