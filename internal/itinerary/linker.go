package itinerary

import "time"

// LocationField names which endpoint of a segment a location edit targets.
type LocationField string

const (
	FieldFrom LocationField = "fromLocation"
	FieldTo   LocationField = "toLocation"
)

// The linker is a set of pure reducers over segment lists. Each operation
// returns a new slice; callers decide what to do with it. Invalid edits
// (index out of range, too many segments, protected deletions) return the
// input unchanged so the store can treat them as no-ops.

// SetLocation applies a location edit at index i and keeps neighbors
// consistent:
//
//   - Setting a concrete toLocation propagates it to segs[i+1].From; if that
//     neighbor already had a chosen flight its premise changed, so the flight
//     is cleared. The mirror applies to fromLocation and segs[i-1].To.
//   - Clearing a location (nil) is local-only and never cascades.
//   - A segment's own chosen flight is cleared whenever either of its
//     endpoints changes, since the flight was picked for the old route.
func SetLocation(segs []Segment, i int, field LocationField, loc *Location) []Segment {
	if i < 0 || i >= len(segs) {
		return segs
	}
	out := cloneSegments(segs)

	switch field {
	case FieldTo:
		out[i].To = copyLocation(loc)
		out[i].Flight = nil
		if loc != nil && i+1 < len(out) {
			out[i+1].From = copyLocation(loc)
			out[i+1].Flight = nil
		}
	case FieldFrom:
		out[i].From = copyLocation(loc)
		out[i].Flight = nil
		if loc != nil && i > 0 {
			out[i-1].To = copyLocation(loc)
			out[i-1].Flight = nil
		}
	default:
		return segs
	}
	return out
}

// SetDate sets the travel date at index i. A changed date invalidates that
// segment's chosen flight (it was searched for the old date); neighboring
// segments keep theirs.
func SetDate(segs []Segment, i int, date *time.Time) []Segment {
	if i < 0 || i >= len(segs) {
		return segs
	}
	out := cloneSegments(segs)
	if !sameDay(out[i].Date, date) {
		out[i].Flight = nil
	}
	if date != nil {
		d := *date
		out[i].Date = &d
	} else {
		out[i].Date = nil
	}
	return out
}

// SelectFlight records a chosen flight at index i. The flight is
// authoritative: both endpoints are rewritten from its departure/arrival
// city+airport pair, and the next segment's origin is seeded from the
// arrival so the user continues from where the flight lands.
func SelectFlight(segs []Segment, i int, flight Flight) []Segment {
	if i < 0 || i >= len(segs) {
		return segs
	}
	out := cloneSegments(segs)
	f := flight
	out[i].Flight = &f
	out[i].From = locationFromAirport(flight.DepartureAirport, flight.DepartureCity)
	out[i].To = locationFromAirport(flight.ArrivalAirport, flight.ArrivalCity)
	if i+1 < len(out) {
		out[i+1].From = locationFromAirport(flight.ArrivalAirport, flight.ArrivalCity)
	}
	return out
}

// DeleteFlight clears the chosen flight at index i, leaving locations as the
// user entered them.
func DeleteFlight(segs []Segment, i int) []Segment {
	if i < 0 || i >= len(segs) {
		return segs
	}
	out := cloneSegments(segs)
	out[i].Flight = nil
	return out
}

// AddSegment appends an empty segment whose origin continues from the
// previous destination. Rejected once the itinerary holds MaxSegments.
func AddSegment(segs []Segment) []Segment {
	if len(segs) >= MaxSegments {
		return segs
	}
	out := cloneSegments(segs)
	next := Segment{}
	if len(out) > 0 {
		next.From = copyLocation(out[len(out)-1].To)
	}
	return append(out, next)
}

// DeleteSegment removes the segment at index i. The first two segments of a
// multi-city itinerary are protected; neighbors are left untouched, so a gap
// created by the deletion surfaces as a validation failure rather than being
// silently patched.
func DeleteSegment(segs []Segment, i int) []Segment {
	if i <= 1 || i >= len(segs) {
		return segs
	}
	out := cloneSegments(segs)
	return append(out[:i], out[i+1:]...)
}

// ResetForKind returns the empty segment layout for a kind toggle. Nothing
// carries over: a flight shown in the old mode must never arrive
// pre-selected in the new one.
func ResetForKind(kind Kind) []Segment {
	return NewItinerary(kind).Segments
}

// adjacencyBroken reports whether the pair (prev, next) disagrees. Once prev
// has a chosen flight, its arrival city is authoritative over the raw
// location.
func adjacencyBroken(prev, next Segment) bool {
	if next.From == nil {
		return false
	}
	if prev.Flight != nil {
		arrival := locationFromAirport(prev.Flight.ArrivalAirport, prev.Flight.ArrivalCity)
		return !SameCity(*arrival, *next.From)
	}
	if prev.To == nil {
		return false
	}
	return !SameCity(*prev.To, *next.From)
}

// CheckAdjacency reports whether every adjacent pair of a segment list
// agrees, using chosen flights as the authority where present.
func CheckAdjacency(segs []Segment) bool {
	for i := 1; i < len(segs); i++ {
		if adjacencyBroken(segs[i-1], segs[i]) {
			return false
		}
	}
	return true
}

// NeedsRepair detects the two corruption shapes observed on reload:
//
//   - collapse: a segment's origin equals its own destination (the classic
//     "A to B, B to B" pattern);
//   - skip: segment 0's destination already equals the itinerary's final
//     destination while segment 1 does not start there.
func NeedsRepair(segs []Segment) bool {
	if len(segs) < 2 {
		return false
	}
	for i := 1; i < len(segs); i++ {
		s := segs[i]
		if s.From != nil && s.To != nil && SameCity(*s.From, *s.To) {
			return true
		}
	}
	first, last := segs[0], segs[len(segs)-1]
	if first.To != nil && last.To != nil && SameCity(*first.To, *last.To) && adjacencyBroken(first, segs[1]) {
		return true
	}
	return !CheckAdjacency(segs)
}

// Repair tries to restore a broken adjacency chain. When a prior recording
// of the same working phase with intact adjacency exists it wins verbatim;
// otherwise every disagreeing pair is fixed by forward-propagating the
// previous destination into the next origin. Deliberately not a fixpoint:
// one forward pass fixes the reload artifacts this targets, and anything
// beyond that should fail validation instead of being guessed at.
func Repair(segs []Segment, prior []Segment) []Segment {
	if prior != nil && len(prior) == len(segs) && CheckAdjacency(prior) {
		return cloneSegments(prior)
	}
	out := cloneSegments(segs)
	for i := 1; i < len(out); i++ {
		if !adjacencyBroken(out[i-1], out[i]) {
			continue
		}
		prev := out[i-1]
		if prev.Flight != nil {
			out[i].From = locationFromAirport(prev.Flight.ArrivalAirport, prev.Flight.ArrivalCity)
		} else if prev.To != nil {
			out[i].From = copyLocation(prev.To)
		}
	}
	return out
}

func cloneSegments(segs []Segment) []Segment {
	out := make([]Segment, len(segs))
	for i, s := range segs {
		out[i] = s.Clone()
	}
	return out
}

func copyLocation(l *Location) *Location {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

func locationFromAirport(code, city string) *Location {
	label := city
	if label == "" {
		label = code
	}
	return &Location{Value: code, Label: label, City: city}
}

func sameDay(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
