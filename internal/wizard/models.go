// Package wizard orchestrates the claim wizard's state: the canonical
// itinerary per session, per-phase validation bookkeeping, the compensation
// cache, and the phase-scoped durable snapshots that survive reloads.
package wizard

import (
	"time"

	"flightclaim/internal/itinerary"
)

// ValidationState is the per-phase bookkeeping derived from the validity
// engine. Only the wizard service writes it; handlers read it.
type ValidationState struct {
	StepValidation  map[itinerary.Phase]bool     `json:"stepValidation"`
	StepInteraction map[itinerary.Phase]bool     `json:"stepInteraction"`
	Errors          map[itinerary.Phase][]string `json:"errors"`
	CompletedSteps  []itinerary.Phase            `json:"completedSteps"`
}

// NewValidationState returns empty bookkeeping for a fresh session.
func NewValidationState() ValidationState {
	return ValidationState{
		StepValidation:  make(map[itinerary.Phase]bool),
		StepInteraction: make(map[itinerary.Phase]bool),
		Errors:          make(map[itinerary.Phase][]string),
	}
}

// markCompleted adds or removes the phase from the completed list to match
// its current validity.
func (v *ValidationState) markCompleted(phase itinerary.Phase, valid bool) {
	idx := -1
	for i, p := range v.CompletedSteps {
		if p == phase {
			idx = i
			break
		}
	}
	switch {
	case valid && idx < 0:
		v.CompletedSteps = append(v.CompletedSteps, phase)
	case !valid && idx >= 0:
		v.CompletedSteps = append(v.CompletedSteps[:idx], v.CompletedSteps[idx+1:]...)
	}
}

// Satisfied reports whether the phase is both valid and was actually touched
// by the user. Validity without interaction must not auto-advance a phase.
func (v ValidationState) Satisfied(phase itinerary.Phase) bool {
	return v.StepValidation[phase] && v.StepInteraction[phase]
}

// CompCache caches the externally computed compensation amount, keyed by an
// itinerary fingerprint. A fingerprint mismatch means the itinerary changed
// under the cache and the amount is stale.
type CompCache struct {
	Amount      *float64 `json:"amount"`
	Fingerprint string   `json:"fingerprint"`
}

// State is the canonical working copy for one claim session. It is owned
// exclusively by the Service; snapshots handed elsewhere are deep copies.
type State struct {
	Phase      itinerary.Phase
	Itinerary  itinerary.Itinerary
	Validation ValidationState
	CompCache  CompCache

	// searchGen discards stale flight-search responses: a response tagged
	// with an older generation than the current one is ignored.
	searchGen uint64
}

// SnapshotSegment is the durable form of a segment. Dates are serialized at
// day precision; a malformed date degrades to empty on load rather than
// failing the whole snapshot.
type SnapshotSegment struct {
	From   *itinerary.Location `json:"fromLocation"`
	To     *itinerary.Location `json:"toLocation"`
	Date   string              `json:"date,omitempty"`
	Flight *itinerary.Flight   `json:"selectedFlight,omitempty"`
}

// Snapshot is the payload written to one durable phase slot.
type Snapshot struct {
	Kind            itinerary.Kind      `json:"kind"`
	Segments        []SnapshotSegment   `json:"segments"`
	SelectedFlights []itinerary.Flight  `json:"selectedFlights"`
	From            *itinerary.Location `json:"fromLocation"`
	To              *itinerary.Location `json:"toLocation"`
	Timestamp       time.Time           `json:"timestamp"`
}

const dayFormat = "2006-01-02"

// NewSnapshot converts an itinerary into its durable form. The input is deep
// copied; mutating the canonical state afterwards never changes a snapshot
// already taken.
func NewSnapshot(it itinerary.Itinerary, now time.Time) Snapshot {
	it = it.Clone()
	snap := Snapshot{
		Kind:            it.Kind,
		Segments:        make([]SnapshotSegment, len(it.Segments)),
		SelectedFlights: it.SelectedFlights(),
		Timestamp:       now,
	}
	for i, s := range it.Segments {
		ss := SnapshotSegment{From: s.From, To: s.To, Flight: s.Flight}
		if s.Date != nil {
			ss.Date = s.Date.Format(dayFormat)
		}
		snap.Segments[i] = ss
	}
	if len(it.Segments) > 0 {
		snap.From = it.Segments[0].From
		snap.To = it.Segments[len(it.Segments)-1].To
	}
	return snap
}

// Restore converts the snapshot back into a working itinerary. Dates that do
// not parse degrade to nil; the phase validity engine treats such segments
// as incomplete.
func (s Snapshot) Restore() itinerary.Itinerary {
	it := itinerary.Itinerary{Kind: s.Kind, Segments: make([]itinerary.Segment, len(s.Segments))}
	for i, ss := range s.Segments {
		seg := itinerary.Segment{From: ss.From, To: ss.To, Flight: ss.Flight}
		if ss.Date != "" {
			if d, err := time.ParseInLocation(dayFormat, ss.Date, time.UTC); err == nil {
				seg.Date = &d
			}
		}
		it.Segments[i] = seg
	}
	return it.Clone()
}

// Claim is a submitted compensation claim, persisted once the final phase
// completes.
type Claim struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"sessionId"`
	Snapshot    Snapshot  `json:"snapshot"`
	Amount      *float64  `json:"amount,omitempty"`
	SubmittedAt time.Time `json:"submittedAt"`
}
