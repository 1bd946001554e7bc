package wizard

import (
	"context"
	"log/slog"
	"time"

	"flightclaim/internal/itinerary"
	dErrors "flightclaim/pkg/domain-errors"
)

// slotForPhase maps a wizard phase to its durable slot.
func slotForPhase(phase itinerary.Phase) Slot {
	switch phase {
	case itinerary.PhaseAssessment:
		return SlotPhase1
	case itinerary.PhaseEstimate:
		return SlotPhase2
	case itinerary.PhaseFlightDetails:
		return SlotPhase3
	case itinerary.PhaseExperience:
		return SlotPhase4
	default:
		return SlotFinal
	}
}

// mirrorSlots are the write-through targets for a mutation in phases 1-3:
// those three phases stay mirror-consistent so a choice made in phase 1 is
// already visible when the user jumps to phase 3. Phase 4 and the final
// phase are deliberately excluded.
func mirrorSlots(phase itinerary.Phase) []Slot {
	switch phase {
	case itinerary.PhaseAssessment, itinerary.PhaseEstimate, itinerary.PhaseFlightDetails:
		return []Slot{SlotPhase1, SlotPhase2, SlotPhase3}
	case itinerary.PhaseExperience:
		return []Slot{SlotPhase4}
	default:
		return []Slot{SlotFinal}
	}
}

// Synchronizer propagates canonical itinerary snapshots to phase-scoped
// durable slots and reconciles them on phase entry. Slots are copies of the
// canonical state, never aliases; the final phase is isolated from all of
// them.
type Synchronizer struct {
	store  SnapshotStore
	logger *slog.Logger
	now    func() time.Time
}

func NewSynchronizer(store SnapshotStore, logger *slog.Logger) *Synchronizer {
	return &Synchronizer{store: store, logger: logger, now: time.Now}
}

// Persist writes the canonical itinerary through to the durable slots for
// the given phase, mirroring across phases 1-3.
func (s *Synchronizer) Persist(ctx context.Context, sessionID string, phase itinerary.Phase, it itinerary.Itinerary) error {
	snap := NewSnapshot(it, s.now())
	for _, slot := range mirrorSlots(phase) {
		if err := s.store.SaveSlot(ctx, sessionID, slot, snap); err != nil {
			return dErrors.Wrap(dErrors.CodeInternal, "persist snapshot", err)
		}
	}
	return nil
}

// Load resolves the itinerary to start the given phase with. Fallback
// order:
//
//   - phases 1-3: own slot, then phase 3's, then phase 1's;
//   - phase 4: own slot only;
//   - final phase: own slot only - on first entry it initializes fresh and
//     purges earlier-phase state from durable storage, keeping only the
//     allow-listed shared keys.
//
// The second return is false when no usable snapshot existed and the caller
// should start from an empty itinerary.
func (s *Synchronizer) Load(ctx context.Context, sessionID string, phase itinerary.Phase) (itinerary.Itinerary, bool, error) {
	if phase == itinerary.PhaseFinal {
		snap, err := s.store.LoadSlot(ctx, sessionID, SlotFinal)
		if err == nil {
			return snap.Restore(), true, nil
		}
		if !dErrors.Is(err, dErrors.CodeNotFound) {
			return itinerary.Itinerary{}, false, err
		}
		// First entry: never inherit, and scrub whatever earlier phases
		// left behind except the allow-listed keys.
		if err := s.store.PurgeExcept(ctx, sessionID, PurgeAllowList); err != nil {
			s.logger.WarnContext(ctx, "final phase purge failed",
				"session_id", sessionID, "error", err.Error())
		}
		return itinerary.Itinerary{}, false, nil
	}

	for _, slot := range fallbackChain(phase) {
		snap, err := s.store.LoadSlot(ctx, sessionID, slot)
		if err == nil {
			return snap.Restore(), true, nil
		}
		if !dErrors.Is(err, dErrors.CodeNotFound) {
			return itinerary.Itinerary{}, false, err
		}
	}
	return itinerary.Itinerary{}, false, nil
}

func fallbackChain(phase itinerary.Phase) []Slot {
	own := slotForPhase(phase)
	if phase == itinerary.PhaseExperience {
		return []Slot{own}
	}
	chain := []Slot{own}
	if own != SlotPhase3 {
		chain = append(chain, SlotPhase3)
	}
	if own != SlotPhase1 {
		chain = append(chain, SlotPhase1)
	}
	return chain
}

// PriorRecording looks for an intact previously-recorded itinerary usable as
// a repair source for the given phase: a mirror slot whose snapshot has the
// same segment count and unbroken adjacency.
func (s *Synchronizer) PriorRecording(ctx context.Context, sessionID string, phase itinerary.Phase, segments int) []itinerary.Segment {
	for _, slot := range mirrorSlots(phase) {
		snap, err := s.store.LoadSlot(ctx, sessionID, slot)
		if err != nil {
			continue
		}
		it := snap.Restore()
		if len(it.Segments) == segments && itinerary.CheckAdjacency(it.Segments) {
			return it.Segments
		}
	}
	return nil
}

// SaveShared and LoadShared expose the cross-cutting wizard keys (terms,
// privacy, active phase, completed phases) that live next to the slots.
func (s *Synchronizer) SaveShared(ctx context.Context, sessionID, key, value string) error {
	return s.store.SaveShared(ctx, sessionID, key, value)
}

func (s *Synchronizer) LoadShared(ctx context.Context, sessionID, key string) (string, bool) {
	v, err := s.store.LoadShared(ctx, sessionID, key)
	if err != nil {
		return "", false
	}
	return v, true
}
