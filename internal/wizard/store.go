package wizard

import (
	"context"

	dErrors "flightclaim/pkg/domain-errors"
)

// ErrNotFound keeps storage-specific misses consistent across snapshot and
// claim store implementations.
var ErrNotFound = dErrors.New(dErrors.CodeNotFound, "record not found")

// Slot names one durable snapshot location. There is one slot per wizard
// phase plus the isolated final slot.
type Slot string

const (
	SlotPhase1 Slot = "phase1State"
	SlotPhase2 Slot = "phase2State"
	SlotPhase3 Slot = "phase3State"
	SlotPhase4 Slot = "phase4State"
	SlotFinal  Slot = "finalState"
)

// Shared durable keys that live next to the phase slots. The first four
// survive the final-phase purge.
const (
	KeyTermsAccepted   = "termsAccepted"
	KeyPrivacyAccepted = "privacyAccepted"
	KeyActivePhase     = "activePhase"
	KeyCompletedPhases = "completedPhases"
	KeyContinuePhases  = "phasesCompletedViaContinue"
)

// PurgeAllowList is what the final phase keeps when it scrubs earlier-phase
// state from durable storage.
var PurgeAllowList = []string{
	KeyTermsAccepted, KeyPrivacyAccepted, KeyActivePhase, KeyCompletedPhases,
}

// SnapshotStore is the durable storage contract for phase-scoped itinerary
// snapshots and the small set of shared wizard keys. Implementations must
// return ErrNotFound (possibly wrapped) for missing slots and keys, and must
// store copies - a snapshot read back must not alias one written earlier.
type SnapshotStore interface {
	SaveSlot(ctx context.Context, sessionID string, slot Slot, snap Snapshot) error
	LoadSlot(ctx context.Context, sessionID string, slot Slot) (Snapshot, error)
	DeleteSlot(ctx context.Context, sessionID string, slot Slot) error

	SaveShared(ctx context.Context, sessionID, key, value string) error
	LoadShared(ctx context.Context, sessionID, key string) (string, error)

	// PurgeExcept removes every slot and shared key for the session except
	// the final slot and the given shared keys.
	PurgeExcept(ctx context.Context, sessionID string, keep []string) error
}

// ClaimStore persists submitted claims.
type ClaimStore interface {
	Save(ctx context.Context, claim Claim) error
	FindByID(ctx context.Context, id string) (Claim, error)
}
