package wizard

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightclaim/internal/itinerary"
)

func directItinerary(from, fromCity, to, toCity string) itinerary.Itinerary {
	return itinerary.Itinerary{
		Kind: itinerary.KindDirect,
		Segments: []itinerary.Segment{{
			From: &itinerary.Location{Value: from, Label: fromCity, City: fromCity},
			To:   &itinerary.Location{Value: to, Label: toCity, City: toCity},
		}},
	}
}

func TestPersistMirrorsEarlyPhases(t *testing.T) {
	store := NewInMemorySnapshotStore()
	syn := NewSynchronizer(store, discardLogger())
	ctx := context.Background()

	it := directItinerary("BER", "Berlin", "MUC", "Munich")
	require.NoError(t, syn.Persist(ctx, "s1", itinerary.PhaseEstimate, it))

	for _, slot := range []Slot{SlotPhase1, SlotPhase2, SlotPhase3} {
		snap, err := store.LoadSlot(ctx, "s1", slot)
		require.NoError(t, err, "slot %s", slot)
		assert.Equal(t, "BER", snap.From.Value)
	}
	_, err := store.LoadSlot(ctx, "s1", SlotPhase4)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.LoadSlot(ctx, "s1", SlotFinal)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPersistPhase4OwnSlotOnly(t *testing.T) {
	store := NewInMemorySnapshotStore()
	syn := NewSynchronizer(store, discardLogger())
	ctx := context.Background()

	it := directItinerary("BER", "Berlin", "MUC", "Munich")
	require.NoError(t, syn.Persist(ctx, "s1", itinerary.PhaseExperience, it))

	_, err := store.LoadSlot(ctx, "s1", SlotPhase4)
	require.NoError(t, err)
	for _, slot := range []Slot{SlotPhase1, SlotPhase2, SlotPhase3, SlotFinal} {
		_, err := store.LoadSlot(ctx, "s1", slot)
		assert.ErrorIs(t, err, ErrNotFound, "slot %s", slot)
	}
}

func TestLoadFallbackOrder(t *testing.T) {
	store := NewInMemorySnapshotStore()
	syn := NewSynchronizer(store, discardLogger())
	ctx := context.Background()

	// Only phase 1 recorded: phase 2 falls through slot 2 and slot 3 to it.
	snap1 := NewSnapshot(directItinerary("BER", "Berlin", "MUC", "Munich"), time.Now())
	require.NoError(t, store.SaveSlot(ctx, "s1", SlotPhase1, snap1))

	it, found, err := syn.Load(ctx, "s1", itinerary.PhaseEstimate)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "BER", it.Segments[0].From.Value)

	// The own slot wins once present.
	snap2 := NewSnapshot(directItinerary("HAM", "Hamburg", "VIE", "Vienna"), time.Now())
	require.NoError(t, store.SaveSlot(ctx, "s1", SlotPhase2, snap2))

	it, found, err = syn.Load(ctx, "s1", itinerary.PhaseEstimate)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "HAM", it.Segments[0].From.Value)
}

func TestLoadPhase4NeverFallsBack(t *testing.T) {
	store := NewInMemorySnapshotStore()
	syn := NewSynchronizer(store, discardLogger())
	ctx := context.Background()

	snap := NewSnapshot(directItinerary("BER", "Berlin", "MUC", "Munich"), time.Now())
	require.NoError(t, store.SaveSlot(ctx, "s1", SlotPhase1, snap))
	require.NoError(t, store.SaveSlot(ctx, "s1", SlotPhase3, snap))

	_, found, err := syn.Load(ctx, "s1", itinerary.PhaseExperience)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoadFinalPurgesOnFirstEntry(t *testing.T) {
	store := NewInMemorySnapshotStore()
	syn := NewSynchronizer(store, discardLogger())
	ctx := context.Background()

	snap := NewSnapshot(directItinerary("BER", "Berlin", "MUC", "Munich"), time.Now())
	require.NoError(t, store.SaveSlot(ctx, "s1", SlotPhase1, snap))
	require.NoError(t, store.SaveShared(ctx, "s1", KeyTermsAccepted, "true"))
	require.NoError(t, store.SaveShared(ctx, "s1", "searchDraft", "{}"))

	_, found, err := syn.Load(ctx, "s1", itinerary.PhaseFinal)
	require.NoError(t, err)
	assert.False(t, found)

	_, err = store.LoadSlot(ctx, "s1", SlotPhase1)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = store.LoadShared(ctx, "s1", "searchDraft")
	assert.ErrorIs(t, err, ErrNotFound)
	v, err := store.LoadShared(ctx, "s1", KeyTermsAccepted)
	require.NoError(t, err)
	assert.Equal(t, "true", v)
}

func TestPriorRecordingRequiresIntactAdjacencyAndLength(t *testing.T) {
	store := NewInMemorySnapshotStore()
	syn := NewSynchronizer(store, discardLogger())
	ctx := context.Background()

	twoLeg := itinerary.Itinerary{Kind: itinerary.KindMulti, Segments: []itinerary.Segment{
		{
			From: &itinerary.Location{Value: "BER", City: "Berlin"},
			To:   &itinerary.Location{Value: "MUC", City: "Munich"},
		},
		{
			From: &itinerary.Location{Value: "MUC", City: "Munich"},
			To:   &itinerary.Location{Value: "PMI", City: "Palma"},
		},
	}}
	broken := twoLeg.Clone()
	broken.Segments[1].From = &itinerary.Location{Value: "FRA", City: "Frankfurt"}

	require.NoError(t, store.SaveSlot(ctx, "s1", SlotPhase1, NewSnapshot(broken, time.Now())))
	assert.Nil(t, syn.PriorRecording(ctx, "s1", itinerary.PhaseFlightDetails, 2),
		"broken adjacency disqualifies a recording")

	require.NoError(t, store.SaveSlot(ctx, "s1", SlotPhase1, NewSnapshot(twoLeg, time.Now())))
	assert.Nil(t, syn.PriorRecording(ctx, "s1", itinerary.PhaseFlightDetails, 3),
		"segment count must match")

	got := syn.PriorRecording(ctx, "s1", itinerary.PhaseFlightDetails, 2)
	require.Len(t, got, 2)
	assert.Equal(t, "PMI", got[1].To.Value)
}
