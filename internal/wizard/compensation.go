package wizard

import (
	"context"

	"flightclaim/internal/itinerary"
)

// SegmentBandCalculator estimates the claim amount from the itinerary shape
// alone, using the standard EU air passenger compensation bands. Trip length
// is approximated by leg count; a distance-aware upstream can replace it
// behind the CompensationCalculator interface without touching the store.
type SegmentBandCalculator struct{}

func NewSegmentBandCalculator() SegmentBandCalculator {
	return SegmentBandCalculator{}
}

func (SegmentBandCalculator) Estimate(_ context.Context, it itinerary.Itinerary) (float64, error) {
	switch {
	case len(it.Segments) <= 1:
		return 250, nil
	case len(it.Segments) == 2:
		return 400, nil
	default:
		return 600, nil
	}
}
