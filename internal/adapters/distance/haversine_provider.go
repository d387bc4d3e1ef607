package distance

import (
	"context"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/ports"
	"math"
)

// HaversineProvider estimates road distance from great-circle distance.
// It needs no network access and is the default when no ORS key is set.
type HaversineProvider struct {
	// Multiplier from straight-line to road distance.
	DetourFactor float64
	// Average travel speed used for duration estimates.
	SpeedMetersPerSecond float64
}

func NewHaversineProvider() *HaversineProvider {
	// ~30 mph urban average, 1.3 road/straight-line ratio.
	return &HaversineProvider{DetourFactor: 1.3, SpeedMetersPerSecond: 13.4}
}

func (h *HaversineProvider) GetDistance(ctx context.Context, origin, destination domain.Coordinates) (ports.DistanceResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.DistanceResult{}, err
	}

	factor := h.DetourFactor
	if factor <= 0 {
		factor = 1
	}

	meters := domain.GreatCircleMeters(origin, destination) * factor
	seconds := 0.0
	if h.SpeedMetersPerSecond > 0 {
		seconds = meters / h.SpeedMetersPerSecond
	}

	return ports.DistanceResult{
		DistanceMeters:  int(math.Round(meters)),
		DurationSeconds: int(math.Round(seconds)),
	}, nil
}

func (h *HaversineProvider) GetDistances(ctx context.Context, origin domain.Coordinates, destinations []domain.Coordinates) (map[string]ports.DistanceResult, error) {
	out := make(map[string]ports.DistanceResult, len(destinations))
	for _, d := range destinations {
		r, err := h.GetDistance(ctx, origin, d)
		if err != nil {
			return nil, err
		}
		out[d.Key()] = r
	}
	return out, nil
}
