package ports

import (
	"context"
	"delivery-dispatch-service/internal/domain"
)

// Optional extension of DistanceProvider that supports batched lookups.
type DistanceMatrixProvider interface {
	DistanceProvider
	// Return distances from one origin to many destinations, keyed by
	// destination Coordinates.Key().
	GetDistances(ctx context.Context, origin domain.Coordinates, destinations []domain.Coordinates) (map[string]DistanceResult, error)
}
