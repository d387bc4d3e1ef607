package ports

import (
	"context"
	"delivery-dispatch-service/internal/domain"
)

// Geocoder resolves a postal address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (domain.Coordinates, error)
}
