package ports

import (
	"context"
	"delivery-dispatch-service/internal/domain"
	"time"
)

// Snapshot is the durable engine state loaded on startup.
type Snapshot struct {
	Orders   []domain.Order
	Routes   []domain.Route
	Sessions []domain.DriverSession
	Earnings []domain.EarningsRecord
}

// Port: durable record of dispatch state. The in-memory engine is
// authoritative while running; the journal lets a restart pick up where it
// left off.
type Journal interface {
	SaveOrder(ctx context.Context, o domain.Order) error
	// Persist the route and all of its stops.
	SaveRoute(ctx context.Context, r domain.Route) error
	SaveSession(ctx context.Context, s domain.DriverSession) error
	// Earnings are written once; a second write for the same route is a no-op.
	SaveEarnings(ctx context.Context, rec domain.EarningsRecord) error

	// ClaimRoute marks an available route as claimed by driverID only if it
	// is still available in storage. It returns domain.ErrRouteAlreadyClaimed
	// when another writer got there first.
	ClaimRoute(ctx context.Context, routeID, driverID string, claimedAt time.Time) error

	Load(ctx context.Context) (Snapshot, error)
}
