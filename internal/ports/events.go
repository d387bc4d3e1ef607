package ports

import (
	"context"
	"delivery-dispatch-service/internal/domain"
	"time"
)

type EventType string

const (
	EventRouteAvailable EventType = "route.available"
	EventRouteClaimed   EventType = "route.claimed"
	EventRouteCompleted EventType = "route.completed"
	EventRouteRequeued  EventType = "route.requeued"
	EventRouteReoffered EventType = "route.reoffered"
	EventRouteAbandoned EventType = "route.abandoned"
)

// Event is a dispatch state change fanned out to drivers and the ledger.
type Event struct {
	Type       EventType              `json:"type"`
	Slot       domain.TimeSlot        `json:"slot"`
	RouteID    string                 `json:"route_id"`
	DriverID   string                 `json:"driver_id,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
	Earnings   *domain.EarningsRecord `json:"earnings,omitempty"`
}

// RoutingKey is the topic key, e.g. "route.completed.9am-12pm".
func (e Event) RoutingKey() string { return string(e.Type) + "." + string(e.Slot) }

// EventPublisher delivers events to an outside consumer. Publishing never
// blocks engine state changes.
type EventPublisher interface {
	Publish(ctx context.Context, e Event) error
}
