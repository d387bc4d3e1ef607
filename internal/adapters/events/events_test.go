package events

import (
	"context"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/ports"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

func TestEncodeEvent(t *testing.T) {
	at := time.Date(2026, 3, 2, 11, 0, 0, 0, time.UTC)
	e := ports.Event{
		Type:       ports.EventRouteCompleted,
		Slot:       domain.SlotMorning,
		RouteID:    "route-1",
		DriverID:   "driver-1",
		OccurredAt: at,
		Earnings:   &domain.EarningsRecord{RouteID: "route-1", NetPayout: 1234},
	}

	msg, err := encodeEvent(e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ContentType != "application/json" || msg.DeliveryMode != amqp.Persistent {
		t.Fatalf("unexpected headers: %+v", msg)
	}
	if msg.Type != "route.completed" {
		t.Fatalf("type = %q", msg.Type)
	}

	var body map[string]any
	if err := json.Unmarshal(msg.Body, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["route_id"] != "route-1" || body["slot"] != "9am-12pm" {
		t.Fatalf("body = %v", body)
	}
	earnings, ok := body["earnings"].(map[string]any)
	if !ok || earnings["net_payout_cents"] != float64(1234) {
		t.Fatalf("earnings = %v", body["earnings"])
	}

	if e.RoutingKey() != "route.completed.9am-12pm" {
		t.Fatalf("routing key = %q", e.RoutingKey())
	}
}

type countingPublisher struct {
	n   int
	err error
}

func (c *countingPublisher) Publish(ctx context.Context, e ports.Event) error {
	c.n++
	return c.err
}

func TestFanoutDeliversToAll(t *testing.T) {
	boom := errors.New("boom")
	a := &countingPublisher{}
	b := &countingPublisher{err: boom}
	c := &countingPublisher{}

	err := Fanout{a, nil, b, c}.Publish(context.Background(), ports.Event{Type: ports.EventRouteAvailable})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if a.n != 1 || b.n != 1 || c.n != 1 {
		t.Fatalf("deliveries = %d %d %d", a.n, b.n, c.n)
	}
}
