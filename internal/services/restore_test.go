package services

import (
	"context"
	"delivery-dispatch-service/internal/adapters/distance"
	"delivery-dispatch-service/internal/domain"
	"io"
	"log/slog"
	"testing"
)

func TestRestoreRebuildsEngine(t *testing.T) {
	h := newHarness(t, testPolicy(), nil)
	ctx := context.Background()

	active := claimedRoute(t, h, 2)
	h.submitNearby(t, 2)
	stale := h.assembleOne(t)
	waiting := h.submit(t, orderAt("waiting", near(9, 9), near(9, 8)))

	if _, err := h.engine.CompleteStop(ctx, active.ID, active.Stops[0].ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// The stale route's orders were never journaled as requeued.
	stale.Status = domain.RouteAbandoned
	h.journal.routes[stale.ID] = stale

	restarted := NewEngine(testPolicy(), distance.NewHaversineProvider(),
		WithClock(h.clock.Now),
		WithJournal(h.journal),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err := restarted.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}

	got, err := restarted.GetRoute(ctx, active.ID)
	if err != nil {
		t.Fatalf("get route: %v", err)
	}
	if got.Status != domain.RouteActive || got.CompletedStops() != 1 {
		t.Fatalf("active route = status %s completed %d", got.Status, got.CompletedStops())
	}
	s, err := restarted.GetSession(ctx, "driver-1")
	if err != nil || s.CurrentRouteID != active.ID {
		t.Fatalf("session = %+v, err = %v", s, err)
	}

	if n := restarted.PoolSize(domain.SlotMorning); n != 3 {
		t.Fatalf("pool size = %d, want 3 (2 released + 1 waiting)", n)
	}
	o, _ := restarted.GetOrder(ctx, waiting.ID)
	if o.Status != domain.OrderAwaitingRoute {
		t.Fatalf("waiting order = %s", o.Status)
	}
	for _, id := range stale.OrderIDs() {
		o, _ := restarted.GetOrder(ctx, id)
		if o.Status != domain.OrderAwaitingRoute || o.RouteID != "" {
			t.Fatalf("order %s of abandoned route = %s %q", id, o.Status, o.RouteID)
		}
	}

	// Colours continue after the two restored routes.
	routes, err := restarted.CloseBatch(ctx, domain.SlotMorning)
	if err != nil {
		t.Fatalf("close batch: %v", err)
	}
	if len(routes) == 0 || routes[0].Colour != domain.ColourAt(2) {
		t.Fatalf("expected colour %s after restore", domain.ColourAt(2))
	}

	// Work continues on the restored route.
	for _, st := range got.Stops[1:] {
		if _, err := restarted.CompleteStop(ctx, active.ID, st.ID); err != nil {
			t.Fatalf("complete %s: %v", st.ID, err)
		}
	}
	if _, err := restarted.GetEarnings(ctx, active.ID); err != nil {
		t.Fatalf("earnings after restore: %v", err)
	}
}

func TestRestoreWithoutJournal(t *testing.T) {
	e := NewEngine(testPolicy(), distance.NewHaversineProvider())
	if err := e.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
}
