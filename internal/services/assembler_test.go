package services

import (
	"context"
	"delivery-dispatch-service/internal/adapters/distance"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/ports"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestCloseBatchThreeNearbyOrdersFormOneRoute(t *testing.T) {
	h := newHarness(t, testPolicy(), nil)
	orders := h.submitNearby(t, 3)

	r := h.assembleOne(t)

	if len(r.Stops) != 6 {
		t.Fatalf("expected 6 stops, got %d", len(r.Stops))
	}
	if err := r.Validate(); err != nil {
		t.Fatalf("route invalid: %v", err)
	}
	if r.Status != domain.RouteAvailable {
		t.Fatalf("status = %s, want available", r.Status)
	}
	if r.Colour != domain.ColourAt(0) {
		t.Fatalf("colour = %s, want %s", r.Colour, domain.ColourAt(0))
	}
	if r.Stops[0].OrderID != orders[0].ID || r.Stops[0].Kind != domain.StopPickup {
		t.Fatalf("route must start at the seed pickup, got %+v", r.Stops[0])
	}
	if r.Totals.BasePay != domain.Dollars(18) {
		t.Fatalf("base pay = %s, want $18.00", r.Totals.BasePay)
	}
	if r.Totals.TipsPool != 600 {
		t.Fatalf("tips pool = %d, want 600", r.Totals.TipsPool)
	}
	if r.Totals.TotalDistanceMeters <= 0 || r.Totals.MileagePay <= 0 {
		t.Fatalf("expected positive distance and mileage, got %+v", r.Totals)
	}

	for _, o := range orders {
		got, err := h.engine.GetOrder(context.Background(), o.ID)
		if err != nil {
			t.Fatalf("get order: %v", err)
		}
		if got.Status != domain.OrderRouted || got.RouteID != r.ID {
			t.Fatalf("order %s: status=%s route=%q", o.ID, got.Status, got.RouteID)
		}
	}

	if n := h.engine.PoolSize(domain.SlotMorning); n != 0 {
		t.Fatalf("pool size = %d, want 0", n)
	}
	if n := h.publisher.count(ports.EventRouteAvailable); n != 1 {
		t.Fatalf("route.available events = %d, want 1", n)
	}
	if _, ok := h.journal.routes[r.ID]; !ok {
		t.Fatalf("route was not journaled")
	}
}

func TestCloseBatchRespectsCapacity(t *testing.T) {
	h := newHarness(t, testPolicy(), nil)
	h.submitNearby(t, 8)

	routes, err := h.engine.CloseBatch(context.Background(), domain.SlotMorning)
	if err != nil {
		t.Fatalf("close batch: %v", err)
	}
	if len(routes) != 2 {
		t.Fatalf("expected 2 routes, got %d", len(routes))
	}

	seen := map[string]bool{}
	for i, r := range routes {
		if err := r.Validate(); err != nil {
			t.Fatalf("route %d invalid: %v", i, err)
		}
		if n := len(r.OrderIDs()); n > domain.MaxOrdersPerRoute {
			t.Fatalf("route %d has %d orders", i, n)
		}
		if r.Colour != domain.ColourAt(i) {
			t.Fatalf("route %d colour = %s, want %s", i, r.Colour, domain.ColourAt(i))
		}
		for _, id := range r.OrderIDs() {
			if seen[id] {
				t.Fatalf("order %s assembled twice", id)
			}
			seen[id] = true
		}
	}
	if len(seen) != 8 {
		t.Fatalf("expected 8 routed orders, got %d", len(seen))
	}
	if len(routes[0].OrderIDs()) != 6 {
		t.Fatalf("first route should be full, got %d orders", len(routes[0].OrderIDs()))
	}
}

func TestCloseBatchSingleOrderWaitsForMaxWait(t *testing.T) {
	h := newHarness(t, testPolicy(), nil)
	h.submitNearby(t, 1)

	routes, err := h.engine.CloseBatch(context.Background(), domain.SlotMorning)
	if err != nil {
		t.Fatalf("close batch: %v", err)
	}
	if len(routes) != 0 {
		t.Fatalf("expected the lone order to wait, got %d routes", len(routes))
	}
	if n := h.engine.PoolSize(domain.SlotMorning); n != 1 {
		t.Fatalf("pool size = %d, want 1", n)
	}

	h.clock.Advance(10 * time.Minute)

	r := h.assembleOne(t)
	if len(r.Stops) != 2 {
		t.Fatalf("expected a single-order route, got %d stops", len(r.Stops))
	}
}

func TestCloseBatchKeepsOneLargeItemPerRoute(t *testing.T) {
	h := newHarness(t, testPolicy(), nil)

	large1 := orderAt("large-1", near(0, 0), near(0, 1))
	large1.Large = true
	large2 := orderAt("large-2", near(1, 0), near(1, 1))
	large2.Large = true

	l1 := h.submit(t, large1)
	l2 := h.submit(t, large2)
	h.submit(t, orderAt("small-1", near(2, 0), near(2, 1)))
	h.submit(t, orderAt("small-2", near(3, 0), near(3, 1)))

	r := h.assembleOne(t)

	ids := r.OrderIDs()
	if len(ids) != 3 || ids[0] != l1.ID {
		t.Fatalf("expected large-1 seeding a 3-order route, got %v", ids)
	}
	for _, id := range ids {
		if id == l2.ID {
			t.Fatalf("second large item must not share the route")
		}
	}
	if n := h.engine.PoolSize(domain.SlotMorning); n != 1 {
		t.Fatalf("pool size = %d, want 1", n)
	}
}

func TestCloseBatchProviderFailureReturnsOrdersToPool(t *testing.T) {
	provider := distance.NewMockDistanceProvider(nil)
	provider.Err = errors.New("upstream unavailable")

	h := newHarness(t, testPolicy(), provider)
	orders := h.submitNearby(t, 3)

	routes, err := h.engine.CloseBatch(context.Background(), domain.SlotMorning)
	if err == nil {
		t.Fatalf("expected provider error")
	}
	if len(routes) != 0 {
		t.Fatalf("expected no routes, got %d", len(routes))
	}
	if n := h.engine.PoolSize(domain.SlotMorning); n != 3 {
		t.Fatalf("pool size = %d, want 3", n)
	}
	for _, o := range orders {
		got, _ := h.engine.GetOrder(context.Background(), o.ID)
		if got.Status != domain.OrderAwaitingRoute {
			t.Fatalf("order %s status = %s, want awaiting_route", o.ID, got.Status)
		}
	}

	h.engine.provider = distance.NewHaversineProvider()
	h.assembleOne(t)
}

func TestCloseBatchUnknownSlot(t *testing.T) {
	h := newHarness(t, testPolicy(), nil)
	_, err := h.engine.CloseBatch(context.Background(), domain.TimeSlot("midnight"))
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCloseAllBatchesCoversEverySlot(t *testing.T) {
	h := newHarness(t, testPolicy(), nil)
	for _, slot := range []domain.TimeSlot{domain.SlotMorning, domain.SlotEvening} {
		for _, buyer := range []string{"a", "b"} {
			req := orderAt(string(slot)+buyer, near(0, 0), near(1, 1))
			req.TimeSlot = string(slot)
			h.submit(t, req)
		}
	}

	n, err := h.engine.CloseAllBatches(context.Background())
	if err != nil {
		t.Fatalf("close all: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 routes, got %d", n)
	}
}

func TestCloseBatchNeverAssemblesAnOrderTwice(t *testing.T) {
	h := newHarness(t, testPolicy(), nil)
	ctx := context.Background()
	h.submitNearby(t, 12)

	var wg sync.WaitGroup
	errs := make(chan error, 64)

	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 3; k++ {
				if _, err := h.engine.CloseBatch(ctx, domain.SlotMorning); err != nil {
					errs <- fmt.Errorf("close batch: %w", err)
				}
			}
		}()
	}
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for k := 0; k < 3; k++ {
				req := orderAt(fmt.Sprintf("late-%d-%d", g, k), near(g, k), near(g, k+1))
				if _, err := h.engine.Submit(ctx, req); err != nil {
					errs <- fmt.Errorf("submit: %w", err)
				}
			}
		}(g)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.clock.Advance(16 * time.Minute)
		for k := 0; k < 3; k++ {
			if _, err := h.engine.SweepStale(ctx); err != nil {
				errs <- fmt.Errorf("sweep stale: %w", err)
			}
		}
	}()

	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent dispatch: %v", err)
	}

	owner := make(map[string]string)
	for _, re := range h.engine.routeEntries() {
		re.mu.Lock()
		r := re.route.Clone()
		re.mu.Unlock()
		if r.Status == domain.RouteAbandoned {
			continue
		}
		if err := r.Validate(); err != nil {
			t.Fatalf("route %s: %v", r.ID, err)
		}
		for _, id := range r.OrderIDs() {
			if prev, ok := owner[id]; ok {
				t.Fatalf("order %s is on routes %s and %s", id, prev, r.ID)
			}
			owner[id] = r.ID
		}
	}

	pool := h.engine.pools[domain.SlotMorning]
	pool.mu.Lock()
	pooled := make(map[string]int)
	for _, id := range pool.pending {
		pooled[id]++
	}
	pool.mu.Unlock()

	h.engine.ordersMu.RLock()
	orders := make([]domain.Order, 0, len(h.engine.orders))
	for _, oe := range h.engine.orders {
		oe.mu.Lock()
		orders = append(orders, oe.order)
		oe.mu.Unlock()
	}
	h.engine.ordersMu.RUnlock()

	if len(orders) != 24 {
		t.Fatalf("engine holds %d orders, want 24", len(orders))
	}
	for _, o := range orders {
		switch o.Status {
		case domain.OrderRouted:
			if owner[o.ID] != o.RouteID {
				t.Fatalf("order %s routed to %s but listed on %q", o.ID, o.RouteID, owner[o.ID])
			}
			if pooled[o.ID] != 0 {
				t.Fatalf("routed order %s is still pooled", o.ID)
			}
		case domain.OrderAwaitingRoute:
			if r, ok := owner[o.ID]; ok {
				t.Fatalf("awaiting order %s is on route %s", o.ID, r)
			}
			if pooled[o.ID] != 1 {
				t.Fatalf("awaiting order %s pooled %d times, want 1", o.ID, pooled[o.ID])
			}
		default:
			t.Fatalf("order %s has status %s", o.ID, o.Status)
		}
	}
	for id := range owner {
		found := false
		for _, o := range orders {
			if o.ID == id {
				found = o.Status == domain.OrderRouted
				break
			}
		}
		if !found {
			t.Fatalf("route order %s is not routed", id)
		}
	}
}
