package services

import (
	"context"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/ports"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

func TestClaimConcurrentOnlyOneWins(t *testing.T) {
	h := newHarness(t, testPolicy(), nil)
	h.submitNearby(t, 3)
	r := h.assembleOne(t)

	const drivers = 16
	for i := 0; i < drivers; i++ {
		h.online(t, fmt.Sprintf("driver-%d", i))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		wins    []string
		lost    int
		unknown []error
	)
	for i := 0; i < drivers; i++ {
		driverID := fmt.Sprintf("driver-%d", i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.engine.Claim(context.Background(), r.ID, driverID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins = append(wins, driverID)
			case errors.Is(err, domain.ErrRouteAlreadyClaimed):
				lost++
			default:
				unknown = append(unknown, err)
			}
		}()
	}
	wg.Wait()

	if len(unknown) > 0 {
		t.Fatalf("unexpected errors: %v", unknown)
	}
	if len(wins) != 1 || lost != drivers-1 {
		t.Fatalf("wins=%v lost=%d, want exactly one winner", wins, lost)
	}
	if h.journal.claims != 1 {
		t.Fatalf("journal claims = %d, want 1", h.journal.claims)
	}

	got, _ := h.engine.GetRoute(context.Background(), r.ID)
	if got.Status != domain.RouteActive || got.ClaimedBy != wins[0] || got.ClaimedAt == nil {
		t.Fatalf("route after claim: status=%s claimedBy=%q", got.Status, got.ClaimedBy)
	}
	s, _ := h.engine.GetSession(context.Background(), wins[0])
	if s.CurrentRouteID != r.ID {
		t.Fatalf("session route = %q, want %q", s.CurrentRouteID, r.ID)
	}
	if n := h.publisher.count(ports.EventRouteClaimed); n != 1 {
		t.Fatalf("route.claimed events = %d, want 1", n)
	}
}

func TestClaimErrors(t *testing.T) {
	h := newHarness(t, testPolicy(), nil)
	ctx := context.Background()

	h.submitNearby(t, 2)
	first := h.assembleOne(t)
	h.submitNearby(t, 2)
	second := h.assembleOne(t)

	h.online(t, "driver-1")
	h.online(t, "driver-2")
	h.online(t, "driver-3")
	if _, err := h.engine.GoOffline(ctx, "driver-3"); err != nil {
		t.Fatalf("go offline: %v", err)
	}

	if _, err := h.engine.Claim(ctx, first.ID, "driver-1"); err != nil {
		t.Fatalf("claim: %v", err)
	}

	tests := []struct {
		name    string
		routeID string
		driver  string
		want    error
	}{
		{"unknown driver", second.ID, "ghost", domain.ErrDriverNotFound},
		{"unknown route", "missing", "driver-2", domain.ErrRouteNotFound},
		{"offline driver", second.ID, "driver-3", domain.ErrDriverOffline},
		{"route taken", first.ID, "driver-2", domain.ErrRouteAlreadyClaimed},
		{"driver busy", second.ID, "driver-1", domain.ErrDriverAlreadyOnRoute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.engine.Claim(ctx, tt.routeID, tt.driver)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	got, _ := h.engine.GetRoute(ctx, second.ID)
	if got.Status != domain.RouteAvailable {
		t.Fatalf("failed claims must leave the route available, got %s", got.Status)
	}
}

func TestListAvailableOrderingAndSlot(t *testing.T) {
	h := newHarness(t, testPolicy(), nil)
	ctx := context.Background()

	h.submitNearby(t, 2)
	older := h.assembleOne(t)
	h.clock.Advance(time.Minute)
	h.submitNearby(t, 2)
	newer := h.assembleOne(t)

	evening := orderAt("late", near(0, 0), near(0, 1))
	evening.TimeSlot = string(domain.SlotEvening)
	h.submit(t, evening)
	h.submit(t, func() OrderRequest { r := evening; r.BuyerID = "late-2"; return r }())
	if _, err := h.engine.CloseBatch(ctx, domain.SlotEvening); err != nil {
		t.Fatalf("close evening: %v", err)
	}

	if _, err := h.engine.ListAvailable(ctx, "ghost", ""); !errors.Is(err, domain.ErrDriverNotFound) {
		t.Fatalf("expected driver not found, got %v", err)
	}

	h.online(t, "driver-1")

	routes, err := h.engine.ListAvailable(ctx, "driver-1", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(routes) != 2 || routes[0].ID != older.ID || routes[1].ID != newer.ID {
		t.Fatalf("expected [%s %s] from the session slot, got %d routes", older.ID, newer.ID, len(routes))
	}

	routes, err = h.engine.ListAvailable(ctx, "driver-1", string(domain.SlotEvening))
	if err != nil {
		t.Fatalf("list evening: %v", err)
	}
	if len(routes) != 1 || routes[0].TimeSlot != domain.SlotEvening {
		t.Fatalf("expected one evening route, got %d", len(routes))
	}

	if _, err := h.engine.Claim(ctx, older.ID, "driver-1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	routes, _ = h.engine.ListAvailable(ctx, "driver-1", string(domain.SlotMorning))
	if len(routes) != 1 || routes[0].ID != newer.ID {
		t.Fatalf("claimed route must leave the board")
	}

	if _, err := h.engine.ListAvailable(ctx, "driver-1", "noon"); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestListAvailableKeepsReofferedRouteInCreationOrder(t *testing.T) {
	h := newHarness(t, testPolicy(), nil)
	ctx := context.Background()

	h.submitNearby(t, 2)
	older := h.assembleOne(t)
	h.clock.Advance(time.Minute)
	h.submitNearby(t, 2)
	newer := h.assembleOne(t)

	h.online(t, "driver-1")
	if _, err := h.engine.Claim(ctx, older.ID, "driver-1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := h.engine.CompleteStop(ctx, older.ID, older.Stops[0].ID); err != nil {
		t.Fatalf("complete pickup: %v", err)
	}
	if _, err := h.engine.GoOffline(ctx, "driver-1"); err != nil {
		t.Fatalf("go offline: %v", err)
	}
	h.clock.Advance(h.engine.Policy().AbandonAfter + time.Minute)
	if n, err := h.engine.SweepAbandoned(ctx); err != nil || n != 1 {
		t.Fatalf("sweep abandoned = %d, %v", n, err)
	}

	h.online(t, "driver-2")
	routes, err := h.engine.ListAvailable(ctx, "driver-2", "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(routes) != 2 || routes[0].ID != older.ID || routes[1].ID != newer.ID {
		t.Fatalf("expected [%s %s], got %d routes", older.ID, newer.ID, len(routes))
	}
	if routes[0].CompletedStops() != 1 {
		t.Fatalf("re-offered route lost its completed pickup")
	}
}
