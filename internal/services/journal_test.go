package services

import (
	"context"
	"delivery-dispatch-service/internal/adapters/distance"
	"delivery-dispatch-service/internal/domain"
	"io"
	"log/slog"
	"sync"
	"testing"
)

// gatedJournal blocks the first SaveRoute matching hold until gate closes.
type gatedJournal struct {
	*memJournal
	hold    func(domain.Route) bool
	reached chan struct{}
	gate    chan struct{}
	once    sync.Once
}

func (j *gatedJournal) SaveRoute(ctx context.Context, r domain.Route) error {
	if j.hold != nil && j.hold(r) {
		stalled := false
		j.once.Do(func() { stalled = true })
		if stalled {
			close(j.reached)
			<-j.gate
		}
	}
	return j.memJournal.SaveRoute(ctx, r)
}

func TestJournalKeepsRouteWritesInOrder(t *testing.T) {
	h := newHarness(t, testPolicy(), nil)
	gj := &gatedJournal{
		memJournal: h.journal,
		reached:    make(chan struct{}),
		gate:       make(chan struct{}),
	}
	h.engine = NewEngine(testPolicy(), distance.NewHaversineProvider(),
		WithClock(h.clock.Now),
		WithIDGenerator(sequentialIDs()),
		WithJournal(gj),
		WithPublisher(h.publisher),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	ctx := context.Background()

	h.online(t, "driver-1")
	h.submitNearby(t, 2)
	route := h.assembleOne(t)
	pickup := route.Stops[0]
	if pickup.Kind != domain.StopPickup {
		t.Fatalf("first stop = %s, want pickup", pickup.Kind)
	}

	gj.hold = func(r domain.Route) bool {
		return r.ID == route.ID && r.Status == domain.RouteActive && r.CompletedStops() == 0
	}

	claimErr := make(chan error, 1)
	go func() {
		_, err := h.engine.Claim(ctx, route.ID, "driver-1")
		claimErr <- err
	}()
	<-gj.reached

	completeErr := make(chan error, 1)
	go func() {
		_, err := h.engine.CompleteStop(ctx, route.ID, pickup.ID)
		completeErr <- err
	}()
	close(gj.gate)

	if err := <-claimErr; err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := <-completeErr; err != nil {
		t.Fatalf("complete stop: %v", err)
	}

	h.journal.mu.Lock()
	journaled := h.journal.routes[route.ID]
	stored := journaled.Clone()
	h.journal.mu.Unlock()
	if stored.Stops[0].Status != domain.StopCompleted {
		t.Fatalf("journal pickup = %s, want completed", stored.Stops[0].Status)
	}

	restarted := NewEngine(testPolicy(), distance.NewHaversineProvider(),
		WithClock(h.clock.Now),
		WithJournal(h.journal),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	if err := restarted.Restore(ctx); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, err := restarted.GetRoute(ctx, route.ID)
	if err != nil {
		t.Fatalf("get route: %v", err)
	}
	if got.Status != domain.RouteActive || got.Stops[0].Status != domain.StopCompleted {
		t.Fatalf("after restore: status %s, pickup %s", got.Status, got.Stops[0].Status)
	}
}

func TestAssembledRouteIsClaimableInJournal(t *testing.T) {
	h := newHarness(t, testPolicy(), nil)
	ctx := context.Background()

	h.online(t, "driver-1")
	h.submitNearby(t, 2)
	route := h.assembleOne(t)

	h.journal.mu.Lock()
	_, stored := h.journal.routes[route.ID]
	h.journal.mu.Unlock()
	if !stored {
		t.Fatalf("route %s listed before it was journaled", route.ID)
	}

	if _, err := h.engine.Claim(ctx, route.ID, "driver-1"); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if h.journal.claims != 1 {
		t.Fatalf("journal claims = %d, want 1", h.journal.claims)
	}
}
