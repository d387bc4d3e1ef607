package services

import (
	"context"
	"delivery-dispatch-service/internal/adapters/distance"
	"delivery-dispatch-service/internal/domain"
	"testing"
	"time"
)

func TestSequenceStopsGreedyWithPairing(t *testing.T) {
	p1 := domain.Coordinates{Lat: 1, Lon: 1}
	d1 := domain.Coordinates{Lat: 1, Lon: 2}
	p2 := domain.Coordinates{Lat: 2, Lon: 1}
	d2 := domain.Coordinates{Lat: 2, Lon: 2}

	queued := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	a := domain.Order{ID: "a", Pickup: domain.Location{Coordinates: p1}, Dropoff: domain.Location{Coordinates: d1}, QueuedAt: queued}
	b := domain.Order{ID: "b", Pickup: domain.Location{Coordinates: p2}, Dropoff: domain.Location{Coordinates: d2}, QueuedAt: queued.Add(time.Minute)}

	meters := map[[2]domain.Coordinates]int{
		{p1, d1}: 500, {p1, p2}: 100, {p1, d2}: 50,
		{d1, p2}: 300, {d1, d2}: 450, {p2, d2}: 200,
	}
	var pairs []distance.MockPair
	for k, m := range meters {
		pairs = append(pairs,
			distance.MockPair{From: k[0], To: k[1], Meters: m, Seconds: m / 10},
			distance.MockPair{From: k[1], To: k[0], Meters: m, Seconds: m / 10},
		)
	}
	// Directional override: leaving d2 towards d1 is cheap.
	pairs = append(pairs, distance.MockPair{From: d2, To: d1, Meters: 400, Seconds: 40})

	provider := distance.NewMockDistanceProvider(pairs)
	e := NewEngine(testPolicy(), provider)

	dist, err := e.fetchPairwise(context.Background(), []domain.Coordinates{p1, d1, p2, d2})
	if err != nil {
		t.Fatalf("fetch pairwise: %v", err)
	}

	plan, err := sequenceStops([]domain.Order{a, b}, dist)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// d2 is nearest from p1 but is not eligible before p2.
	want := []struct {
		order string
		kind  domain.StopKind
	}{
		{"a", domain.StopPickup},
		{"b", domain.StopPickup},
		{"b", domain.StopDropoff},
		{"a", domain.StopDropoff},
	}
	if len(plan.stops) != len(want) {
		t.Fatalf("expected %d stops, got %d", len(want), len(plan.stops))
	}
	for i, w := range want {
		got := plan.stops[i]
		if got.order.ID != w.order || got.kind != w.kind {
			t.Fatalf("stop %d = %s %s, want %s %s", i, got.order.ID, got.kind, w.order, w.kind)
		}
	}

	if plan.totalDistanceMeters != 700 {
		t.Fatalf("distance = %d, want 700", plan.totalDistanceMeters)
	}
	if plan.totalDurationSeconds != 70 {
		t.Fatalf("duration = %d, want 70", plan.totalDurationSeconds)
	}
}

func TestSequenceStopsTieBreaksPickupFirst(t *testing.T) {
	same := domain.Coordinates{Lat: 5, Lon: 5}
	queued := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)

	a := domain.Order{ID: "a", Pickup: domain.Location{Coordinates: same}, Dropoff: domain.Location{Coordinates: same}, QueuedAt: queued}
	b := domain.Order{ID: "b", Pickup: domain.Location{Coordinates: same}, Dropoff: domain.Location{Coordinates: same}, QueuedAt: queued}

	plan, err := sequenceStops([]domain.Order{a, b}, pairwise{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// All distances are zero, so pickups win ties before order ids are compared.
	got := []string{}
	for _, s := range plan.stops {
		got = append(got, s.order.ID+":"+string(s.kind))
	}
	want := []string{"a:pickup", "b:pickup", "a:dropoff", "b:dropoff"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sequence = %v, want %v", got, want)
		}
	}
}

func TestClusterOrdersRespectsRadius(t *testing.T) {
	queued := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	mk := func(id string, c domain.Coordinates) domain.Order {
		return domain.Order{ID: id, Pickup: domain.Location{Coordinates: c}, QueuedAt: queued}
	}

	orders := []domain.Order{
		mk("a", near(0, 0)),
		mk("far", domain.Coordinates{Lat: 38.5, Lon: -121.5}),
		mk("b", near(1, 0)),
	}

	clusters := clusterOrders(orders, domain.MaxOrdersPerRoute, 5*domain.MetersPerMile)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
	if len(clusters[0]) != 2 || clusters[0][0].ID != "a" || clusters[0][1].ID != "b" {
		t.Fatalf("unexpected first cluster: %+v", clusters[0])
	}
	if clusters[1][0].ID != "far" {
		t.Fatalf("expected far order alone, got %+v", clusters[1])
	}
}
