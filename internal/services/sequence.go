package services

import (
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/ports"
	"errors"
	"fmt"
)

type plannedStop struct {
	order    domain.Order
	kind     domain.StopKind
	location domain.Location
}

type stopPlan struct {
	stops                []plannedStop
	totalDistanceMeters  int
	totalDurationSeconds int
}

// stopBefore breaks distance ties: earlier-queued order, pickup before
// dropoff, then order id.
func stopBefore(a, b plannedStop) bool {
	if !a.order.QueuedAt.Equal(b.order.QueuedAt) {
		return a.order.QueuedAt.Before(b.order.QueuedAt)
	}
	if a.kind != b.kind {
		return a.kind == domain.StopPickup
	}
	return a.order.ID < b.order.ID
}

// sequenceStops orders the pickups and dropoffs of a cluster with a greedy
// nearest-neighbour walk.
//
// The walk starts at the seed order's pickup and repeatedly moves to the
// nearest eligible stop by provider distance. A pickup is always eligible; a
// dropoff only after its pickup. The result is deterministic but not
// globally optimal.
func sequenceStops(cluster []domain.Order, dist pairwise) (stopPlan, error) {
	if len(cluster) == 0 {
		return stopPlan{}, errors.New("sequence stops: cluster must not be empty")
	}

	pending := make([]plannedStop, 0, 2*len(cluster)-1)
	for i, o := range cluster {
		if i > 0 {
			pending = append(pending, plannedStop{order: o, kind: domain.StopPickup, location: o.Pickup})
		}
		pending = append(pending, plannedStop{order: o, kind: domain.StopDropoff, location: o.Dropoff})
	}

	seed := cluster[0]
	plan := stopPlan{stops: make([]plannedStop, 0, 2*len(cluster))}
	plan.stops = append(plan.stops, plannedStop{order: seed, kind: domain.StopPickup, location: seed.Pickup})
	picked := map[string]bool{seed.ID: true}
	current := seed.Pickup.Coordinates

	for len(pending) > 0 {
		best := -1
		var bestResult ports.DistanceResult

		// Select next stop by minimum travel distance (greedy step).
		for i, s := range pending {
			if s.kind == domain.StopDropoff && !picked[s.order.ID] {
				continue
			}

			r, ok := dist.get(current, s.location.Coordinates)
			if !ok {
				return stopPlan{}, fmt.Errorf("sequence stops: missing distance from %s to %s", current.Key(), s.location.Key())
			}

			if best == -1 ||
				r.DistanceMeters < bestResult.DistanceMeters ||
				(r.DistanceMeters == bestResult.DistanceMeters && stopBefore(s, pending[best])) {
				best, bestResult = i, r
			}
		}

		if best == -1 {
			return stopPlan{}, errors.New("sequence stops: no eligible stop")
		}

		next := pending[best]
		pending = append(pending[:best], pending[best+1:]...)

		plan.stops = append(plan.stops, next)
		plan.totalDistanceMeters += bestResult.DistanceMeters
		plan.totalDurationSeconds += bestResult.DurationSeconds
		if next.kind == domain.StopPickup {
			picked[next.order.ID] = true
		}
		current = next.location.Coordinates
	}

	return plan, nil
}
