package services

import (
	"delivery-dispatch-service/internal/domain"
	"sort"
)

// orderLess orders by queue time, then id, so every tie is broken the same way.
func orderLess(a, b domain.Order) bool {
	if !a.QueuedAt.Equal(b.QueuedAt) {
		return a.QueuedAt.Before(b.QueuedAt)
	}
	return a.ID < b.ID
}

// clusterOrders groups pending orders into route-sized clusters.
//
// Each cluster is seeded by the earliest-queued remaining order. Members are
// added greedily: the next one is the remaining order whose pickup is
// nearest (great-circle) to the last pickup added, among those within
// radiusMeters of the seed pickup. A cluster holds at most maxOrders orders
// and at most one large item. The first element of each cluster is its seed.
func clusterOrders(orders []domain.Order, maxOrders int, radiusMeters float64) [][]domain.Order {
	remaining := make([]domain.Order, len(orders))
	copy(remaining, orders)
	sort.Slice(remaining, func(i, j int) bool { return orderLess(remaining[i], remaining[j]) })

	var clusters [][]domain.Order
	for len(remaining) > 0 {
		seed := remaining[0]
		remaining = remaining[1:]

		cluster := []domain.Order{seed}
		hasLarge := seed.Large
		last := seed

		for len(cluster) < maxOrders {
			best := -1
			bestDist := 0.0
			for i, c := range remaining {
				if hasLarge && c.Large {
					continue
				}
				if domain.GreatCircleMeters(seed.Pickup.Coordinates, c.Pickup.Coordinates) > radiusMeters {
					continue
				}

				d := domain.GreatCircleMeters(last.Pickup.Coordinates, c.Pickup.Coordinates)
				// remaining is sorted, so the first of equally distant candidates wins the tie.
				if best == -1 || d < bestDist {
					best, bestDist = i, d
				}
			}
			if best == -1 {
				break
			}

			next := remaining[best]
			remaining = append(remaining[:best], remaining[best+1:]...)
			cluster = append(cluster, next)
			hasLarge = hasLarge || next.Large
			last = next
		}

		clusters = append(clusters, cluster)
	}

	return clusters
}
