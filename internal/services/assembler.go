package services

import (
	"context"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/platform/obs"
	"delivery-dispatch-service/internal/ports"
	"errors"
	"fmt"
	"time"
)

type builtRoute struct {
	cluster []domain.Order
	plan    stopPlan
}

// CloseBatch turns the slot's pending orders into available routes.
//
// Clusters smaller than MinOrders go back to the pool unless their seed has
// waited MaxWait, so no order is ever dropped. Distances are fetched without
// holding any lock; if a lookup fails, every order of the batch returns to
// the pool and the error is reported.
func (e *Engine) CloseBatch(ctx context.Context, slot domain.TimeSlot) (_ []domain.Route, err error) {
	defer obs.Time(ctx, "assembler.CloseBatch")(&err)

	pool, ok := e.pools[slot]
	if !ok {
		return nil, fmt.Errorf("close batch: %w", invalid("unknown time slot %q", slot))
	}

	ids := pool.drain()
	if len(ids) == 0 {
		return nil, nil
	}

	snapshot, _ := e.orderSnapshot(ids)
	orders := make([]domain.Order, 0, len(snapshot))
	for _, id := range ids {
		o, ok := snapshot[id]
		if ok && o.Status == domain.OrderAwaitingRoute {
			orders = append(orders, o)
		}
	}

	now := e.now()
	var (
		ready   [][]domain.Order
		waiting []string
	)
	for _, c := range clusterOrders(orders, e.policy.MaxOrders, e.policy.ClusterRadiusMeters) {
		if len(c) >= e.policy.MinOrders || now.Sub(c[0].QueuedAt) >= e.policy.MaxWait {
			ready = append(ready, c)
			continue
		}
		for _, o := range c {
			waiting = append(waiting, o.ID)
		}
	}

	built := make([]builtRoute, 0, len(ready))
	for _, c := range ready {
		points := make([]domain.Coordinates, 0, 2*len(c))
		for _, o := range c {
			points = append(points, o.Pickup.Coordinates, o.Dropoff.Coordinates)
		}

		dist, err := e.fetchPairwise(ctx, points)
		if err == nil {
			var plan stopPlan
			plan, err = sequenceStops(c, dist)
			if err == nil {
				built = append(built, builtRoute{cluster: c, plan: plan})
				continue
			}
		}

		requeue := make([]string, 0, len(orders))
		for _, o := range orders {
			requeue = append(requeue, o.ID)
		}
		pool.add(requeue...)
		return nil, fmt.Errorf("close batch %s: %w", slot, err)
	}

	if len(waiting) > 0 {
		pool.add(waiting...)
	}

	colours := pool.nextColours(len(built))
	routes := make([]domain.Route, 0, len(built))
	for i, b := range built {
		r, err := e.commitRoute(ctx, slot, colours[i], b, now)
		if err != nil {
			// Validation failures indicate a sequencing bug; keep the orders.
			e.log.ErrorContext(ctx, "discarding invalid route", "slot", slot, "err", err)
			ids := make([]string, 0, len(b.cluster))
			for _, o := range b.cluster {
				ids = append(ids, o.ID)
			}
			pool.add(ids...)
			continue
		}
		routes = append(routes, r)
	}

	for _, r := range routes {
		e.publish(ctx, routeEvent(ports.EventRouteAvailable, r, now))
	}

	e.log.InfoContext(ctx, "batch closed", "slot", slot, "routes", len(routes), "waiting", len(waiting))
	return routes, nil
}

// commitRoute builds the route from its plan, marks its orders routed and
// registers it as available.
func (e *Engine) commitRoute(ctx context.Context, slot domain.TimeSlot, colour domain.Colour, b builtRoute, now time.Time) (domain.Route, error) {
	r := domain.Route{
		ID:             e.newID(),
		TimeSlot:       slot,
		Colour:         colour,
		Status:         domain.RouteAssembling,
		CreatedAt:      now,
		AvailableSince: now,
		OfferedCount:   1,
	}

	r.Stops = make([]domain.Stop, 0, len(b.plan.stops))
	for i, ps := range b.plan.stops {
		r.Stops = append(r.Stops, domain.Stop{
			ID:            e.newID(),
			RouteID:       r.ID,
			OrderID:       ps.order.ID,
			Kind:          ps.kind,
			SequenceIndex: i,
			Status:        domain.StopPending,
			Location:      ps.location,
		})
	}

	var tips domain.Cents
	for _, o := range b.cluster {
		tips += o.Tip
	}
	r.Totals = domain.RouteTotals{
		BasePay:                  e.policy.BasePerOrder * domain.Cents(len(b.cluster)),
		MileagePay:               domain.MileagePay(b.plan.totalDistanceMeters, e.policy.MileageRate),
		TipsPool:                 tips,
		TotalDistanceMeters:      b.plan.totalDistanceMeters,
		EstimatedDurationMinutes: (b.plan.totalDurationSeconds + 59) / 60,
	}

	if err := r.Validate(); err != nil {
		return domain.Route{}, fmt.Errorf("commit route: %w", errors.Join(domain.ErrDataIntegrity, err))
	}
	if err := r.Transition(domain.RouteAvailable); err != nil {
		return domain.Route{}, fmt.Errorf("commit route: %w", err)
	}

	routed := make([]domain.Order, 0, len(b.cluster))
	for _, o := range b.cluster {
		oe, ok := e.order(o.ID)
		if !ok {
			continue
		}
		oe.mu.Lock()
		oe.order.Status = domain.OrderRouted
		oe.order.RouteID = r.ID
		oe.order.UpdatedAt = now
		routed = append(routed, oe.order)
		oe.mu.Unlock()
	}

	// The journal must know the route before a claim can reach it.
	e.saveRoute(ctx, r)
	for _, o := range routed {
		e.saveOrder(ctx, o)
	}

	e.routesMu.Lock()
	e.routes[r.ID] = &routeEntry{route: r.Clone()}
	e.routesMu.Unlock()

	return r, nil
}

// CloseAllBatches closes every slot and joins the errors.
func (e *Engine) CloseAllBatches(ctx context.Context) (int, error) {
	var (
		total int
		errs  []error
	)
	for _, slot := range domain.AllSlots() {
		routes, err := e.CloseBatch(ctx, slot)
		if err != nil {
			errs = append(errs, err)
		}
		total += len(routes)
	}
	return total, errors.Join(errs...)
}
