package services

import (
	"context"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/platform/obs"
	"delivery-dispatch-service/internal/ports"
	"fmt"
	"time"
)

const reasonRequeued = "requeued"

// SweepStale withdraws available routes nobody claimed within StaleAfter.
// Untouched routes are abandoned and their orders go back to the pool to be
// re-clustered; routes with completed stops cannot be split and are
// re-offered instead. It returns the number of routes handled.
func (e *Engine) SweepStale(ctx context.Context) (_ int, err error) {
	defer obs.Time(ctx, "sweeper.SweepStale")(&err)

	if e.policy.StaleAfter <= 0 {
		return 0, nil
	}

	n := 0
	for _, re := range e.routeEntries() {
		if err := ctx.Err(); err != nil {
			return n, fmt.Errorf("sweep stale: %w", err)
		}

		now := e.now()
		re.mu.Lock()
		r := &re.route
		if r.Status != domain.RouteAvailable || now.Sub(r.AvailableSince) < e.policy.StaleAfter {
			re.mu.Unlock()
			continue
		}

		if r.CompletedStops() > 0 {
			r.AvailableSince = now
			r.OfferedCount++
			out := r.Clone()
			e.saveRoute(ctx, out)
			re.mu.Unlock()

			e.publish(ctx, routeEvent(ports.EventRouteReoffered, out, now))
			e.log.InfoContext(ctx, "stale route re-offered", "route_id", out.ID, "offered", out.OfferedCount)
			n++
			continue
		}

		if err := r.Transition(domain.RouteAbandoned); err != nil {
			re.mu.Unlock()
			e.log.ErrorContext(ctx, "stale route transition", "route_id", r.ID, "err", err)
			continue
		}
		r.AbandonReason = reasonRequeued
		released := e.releaseOrders(r.ID, r.OrderIDs(), now)
		out := r.Clone()
		e.saveRoute(ctx, out)
		for _, o := range released {
			e.saveOrder(ctx, o)
		}
		re.mu.Unlock()

		ids := make([]string, 0, len(released))
		for _, o := range released {
			ids = append(ids, o.ID)
		}
		e.pools[out.TimeSlot].add(ids...)

		e.publish(ctx, routeEvent(ports.EventRouteRequeued, out, now))
		e.log.InfoContext(ctx, "stale route requeued", "route_id", out.ID, "slot", out.TimeSlot, "orders", len(ids))
		n++
	}
	return n, nil
}

// releaseOrders puts the route's routed orders back to awaiting_route.
// The caller holds the route lock; QueuedAt is kept so the orders keep
// their place in the queue.
func (e *Engine) releaseOrders(routeID string, ids []string, now time.Time) []domain.Order {
	var out []domain.Order
	for _, id := range ids {
		oe, ok := e.order(id)
		if !ok {
			continue
		}
		oe.mu.Lock()
		if oe.order.Status == domain.OrderRouted && oe.order.RouteID == routeID {
			oe.order.Status = domain.OrderAwaitingRoute
			oe.order.RouteID = ""
			oe.order.UpdatedAt = now
			out = append(out, oe.order)
		}
		oe.mu.Unlock()
	}
	return out
}

// SweepAbandoned takes routes back from drivers who have been offline, by
// logout or lapsed heartbeat, for longer than AbandonAfter. The route keeps
// its completed stops and becomes available again. It returns the number of
// routes reverted.
func (e *Engine) SweepAbandoned(ctx context.Context) (_ int, err error) {
	defer obs.Time(ctx, "sweeper.SweepAbandoned")(&err)

	n := 0
	for _, se := range e.sessionEntries() {
		if err := ctx.Err(); err != nil {
			return n, fmt.Errorf("sweep abandoned: %w", err)
		}

		now := e.now()
		se.mu.Lock()
		s := &se.session
		if s.CurrentRouteID == "" || s.OfflineFor(now, e.policy.HeartbeatTimeout) <= e.policy.AbandonAfter {
			se.mu.Unlock()
			continue
		}

		routeID := s.CurrentRouteID
		s.CurrentRouteID = ""
		session := *s

		var (
			out      domain.Route
			reverted bool
		)
		if re, ok := e.route(routeID); ok {
			re.mu.Lock()
			r := &re.route
			if r.ClaimedBy == s.DriverID && (r.Status == domain.RouteClaimed || r.Status == domain.RouteActive) {
				if err := r.Transition(domain.RouteAvailable); err == nil {
					r.ClaimedBy = ""
					r.ClaimedAt = nil
					r.AvailableSince = now
					r.OfferedCount++
					out = r.Clone()
					reverted = true
					e.saveRoute(ctx, out)
				}
			}
			re.mu.Unlock()
		}
		e.saveSession(ctx, session)
		se.mu.Unlock()

		if !reverted {
			e.log.WarnContext(ctx, "cleared dangling route from session", "driver_id", session.DriverID, "route_id", routeID)
			continue
		}

		ev := routeEvent(ports.EventRouteReoffered, out, now)
		ev.DriverID = session.DriverID
		e.publish(ctx, ev)
		e.log.WarnContext(ctx, "route abandoned by driver",
			"route_id", out.ID, "driver_id", session.DriverID,
			"completed_stops", out.CompletedStops(), "pending_stops", out.PendingStops())
		n++
	}
	return n, nil
}
