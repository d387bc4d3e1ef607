package services

import (
	"context"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/platform/obs"
	"fmt"
	"sort"
)

// Restore rebuilds the engine from the journal. It must run before the
// engine serves any request.
func (e *Engine) Restore(ctx context.Context) (err error) {
	defer obs.Time(ctx, "engine.Restore")(&err)

	if e.journal == nil {
		return nil
	}

	snap, err := e.journal.Load(ctx)
	if err != nil {
		return fmt.Errorf("restore: %w", err)
	}

	now := e.now()

	earnings := make(map[string]domain.EarningsRecord, len(snap.Earnings))
	for _, rec := range snap.Earnings {
		earnings[rec.RouteID] = rec
	}

	routes := make(map[string]domain.Route, len(snap.Routes))
	routesPerSlot := make(map[domain.TimeSlot]int)
	e.routesMu.Lock()
	for _, r := range snap.Routes {
		entry := &routeEntry{route: r.Clone()}
		if rec, ok := earnings[r.ID]; ok {
			c := rec.Clone()
			entry.earnings = &c
		}
		e.routes[r.ID] = entry
		routes[r.ID] = r
		routesPerSlot[r.TimeSlot]++
	}
	e.routesMu.Unlock()

	for slot, n := range routesPerSlot {
		if p, ok := e.pools[slot]; ok {
			p.mu.Lock()
			p.colourSeq = n
			p.mu.Unlock()
		}
	}

	var requeue []domain.Order
	e.ordersMu.Lock()
	for _, o := range snap.Orders {
		if o.Status == domain.OrderRouted {
			if r, ok := routes[o.RouteID]; !ok || r.Status == domain.RouteAbandoned {
				o.Status = domain.OrderAwaitingRoute
				o.RouteID = ""
				o.UpdatedAt = now
				e.saveOrder(ctx, o)
			}
		}
		if o.Status == domain.OrderAwaitingRoute {
			requeue = append(requeue, o)
		}
		e.orders[o.ID] = &orderEntry{order: o}
	}
	e.ordersMu.Unlock()

	sort.Slice(requeue, func(i, j int) bool { return orderLess(requeue[i], requeue[j]) })
	for _, o := range requeue {
		if p, ok := e.pools[o.TimeSlot]; ok {
			p.add(o.ID)
		}
	}

	e.sessionsMu.Lock()
	for _, s := range snap.Sessions {
		if s.CurrentRouteID != "" {
			r, ok := routes[s.CurrentRouteID]
			if !ok || r.ClaimedBy != s.DriverID || (r.Status != domain.RouteClaimed && r.Status != domain.RouteActive) {
				e.log.WarnContext(ctx, "clearing stale session route", "driver_id", s.DriverID, "route_id", s.CurrentRouteID)
				s.CurrentRouteID = ""
				e.saveSession(ctx, s)
			}
		}
		e.sessions[s.DriverID] = &sessionEntry{session: s}
	}
	e.sessionsMu.Unlock()

	// A crash between completing a route and writing its earnings leaves
	// the record missing; it is a pure function of the stored state.
	for _, re := range e.routeEntries() {
		re.mu.Lock()
		if re.route.Status != domain.RouteCompleted || re.earnings != nil {
			re.mu.Unlock()
			continue
		}
		orders, _ := e.orderSnapshot(re.route.OrderIDs())
		rec, err := CalculateEarnings(re.route, orders, e.policy)
		if err != nil {
			re.mu.Unlock()
			e.log.ErrorContext(ctx, "recompute earnings failed", "route_id", re.route.ID, "err", err)
			continue
		}
		re.earnings = &rec
		re.mu.Unlock()
		e.saveEarnings(ctx, rec)
	}

	e.log.InfoContext(ctx, "engine restored",
		"orders", len(snap.Orders), "routes", len(snap.Routes), "sessions", len(snap.Sessions), "requeued", len(requeue))
	return nil
}
