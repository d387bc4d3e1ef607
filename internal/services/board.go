package services

import (
	"context"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/platform/obs"
	"delivery-dispatch-service/internal/ports"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ListAvailable returns the routes a driver can claim in a slot, oldest
// first. An empty slot falls back to the slot selected in the driver's
// session; if neither is set, every slot is listed.
func (e *Engine) ListAvailable(ctx context.Context, driverID, slot string) (_ []domain.Route, err error) {
	defer obs.Time(ctx, "board.ListAvailable")(&err)

	se, ok := e.session(driverID)
	if !ok {
		return nil, fmt.Errorf("list available routes: driver %s: %w", driverID, domain.ErrDriverNotFound)
	}

	var ts domain.TimeSlot
	if s := strings.TrimSpace(slot); s != "" {
		ts, err = domain.ParseTimeSlot(s)
		if err != nil {
			return nil, fmt.Errorf("list available routes: %w", invalid("%v", err))
		}
	} else {
		se.mu.Lock()
		ts = se.session.TimeSlot
		se.mu.Unlock()
	}

	var out []domain.Route
	for _, re := range e.routeEntries() {
		re.mu.Lock()
		if re.route.Status == domain.RouteAvailable && (ts == "" || re.route.TimeSlot == ts) {
			out = append(out, re.route.Clone())
		}
		re.mu.Unlock()
	}

	// Oldest route first; a re-offered route keeps its place.
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

// Claim gives an available route to an online driver without a route.
// Exactly one of any number of concurrent claims on a route succeeds.
func (e *Engine) Claim(ctx context.Context, routeID, driverID string) (_ domain.Route, err error) {
	defer obs.Time(ctx, "board.Claim")(&err)

	se, ok := e.session(driverID)
	if !ok {
		return domain.Route{}, fmt.Errorf("claim route %s: driver %s: %w", routeID, driverID, domain.ErrDriverNotFound)
	}
	re, ok := e.route(routeID)
	if !ok {
		return domain.Route{}, fmt.Errorf("claim route %s: %w", routeID, domain.ErrRouteNotFound)
	}

	se.mu.Lock()
	re.mu.Lock()

	unlock := func() {
		re.mu.Unlock()
		se.mu.Unlock()
	}

	switch {
	case se.session.Status != domain.DriverOnline:
		unlock()
		return domain.Route{}, fmt.Errorf("claim route %s: driver %s: %w", routeID, driverID, domain.ErrDriverOffline)
	case re.route.Status != domain.RouteAvailable:
		unlock()
		return domain.Route{}, fmt.Errorf("claim route %s: %w", routeID, domain.ErrRouteAlreadyClaimed)
	case se.session.CurrentRouteID != "":
		unlock()
		return domain.Route{}, fmt.Errorf("claim route %s: driver %s holds %s: %w",
			routeID, driverID, se.session.CurrentRouteID, domain.ErrDriverAlreadyOnRoute)
	}

	now := e.now()

	// Another instance sharing the database may have taken the route.
	if e.journal != nil {
		if err := e.journal.ClaimRoute(context.WithoutCancel(ctx), routeID, driverID, now); err != nil {
			unlock()
			if errors.Is(err, domain.ErrRouteAlreadyClaimed) {
				return domain.Route{}, fmt.Errorf("claim route %s: %w", routeID, err)
			}
			return domain.Route{}, fmt.Errorf("claim route %s: journal: %w", routeID, err)
		}
	}

	r := &re.route
	if err := r.Transition(domain.RouteClaimed); err != nil {
		unlock()
		return domain.Route{}, fmt.Errorf("claim route %s: %w", routeID, err)
	}
	r.ClaimedBy = driverID
	r.ClaimedAt = &now
	if err := r.Transition(domain.RouteActive); err != nil {
		unlock()
		return domain.Route{}, fmt.Errorf("claim route %s: %w", routeID, err)
	}
	se.session.CurrentRouteID = routeID

	// Journal under the locks so writes for one route land in order.
	claimed := r.Clone()
	e.saveRoute(ctx, claimed)
	e.saveSession(ctx, se.session)
	unlock()

	e.publish(ctx, routeEvent(ports.EventRouteClaimed, claimed, now))

	e.log.InfoContext(ctx, "route claimed", "route_id", routeID, "driver_id", driverID, "slot", claimed.TimeSlot)
	return claimed, nil
}

// GetRoute returns a copy of the route.
func (e *Engine) GetRoute(ctx context.Context, routeID string) (domain.Route, error) {
	re, ok := e.route(routeID)
	if !ok {
		return domain.Route{}, fmt.Errorf("get route %s: %w", routeID, domain.ErrRouteNotFound)
	}
	re.mu.Lock()
	defer re.mu.Unlock()
	return re.route.Clone(), nil
}
