package services

import (
	"context"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/platform/obs"
	"delivery-dispatch-service/internal/ports"
	"errors"
	"fmt"
	"strings"
	"time"
)

const reasonPickupFailed = "pickup failed"

// stopChange applies a stop transition while the route and order are locked.
type stopChange func(r *domain.Route, s *domain.Stop, o *domain.Order, now time.Time) error

// stopResult collects everything to journal and publish once locks are released.
type stopResult struct {
	route    domain.Route
	order    *domain.Order
	session  *domain.DriverSession
	earnings *domain.EarningsRecord
	events   []ports.Event
}

// lockRoute locks the route together with the session of the driver holding
// it, honouring the session -> route lock order. The returned func unlocks both.
func (e *Engine) lockRoute(re *routeEntry) (*sessionEntry, func()) {
	for {
		re.mu.Lock()
		holder := re.route.ClaimedBy
		re.mu.Unlock()

		var se *sessionEntry
		if holder != "" {
			se, _ = e.session(holder)
		}
		if se != nil {
			se.mu.Lock()
		}
		re.mu.Lock()
		if re.route.ClaimedBy == holder {
			return se, func() {
				re.mu.Unlock()
				if se != nil {
					se.mu.Unlock()
				}
			}
		}
		re.mu.Unlock()
		if se != nil {
			se.mu.Unlock()
		}
	}
}

// CompleteStop records a successful pickup or dropoff. A dropoff needs its
// pickup completed first. Completing the last pending stop completes the
// route and computes its earnings.
func (e *Engine) CompleteStop(ctx context.Context, routeID, stopID string) (_ domain.Route, err error) {
	defer obs.Time(ctx, "tracker.CompleteStop")(&err)

	return e.updateStop(ctx, "complete stop", routeID, stopID, func(r *domain.Route, s *domain.Stop, o *domain.Order, now time.Time) error {
		if s.Kind == domain.StopDropoff {
			if p, ok := r.PairedStop(s); !ok || p.Status != domain.StopCompleted {
				return domain.ErrPickupNotCompleted
			}
		}

		s.Status = domain.StopCompleted
		s.CompletedAt = &now
		s.CompletedBy = r.ClaimedBy

		if s.Kind == domain.StopDropoff {
			o.Status = domain.OrderDelivered
			o.UpdatedAt = now
		}
		return nil
	})
}

// FailStop records a stop that could not be served. A failed pickup cancels
// the order and fails its dropoff; a failed dropoff returns the item.
func (e *Engine) FailStop(ctx context.Context, routeID, stopID, reason string) (_ domain.Route, err error) {
	defer obs.Time(ctx, "tracker.FailStop")(&err)

	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.Route{}, fmt.Errorf("fail stop %s: %w", stopID, invalid("reason is required"))
	}

	return e.updateStop(ctx, "fail stop", routeID, stopID, func(r *domain.Route, s *domain.Stop, o *domain.Order, now time.Time) error {
		paired, ok := r.PairedStop(s)
		if s.Kind == domain.StopDropoff && (!ok || paired.Status != domain.StopCompleted) {
			return domain.ErrPickupNotCompleted
		}

		s.Status = domain.StopFailed
		s.CompletedAt = &now
		s.CompletedBy = r.ClaimedBy
		s.FailReason = reason

		if s.Kind == domain.StopPickup {
			if ok && paired.Status == domain.StopPending {
				paired.Status = domain.StopFailed
				paired.CompletedAt = &now
				paired.CompletedBy = r.ClaimedBy
				paired.FailReason = reasonPickupFailed
			}
			o.Status = domain.OrderCancelled
		} else {
			o.Status = domain.OrderReturned
		}
		o.UpdatedAt = now
		return nil
	})
}

func (e *Engine) updateStop(ctx context.Context, op, routeID, stopID string, change stopChange) (domain.Route, error) {
	re, ok := e.route(routeID)
	if !ok {
		return domain.Route{}, fmt.Errorf("%s: route %s: %w", op, routeID, domain.ErrRouteNotFound)
	}

	se, unlock := e.lockRoute(re)
	res, err := e.applyStopChange(ctx, re, se, stopID, change)
	if res != nil {
		e.saveRoute(ctx, res.route)
		if res.order != nil {
			e.saveOrder(ctx, *res.order)
		}
		if res.session != nil {
			e.saveSession(ctx, *res.session)
		}
		if res.earnings != nil {
			e.saveEarnings(ctx, *res.earnings)
		}
	}
	unlock()

	if res != nil {
		e.publish(ctx, res.events...)
	}

	if err != nil {
		return domain.Route{}, fmt.Errorf("%s %s on route %s: %w", op, stopID, routeID, err)
	}
	return res.route, nil
}

// applyStopChange runs with the route (and holder session, if any) locked.
// A non-nil result is returned whenever state changed, even on error.
func (e *Engine) applyStopChange(ctx context.Context, re *routeEntry, se *sessionEntry, stopID string, change stopChange) (*stopResult, error) {
	r := &re.route
	if r.Status != domain.RouteActive {
		return nil, domain.ErrRouteNotActive
	}

	s, ok := r.FindStop(stopID)
	if !ok {
		return nil, domain.ErrStopNotFound
	}
	if s.Terminal() {
		return nil, domain.ErrStopNotPending
	}

	now := e.now()

	oe, ok := e.order(s.OrderID)
	if !ok {
		return e.abandonCorrupt(ctx, re, se, s.OrderID, now)
	}

	oe.mu.Lock()
	// Work on copies so a rejected change leaves no trace.
	draft := r.Clone()
	ds, _ := draft.FindStop(stopID)
	order := oe.order
	if err := change(&draft, ds, &order, now); err != nil {
		oe.mu.Unlock()
		return nil, err
	}
	oe.order = order
	oe.mu.Unlock()
	re.route = draft

	res := &stopResult{order: &order}

	if r.AllStopsTerminal() {
		snapshot, missing := e.orderSnapshot(r.OrderIDs())
		if len(missing) > 0 {
			abandoned, err := e.abandonCorrupt(ctx, re, se, missing[0], now)
			if abandoned != nil {
				abandoned.order = &order
			}
			return abandoned, err
		}

		if err := r.Transition(domain.RouteCompleted); err != nil {
			return nil, err
		}
		r.CompletedAt = &now

		if re.earnings == nil {
			rec, err := CalculateEarnings(*r, snapshot, e.policy)
			if err != nil {
				return nil, err
			}
			re.earnings = &rec
			out := rec.Clone()
			res.earnings = &out
		}

		if se != nil && se.session.CurrentRouteID == r.ID {
			se.session.CurrentRouteID = ""
			sess := se.session
			res.session = &sess
		}

		ev := routeEvent(ports.EventRouteCompleted, *r, now)
		completed := re.earnings.Clone()
		ev.Earnings = &completed
		res.events = append(res.events, ev)

		e.log.InfoContext(ctx, "route completed",
			"route_id", r.ID, "driver_id", r.ClaimedBy, "net_payout", re.earnings.NetPayout.String())
	}

	res.route = r.Clone()
	return res, nil
}

// abandonCorrupt withdraws a route that references an order the engine does
// not know. Its remaining orders stay routed for an operator to inspect.
func (e *Engine) abandonCorrupt(ctx context.Context, re *routeEntry, se *sessionEntry, orderID string, now time.Time) (*stopResult, error) {
	r := &re.route
	if err := r.Transition(domain.RouteAbandoned); err != nil {
		return nil, errors.Join(domain.ErrDataIntegrity, err)
	}
	r.AbandonReason = "unknown order " + orderID

	res := &stopResult{}
	if se != nil && se.session.CurrentRouteID == r.ID {
		se.session.CurrentRouteID = ""
		sess := se.session
		res.session = &sess
	}
	res.route = r.Clone()
	res.events = append(res.events, routeEvent(ports.EventRouteAbandoned, res.route, now))

	e.log.ErrorContext(ctx, "route abandoned: unknown order", "route_id", r.ID, "order_id", orderID)
	return res, fmt.Errorf("order %s: %w", orderID, domain.ErrDataIntegrity)
}
