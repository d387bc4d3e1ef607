package services

import (
	"context"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/platform/obs"
	"fmt"
	"strings"
)

// OrderRequest is a completed checkout handed to the dispatch engine.
type OrderRequest struct {
	BuyerID           string
	SellerID          string
	Pickup            domain.Location
	Dropoff           domain.Location
	ItemCount         int
	ItemPrice         domain.Cents
	DeliveryFee       domain.FeeSplit
	DeliveryMethod    domain.DeliveryMethod
	SellerShippingFee domain.Cents
	Tip               domain.Cents
	Large             bool
	TimeSlot          string
}

// SlotClosedError reports a rejected slot together with the next one open.
type SlotClosedError struct {
	Window domain.SlotWindow
}

func (e *SlotClosedError) Error() string {
	when := "today"
	if e.Window.NextSlotTomorrow {
		when = "tomorrow"
	}
	return fmt.Sprintf("routes for %s closed at %s; next available slot is %s %s",
		e.Window.Slot, e.Window.ClosesAt.Format("3:04pm"), e.Window.NextSlot, when)
}

func (e *SlotClosedError) Unwrap() error { return domain.ErrSlotClosed }

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrValidation, fmt.Sprintf(format, args...))
}

func validateOrderRequest(req OrderRequest) (domain.TimeSlot, error) {
	switch {
	case strings.TrimSpace(req.BuyerID) == "":
		return "", invalid("buyer id is required")
	case strings.TrimSpace(req.SellerID) == "":
		return "", invalid("seller id is required")
	case domain.NormalizeAddress(req.Pickup.Address) == "":
		return "", invalid("pickup address is required")
	case domain.NormalizeAddress(req.Dropoff.Address) == "":
		return "", invalid("dropoff address is required")
	case req.ItemCount < 1:
		return "", invalid("item count must be at least 1")
	case req.ItemPrice <= 0:
		return "", invalid("item price must be positive")
	case req.Tip < 0:
		return "", invalid("tip must not be negative")
	case req.DeliveryFee.Buyer < 0 || req.DeliveryFee.Seller < 0 || req.DeliveryFee.Platform < 0:
		return "", invalid("delivery fee shares must not be negative")
	case req.SellerShippingFee < 0:
		return "", invalid("seller shipping fee must not be negative")
	case strings.TrimSpace(req.TimeSlot) == "":
		return "", invalid("time slot is required")
	}

	method := req.DeliveryMethod
	if method == "" {
		method = domain.DeliveryPlatform
	}
	if !method.Valid() {
		return "", invalid("unknown delivery method %q", req.DeliveryMethod)
	}
	if method == domain.DeliveryPlatform && req.SellerShippingFee != 0 {
		return "", invalid("seller shipping fee only applies to seller delivery")
	}

	slot, err := domain.ParseTimeSlot(strings.TrimSpace(req.TimeSlot))
	if err != nil {
		return "", invalid("%v", err)
	}
	return slot, nil
}

// resolveLocation fills in missing coordinates through the geocoder.
func (e *Engine) resolveLocation(ctx context.Context, field string, loc domain.Location) (domain.Location, error) {
	loc.Address = domain.NormalizeAddress(loc.Address)

	if !loc.IsZero() {
		if !loc.Valid() {
			return domain.Location{}, invalid("%s coordinates are out of range", field)
		}
		return loc, nil
	}

	if e.geocoder == nil {
		return domain.Location{}, invalid("%s coordinates are required", field)
	}

	c, err := e.geocoder.Geocode(ctx, loc.Address)
	if err != nil {
		return domain.Location{}, fmt.Errorf("geocode %s address: %w", field, err)
	}
	loc.Coordinates = c
	return loc, nil
}

// Submit validates a checkout, records the order and queues it for the
// slot's next batch.
func (e *Engine) Submit(ctx context.Context, req OrderRequest) (_ domain.Order, err error) {
	defer obs.Time(ctx, "intake.Submit")(&err)

	slot, err := validateOrderRequest(req)
	if err != nil {
		return domain.Order{}, fmt.Errorf("submit order: %w", err)
	}

	pickup, err := e.resolveLocation(ctx, "pickup", req.Pickup)
	if err != nil {
		return domain.Order{}, fmt.Errorf("submit order: %w", err)
	}
	dropoff, err := e.resolveLocation(ctx, "dropoff", req.Dropoff)
	if err != nil {
		return domain.Order{}, fmt.Errorf("submit order: %w", err)
	}

	now := e.now()
	if e.policy.EnforceSlotCutoff {
		if w := slot.Window(now); !w.Open {
			return domain.Order{}, fmt.Errorf("submit order: %w", &SlotClosedError{Window: w})
		}
	}

	method := req.DeliveryMethod
	if method == "" {
		method = domain.DeliveryPlatform
	}

	o := domain.Order{
		ID:                e.newID(),
		BuyerID:           strings.TrimSpace(req.BuyerID),
		SellerID:          strings.TrimSpace(req.SellerID),
		Pickup:            pickup,
		Dropoff:           dropoff,
		ItemCount:         req.ItemCount,
		DeclaredValue:     req.ItemPrice,
		DeliveryFee:       req.DeliveryFee,
		DeliveryMethod:    method,
		SellerShippingFee: req.SellerShippingFee,
		Tip:               req.Tip,
		Large:             req.Large,
		TimeSlot:          slot,
		Status:            domain.OrderAwaitingRoute,
		QueuedAt:          now,
		UpdatedAt:         now,
	}

	// An order is accepted only once it is durable.
	if e.journal != nil {
		if err := e.journal.SaveOrder(ctx, o); err != nil {
			return domain.Order{}, fmt.Errorf("submit order: %w", err)
		}
	}

	e.ordersMu.Lock()
	e.orders[o.ID] = &orderEntry{order: o}
	e.ordersMu.Unlock()

	if n := e.pools[slot].add(o.ID); n >= e.policy.PoolThreshold && e.policy.PoolThreshold > 0 {
		e.signal(slot)
	}

	e.log.InfoContext(ctx, "order accepted", "order_id", o.ID, "slot", slot, "large", o.Large)
	return o, nil
}

// GetOrder returns a copy of the order.
func (e *Engine) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	oe, ok := e.order(orderID)
	if !ok {
		return domain.Order{}, fmt.Errorf("get order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	oe.mu.Lock()
	defer oe.mu.Unlock()
	return oe.order, nil
}

// Window reports whether a slot still accepts orders right now.
func (e *Engine) Window(ctx context.Context, slot string) (domain.SlotWindow, error) {
	s, err := domain.ParseTimeSlot(strings.TrimSpace(slot))
	if err != nil {
		return domain.SlotWindow{}, fmt.Errorf("slot window: %w", invalid("%v", err))
	}
	return s.Window(e.now()), nil
}
