package services

import (
	"context"
	"delivery-dispatch-service/internal/domain"
	"fmt"
)

// CalculateEarnings computes the payout summary for a completed route.
//
// It is a pure function of the route's final stops and orders: calling it
// twice with the same input yields identical records. Commission is taken
// from each delivered order's item price on the seller side; the driver's
// pay is never reduced by it.
func CalculateEarnings(route domain.Route, orders map[string]domain.Order, p Policy) (domain.EarningsRecord, error) {
	if route.Status != domain.RouteCompleted || route.CompletedAt == nil {
		return domain.EarningsRecord{}, fmt.Errorf("calculate earnings %s: %w", route.ID, domain.ErrEarningsNotReady)
	}

	rec := domain.EarningsRecord{
		RouteID:             route.ID,
		DriverID:            route.ClaimedBy,
		TotalDistanceMeters: route.Totals.TotalDistanceMeters,
		MileagePay:          route.Totals.MileagePay,
		Orders:              make([]domain.OrderLedger, 0, len(orders)),
		ComputedAt:          route.CompletedAt.UTC(),
	}

	for _, id := range route.OrderIDs() {
		o, ok := orders[id]
		if !ok {
			return domain.EarningsRecord{}, fmt.Errorf("calculate earnings %s: order %s: %w", route.ID, id, domain.ErrDataIntegrity)
		}

		line := domain.OrderLedger{
			OrderID:             o.ID,
			Delivered:           o.Status == domain.OrderDelivered,
			ItemPrice:           o.DeclaredValue,
			DeliveryFeeBuyer:    o.DeliveryFee.Buyer,
			DeliveryFeeSeller:   o.DeliveryFee.Seller,
			DeliveryFeePlatform: o.DeliveryFee.Platform,
		}

		if line.Delivered {
			line.Commission = o.DeclaredValue.ApplyRate(p.CommissionRate)
			line.SellerShippingFee = o.SellerShippingFee
			line.Tip = o.Tip
			line.SellerPayout = o.DeclaredValue - line.Commission + o.SellerShippingFee - o.DeliveryFee.Seller
			line.PlatformRevenue = line.Commission + o.DeliveryFee.Platform

			rec.CompletedOrders++
			rec.Tips += o.Tip
			rec.PlatformCommission += line.Commission
			if o.Large {
				rec.LargeItemBonus += p.LargeItemBonus
			}
		}

		rec.Orders = append(rec.Orders, line)
	}

	rec.BasePay = p.BasePerOrder * domain.Cents(rec.CompletedOrders)
	rec.GrossEarnings = rec.BasePay + rec.MileagePay + rec.Tips + rec.LargeItemBonus
	rec.NetPayout = rec.GrossEarnings

	return rec, nil
}

// GetEarnings returns the record stored when the route completed.
func (e *Engine) GetEarnings(ctx context.Context, routeID string) (domain.EarningsRecord, error) {
	re, ok := e.route(routeID)
	if !ok {
		return domain.EarningsRecord{}, fmt.Errorf("get earnings %s: %w", routeID, domain.ErrRouteNotFound)
	}

	re.mu.Lock()
	defer re.mu.Unlock()
	if re.earnings == nil {
		return domain.EarningsRecord{}, fmt.Errorf("get earnings %s: %w", routeID, domain.ErrEarningsNotReady)
	}
	return re.earnings.Clone(), nil
}
