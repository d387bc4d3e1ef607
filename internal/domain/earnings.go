package domain

import "time"

// OrderLedger is the per-order money split handed to the payout system.
// Commission is taken from the seller's proceeds, never from the driver.
type OrderLedger struct {
	OrderID             string `json:"order_id"`
	Delivered           bool   `json:"delivered"`
	ItemPrice           Cents  `json:"item_price_cents"`
	Commission          Cents  `json:"commission_cents"`
	SellerShippingFee   Cents  `json:"seller_shipping_fee_cents"`
	DeliveryFeeBuyer    Cents  `json:"delivery_fee_buyer_cents"`
	DeliveryFeeSeller   Cents  `json:"delivery_fee_seller_cents"`
	DeliveryFeePlatform Cents  `json:"delivery_fee_platform_cents"`
	Tip                 Cents  `json:"tip_cents"`
	SellerPayout        Cents  `json:"seller_payout_cents"`
	PlatformRevenue     Cents  `json:"platform_revenue_cents"`
}

// EarningsRecord is the immutable payout summary for one completed route.
type EarningsRecord struct {
	RouteID             string        `json:"route_id"`
	DriverID            string        `json:"driver_id"`
	CompletedOrders     int           `json:"completed_orders"`
	TotalDistanceMeters int           `json:"total_distance_meters"`
	BasePay             Cents         `json:"base_pay_cents"`
	MileagePay          Cents         `json:"mileage_pay_cents"`
	Tips                Cents         `json:"tips_cents"`
	LargeItemBonus      Cents         `json:"large_item_bonus_cents"`
	GrossEarnings       Cents         `json:"gross_earnings_cents"`
	PlatformCommission  Cents         `json:"platform_commission_cents"`
	NetPayout           Cents         `json:"net_payout_cents"`
	Orders              []OrderLedger `json:"orders"`
	ComputedAt          time.Time     `json:"computed_at"`
}

// Clone copies the record including its ledger lines.
func (e EarningsRecord) Clone() EarningsRecord {
	c := e
	c.Orders = make([]OrderLedger, len(e.Orders))
	copy(c.Orders, e.Orders)
	return c
}
