package dto

import (
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/services"
	"time"
)

type LocationRequest struct {
	Address string   `json:"address"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

func (l LocationRequest) toDomain() domain.Location {
	loc := domain.Location{Address: l.Address}
	if l.Lat != nil && l.Lng != nil {
		loc.Coordinates = domain.Coordinates{Lat: *l.Lat, Lon: *l.Lng}
	}
	return loc
}

type FeeSplitRequest struct {
	BuyerCents    int64 `json:"buyer_cents"`
	SellerCents   int64 `json:"seller_cents"`
	PlatformCents int64 `json:"platform_cents"`
}

type SubmitOrderRequest struct {
	BuyerID             string          `json:"buyer_id"`
	SellerID            string          `json:"seller_id"`
	Pickup              LocationRequest `json:"pickup"`
	Dropoff             LocationRequest `json:"dropoff"`
	ItemCount           int             `json:"item_count"`
	ItemPriceCents      int64           `json:"item_price_cents"`
	DeliveryMethod      string          `json:"delivery_method"`
	SellerShippingCents int64           `json:"seller_shipping_cents"`
	DeliveryFee         FeeSplitRequest `json:"delivery_fee"`
	TipCents            int64           `json:"tip_cents"`
	Large               bool            `json:"large"`
	TimeSlot            string          `json:"time_slot"`
}

func (r SubmitOrderRequest) ToService() services.OrderRequest {
	fee := domain.FeeSplit{
		Buyer:    domain.Cents(r.DeliveryFee.BuyerCents),
		Seller:   domain.Cents(r.DeliveryFee.SellerCents),
		Platform: domain.Cents(r.DeliveryFee.PlatformCents),
	}
	return services.OrderRequest{
		BuyerID:           r.BuyerID,
		SellerID:          r.SellerID,
		Pickup:            r.Pickup.toDomain(),
		Dropoff:           r.Dropoff.toDomain(),
		ItemCount:         r.ItemCount,
		ItemPrice:         domain.Cents(r.ItemPriceCents),
		DeliveryFee:       fee,
		DeliveryMethod:    domain.DeliveryMethod(r.DeliveryMethod),
		SellerShippingFee: domain.Cents(r.SellerShippingCents),
		Tip:               domain.Cents(r.TipCents),
		Large:             r.Large,
		TimeSlot:          r.TimeSlot,
	}
}

type LocationResponse struct {
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

func FromLocation(l domain.Location) LocationResponse {
	return LocationResponse{Address: l.Address, Lat: l.Lat, Lng: l.Lon}
}

type OrderResponse struct {
	OrderID        string           `json:"order_id"`
	BuyerID        string           `json:"buyer_id"`
	SellerID       string           `json:"seller_id"`
	Pickup         LocationResponse `json:"pickup"`
	Dropoff        LocationResponse `json:"dropoff"`
	ItemCount      int              `json:"item_count"`
	ItemPriceCents int64            `json:"item_price_cents"`
	DeliveryMethod string           `json:"delivery_method"`
	TipCents       int64            `json:"tip_cents"`
	Large          bool             `json:"large"`
	TimeSlot       string           `json:"time_slot"`
	Status         string           `json:"status"`
	RouteID        string           `json:"route_id,omitempty"`
	QueuedAt       time.Time        `json:"queued_at"`
}

func FromOrder(o domain.Order) OrderResponse {
	return OrderResponse{
		OrderID:        o.ID,
		BuyerID:        o.BuyerID,
		SellerID:       o.SellerID,
		Pickup:         FromLocation(o.Pickup),
		Dropoff:        FromLocation(o.Dropoff),
		ItemCount:      o.ItemCount,
		ItemPriceCents: int64(o.DeclaredValue),
		DeliveryMethod: string(o.DeliveryMethod),
		TipCents:       int64(o.Tip),
		Large:          o.Large,
		TimeSlot:       string(o.TimeSlot),
		Status:         string(o.Status),
		RouteID:        o.RouteID,
		QueuedAt:       o.QueuedAt,
	}
}

type SlotWindowResponse struct {
	TimeSlot           string    `json:"time_slot"`
	Open               bool      `json:"open"`
	ClosesAt           time.Time `json:"closes_at"`
	MinutesUntilClosed int       `json:"minutes_until_closed"`
	NextSlot           string    `json:"next_slot,omitempty"`
	NextSlotTomorrow   bool      `json:"next_slot_tomorrow,omitempty"`
}

func FromWindow(w domain.SlotWindow) SlotWindowResponse {
	return SlotWindowResponse{
		TimeSlot:           string(w.Slot),
		Open:               w.Open,
		ClosesAt:           w.ClosesAt,
		MinutesUntilClosed: w.MinutesUntilClosed,
		NextSlot:           string(w.NextSlot),
		NextSlotTomorrow:   w.NextSlotTomorrow,
	}
}
