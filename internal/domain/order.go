package domain

import "time"

type OrderStatus string

const (
	OrderAwaitingRoute OrderStatus = "awaiting_route"
	OrderRouted        OrderStatus = "routed"
	OrderDelivered     OrderStatus = "delivered"
	OrderCancelled     OrderStatus = "cancelled"
	OrderReturned      OrderStatus = "returned"
)

func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderDelivered, OrderCancelled, OrderReturned:
		return true
	default:
		return false
	}
}

// DeliveryMethod records who set the delivery price for an order.
// Seller (private-party) deliveries carry a seller-set shipping & handling
// fee that is passed through to the seller.
type DeliveryMethod string

const (
	DeliveryPlatform DeliveryMethod = "platform"
	DeliverySeller   DeliveryMethod = "seller"
)

func (m DeliveryMethod) Valid() bool {
	return m == DeliveryPlatform || m == DeliverySeller
}

// FeeSplit is how the delivery fee is shared between buyer, seller and platform.
type FeeSplit struct {
	Buyer    Cents
	Seller   Cents
	Platform Cents
}

func (f FeeSplit) Total() Cents { return f.Buyer + f.Seller + f.Platform }

// Represents a paid marketplace order waiting for, or moving through, delivery.
// An Order is created by intake, mutated by the assembler (routed) and the
// execution tracker (delivered, cancelled, returned), and never changes once
// delivered.
type Order struct {
	ID                string
	BuyerID           string
	SellerID          string
	Pickup            Location
	Dropoff           Location
	ItemCount         int
	DeclaredValue     Cents
	DeliveryFee       FeeSplit
	DeliveryMethod    DeliveryMethod
	SellerShippingFee Cents
	Tip               Cents
	Large             bool
	TimeSlot          TimeSlot
	Status            OrderStatus
	RouteID           string
	QueuedAt          time.Time
	UpdatedAt         time.Time
}
