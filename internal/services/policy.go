package services

import (
	"delivery-dispatch-service/internal/domain"
	"time"
)

// Policy holds the pay rates and batching knobs of the dispatch engine.
type Policy struct {
	// Pay per delivered order ($4 pickup + $2 dropoff).
	BasePerOrder   domain.Cents
	MileageRate    domain.Cents
	CommissionRate domain.BasisPoints
	LargeItemBonus domain.Cents

	MinOrders           int
	MaxOrders           int
	ClusterRadiusMeters float64
	MaxWait             time.Duration

	StaleAfter       time.Duration
	AbandonAfter     time.Duration
	HeartbeatTimeout time.Duration

	// Pool size that triggers an early batch close.
	PoolThreshold     int
	EnforceSlotCutoff bool
}

func DefaultPolicy() Policy {
	return Policy{
		BasePerOrder:        domain.Dollars(6),
		MileageRate:         50,
		CommissionRate:      500,
		LargeItemBonus:      domain.Dollars(25),
		MinOrders:           2,
		MaxOrders:           domain.MaxOrdersPerRoute,
		ClusterRadiusMeters: 5 * domain.MetersPerMile,
		MaxWait:             10 * time.Minute,
		StaleAfter:          15 * time.Minute,
		AbandonAfter:        10 * time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		PoolThreshold:       domain.MaxOrdersPerRoute,
		EnforceSlotCutoff:   true,
	}
}

// normalized clamps capacity settings to what a route can hold.
func (p Policy) normalized() Policy {
	if p.MaxOrders <= 0 || p.MaxOrders > domain.MaxOrdersPerRoute {
		p.MaxOrders = domain.MaxOrdersPerRoute
	}
	if p.MinOrders <= 0 {
		p.MinOrders = 1
	}
	if p.MinOrders > p.MaxOrders {
		p.MinOrders = p.MaxOrders
	}
	if p.ClusterRadiusMeters <= 0 {
		p.ClusterRadiusMeters = 5 * domain.MetersPerMile
	}
	return p
}
