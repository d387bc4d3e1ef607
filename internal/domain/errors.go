package domain

import "errors"

// Conditions callers branch on with errors.Is.
var (
	ErrValidation       = errors.New("validation failed")
	ErrSlotClosed       = errors.New("delivery window closed")
	ErrOrderNotFound    = errors.New("order not found")
	ErrRouteNotFound    = errors.New("route not found")
	ErrStopNotFound     = errors.New("stop not found")
	ErrDriverNotFound   = errors.New("driver session not found")
	ErrDriverOffline    = errors.New("driver is offline")
	ErrDataIntegrity    = errors.New("route data integrity violation")
	ErrEarningsNotReady = errors.New("earnings not available until route is completed")

	// Concurrency conflicts: the caller should re-fetch and retry.
	ErrRouteAlreadyClaimed  = errors.New("route already claimed")
	ErrDriverAlreadyOnRoute = errors.New("driver already on a route")

	// Sequencing violations.
	ErrPickupNotCompleted = errors.New("pickup not completed")
	ErrRouteNotActive     = errors.New("route is not active")
	ErrStopNotPending     = errors.New("stop already finished")
)
