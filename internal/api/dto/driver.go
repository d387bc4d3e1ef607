package dto

import (
	"delivery-dispatch-service/internal/domain"
	"time"
)

type SessionRequest struct {
	TimeSlot string `json:"time_slot"`
}

type SessionResponse struct {
	DriverID       string     `json:"driver_id"`
	Status         string     `json:"status"`
	TimeSlot       string     `json:"time_slot,omitempty"`
	CurrentRouteID string     `json:"current_route_id,omitempty"`
	LastSeen       time.Time  `json:"last_seen"`
	OfflineSince   *time.Time `json:"offline_since,omitempty"`
}

func FromSession(s domain.DriverSession) SessionResponse {
	return SessionResponse{
		DriverID:       s.DriverID,
		Status:         string(s.Status),
		TimeSlot:       string(s.TimeSlot),
		CurrentRouteID: s.CurrentRouteID,
		LastSeen:       s.LastSeen,
		OfflineSince:   s.OfflineSince,
	}
}
