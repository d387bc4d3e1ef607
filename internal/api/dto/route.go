package dto

import (
	"delivery-dispatch-service/internal/domain"
	"time"
)

type StopResponse struct {
	StopID        string           `json:"stop_id"`
	OrderID       string           `json:"order_id"`
	Kind          string           `json:"kind"`
	SequenceIndex int              `json:"sequence_index"`
	Status        string           `json:"status"`
	Location      LocationResponse `json:"location"`
	Colour        string           `json:"colour"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	CompletedBy   string           `json:"completed_by,omitempty"`
	FailReason    string           `json:"fail_reason,omitempty"`
}

type RouteResponse struct {
	RouteID            string         `json:"route_id"`
	TimeSlot           string         `json:"time_slot"`
	Colour             string         `json:"colour"`
	Status             string         `json:"status"`
	ClaimedBy          string         `json:"claimed_by,omitempty"`
	OrderCount         int            `json:"order_count"`
	BasePayCents       int64          `json:"base_pay_cents"`
	MileagePayCents    int64          `json:"mileage_pay_cents"`
	TipsPoolCents      int64          `json:"tips_pool_cents"`
	TotalDistanceMiles float64        `json:"total_distance_miles"`
	EstimatedMinutes   int            `json:"estimated_duration_minutes"`
	AvailableSince     time.Time      `json:"available_since"`
	ClaimedAt          *time.Time     `json:"claimed_at,omitempty"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	CompletedStops     int            `json:"completed_stops"`
	Stops              []StopResponse `json:"stops"`
}

func FromRoute(r domain.Route) RouteResponse {
	res := RouteResponse{
		RouteID:            r.ID,
		TimeSlot:           string(r.TimeSlot),
		Colour:             r.Colour.String(),
		Status:             string(r.Status),
		ClaimedBy:          r.ClaimedBy,
		OrderCount:         len(r.OrderIDs()),
		BasePayCents:       int64(r.Totals.BasePay),
		MileagePayCents:    int64(r.Totals.MileagePay),
		TipsPoolCents:      int64(r.Totals.TipsPool),
		TotalDistanceMiles: r.Totals.TotalDistanceMiles(),
		EstimatedMinutes:   r.Totals.EstimatedDurationMinutes,
		AvailableSince:     r.AvailableSince,
		ClaimedAt:          r.ClaimedAt,
		CompletedAt:        r.CompletedAt,
		CompletedStops:     r.CompletedStops(),
		Stops:              make([]StopResponse, 0, len(r.Stops)),
	}
	for _, s := range r.Stops {
		res.Stops = append(res.Stops, StopResponse{
			StopID:        s.ID,
			OrderID:       s.OrderID,
			Kind:          string(s.Kind),
			SequenceIndex: s.SequenceIndex,
			Status:        string(s.Status),
			Location:      FromLocation(s.Location),
			Colour:        r.Colour.Shade(s.Kind),
			CompletedAt:   s.CompletedAt,
			CompletedBy:   s.CompletedBy,
			FailReason:    s.FailReason,
		})
	}
	return res
}

type ListRoutesResponse struct {
	Routes []RouteResponse `json:"routes"`
}

func FromRoutes(routes []domain.Route) ListRoutesResponse {
	res := ListRoutesResponse{Routes: make([]RouteResponse, 0, len(routes))}
	for _, r := range routes {
		res.Routes = append(res.Routes, FromRoute(r))
	}
	return res
}

type ClaimRequest struct {
	DriverID string `json:"driver_id"`
}

type FailStopRequest struct {
	Reason string `json:"reason"`
}
