package domain

import (
	"fmt"
	"strings"
	"time"
)

// MaxOrdersPerRoute bounds a route to 6 orders, i.e. 12 stops.
const MaxOrdersPerRoute = 6

type StopKind string

const (
	StopPickup  StopKind = "pickup"
	StopDropoff StopKind = "dropoff"
)

type StopStatus string

const (
	StopPending   StopStatus = "pending"
	StopCompleted StopStatus = "completed"
	StopFailed    StopStatus = "failed"
)

// Represents a single pickup or dropoff waypoint in a delivery route.
// Every order contributes exactly one pickup and one dropoff stop, and the
// pickup always precedes the dropoff.
type Stop struct {
	ID            string
	RouteID       string
	OrderID       string
	Kind          StopKind
	SequenceIndex int
	Status        StopStatus
	Location      Location
	CompletedAt   *time.Time
	CompletedBy   string
	FailReason    string
}

func (s *Stop) Terminal() bool { return s.Status != StopPending }

type RouteStatus string

const (
	RouteAssembling RouteStatus = "assembling"
	RouteAvailable  RouteStatus = "available"
	RouteClaimed    RouteStatus = "claimed"
	RouteActive     RouteStatus = "active"
	RouteCompleted  RouteStatus = "completed"
	RouteAbandoned  RouteStatus = "abandoned"
)

// routeTransitions is the authoritative route lifecycle.
var routeTransitions = map[RouteStatus][]RouteStatus{
	RouteAssembling: {RouteAvailable, RouteAbandoned},
	RouteAvailable:  {RouteClaimed, RouteAbandoned},
	RouteClaimed:    {RouteActive, RouteAvailable, RouteAbandoned},
	RouteActive:     {RouteCompleted, RouteAvailable, RouteAbandoned},
}

// CanTransition reports whether a route may move from one status to another.
func CanTransition(from, to RouteStatus) error {
	for _, next := range routeTransitions[from] {
		if next == to {
			return nil
		}
	}

	valid := routeTransitions[from]
	if len(valid) == 0 {
		return fmt.Errorf("route transition %s -> %s: %s is terminal", from, to, from)
	}

	names := make([]string, 0, len(valid))
	for _, v := range valid {
		names = append(names, string(v))
	}
	return fmt.Errorf("route transition %s -> %s: valid next states are %s", from, to, strings.Join(names, ", "))
}

// Estimated route economics shown on the dispatch board.
type RouteTotals struct {
	BasePay                  Cents
	MileagePay               Cents
	TipsPool                 Cents
	TotalDistanceMeters      int
	EstimatedDurationMinutes int
}

func (t RouteTotals) TotalDistanceMiles() float64 {
	return float64(t.TotalDistanceMeters) / MetersPerMile
}

// Represents a bounded, ordered, colour-coded sequence of stops served by a
// single driver. Routes are owned by the engine; drivers refer to them by id
// and change them only through defined transitions.
type Route struct {
	ID             string
	TimeSlot       TimeSlot
	Colour         Colour
	Stops          []Stop
	Status         RouteStatus
	ClaimedBy      string
	Totals         RouteTotals
	CreatedAt      time.Time
	AvailableSince time.Time
	ClaimedAt      *time.Time
	CompletedAt    *time.Time
	AbandonReason  string
	OfferedCount   int
}

// Transition moves the route to a new status if the lifecycle allows it.
func (r *Route) Transition(to RouteStatus) error {
	if err := CanTransition(r.Status, to); err != nil {
		return err
	}
	r.Status = to
	return nil
}

// OrderIDs returns the route's orders in order of first appearance.
func (r *Route) OrderIDs() []string {
	seen := make(map[string]struct{}, len(r.Stops)/2)
	ids := make([]string, 0, len(r.Stops)/2)
	for _, s := range r.Stops {
		if _, ok := seen[s.OrderID]; ok {
			continue
		}
		seen[s.OrderID] = struct{}{}
		ids = append(ids, s.OrderID)
	}
	return ids
}

func (r *Route) FindStop(stopID string) (*Stop, bool) {
	for i := range r.Stops {
		if r.Stops[i].ID == stopID {
			return &r.Stops[i], true
		}
	}
	return nil, false
}

// PairedStop returns the other stop (pickup or dropoff) for the same order.
func (r *Route) PairedStop(s *Stop) (*Stop, bool) {
	want := StopPickup
	if s.Kind == StopPickup {
		want = StopDropoff
	}
	for i := range r.Stops {
		if r.Stops[i].OrderID == s.OrderID && r.Stops[i].Kind == want {
			return &r.Stops[i], true
		}
	}
	return nil, false
}

func (r *Route) AllStopsTerminal() bool {
	for i := range r.Stops {
		if !r.Stops[i].Terminal() {
			return false
		}
	}
	return true
}

func (r *Route) CompletedStops() int {
	n := 0
	for _, s := range r.Stops {
		if s.Status == StopCompleted {
			n++
		}
	}
	return n
}

func (r *Route) PendingStops() int {
	n := 0
	for _, s := range r.Stops {
		if s.Status == StopPending {
			n++
		}
	}
	return n
}

// Validate checks the capacity and pickup-before-dropoff invariants.
func (r *Route) Validate() error {
	if len(r.Stops) > 2*MaxOrdersPerRoute {
		return fmt.Errorf("route %s: %d stops exceeds capacity %d", r.ID, len(r.Stops), 2*MaxOrdersPerRoute)
	}

	type pair struct{ pickup, dropoff int }
	pairs := make(map[string]*pair)
	for i, s := range r.Stops {
		if s.SequenceIndex != i {
			return fmt.Errorf("route %s: stop %s has sequence index %d at position %d", r.ID, s.ID, s.SequenceIndex, i)
		}
		p, ok := pairs[s.OrderID]
		if !ok {
			p = &pair{pickup: -1, dropoff: -1}
			pairs[s.OrderID] = p
		}
		switch s.Kind {
		case StopPickup:
			if p.pickup >= 0 {
				return fmt.Errorf("route %s: order %s has two pickups", r.ID, s.OrderID)
			}
			p.pickup = s.SequenceIndex
		case StopDropoff:
			if p.dropoff >= 0 {
				return fmt.Errorf("route %s: order %s has two dropoffs", r.ID, s.OrderID)
			}
			p.dropoff = s.SequenceIndex
		default:
			return fmt.Errorf("route %s: stop %s has unknown kind %q", r.ID, s.ID, s.Kind)
		}
	}

	if len(pairs) > MaxOrdersPerRoute {
		return fmt.Errorf("route %s: %d orders exceeds capacity %d", r.ID, len(pairs), MaxOrdersPerRoute)
	}

	for orderID, p := range pairs {
		if p.pickup < 0 || p.dropoff < 0 {
			return fmt.Errorf("route %s: order %s is missing a pickup or dropoff", r.ID, orderID)
		}
		if p.pickup >= p.dropoff {
			return fmt.Errorf("route %s: order %s dropoff (%d) precedes pickup (%d)", r.ID, orderID, p.dropoff, p.pickup)
		}
	}

	return nil
}

// Clone returns a deep copy safe to hand out without holding the route lock.
func (r *Route) Clone() Route {
	c := *r
	c.Stops = make([]Stop, len(r.Stops))
	copy(c.Stops, r.Stops)
	for i := range c.Stops {
		if t := c.Stops[i].CompletedAt; t != nil {
			v := *t
			c.Stops[i].CompletedAt = &v
		}
	}
	if r.ClaimedAt != nil {
		v := *r.ClaimedAt
		c.ClaimedAt = &v
	}
	if r.CompletedAt != nil {
		v := *r.CompletedAt
		c.CompletedAt = &v
	}
	return c
}
