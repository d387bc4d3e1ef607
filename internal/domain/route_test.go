package domain

import (
	"strings"
	"testing"
)

func stopsFor(kinds ...string) []Stop {
	stops := make([]Stop, 0, len(kinds))
	for i, k := range kinds {
		// "p1" = pickup of order 1, "d1" = dropoff of order 1
		kind := StopPickup
		if k[0] == 'd' {
			kind = StopDropoff
		}
		stops = append(stops, Stop{ID: k, OrderID: "o" + k[1:], Kind: kind, SequenceIndex: i, Status: StopPending})
	}
	return stops
}

func TestRouteValidate(t *testing.T) {
	tests := []struct {
		name    string
		stops   []Stop
		wantErr string
	}{
		{name: "paired", stops: stopsFor("p1", "p2", "d1", "d2")},
		{name: "dropoff first", stops: stopsFor("d1", "p1"), wantErr: "precedes pickup"},
		{name: "missing dropoff", stops: stopsFor("p1", "p2", "d2"), wantErr: "missing"},
		{name: "over capacity", stops: stopsFor("p1", "p2", "p3", "p4", "p5", "p6", "p7", "d1", "d2", "d3", "d4", "d5", "d6", "d7"), wantErr: "exceeds capacity"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := Route{ID: "r1", Stops: tc.stops}
			err := r.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want containing %q", err, tc.wantErr)
			}
		})
	}
}

func TestRouteTransitions(t *testing.T) {
	r := Route{Status: RouteAvailable}
	if err := r.Transition(RouteClaimed); err != nil {
		t.Fatalf("available -> claimed: %v", err)
	}
	if err := r.Transition(RouteActive); err != nil {
		t.Fatalf("claimed -> active: %v", err)
	}
	if err := r.Transition(RouteClaimed); err == nil {
		t.Fatalf("active -> claimed should be rejected")
	}
	if err := r.Transition(RouteCompleted); err != nil {
		t.Fatalf("active -> completed: %v", err)
	}
	err := r.Transition(RouteAvailable)
	if err == nil || !strings.Contains(err.Error(), "terminal") {
		t.Fatalf("completed is terminal, got %v", err)
	}
}

func TestRouteCloneIsDeep(t *testing.T) {
	r := Route{ID: "r1", Stops: stopsFor("p1", "d1")}
	c := r.Clone()
	c.Stops[0].Status = StopCompleted

	if r.Stops[0].Status != StopPending {
		t.Fatalf("clone shares stop storage with original")
	}
}

func TestPairedStopAndOrderIDs(t *testing.T) {
	r := Route{Stops: stopsFor("p1", "p2", "d2", "d1")}

	paired, ok := r.PairedStop(&r.Stops[3])
	if !ok || paired.ID != "p1" {
		t.Fatalf("paired stop = %+v, want p1", paired)
	}

	ids := r.OrderIDs()
	if len(ids) != 2 || ids[0] != "o1" || ids[1] != "o2" {
		t.Fatalf("order ids = %v", ids)
	}
}

func TestColourShade(t *testing.T) {
	if got := ColourBlue.Shade(StopPickup); got != "#1E3A8A" {
		t.Fatalf("blue pickup = %s", got)
	}
	if got := ColourRed.Shade(StopDropoff); got != "#EF4444" {
		t.Fatalf("red dropoff = %s", got)
	}
	if got := ColourAt(PaletteSize + 1); got != ColourRed {
		t.Fatalf("round robin wrapped to %s, want red", got)
	}
}
