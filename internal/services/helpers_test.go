package services

import (
	"context"
	"delivery-dispatch-service/internal/adapters/distance"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/ports"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

var base = domain.Coordinates{Lat: 37.7749, Lon: -122.4194}

// near returns a point roughly north*111m north and east*88m east of base.
func near(north, east int) domain.Coordinates {
	return domain.Coordinates{Lat: base.Lat + float64(north)*0.001, Lon: base.Lon + float64(east)*0.001}
}

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func sequentialIDs() func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("id-%04d", n.Add(1)) }
}

func testPolicy() Policy {
	p := DefaultPolicy()
	p.EnforceSlotCutoff = false
	return p
}

type harness struct {
	engine    *Engine
	clock     *testClock
	journal   *memJournal
	publisher *recordingPublisher
}

func newHarness(t *testing.T, policy Policy, provider ports.DistanceProvider) *harness {
	t.Helper()

	if provider == nil {
		provider = distance.NewHaversineProvider()
	}
	h := &harness{
		clock:     &testClock{t: time.Date(2026, 3, 2, 6, 0, 0, 0, time.UTC)},
		journal:   newMemJournal(),
		publisher: &recordingPublisher{},
	}
	h.engine = NewEngine(policy, provider,
		WithClock(h.clock.Now),
		WithIDGenerator(sequentialIDs()),
		WithJournal(h.journal),
		WithPublisher(h.publisher),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	return h
}

func orderAt(buyer string, pickup, dropoff domain.Coordinates) OrderRequest {
	return OrderRequest{
		BuyerID:     buyer,
		SellerID:    "seller-" + buyer,
		Pickup:      domain.Location{Address: "pickup " + buyer, Coordinates: pickup},
		Dropoff:     domain.Location{Address: "dropoff " + buyer, Coordinates: dropoff},
		ItemCount:   1,
		ItemPrice:   domain.Dollars(100),
		DeliveryFee: domain.FeeSplit{Buyer: 800},
		Tip:         200,
		TimeSlot:    string(domain.SlotMorning),
	}
}

func (h *harness) submit(t *testing.T, req OrderRequest) domain.Order {
	t.Helper()
	o, err := h.engine.Submit(context.Background(), req)
	if err != nil {
		t.Fatalf("submit %s: %v", req.BuyerID, err)
	}
	return o
}

// submitNearby queues n orders close to base in the morning slot.
func (h *harness) submitNearby(t *testing.T, n int) []domain.Order {
	t.Helper()
	out := make([]domain.Order, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, h.submit(t, orderAt(fmt.Sprintf("buyer-%d", i), near(i, 0), near(i, 2))))
	}
	return out
}

// assembleOne closes the morning batch and expects exactly one route.
func (h *harness) assembleOne(t *testing.T) domain.Route {
	t.Helper()
	routes, err := h.engine.CloseBatch(context.Background(), domain.SlotMorning)
	if err != nil {
		t.Fatalf("close batch: %v", err)
	}
	if len(routes) != 1 {
		t.Fatalf("expected 1 route, got %d", len(routes))
	}
	return routes[0]
}

func (h *harness) online(t *testing.T, driverID string) {
	t.Helper()
	if _, err := h.engine.GoOnline(context.Background(), driverID, string(domain.SlotMorning)); err != nil {
		t.Fatalf("go online %s: %v", driverID, err)
	}
}

// memJournal is an in-memory ports.Journal with a real compare-and-swap claim.
type memJournal struct {
	mu       sync.Mutex
	orders   map[string]domain.Order
	routes   map[string]domain.Route
	sessions map[string]domain.DriverSession
	earnings map[string]domain.EarningsRecord
	claims   int

	failOrders error
}

func newMemJournal() *memJournal {
	return &memJournal{
		orders:   make(map[string]domain.Order),
		routes:   make(map[string]domain.Route),
		sessions: make(map[string]domain.DriverSession),
		earnings: make(map[string]domain.EarningsRecord),
	}
}

func (j *memJournal) SaveOrder(ctx context.Context, o domain.Order) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failOrders != nil {
		return j.failOrders
	}
	j.orders[o.ID] = o
	return nil
}

func (j *memJournal) SaveRoute(ctx context.Context, r domain.Route) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.routes[r.ID] = r.Clone()
	return nil
}

func (j *memJournal) SaveSession(ctx context.Context, s domain.DriverSession) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sessions[s.DriverID] = s
	return nil
}

func (j *memJournal) SaveEarnings(ctx context.Context, rec domain.EarningsRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if _, ok := j.earnings[rec.RouteID]; !ok {
		j.earnings[rec.RouteID] = rec.Clone()
	}
	return nil
}

func (j *memJournal) ClaimRoute(ctx context.Context, routeID, driverID string, claimedAt time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	r, ok := j.routes[routeID]
	if !ok {
		return domain.ErrRouteNotFound
	}
	if r.Status != domain.RouteAvailable {
		return domain.ErrRouteAlreadyClaimed
	}
	r.Status = domain.RouteClaimed
	r.ClaimedBy = driverID
	r.ClaimedAt = &claimedAt
	j.routes[routeID] = r
	j.claims++
	return nil
}

func (j *memJournal) Load(ctx context.Context) (ports.Snapshot, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var snap ports.Snapshot
	for _, o := range j.orders {
		snap.Orders = append(snap.Orders, o)
	}
	for _, r := range j.routes {
		snap.Routes = append(snap.Routes, r.Clone())
	}
	for _, s := range j.sessions {
		snap.Sessions = append(snap.Sessions, s)
	}
	for _, e := range j.earnings {
		snap.Earnings = append(snap.Earnings, e.Clone())
	}
	return snap, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ports.Event
}

func (p *recordingPublisher) Publish(ctx context.Context, e ports.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingPublisher) count(t ports.EventType) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == t {
			n++
		}
	}
	return n
}
