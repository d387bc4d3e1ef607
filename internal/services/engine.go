package services

import (
	"context"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/ports"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type orderEntry struct {
	mu    sync.Mutex
	order domain.Order
}

type routeEntry struct {
	mu       sync.Mutex
	route    domain.Route
	earnings *domain.EarningsRecord
}

type sessionEntry struct {
	mu      sync.Mutex
	session domain.DriverSession
}

// Engine is the route assembly and dispatch core. All state is held in
// memory behind per-order, per-route, per-session and per-slot locks; the
// registries only guard map membership. Lock order is session -> route ->
// order. Pool locks are never held together with route or order locks.
type Engine struct {
	policy    Policy
	provider  ports.DistanceProvider
	geocoder  ports.Geocoder
	journal   ports.Journal
	publisher ports.EventPublisher
	log       *slog.Logger

	now   func() time.Time
	newID func() string

	matrixConcurrency int

	ordersMu sync.RWMutex
	orders   map[string]*orderEntry

	routesMu sync.RWMutex
	routes   map[string]*routeEntry

	sessionsMu sync.RWMutex
	sessions   map[string]*sessionEntry

	pools    map[domain.TimeSlot]*slotPool
	triggers chan domain.TimeSlot
}

type Option func(*Engine)

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithIDGenerator(newID func() string) Option { return func(e *Engine) { e.newID = newID } }

func WithGeocoder(g ports.Geocoder) Option { return func(e *Engine) { e.geocoder = g } }

func WithJournal(j ports.Journal) Option { return func(e *Engine) { e.journal = j } }

func WithPublisher(p ports.EventPublisher) Option { return func(e *Engine) { e.publisher = p } }

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithMatrixConcurrency bounds concurrent distance lookups per batch.
func WithMatrixConcurrency(n int) Option { return func(e *Engine) { e.matrixConcurrency = n } }

func NewEngine(policy Policy, provider ports.DistanceProvider, opts ...Option) *Engine {
	e := &Engine{
		policy:            policy.normalized(),
		provider:          provider,
		log:               slog.Default(),
		now:               time.Now,
		newID:             uuid.NewString,
		matrixConcurrency: 5,
		orders:            make(map[string]*orderEntry),
		routes:            make(map[string]*routeEntry),
		sessions:          make(map[string]*sessionEntry),
		pools:             make(map[domain.TimeSlot]*slotPool),
		triggers:          make(chan domain.TimeSlot, len(domain.AllSlots())),
	}
	for _, s := range domain.AllSlots() {
		e.pools[s] = &slotPool{}
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.matrixConcurrency <= 0 {
		e.matrixConcurrency = 1
	}
	return e
}

func (e *Engine) Policy() Policy { return e.policy }

// Triggers delivers a slot whenever its pending pool reaches the policy
// threshold. Signals are coalesced; a full channel drops the signal.
func (e *Engine) Triggers() <-chan domain.TimeSlot { return e.triggers }

func (e *Engine) signal(slot domain.TimeSlot) {
	select {
	case e.triggers <- slot:
	default:
	}
}

func (e *Engine) order(id string) (*orderEntry, bool) {
	e.ordersMu.RLock()
	defer e.ordersMu.RUnlock()
	oe, ok := e.orders[id]
	return oe, ok
}

func (e *Engine) route(id string) (*routeEntry, bool) {
	e.routesMu.RLock()
	defer e.routesMu.RUnlock()
	re, ok := e.routes[id]
	return re, ok
}

func (e *Engine) session(driverID string) (*sessionEntry, bool) {
	e.sessionsMu.RLock()
	defer e.sessionsMu.RUnlock()
	se, ok := e.sessions[driverID]
	return se, ok
}

// routeEntries returns the registered routes ordered by id so sweeps visit
// them deterministically.
func (e *Engine) routeEntries() []*routeEntry {
	e.routesMu.RLock()
	ids := make([]string, 0, len(e.routes))
	for id := range e.routes {
		ids = append(ids, id)
	}
	e.routesMu.RUnlock()

	sort.Strings(ids)
	out := make([]*routeEntry, 0, len(ids))
	for _, id := range ids {
		if re, ok := e.route(id); ok {
			out = append(out, re)
		}
	}
	return out
}

func (e *Engine) sessionEntries() []*sessionEntry {
	e.sessionsMu.RLock()
	defer e.sessionsMu.RUnlock()
	out := make([]*sessionEntry, 0, len(e.sessions))
	for _, se := range e.sessions {
		out = append(out, se)
	}
	return out
}

// orderSnapshot copies the current state of the given orders. Missing ids
// are reported separately.
func (e *Engine) orderSnapshot(ids []string) (map[string]domain.Order, []string) {
	out := make(map[string]domain.Order, len(ids))
	var missing []string
	for _, id := range ids {
		oe, ok := e.order(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		oe.mu.Lock()
		out[id] = oe.order
		oe.mu.Unlock()
	}
	return out, missing
}

// Journal writes happen after the in-memory change, while the lock of the
// changed entity is still held, so writes for one entity reach the journal
// in the order they were made. They outlive the request context. Failures
// are logged; the engine stays authoritative.

func (e *Engine) saveOrder(ctx context.Context, o domain.Order) {
	if e.journal == nil {
		return
	}
	if err := e.journal.SaveOrder(context.WithoutCancel(ctx), o); err != nil {
		e.log.ErrorContext(ctx, "journal order failed", "order_id", o.ID, "err", err)
	}
}

func (e *Engine) saveRoute(ctx context.Context, r domain.Route) {
	if e.journal == nil {
		return
	}
	if err := e.journal.SaveRoute(context.WithoutCancel(ctx), r); err != nil {
		e.log.ErrorContext(ctx, "journal route failed", "route_id", r.ID, "err", err)
	}
}

func (e *Engine) saveSession(ctx context.Context, s domain.DriverSession) {
	if e.journal == nil {
		return
	}
	if err := e.journal.SaveSession(context.WithoutCancel(ctx), s); err != nil {
		e.log.ErrorContext(ctx, "journal session failed", "driver_id", s.DriverID, "err", err)
	}
}

func (e *Engine) saveEarnings(ctx context.Context, rec domain.EarningsRecord) {
	if e.journal == nil {
		return
	}
	if err := e.journal.SaveEarnings(context.WithoutCancel(ctx), rec); err != nil {
		e.log.ErrorContext(ctx, "journal earnings failed", "route_id", rec.RouteID, "err", err)
	}
}

func routeEvent(t ports.EventType, r domain.Route, at time.Time) ports.Event {
	return ports.Event{Type: t, Slot: r.TimeSlot, RouteID: r.ID, DriverID: r.ClaimedBy, OccurredAt: at}
}

// publish is called with no locks held.
func (e *Engine) publish(ctx context.Context, events ...ports.Event) {
	if e.publisher == nil {
		return
	}
	for _, ev := range events {
		if err := e.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
			e.log.WarnContext(ctx, "publish event failed", "type", ev.Type, "route_id", ev.RouteID, "err", err)
		}
	}
}
