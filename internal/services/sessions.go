package services

import (
	"context"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/platform/obs"
	"fmt"
	"strings"
)

// GoOnline starts or resumes a driver session and selects the slot the
// driver is working. An empty slot means every slot.
func (e *Engine) GoOnline(ctx context.Context, driverID, slot string) (_ domain.DriverSession, err error) {
	defer obs.Time(ctx, "sessions.GoOnline")(&err)

	driverID = strings.TrimSpace(driverID)
	if driverID == "" {
		return domain.DriverSession{}, fmt.Errorf("go online: %w", invalid("driver id is required"))
	}

	var ts domain.TimeSlot
	if s := strings.TrimSpace(slot); s != "" {
		ts, err = domain.ParseTimeSlot(s)
		if err != nil {
			return domain.DriverSession{}, fmt.Errorf("go online: %w", invalid("%v", err))
		}
	}

	e.sessionsMu.Lock()
	se, ok := e.sessions[driverID]
	if !ok {
		se = &sessionEntry{session: domain.DriverSession{DriverID: driverID, Status: domain.DriverOffline}}
		e.sessions[driverID] = se
	}
	e.sessionsMu.Unlock()

	now := e.now()
	se.mu.Lock()
	s := &se.session
	if s.Status == domain.DriverOffline {
		s.StartedAt = now
	}
	s.Status = domain.DriverOnline
	s.TimeSlot = ts
	s.LastSeen = now
	s.OfflineSince = nil
	out := *s
	e.saveSession(ctx, out)
	se.mu.Unlock()

	e.log.InfoContext(ctx, "driver online", "driver_id", driverID, "slot", ts, "route_id", out.CurrentRouteID)
	return out, nil
}

// GoOffline marks the driver offline. A held route is kept until the
// abandonment sweep decides the driver is gone for good.
func (e *Engine) GoOffline(ctx context.Context, driverID string) (_ domain.DriverSession, err error) {
	defer obs.Time(ctx, "sessions.GoOffline")(&err)

	se, ok := e.session(driverID)
	if !ok {
		return domain.DriverSession{}, fmt.Errorf("go offline %s: %w", driverID, domain.ErrDriverNotFound)
	}

	now := e.now()
	se.mu.Lock()
	s := &se.session
	if s.Status != domain.DriverOffline {
		s.Status = domain.DriverOffline
		s.OfflineSince = &now
	}
	out := *s
	e.saveSession(ctx, out)
	se.mu.Unlock()

	e.log.InfoContext(ctx, "driver offline", "driver_id", driverID, "route_id", out.CurrentRouteID)
	return out, nil
}

// Heartbeat records that an online driver is still reachable.
func (e *Engine) Heartbeat(ctx context.Context, driverID string) (domain.DriverSession, error) {
	se, ok := e.session(driverID)
	if !ok {
		return domain.DriverSession{}, fmt.Errorf("heartbeat %s: %w", driverID, domain.ErrDriverNotFound)
	}

	se.mu.Lock()
	if se.session.Status != domain.DriverOnline {
		se.mu.Unlock()
		return domain.DriverSession{}, fmt.Errorf("heartbeat %s: %w", driverID, domain.ErrDriverOffline)
	}
	se.session.LastSeen = e.now()
	out := se.session
	e.saveSession(ctx, out)
	se.mu.Unlock()

	return out, nil
}

func (e *Engine) GetSession(ctx context.Context, driverID string) (domain.DriverSession, error) {
	se, ok := e.session(driverID)
	if !ok {
		return domain.DriverSession{}, fmt.Errorf("get session %s: %w", driverID, domain.ErrDriverNotFound)
	}
	se.mu.Lock()
	defer se.mu.Unlock()
	out := se.session
	if out.OfflineSince != nil {
		t := *out.OfflineSince
		out.OfflineSince = &t
	}
	return out, nil
}
