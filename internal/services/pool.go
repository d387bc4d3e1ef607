package services

import (
	"delivery-dispatch-service/internal/domain"
	"sync"
)

// slotPool is the queue of order ids awaiting a route in one time slot.
type slotPool struct {
	mu        sync.Mutex
	pending   []string
	colourSeq int
}

// add appends ids and returns the new pool size.
func (p *slotPool) add(ids ...string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending = append(p.pending, ids...)
	return len(p.pending)
}

// drain empties the pool so a single batch owns its orders.
func (p *slotPool) drain() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	ids := p.pending
	p.pending = nil
	return ids
}

func (p *slotPool) size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// nextColours reserves n consecutive palette colours for the slot.
func (p *slotPool) nextColours(n int) []domain.Colour {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.Colour, n)
	for i := range out {
		out[i] = domain.ColourAt(p.colourSeq)
		p.colourSeq++
	}
	return out
}

// PoolSize reports how many orders are waiting in a slot.
func (e *Engine) PoolSize(slot domain.TimeSlot) int {
	p, ok := e.pools[slot]
	if !ok {
		return 0
	}
	return p.size()
}
