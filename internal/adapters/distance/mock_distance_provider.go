package distance

import (
	"context"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/ports"
	"fmt"
	"sync/atomic"
)

type MockPair struct {
	From, To domain.Coordinates
	Meters   int
	Seconds  int
}

// MockDistanceProvider serves fixed results for known coordinate pairs.
// Pairs are directional; a missing pair is an error.
type MockDistanceProvider struct {
	m     map[string]ports.DistanceResult
	calls atomic.Int64

	// Err, when set, is returned from every lookup.
	Err error
}

func NewMockDistanceProvider(pairs []MockPair) *MockDistanceProvider {
	m := make(map[string]ports.DistanceResult, len(pairs))
	for _, p := range pairs {
		m[p.From.Key()+"|"+p.To.Key()] = ports.DistanceResult{DistanceMeters: p.Meters, DurationSeconds: p.Seconds}
	}
	return &MockDistanceProvider{m: m}
}

func (p *MockDistanceProvider) GetDistance(ctx context.Context, origin, destination domain.Coordinates) (ports.DistanceResult, error) {
	p.calls.Add(1)

	if p.Err != nil {
		return ports.DistanceResult{}, p.Err
	}
	if origin.Key() == destination.Key() {
		return ports.DistanceResult{}, nil
	}

	r, ok := p.m[origin.Key()+"|"+destination.Key()]
	if !ok {
		return ports.DistanceResult{}, fmt.Errorf("missing pair %q -> %q", origin.Key(), destination.Key())
	}

	return r, nil
}

// Calls reports how many lookups were made.
func (p *MockDistanceProvider) Calls() int { return int(p.calls.Load()) }
