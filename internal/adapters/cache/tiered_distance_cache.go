package cache

import (
	"context"
	"delivery-dispatch-service/internal/ports"
	"fmt"
	"log/slog"
)

// TieredDistanceCache reads through a fast cache to a durable one and
// backfills the fast tier on slow-tier hits. Writes go to both.
type TieredDistanceCache struct {
	Fast ports.DistanceCache
	Slow ports.DistanceCache
}

func (t *TieredDistanceCache) GetMany(ctx context.Context, origin string, destinations []string) (map[string]ports.DistanceResult, error) {
	out, err := t.Fast.GetMany(ctx, origin, destinations)
	if err != nil {
		// The fast tier is optional; fall through to the durable one.
		slog.WarnContext(ctx, "fast distance cache read failed", "origin", origin, "err", err)
		out = map[string]ports.DistanceResult{}
	}

	misses := make([]string, 0, len(destinations))
	for _, d := range destinations {
		if _, ok := out[d]; !ok {
			misses = append(misses, d)
		}
	}
	if len(misses) == 0 {
		return out, nil
	}

	slow, err := t.Slow.GetMany(ctx, origin, misses)
	if err != nil {
		return nil, fmt.Errorf("tiered distance cache: %w", err)
	}
	if len(slow) > 0 {
		if err := t.Fast.PutMany(ctx, origin, slow); err != nil {
			slog.WarnContext(ctx, "fast distance cache backfill failed", "origin", origin, "err", err)
		}
	}

	for k, v := range slow {
		out[k] = v
	}
	return out, nil
}

func (t *TieredDistanceCache) PutMany(ctx context.Context, origin string, results map[string]ports.DistanceResult) error {
	if err := t.Slow.PutMany(ctx, origin, results); err != nil {
		return fmt.Errorf("tiered distance cache: %w", err)
	}
	if err := t.Fast.PutMany(ctx, origin, results); err != nil {
		slog.WarnContext(ctx, "fast distance cache write failed", "origin", origin, "err", err)
	}
	return nil
}
