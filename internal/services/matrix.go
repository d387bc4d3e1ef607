package services

import (
	"context"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/ports"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// pairwise maps "origin|destination" coordinate keys to distance results.
type pairwise map[string]ports.DistanceResult

func (p pairwise) get(from, to domain.Coordinates) (ports.DistanceResult, bool) {
	if from.Key() == to.Key() {
		return ports.DistanceResult{}, true
	}
	r, ok := p[from.Key()+"|"+to.Key()]
	return r, ok
}

// fetchPairwise looks up the distance between every ordered pair of points.
// One origin row is fetched per goroutine, bounded by matrixConcurrency; the
// first failure cancels the rest.
func (e *Engine) fetchPairwise(ctx context.Context, points []domain.Coordinates) (pairwise, error) {
	seen := make(map[string]struct{}, len(points))
	uniq := make([]domain.Coordinates, 0, len(points))
	for _, p := range points {
		if _, ok := seen[p.Key()]; ok {
			continue
		}
		seen[p.Key()] = struct{}{}
		uniq = append(uniq, p)
	}

	out := make(pairwise, len(uniq)*len(uniq))
	if len(uniq) < 2 {
		return out, nil
	}

	mp, hasMatrix := e.provider.(ports.DistanceMatrixProvider)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.matrixConcurrency)

	for _, origin := range uniq {
		origin := origin
		targets := make([]domain.Coordinates, 0, len(uniq)-1)
		for _, t := range uniq {
			if t.Key() != origin.Key() {
				targets = append(targets, t)
			}
		}

		g.Go(func() error {
			row := make(map[string]ports.DistanceResult, len(targets))
			if hasMatrix {
				res, err := mp.GetDistances(gctx, origin, targets)
				if err != nil {
					return fmt.Errorf("get distances from %s: %w", origin.Key(), err)
				}
				row = res
			} else {
				for _, t := range targets {
					r, err := e.provider.GetDistance(gctx, origin, t)
					if err != nil {
						return fmt.Errorf("get distance %s -> %s: %w", origin.Key(), t.Key(), err)
					}
					row[t.Key()] = r
				}
			}

			mu.Lock()
			defer mu.Unlock()
			for _, t := range targets {
				r, ok := row[t.Key()]
				if !ok {
					return fmt.Errorf("missing distance %s -> %s", origin.Key(), t.Key())
				}
				out[origin.Key()+"|"+t.Key()] = r
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
