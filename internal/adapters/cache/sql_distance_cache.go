package cache

import (
	"context"
	"database/sql"
	"delivery-dispatch-service/internal/platform/obs"
	"delivery-dispatch-service/internal/ports"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SQLDistanceCache is a Postgres-backed cache for origin->destination
// distance results keyed by coordinate keys.
type SQLDistanceCache struct {
	DB *sql.DB
	// Entries older than MaxAge are treated as misses. Zero keeps them forever.
	MaxAge time.Duration
}

func NewSQLDistanceCache(db *sql.DB, maxAge time.Duration) *SQLDistanceCache {
	return &SQLDistanceCache{DB: db, MaxAge: maxAge}
}

// Fetch cached distances for one origin and multiple destinations.
func (s *SQLDistanceCache) GetMany(
	ctx context.Context,
	origin string,
	destinations []string,
) (_ map[string]ports.DistanceResult, err error) {
	defer obs.Time(ctx, "distance.cache.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("distance cache: db is nil")
	}
	if origin == "" {
		return nil, errors.New("get distance cache: origin must not be empty")
	}

	uniq := uniqueKeys(destinations)
	if len(uniq) == 0 {
		return map[string]ports.DistanceResult{}, nil
	}

	// A zero cutoff matches every row.
	var cutoff time.Time
	if s.MaxAge > 0 {
		cutoff = time.Now().Add(-s.MaxAge)
	}

	q := `
	SELECT destination, distance_meters, duration_seconds
	FROM distance_cache
	WHERE origin = $1
		AND destination = ANY($2::text[])
		AND fetched_at >= $3;
	`

	rows, err := s.DB.QueryContext(ctx, q, origin, uniq, cutoff)
	if err != nil {
		return nil, fmt.Errorf("get distance cache: query distance_cache table: %w", err)
	}
	defer rows.Close()

	out := make(map[string]ports.DistanceResult, len(uniq))
	for rows.Next() {
		var dest string
		var r ports.DistanceResult
		if err := rows.Scan(&dest, &r.DistanceMeters, &r.DurationSeconds); err != nil {
			return nil, fmt.Errorf("get distance cache: scan rows: %w", err)
		}
		out[dest] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get distance cache: row iteration: %w", err)
	}

	return out, nil
}

// Store many distance results for a single origin in one statement.
func (s *SQLDistanceCache) PutMany(
	ctx context.Context,
	origin string,
	results map[string]ports.DistanceResult,
) (err error) {
	defer obs.Time(ctx, "distance.cache.PutMany")(&err)

	if s.DB == nil {
		return errors.New("distance cache: db is nil")
	}
	if origin == "" {
		return errors.New("insert distance cache: origin must not be empty")
	}
	if len(results) == 0 {
		return nil
	}

	dests := make([]string, 0, len(results))
	meters := make([]int64, 0, len(results))
	seconds := make([]int64, 0, len(results))
	for dest, r := range results {
		if strings.TrimSpace(dest) == "" {
			return errors.New("insert distance cache: empty destination key")
		}
		dests = append(dests, dest)
		meters = append(meters, int64(r.DistanceMeters))
		seconds = append(seconds, int64(r.DurationSeconds))
	}

	q := `
	INSERT INTO distance_cache (origin, destination, distance_meters, duration_seconds, fetched_at)
	SELECT $1, t.destination, t.meters, t.seconds, now()
	FROM unnest($2::text[], $3::bigint[], $4::bigint[]) AS t(destination, meters, seconds)
	ON CONFLICT (origin, destination) DO UPDATE
	SET distance_meters = EXCLUDED.distance_meters,
		duration_seconds = EXCLUDED.duration_seconds,
		fetched_at = EXCLUDED.fetched_at;
	`

	if _, err := s.DB.ExecContext(ctx, q, origin, dests, meters, seconds); err != nil {
		return fmt.Errorf("insert distance cache origin=%q: %w", origin, err)
	}

	return nil
}
