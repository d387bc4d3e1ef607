package distance

import (
	"context"
	"delivery-dispatch-service/internal/domain"
	"delivery-dispatch-service/internal/platform/obs"
	"delivery-dispatch-service/internal/ports"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

type ORSOptions struct {
	APIKey  string
	BaseURL string
	Profile string
	// Optional; a client with a 10s timeout is used when nil.
	HTTPClient *http.Client
}

// ORSDistanceProvider implements DistanceMatrixProvider and Geocoder using
// OpenRouteService.
//
// It coordinates:
//   - Persistent distance matrix caching (Postgres, Redis or both)
//   - Persistent geocode caching
//   - External API calls with retry/backoff
//
// The provider is safe for concurrent use.
type ORSDistanceProvider struct {
	session       *http.Client
	apiKey        string
	baseURL       string
	profile       string
	distanceCache ports.DistanceCache
	geocodeCache  ports.GeocodeCache

	maxAttempts int
	backoff     time.Duration
}

func NewORSDistanceProvider(
	opts ORSOptions,
	distanceCache ports.DistanceCache,
	geocodeCache ports.GeocodeCache,
) (*ORSDistanceProvider, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("ORS api key is empty")
	}

	provider := &ORSDistanceProvider{
		session:       opts.HTTPClient,
		apiKey:        opts.APIKey,
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		profile:       opts.Profile,
		distanceCache: distanceCache,
		geocodeCache:  geocodeCache,
		maxAttempts:   4,
		backoff:       200 * time.Millisecond,
	}
	if provider.session == nil {
		provider.session = &http.Client{Timeout: 10 * time.Second}
	}
	if provider.baseURL == "" {
		provider.baseURL = "https://api.openrouteservice.org"
	}
	if provider.profile == "" {
		provider.profile = "driving-car"
	}

	return provider, nil
}

// Delegate to batched path to reuse caching and matrix logic.
func (o *ORSDistanceProvider) GetDistance(
	ctx context.Context,
	origin domain.Coordinates,
	destination domain.Coordinates,
) (ports.DistanceResult, error) {
	results, err := o.GetDistances(ctx, origin, []domain.Coordinates{destination})
	if err != nil {
		return ports.DistanceResult{}, fmt.Errorf(
			"get distances %s -> %s: %w",
			origin.Key(), destination.Key(), err,
		)
	}

	result, ok := results[destination.Key()]
	if !ok {
		return ports.DistanceResult{}, fmt.Errorf("no distance result for %s -> %s", origin.Key(), destination.Key())
	}

	return result, nil
}

// Compute distances from a single origin to many destinations.
func (o *ORSDistanceProvider) GetDistances(
	ctx context.Context,
	origin domain.Coordinates,
	destinations []domain.Coordinates,
) (_ map[string]ports.DistanceResult, err error) {
	defer obs.Time(ctx, "ors.GetDistances")(&err)

	if !origin.Valid() {
		return nil, fmt.Errorf("origin %s is out of range", origin.Key())
	}

	originKey := origin.Key()
	out := make(map[string]ports.DistanceResult, len(destinations))

	seen := make(map[string]struct{}, len(destinations))
	destKeys := make([]string, 0, len(destinations))
	byKey := make(map[string]domain.Coordinates, len(destinations))
	for _, d := range destinations {
		if !d.Valid() {
			return nil, fmt.Errorf("destination %s is out of range", d.Key())
		}
		k := d.Key()
		if k == originKey {
			out[k] = ports.DistanceResult{}
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		destKeys = append(destKeys, k)
		byKey[k] = d
	}

	if len(destKeys) == 0 {
		return out, nil
	}

	// Check the distance cache before issuing external API calls.
	if o.distanceCache != nil {
		hits, err := o.distanceCache.GetMany(ctx, originKey, destKeys)
		if err != nil {
			return nil, fmt.Errorf("ORS get distance cache: %w", err)
		}
		for k, v := range hits {
			out[k] = v
		}
	}

	misses := make([]string, 0, len(destKeys))
	missCoords := make([]domain.Coordinates, 0, len(destKeys))
	for _, k := range destKeys {
		if _, ok := out[k]; !ok {
			misses = append(misses, k)
			missCoords = append(missCoords, byKey[k])
		}
	}

	if len(misses) == 0 {
		return out, nil
	}

	// Fetch a single origin->many matrix row for all cache misses.
	fetched, err := o.fetchMatrixRow(ctx, origin, misses, missCoords)
	if err != nil {
		return nil, fmt.Errorf("fetching matrix row: %w", err)
	}

	missing := make([]string, 0)
	for _, k := range misses {
		if _, ok := fetched[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf(
			"ORS matrix service did not return the following destinations: %s",
			strings.Join(missing, ", "),
		)
	}

	if o.distanceCache != nil {
		if err := o.distanceCache.PutMany(ctx, originKey, fetched); err != nil {
			slog.WarnContext(ctx, "distance cache write failed", "origin", originKey, "err", err)
		}
	}

	for k, v := range fetched {
		out[k] = v
	}

	return out, nil
}
