package cache

import (
	"context"
	"delivery-dispatch-service/internal/platform/obs"
	"delivery-dispatch-service/internal/ports"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisDistancePrefix = "dist:"

// RedisDistanceCache keeps distance results in Redis as "meters:seconds"
// strings with a TTL. It is the hot tier in front of SQLDistanceCache.
type RedisDistanceCache struct {
	client redis.UniversalClient
	ttl    time.Duration
}

func NewRedisDistanceCache(client redis.UniversalClient, ttl time.Duration) *RedisDistanceCache {
	return &RedisDistanceCache{client: client, ttl: ttl}
}

func redisDistanceKey(origin, dest string) string {
	return redisDistancePrefix + origin + "|" + dest
}

func (c *RedisDistanceCache) GetMany(
	ctx context.Context,
	origin string,
	destinations []string,
) (_ map[string]ports.DistanceResult, err error) {
	defer obs.Time(ctx, "distance.redis.GetMany")(&err)

	if origin == "" {
		return nil, errors.New("get redis distance cache: origin must not be empty")
	}

	uniq := uniqueKeys(destinations)
	if len(uniq) == 0 {
		return map[string]ports.DistanceResult{}, nil
	}

	keys := make([]string, len(uniq))
	for i, d := range uniq {
		keys[i] = redisDistanceKey(origin, d)
	}

	vals, err := c.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("get redis distance cache: mget: %w", err)
	}

	out := make(map[string]ports.DistanceResult, len(uniq))
	for i, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		r, err := parseDistanceValue(s)
		if err != nil {
			// Treat corrupt entries as misses; the next PutMany overwrites them.
			continue
		}
		out[uniq[i]] = r
	}

	return out, nil
}

func (c *RedisDistanceCache) PutMany(
	ctx context.Context,
	origin string,
	results map[string]ports.DistanceResult,
) (err error) {
	defer obs.Time(ctx, "distance.redis.PutMany")(&err)

	if origin == "" {
		return errors.New("insert redis distance cache: origin must not be empty")
	}
	if len(results) == 0 {
		return nil
	}

	_, err = c.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for dest, r := range results {
			p.Set(ctx, redisDistanceKey(origin, dest), formatDistanceValue(r), c.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("insert redis distance cache origin=%q: %w", origin, err)
	}

	return nil
}

func formatDistanceValue(r ports.DistanceResult) string {
	return strconv.Itoa(r.DistanceMeters) + ":" + strconv.Itoa(r.DurationSeconds)
}

func parseDistanceValue(s string) (ports.DistanceResult, error) {
	m, sec, ok := strings.Cut(s, ":")
	if !ok {
		return ports.DistanceResult{}, fmt.Errorf("malformed distance value %q", s)
	}
	meters, err := strconv.Atoi(m)
	if err != nil {
		return ports.DistanceResult{}, fmt.Errorf("malformed meters in %q: %w", s, err)
	}
	seconds, err := strconv.Atoi(sec)
	if err != nil {
		return ports.DistanceResult{}, fmt.Errorf("malformed seconds in %q: %w", s, err)
	}
	return ports.DistanceResult{DistanceMeters: meters, DurationSeconds: seconds}, nil
}
