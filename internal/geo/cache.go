package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-availability/internal/metrics"
)

// SharedCache is a cross-process coordinate cache.
type SharedCache interface {
	Get(ctx context.Context, key string) (Coordinate, bool, error)
	Set(ctx context.Context, key string, c Coordinate, ttl time.Duration) error
}

type RedisCache struct {
	client *redis.Client
	prefix string
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client, prefix: "geocode:"}
}

func (r *RedisCache) Get(ctx context.Context, key string) (Coordinate, bool, error) {
	raw, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Coordinate{}, false, nil
	}
	if err != nil {
		return Coordinate{}, false, fmt.Errorf("redis get: %w", err)
	}

	var c Coordinate
	if err := json.Unmarshal(raw, &c); err != nil {
		return Coordinate{}, false, fmt.Errorf("decode cached coordinate: %w", err)
	}
	return c, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, c Coordinate, ttl time.Duration) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.prefix+key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// CachingGeocoder puts an in-process cache and an optional shared cache in
// front of another Geocoder. Only successful lookups are cached.
type CachingGeocoder struct {
	next    Geocoder
	local   *gocache.Cache
	shared  SharedCache
	ttl     time.Duration
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewCachingGeocoder wraps next. shared may be nil.
func NewCachingGeocoder(next Geocoder, shared SharedCache, ttl time.Duration, m *metrics.Metrics, log zerolog.Logger) *CachingGeocoder {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CachingGeocoder{
		next:    next,
		local:   gocache.New(ttl, ttl/2),
		shared:  shared,
		ttl:     ttl,
		metrics: m,
		log:     log.With().Str("component", "geocode_cache").Logger(),
	}
}

func (c *CachingGeocoder) Geocode(ctx context.Context, address string) (Coordinate, error) {
	key := normalizeAddress(address)
	if key == "" {
		return c.next.Geocode(ctx, address)
	}

	if v, ok := c.local.Get(key); ok {
		c.metrics.Geocode("local", "hit")
		return v.(Coordinate), nil
	}

	if c.shared != nil {
		coord, ok, err := c.shared.Get(ctx, key)
		switch {
		case err != nil:
			c.log.Warn().Err(err).Str("address", key).Msg("shared geocode cache read failed")
		case ok:
			c.metrics.Geocode("shared", "hit")
			c.local.Set(key, coord, gocache.DefaultExpiration)
			return coord, nil
		}
	}

	coord, err := c.next.Geocode(ctx, address)
	if err != nil {
		return Coordinate{}, err
	}

	c.local.Set(key, coord, gocache.DefaultExpiration)
	if c.shared != nil {
		if err := c.shared.Set(ctx, key, coord, c.ttl); err != nil {
			c.log.Warn().Err(err).Str("address", key).Msg("shared geocode cache write failed")
		}
	}
	return coord, nil
}
