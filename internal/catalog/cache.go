package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultCacheKey is where CachedSource stores the payload.
const DefaultCacheKey = "catalog:payload"

// Cache wraps Redis helpers for JSON payloads.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache constructs a cache helper. A zero ttl keeps entries until overwritten.
func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	if ttl < 0 {
		ttl = 0
	}
	return &Cache{client: client, ttl: ttl}
}

// GetJSON unmarshals a cached JSON payload into dst. It reports whether the key existed.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) (bool, error) {
	if c == nil || c.client == nil || key == "" {
		return false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON serialises v as JSON and stores it with the configured TTL.
func (c *Cache) SetJSON(ctx context.Context, key string, v any) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if c == nil || c.client == nil || key == "" {
		return nil
	}
	return c.client.Del(ctx, key).Err()
}

// CachedSource serves the payload from Redis and falls back to Source on a miss.
// Cache errors are logged and never fail a load.
type CachedSource struct {
	Source Source
	Cache  *Cache
	Key    string
	Logger *zerolog.Logger
}

func (s CachedSource) key() string {
	if s.Key == "" {
		return DefaultCacheKey
	}
	return s.Key
}

// Load returns the cached payload or reads through to the wrapped source.
func (s CachedSource) Load(ctx context.Context) (Payload, error) {
	var payload Payload
	hit, err := s.Cache.GetJSON(ctx, s.key(), &payload)
	if err != nil {
		s.warn(err, "read catalog cache")
	}
	if hit {
		observeLoad("cache", nil)
		return payload, nil
	}
	return s.Refresh(ctx)
}

// Refresh loads from the wrapped source and overwrites the cache entry.
func (s CachedSource) Refresh(ctx context.Context) (Payload, error) {
	if s.Source == nil {
		return Payload{}, errors.New("catalog: source not configured")
	}
	payload, err := s.Source.Load(ctx)
	if err != nil {
		return Payload{}, err
	}
	if err := s.Cache.SetJSON(ctx, s.key(), payload); err != nil {
		s.warn(err, "write catalog cache")
	}
	return payload, nil
}

// Invalidate drops the cache entry so the next Load reads through.
func (s CachedSource) Invalidate(ctx context.Context) error {
	return s.Cache.Delete(ctx, s.key())
}

func (s CachedSource) warn(err error, msg string) {
	if s.Logger == nil {
		return
	}
	s.Logger.Warn().Err(err).Str("key", s.key()).Msg(msg)
}
