package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// DefaultPrefix namespaces limiter counters in Redis.
const DefaultPrefix = "ratelimit:cart"

// Result reports the state of one key after a hit.
type Result struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	Reset     time.Time
}

// Limiter counts one hit for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// Fixed is a fixed-window limiter backed by a ulule store.
type Fixed struct {
	l *limiter.Limiter
}

// NewRedis builds a limiter shared across instances. rate uses the
// "<limit>-<period>" format, e.g. "120-M".
func NewRedis(rdb *redis.Client, rate string) (*Fixed, error) {
	store, err := limiterredis.NewStoreWithOptions(rdb, limiter.StoreOptions{Prefix: DefaultPrefix})
	if err != nil {
		return nil, fmt.Errorf("limiter store: %w", err)
	}
	return newFixed(store, rate)
}

// NewMemory builds a process-local limiter.
func NewMemory(rate string) (*Fixed, error) {
	return newFixed(memory.NewStoreWithOptions(limiter.StoreOptions{
		Prefix:          DefaultPrefix,
		CleanUpInterval: time.Minute,
	}), rate)
}

func newFixed(store limiter.Store, rate string) (*Fixed, error) {
	parsed, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("parse rate %q: %w", rate, err)
	}
	return &Fixed{l: limiter.New(store, parsed)}, nil
}

func (f *Fixed) Allow(ctx context.Context, key string) (Result, error) {
	lctx, err := f.l.Get(ctx, key)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Allowed:   !lctx.Reached,
		Limit:     lctx.Limit,
		Remaining: lctx.Remaining,
		Reset:     time.Unix(lctx.Reset, 0),
	}, nil
}
