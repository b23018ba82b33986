// Package app assembles the collaborators shared by cmd/api and cmd/worker.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/catalog"
	"github.com/noah-isme/toko-cart/internal/config"
	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/pricing"
	"github.com/noah-isme/toko-cart/internal/ratelimit"
	"github.com/noah-isme/toko-cart/internal/session"
)

// Dependencies enumerates the services built from configuration.
type Dependencies struct {
	Config *config.Config
	Logger zerolog.Logger
	// Redis and DB are nil when not configured.
	Redis *redis.Client
	DB    *pgxpool.Pool
	// Catalog is the cached source when Redis is available.
	Catalog  catalog.Source
	Cached   *catalog.CachedSource
	Sessions *session.Manager
	Limiter  ratelimit.Limiter
}

// Build connects to configured backends and wires the cart stack.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*Dependencies, error) {
	deps := &Dependencies{Config: cfg, Logger: logger}
	var err error
	if cfg.RedisURL != "" {
		if deps.Redis, err = NewRedis(ctx, cfg.RedisURL, cfg.Obs.MetricsEnabled); err != nil {
			return nil, err
		}
	}
	if cfg.DatabaseURL != "" && cfg.Catalog.Source == config.CatalogPostgres {
		if deps.DB, err = NewPool(ctx, cfg.DatabaseURL); err != nil {
			deps.Close()
			return nil, err
		}
	}
	deps.Catalog, deps.Cached, err = NewCatalogSource(cfg, deps.DB, deps.Redis, logger)
	if err != nil {
		deps.Close()
		return nil, err
	}
	env, err := CartEnv(cfg.Cart)
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.Sessions = NewSessionManager(cfg.Cart, deps.Redis, deps.Catalog, env, logger)
	if cfg.Limits.Enabled {
		if deps.Limiter, err = NewLimiter(cfg.Limits, deps.Redis); err != nil {
			deps.Close()
			return nil, err
		}
	}
	return deps, nil
}

// Close releases backend connections.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
}

// NewRedis connects, instruments and pings a Redis client.
func NewRedis(ctx context.Context, url string, metrics bool) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		return nil, fmt.Errorf("instrument redis tracing: %w", err)
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			return nil, fmt.Errorf("instrument redis metrics: %w", err)
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewPool opens the catalog database pool with query tracing.
func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "toko-cart"
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// NewCatalogSource picks the configured source and wraps it in a Redis cache
// when a client is available. The returned CachedSource is nil without Redis.
func NewCatalogSource(cfg *config.Config, db *pgxpool.Pool, rdb *redis.Client, logger zerolog.Logger) (catalog.Source, *catalog.CachedSource, error) {
	var base catalog.Source
	switch cfg.Catalog.Source {
	case config.CatalogFile:
		base = catalog.FileSource{Path: cfg.Catalog.File}
	case config.CatalogHTTP:
		src := catalog.NewHTTPSource(cfg.Catalog.URL, cfg.Catalog.HTTPTimeout)
		src.Breaker.Logger = obs.Component(logger, "breaker")
		base = src
	case config.CatalogPostgres:
		if db == nil {
			return nil, nil, errors.New("catalog: postgres source needs a database pool")
		}
		base = catalog.PostgresSource{DB: db}
	default:
		return nil, nil, fmt.Errorf("catalog: unsupported source %q", cfg.Catalog.Source)
	}
	if rdb == nil {
		return base, nil, nil
	}
	catalogLogger := obs.Component(logger, "catalog")
	cached := &catalog.CachedSource{
		Source: base,
		Cache:  catalog.NewCache(rdb, cfg.Catalog.CacheTTL),
		Logger: &catalogLogger,
	}
	return cached, cached, nil
}

// CartEnv builds the reducer environment from configuration.
func CartEnv(cfg config.CartConfig) (cart.Env, error) {
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return cart.Env{}, fmt.Errorf("load cart time zone: %w", err)
	}
	return cart.Env{
		Now:      time.Now,
		Location: loc,
		DefaultDiscount: pricing.Adjustment{
			Kind:   pricing.KindPercent,
			Amount: pricing.NewMoney(cfg.DefaultDiscountPercent * 100),
		},
	}, nil
}

// NewSessionManager shares state through Redis when available and keeps it in
// process otherwise.
func NewSessionManager(cfg config.CartConfig, rdb *redis.Client, src catalog.Source, env cart.Env, logger zerolog.Logger) *session.Manager {
	m := &session.Manager{
		Catalog: src,
		Env:     env,
		TTL:     cfg.TTL,
		Logger:  obs.Component(logger, "session"),
	}
	if rdb != nil {
		m.Store = session.RedisStore{R: rdb}
		m.Locker = session.RedisLocker{R: rdb, TTL: cfg.LockTTL, Retry: cfg.LockRetry, Wait: cfg.LockWait}
	} else {
		m.Store = session.NewMemoryStore()
		m.Locker = &session.LocalLocker{Wait: cfg.LockWait}
	}
	return m
}

// NewLimiter builds the cart write limiter.
func NewLimiter(cfg config.LimitConfig, rdb *redis.Client) (ratelimit.Limiter, error) {
	if rdb != nil {
		return ratelimit.NewRedis(rdb, cfg.Rate)
	}
	return ratelimit.NewMemory(cfg.Rate)
}
