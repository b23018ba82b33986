package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/obs"
)

// ErrLockTimeout is returned when a cart lock is not acquired in time.
var ErrLockTimeout = cart.ErrBusy

// Locker serialises work on one key.
type Locker interface {
	WithLock(ctx context.Context, key string, fn func(context.Context) error) error
}

const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then
  return redis.call("del", KEYS[1])
else
  return 0
end`

// RedisLocker is a SET NX lock shared by every API instance.
type RedisLocker struct {
	R     *redis.Client
	TTL   time.Duration
	Retry time.Duration
	// Wait bounds acquisition; zero waits until ctx is done.
	Wait time.Duration
}

// WithLock runs fn while holding key. The lock is released when fn returns,
// and only if this caller still owns it.
func (l RedisLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	if l.R == nil {
		return errors.New("session: redis client not configured")
	}
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	retry := l.Retry
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}
	waitCtx, cancel := withWait(ctx, l.Wait)
	defer cancel()

	token := uuid.NewString()
	for attempt := 0; ; attempt++ {
		ok, err := l.R.SetNX(waitCtx, key, token, ttl).Result()
		if err != nil {
			if waitCtx.Err() != nil && ctx.Err() == nil {
				return ErrLockTimeout
			}
			return err
		}
		if ok {
			break
		}
		if attempt == 0 {
			contended()
		}
		timer := time.NewTimer(retry)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrLockTimeout
		case <-timer.C:
		}
	}
	defer l.release(key, token)
	return fn(ctx)
}

func (l RedisLocker) release(key, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := l.R.Eval(ctx, releaseScript, []string{key}, token).Err(); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unknown command") {
			_ = l.R.Del(ctx, key).Err()
		}
	}
}

// LocalLocker serialises work inside a single process.
type LocalLocker struct {
	Wait time.Duration

	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	s := l.acquireSlot(key)
	defer l.releaseSlot(key, s)

	select {
	case s.ch <- struct{}{}:
	default:
		contended()
		waitCtx, cancel := withWait(ctx, l.Wait)
		defer cancel()
		select {
		case s.ch <- struct{}{}:
		case <-waitCtx.Done():
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return ErrLockTimeout
		}
	}
	defer func() { <-s.ch }()
	return fn(ctx)
}

func (l *LocalLocker) acquireSlot(key string) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.slots == nil {
		l.slots = make(map[string]*slot)
	}
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	return s
}

func (l *LocalLocker) releaseSlot(key string, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

func withWait(ctx context.Context, wait time.Duration) (context.Context, context.CancelFunc) {
	if wait <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, wait)
}

func contended() {
	if obs.CartLockContention != nil {
		obs.CartLockContention.Inc()
	}
}
