package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-cart/internal/cart"
)

// Store persists cart snapshots by user id.
type Store interface {
	// Load reports false when the user has no live snapshot.
	Load(ctx context.Context, userID string) (cart.State, bool, error)
	Save(ctx context.Context, userID string, state cart.State, ttl time.Duration) error
	Delete(ctx context.Context, userID string) error
}

// DefaultKeyPrefix namespaces snapshot keys in Redis.
const DefaultKeyPrefix = "cart:session:"

// RedisStore keeps snapshots as JSON strings with a sliding TTL.
type RedisStore struct {
	R      *redis.Client
	Prefix string
}

func (s RedisStore) key(userID string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return prefix + userID
}

func (s RedisStore) Load(ctx context.Context, userID string) (cart.State, bool, error) {
	data, err := s.R.Get(ctx, s.key(userID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return cart.State{}, false, nil
		}
		return cart.State{}, false, fmt.Errorf("load snapshot: %w", err)
	}
	var state cart.State
	if err := json.Unmarshal(data, &state); err != nil {
		return cart.State{}, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return state, true, nil
}

func (s RedisStore) Save(ctx context.Context, userID string, state cart.State, ttl time.Duration) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.R.Set(ctx, s.key(userID), data, ttl).Err(); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

func (s RedisStore) Delete(ctx context.Context, userID string) error {
	return s.R.Del(ctx, s.key(userID)).Err()
}

// MemoryStore is a process-local Store used when Redis is not configured.
type MemoryStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	state   cart.State
	expires time.Time
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now, entries: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Load(_ context.Context, userID string) (cart.State, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[userID]
	if !ok {
		return cart.State{}, false, nil
	}
	if !e.expires.IsZero() && !s.now().Before(e.expires) {
		delete(s.entries, userID)
		return cart.State{}, false, nil
	}
	return e.state, true, nil
}

func (s *MemoryStore) Save(_ context.Context, userID string, state cart.State, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := memoryEntry{state: state}
	if ttl > 0 {
		e.expires = s.now().Add(ttl)
	}
	s.entries[userID] = e
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, userID)
	return nil
}
