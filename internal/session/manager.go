// Package session owns per-user cart state: each user's snapshot is loaded,
// reduced and saved under a lock so that commands for one user apply in order.
package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/catalog"
	"github.com/noah-isme/toko-cart/internal/obs"
)

var (
	// ErrNoUser is returned when a command arrives without a user id.
	ErrNoUser = cart.ErrNoUser
	// ErrCatalogUnavailable wraps catalog failures while seeding or reloading a cart.
	ErrCatalogUnavailable = cart.ErrCatalogUnavailable
)

const lockPrefix = "cart:lock:"

// Manager applies cart commands to persisted per-user snapshots.
type Manager struct {
	Store   Store
	Locker  Locker
	Catalog catalog.Source
	Env     cart.Env
	// TTL is refreshed on every save. Zero keeps snapshots forever.
	TTL    time.Duration
	Logger zerolog.Logger
}

// Apply runs cmd against the user's cart and returns the saved state.
func (m *Manager) Apply(ctx context.Context, userID string, cmd cart.Command) (cart.State, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return cart.State{}, ErrNoUser
	}
	start := time.Now()
	var next cart.State
	err := m.Locker.WithLock(ctx, lockPrefix+userID, func(ctx context.Context) error {
		state, err := m.current(ctx, userID)
		if err != nil {
			return err
		}
		// the owner is stamped after cmd so ClearCart snapshots stay attributable
		next = cart.ReduceAll(state, m.Env, cmd, cart.SetUser{UserID: userID})
		return m.Store.Save(ctx, userID, next, m.TTL)
	})

	result := "ok"
	if err != nil {
		result = "error"
		m.Logger.Error().Err(err).Str("user_id", userID).Str("command", cmd.Name()).Msg("cart command failed")
	} else {
		m.Logger.Debug().Str("user_id", userID).Str("command", cmd.Name()).
			Int("items", len(next.Cart.Items)).Str("total_price", next.Cart.TotalPrice.String()).Msg("cart command applied")
	}
	obs.ObserveCartCommand(cmd.Name(), result, obs.DurationMillis(time.Since(start)))
	if err != nil {
		return cart.State{}, err
	}
	return next, nil
}

// Get returns the user's current state. A user without a snapshot gets a
// fresh state seeded from the catalog; nothing is persisted.
func (m *Manager) Get(ctx context.Context, userID string) (cart.State, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return cart.State{}, ErrNoUser
	}
	state, err := m.current(ctx, userID)
	if err != nil {
		return cart.State{}, err
	}
	return cart.Reduce(state, cart.SetUser{UserID: userID}, m.Env), nil
}

// Reload re-reads the catalog and re-initializes the user's reference data.
// Cart items are kept. A failed catalog load leaves the snapshot untouched.
func (m *Manager) Reload(ctx context.Context, userID string) (cart.State, error) {
	payload, err := m.loadCatalog(ctx)
	if err != nil {
		return cart.State{}, err
	}
	return m.Apply(ctx, userID, payload.Command())
}

// Discard deletes the user's snapshot.
func (m *Manager) Discard(ctx context.Context, userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrNoUser
	}
	return m.Store.Delete(ctx, userID)
}

func (m *Manager) current(ctx context.Context, userID string) (cart.State, error) {
	state, ok, err := m.Store.Load(ctx, userID)
	if err != nil {
		return cart.State{}, err
	}
	if ok {
		return state, nil
	}
	payload, err := m.loadCatalog(ctx)
	if err != nil {
		return cart.State{}, err
	}
	return cart.Reduce(cart.NewState(), payload.Command(), m.Env), nil
}

func (m *Manager) loadCatalog(ctx context.Context) (catalog.Payload, error) {
	if m.Catalog == nil {
		return catalog.Payload{}, nil
	}
	payload, err := m.Catalog.Load(ctx)
	if err != nil {
		return catalog.Payload{}, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}
	return payload, nil
}
