package session_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/catalog"
	"github.com/noah-isme/toko-cart/internal/pricing"
	"github.com/noah-isme/toko-cart/internal/session"
)

var fixedNow = time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)

func testCatalog() catalog.Payload {
	return catalog.Payload{
		Products: []cart.Product{
			{ID: "mug", Name: "Mug", Amount: pricing.NewMoney(1000), Stock: 5, DiscountCodes: cart.NewCodeSet("X")},
			{ID: "poster", Name: "Poster", Amount: pricing.NewMoney(2500), Stock: 2},
		},
		Discounts: []cart.Discount{{Code: "X", Amount: pricing.NewMoney(1000), Type: pricing.KindPercent, Available: true}},
		Coupons:   []cart.Coupon{{Code: "FIVE", Amount: pricing.NewMoney(500), Type: pricing.KindFlat, Available: true}},
	}
}

type countingSource struct {
	calls   atomic.Int32
	payload catalog.Payload
	err     error
}

func (s *countingSource) Load(context.Context) (catalog.Payload, error) {
	s.calls.Add(1)
	return s.payload, s.err
}

func newRedisManager(t *testing.T, src catalog.Source) (*session.Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	env := cart.DefaultEnv()
	env.Now = func() time.Time { return fixedNow }
	return &session.Manager{
		Store:   session.RedisStore{R: client},
		Locker:  session.RedisLocker{R: client, TTL: time.Second, Retry: time.Millisecond},
		Catalog: src,
		Env:     env,
		TTL:     time.Hour,
		Logger:  zerolog.Nop(),
	}, mr
}

func mug(t *testing.T, state cart.State) cart.Product {
	t.Helper()
	p, ok := state.FindProduct("mug")
	require.True(t, ok)
	return p
}

func TestApplySeedsFromCatalogAndPersists(t *testing.T) {
	src := &countingSource{payload: testCatalog()}
	m, mr := newRedisManager(t, src)
	ctx := context.Background()

	state, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, state.Products, 2)
	require.Equal(t, "u1", state.Cart.UserID)
	require.False(t, mr.Exists(session.DefaultKeyPrefix+"u1"), "get must not persist")

	state, err = m.Apply(ctx, "u1", cart.AddToCart{Product: mug(t, state), Count: 2, IsChecked: true})
	require.NoError(t, err)
	require.True(t, pricing.NewMoney(1800).Equal(state.Cart.TotalPrice))
	require.True(t, mr.Exists(session.DefaultKeyPrefix+"u1"))
	require.Equal(t, time.Hour, mr.TTL(session.DefaultKeyPrefix+"u1"))

	// the snapshot is reused; the catalog is not read again
	calls := src.calls.Load()
	state, err = m.Apply(ctx, "u1", cart.ApplyCoupon{Code: "FIVE"})
	require.NoError(t, err)
	require.Equal(t, calls, src.calls.Load())
	require.True(t, pricing.NewMoney(1300).Equal(state.Cart.TotalPrice))

	got, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got.Cart.Items, 1)
	require.Equal(t, "FIVE", got.Cart.Coupon.Code)
}

func TestApplyKeepsUsersApart(t *testing.T) {
	m, _ := newRedisManager(t, &countingSource{payload: testCatalog()})
	ctx := context.Background()
	seed, err := m.Get(ctx, "a")
	require.NoError(t, err)

	_, err = m.Apply(ctx, "a", cart.AddToCart{Product: mug(t, seed), Count: 1, IsChecked: true})
	require.NoError(t, err)
	other, err := m.Get(ctx, "b")
	require.NoError(t, err)
	require.Empty(t, other.Cart.Items)
}

func TestClearCartKeepsOwner(t *testing.T) {
	m, _ := newRedisManager(t, &countingSource{payload: testCatalog()})
	state, err := m.Apply(context.Background(), "u1", cart.ClearCart{})
	require.NoError(t, err)
	require.Equal(t, "u1", state.Cart.UserID)
	require.Empty(t, state.Discounts)
	require.Len(t, state.Products, 2)
}

func TestApplyRequiresUser(t *testing.T) {
	m, _ := newRedisManager(t, nil)
	_, err := m.Apply(context.Background(), "  ", cart.ClearCart{})
	require.ErrorIs(t, err, session.ErrNoUser)
	_, err = m.Get(context.Background(), "")
	require.ErrorIs(t, err, session.ErrNoUser)
}

func TestReloadFailureLeavesSnapshot(t *testing.T) {
	src := &countingSource{payload: testCatalog()}
	m, _ := newRedisManager(t, src)
	ctx := context.Background()
	seed, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	before, err := m.Apply(ctx, "u1", cart.AddToCart{Product: mug(t, seed), Count: 1, IsChecked: true})
	require.NoError(t, err)

	src.err = errors.New("upstream down")
	_, err = m.Reload(ctx, "u1")
	require.ErrorIs(t, err, session.ErrCatalogUnavailable)

	after, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, before.Seq, after.Seq)
	require.Len(t, after.Cart.Items, 1)
}

func TestReloadReplacesReferenceData(t *testing.T) {
	src := &countingSource{payload: testCatalog()}
	m, _ := newRedisManager(t, src)
	ctx := context.Background()
	seed, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	_, err = m.Apply(ctx, "u1", cart.AddToCart{Product: mug(t, seed), Count: 1, IsChecked: true})
	require.NoError(t, err)

	updated := testCatalog()
	updated.Products = updated.Products[:1]
	src.payload = updated
	state, err := m.Reload(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, state.Products, 1)
	require.Len(t, state.Cart.Items, 1)
}

func TestConcurrentAppliesAreSerialised(t *testing.T) {
	m, _ := newRedisManager(t, &countingSource{payload: testCatalog()})
	m.Locker = session.RedisLocker{R: m.Store.(session.RedisStore).R, TTL: 5 * time.Second, Retry: time.Millisecond}
	ctx := context.Background()
	seed, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	p := mug(t, seed)

	const workers = 10
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Apply(ctx, "u1", cart.AddToCart{Product: p, Count: 1, IsChecked: true})
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	state, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, workers, state.Cart.Items[0].Count)
	require.EqualValues(t, workers, state.Seq)
}

func TestMemoryStoreExpires(t *testing.T) {
	store := session.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "u1", cart.NewState(), time.Nanosecond))
	time.Sleep(time.Millisecond)
	_, ok, err := store.Load(ctx, "u1")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, store.Save(ctx, "u2", cart.NewState(), 0))
	_, ok, err = store.Load(ctx, "u2")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, store.Delete(ctx, "u2"))
	_, ok, _ = store.Load(ctx, "u2")
	require.False(t, ok)
}

func TestMemoryManagerWithLocalLocker(t *testing.T) {
	env := cart.DefaultEnv()
	m := &session.Manager{
		Store:   session.NewMemoryStore(),
		Locker:  &session.LocalLocker{},
		Catalog: catalog.SourceFunc(func(context.Context) (catalog.Payload, error) { return testCatalog(), nil }),
		Env:     env,
		Logger:  zerolog.Nop(),
	}
	ctx := context.Background()
	seed, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	_, err = m.Apply(ctx, "u1", cart.AddToCart{Product: mug(t, seed), Count: 3, IsChecked: true})
	require.NoError(t, err)
	state, err := m.Apply(ctx, "u1", cart.ApplyDiscount{Code: "X"})
	require.NoError(t, err)
	require.True(t, pricing.NewMoney(2700).Equal(state.Cart.SubTotal))
	require.NoError(t, m.Discard(ctx, "u1"))
}
