package session_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/session"
)

func TestRedisLockerSerialises(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	locker := session.RedisLocker{R: client, TTL: time.Second, Retry: 5 * time.Millisecond}
	ctx := context.Background()
	var active, maxActive int32
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(ctx, "cart:lock:u1", func(context.Context) error {
				cur := atomic.AddInt32(&active, 1)
				for {
					prev := atomic.LoadInt32(&maxActive)
					if cur <= prev || atomic.CompareAndSwapInt32(&maxActive, prev, cur) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil
			})
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.EqualValues(t, 1, maxActive)
	require.False(t, mr.Exists("cart:lock:u1"))
}

func TestRedisLockerTimesOut(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	require.NoError(t, mr.Set("cart:lock:u1", "someone-else"))

	locker := session.RedisLocker{R: client, Retry: time.Millisecond, Wait: 20 * time.Millisecond}
	err := locker.WithLock(context.Background(), "cart:lock:u1", func(context.Context) error {
		t.Fatal("callback must not run")
		return nil
	})
	require.ErrorIs(t, err, session.ErrLockTimeout)
	v, _ := mr.Get("cart:lock:u1")
	require.Equal(t, "someone-else", v)
}

func TestLocalLockerTimesOutAndCleansUp(t *testing.T) {
	locker := &session.LocalLocker{Wait: 10 * time.Millisecond}
	ctx := context.Background()
	held := make(chan struct{})
	done := make(chan struct{})
	go func() {
		_ = locker.WithLock(ctx, "k", func(context.Context) error {
			close(held)
			<-done
			return nil
		})
	}()
	<-held
	err := locker.WithLock(ctx, "k", func(context.Context) error { return nil })
	require.ErrorIs(t, err, session.ErrLockTimeout)
	close(done)

	require.Eventually(t, func() bool {
		return locker.WithLock(ctx, "k", func(context.Context) error { return nil }) == nil
	}, time.Second, 5*time.Millisecond)
}
