package jobs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/catalog"
)

type stubRefresher struct {
	calls   int
	payload catalog.Payload
	err     error
}

func (s *stubRefresher) Refresh(context.Context) (catalog.Payload, error) {
	s.calls++
	return s.payload, s.err
}

func TestCatalogRefreshTask(t *testing.T) {
	task, err := NewCatalogRefreshTask("startup", time.Minute)
	require.NoError(t, err)
	require.Equal(t, TypeCatalogRefresh, task.Type())
	require.JSONEq(t, `{"reason":"startup"}`, string(task.Payload()))
}

func TestCatalogRefreshHandlerRefreshes(t *testing.T) {
	var buf bytes.Buffer
	refresher := &stubRefresher{payload: catalog.Payload{Products: []cart.Product{{ID: "p1", Name: "Mug"}}}}
	h := CatalogRefreshHandler{Refresher: refresher, Logger: zerolog.New(&buf)}

	task, err := NewCatalogRefreshTask("schedule", 0)
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))
	require.Equal(t, 1, refresher.calls)
	require.Contains(t, buf.String(), `"products":1`)
	require.Contains(t, buf.String(), `"reason":"schedule"`)
}

func TestCatalogRefreshHandlerRetryPolicy(t *testing.T) {
	task, err := NewCatalogRefreshTask("manual", 0)
	require.NoError(t, err)

	transient := CatalogRefreshHandler{Refresher: &stubRefresher{err: errors.New("timeout")}, Logger: zerolog.Nop()}
	err = transient.ProcessTask(context.Background(), task)
	require.Error(t, err)
	require.False(t, errors.Is(err, asynq.SkipRetry))

	invalid := CatalogRefreshHandler{
		Refresher: &stubRefresher{err: fmt.Errorf("%w: duplicate product id", catalog.ErrInvalidPayload)},
		Logger:    zerolog.Nop(),
	}
	err = invalid.ProcessTask(context.Background(), task)
	require.ErrorIs(t, err, asynq.SkipRetry)
	require.ErrorIs(t, err, catalog.ErrInvalidPayload)

	garbage := asynq.NewTask(TypeCatalogRefresh, []byte("{"))
	err = transient.ProcessTask(context.Background(), garbage)
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestEnqueuerWithoutClientIsNoop(t *testing.T) {
	require.NoError(t, Enqueuer{}.RefreshCatalog(context.Background(), "startup"))
}

func TestLoggerAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := Logger{L: zerolog.New(&buf)}
	l.Info("worker ", "started")
	l.Warn("slow")
	require.Contains(t, buf.String(), `"message":"worker started"`)
	require.Contains(t, buf.String(), `"level":"warn"`)
}
