// Package jobs holds the background tasks run by cmd/worker.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-cart/internal/catalog"
)

// TypeCatalogRefresh re-reads the catalog source and rewrites the cache.
const TypeCatalogRefresh = "catalog:refresh"

// QueueCatalog is the asynq queue catalog tasks run on.
const QueueCatalog = "catalog"

// CatalogRefreshPayload is the task body.
type CatalogRefreshPayload struct {
	Reason string `json:"reason"`
}

// Refresher reloads catalog data past any cache.
type Refresher interface {
	Refresh(ctx context.Context) (catalog.Payload, error)
}

// NewCatalogRefreshTask builds a refresh task. Duplicates within the
// uniqueness window collapse into one.
func NewCatalogRefreshTask(reason string, unique time.Duration) (*asynq.Task, error) {
	body, err := json.Marshal(CatalogRefreshPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	opts := []asynq.Option{asynq.Queue(QueueCatalog), asynq.MaxRetry(3), asynq.Timeout(time.Minute)}
	if unique > 0 {
		opts = append(opts, asynq.Unique(unique))
	}
	return asynq.NewTask(TypeCatalogRefresh, body, opts...), nil
}

// CatalogRefreshHandler processes TypeCatalogRefresh tasks.
type CatalogRefreshHandler struct {
	Refresher Refresher
	Logger    zerolog.Logger
}

func (h CatalogRefreshHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload CatalogRefreshPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode %s payload: %v: %w", TypeCatalogRefresh, err, asynq.SkipRetry)
		}
	}
	start := time.Now()
	refreshed, err := h.Refresher.Refresh(ctx)
	if err != nil {
		if errors.Is(err, catalog.ErrInvalidPayload) {
			// retrying cannot fix a malformed upstream payload
			h.Logger.Error().Err(err).Str("reason", payload.Reason).Msg("catalog refresh rejected")
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}
	h.Logger.Info().
		Str("reason", payload.Reason).
		Int("products", len(refreshed.Products)).
		Int("discounts", len(refreshed.Discounts)).
		Int("coupons", len(refreshed.Coupons)).
		Int("shipping", len(refreshed.Shipping)).
		Dur("took", time.Since(start)).
		Msg("catalog refreshed")
	return nil
}

// NewMux routes every task type this package defines.
func NewMux(refresh CatalogRefreshHandler) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.Handle(TypeCatalogRefresh, refresh)
	return mux
}

// Schedule registers the periodic refresh on s.
func Schedule(s *asynq.Scheduler, every time.Duration) (string, error) {
	if every <= 0 {
		return "", errors.New("jobs: refresh interval must be positive")
	}
	task, err := NewCatalogRefreshTask("schedule", every/2)
	if err != nil {
		return "", err
	}
	return s.Register("@every "+every.String(), task)
}

// Enqueuer submits catalog tasks from the API process.
type Enqueuer struct {
	Client *asynq.Client
	Unique time.Duration
}

// RefreshCatalog enqueues a refresh. An already queued refresh is not an error.
func (e Enqueuer) RefreshCatalog(ctx context.Context, reason string) error {
	if e.Client == nil {
		return nil
	}
	task, err := NewCatalogRefreshTask(reason, e.Unique)
	if err != nil {
		return err
	}
	if _, err := e.Client.EnqueueContext(ctx, task); err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		return fmt.Errorf("enqueue %s: %w", TypeCatalogRefresh, err)
	}
	return nil
}
