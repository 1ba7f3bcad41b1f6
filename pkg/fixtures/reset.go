package fixtures

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/gantry/pkg/metadata"
	"github.com/platinummonkey/gantry/pkg/observability"
	"github.com/platinummonkey/gantry/pkg/storage"
)

// resetTimeout bounds one scheduled reset
const resetTimeout = 5 * time.Minute

// Resetter drops every table and reloads the demo data, on demand or on
// a cron schedule. Resets never overlap.
type Resetter struct {
	reg    *metadata.Registry
	store  storage.Store
	logger *observability.Logger
	cron   *cron.Cron

	mu sync.Mutex
}

// NewResetter creates a resetter for the resources of reg
func NewResetter(reg *metadata.Registry, store storage.Store, logger *observability.Logger) *Resetter {
	return &Resetter{
		reg:    reg,
		store:  store,
		logger: logger,
		cron:   cron.New(cron.WithLocation(time.UTC)),
	}
}

// Reset recreates the schema and loads SeedDemo
func (r *Resetter) Reset(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.store.RecreateSchema(ctx, r.reg.Resources()); err != nil {
		return fmt.Errorf("failed to recreate schema: %w", err)
	}
	if err := SeedDemo(ctx, storage.NewManager(r.store, r.reg)); err != nil {
		return fmt.Errorf("failed to seed fixtures: %w", err)
	}
	return nil
}

// Schedule runs Reset on a standard cron spec, e.g. "0 3 * * *"
func (r *Resetter) Schedule(spec string) error {
	_, err := r.cron.AddFunc(spec, func() {
		defer observability.RecoverPanic(r.logger, "fixture reset")

		ctx, cancel := context.WithTimeout(context.Background(), resetTimeout)
		defer cancel()

		start := time.Now()
		if err := r.Reset(ctx); err != nil {
			r.logger.WithError(err).Error("scheduled fixture reset failed")
			return
		}
		r.logger.WithField("duration", time.Since(start).String()).Info("fixtures reset")
	})
	if err != nil {
		return fmt.Errorf("invalid reset schedule %q: %w", spec, err)
	}
	return nil
}

// Start runs the scheduler in its own goroutine
func (r *Resetter) Start() {
	r.cron.Start()
}

// Stop stops the scheduler and waits for a running reset until ctx is done
func (r *Resetter) Stop(ctx context.Context) error {
	select {
	case <-r.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
