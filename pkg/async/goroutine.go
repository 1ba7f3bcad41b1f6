package async

import (
	"context"
	"time"

	"github.com/platinummonkey/gantry/pkg/observability"
)

// Task is a unit of background work
type Task func(context.Context) error

// SafeGo runs fn in a goroutine with a timeout derived from parentCtx.
// Errors and panics are logged under taskName and never propagate.
//
// The returned channel is closed when fn has returned.
func SafeGo(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn Task) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		run(parentCtx, logger, timeout, taskName, fn)
	}()
	return done
}

// Every runs fn each interval until ctx is done. Each run gets the interval
// as its timeout. The returned channel is closed once the loop has exited.
func Every(ctx context.Context, logger *observability.Logger, interval time.Duration, taskName string, fn Task) <-chan struct{} {
	done := make(chan struct{})
	if interval <= 0 {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run(ctx, logger, interval, taskName, fn)
			}
		}
	}()
	return done
}

func run(parentCtx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn Task) {
	ctx, cancel := context.WithTimeout(parentCtx, timeout)
	defer cancel()
	defer observability.RecoverPanic(logger, taskName)

	if err := fn(ctx); err != nil {
		logger.WithError(err).WithField("task", taskName).Warn("background task failed")
	}
}
