package async

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/platinummonkey/gantry/pkg/observability"
)

// syncBuffer guards log output written from task goroutines
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newLogger() (*observability.Logger, *syncBuffer) {
	out := &syncBuffer{}
	return observability.NewLogger(observability.DebugLevel, out), out
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not finish")
	}
}

func TestSafeGo_Success(t *testing.T) {
	logger, out := newLogger()
	executed := atomic.Bool{}

	waitDone(t, SafeGo(context.Background(), logger, time.Second, "test task", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	}))

	if !executed.Load() {
		t.Error("SafeGo did not execute function")
	}
	if strings.Contains(out.String(), "background task failed") {
		t.Errorf("unexpected failure log: %s", out.String())
	}
}

func TestSafeGo_WithError(t *testing.T) {
	logger, out := newLogger()

	waitDone(t, SafeGo(context.Background(), logger, time.Second, "failing task", func(ctx context.Context) error {
		return errors.New("boom")
	}))

	if !strings.Contains(out.String(), "failing task") || !strings.Contains(out.String(), "boom") {
		t.Errorf("error was not logged: %s", out.String())
	}
}

func TestSafeGo_Timeout(t *testing.T) {
	logger, _ := newLogger()
	var cause error

	waitDone(t, SafeGo(context.Background(), logger, 20*time.Millisecond, "slow task", func(ctx context.Context) error {
		<-ctx.Done()
		cause = ctx.Err()
		return cause
	}))

	if !errors.Is(cause, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", cause)
	}
}

func TestSafeGo_PanicRecovery(t *testing.T) {
	logger, out := newLogger()

	waitDone(t, SafeGo(context.Background(), logger, time.Second, "panicking task", func(ctx context.Context) error {
		panic("test panic")
	}))

	if !strings.Contains(out.String(), "panic recovered") {
		t.Errorf("panic was not logged: %s", out.String())
	}
}

func TestSafeGo_ContextCancellation(t *testing.T) {
	logger, _ := newLogger()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var cause error
	waitDone(t, SafeGo(ctx, logger, time.Second, "cancelled task", func(ctx context.Context) error {
		cause = ctx.Err()
		return nil
	}))

	if !errors.Is(cause, context.Canceled) {
		t.Errorf("expected canceled context, got %v", cause)
	}
}

func TestEvery(t *testing.T) {
	logger, _ := newLogger()
	ctx, cancel := context.WithCancel(context.Background())
	runs := atomic.Int32{}

	done := Every(ctx, logger, 5*time.Millisecond, "ticker", func(ctx context.Context) error {
		if runs.Add(1) == 2 {
			return errors.New("second run fails")
		}
		return nil
	})

	deadline := time.Now().Add(2 * time.Second)
	for runs.Load() < 4 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	waitDone(t, done)

	if runs.Load() < 4 {
		t.Errorf("expected runs to continue after a failure, got %d", runs.Load())
	}
}

func TestEvery_DisabledInterval(t *testing.T) {
	logger, _ := newLogger()
	executed := atomic.Bool{}

	waitDone(t, Every(context.Background(), logger, 0, "disabled", func(ctx context.Context) error {
		executed.Store(true)
		return nil
	}))

	if executed.Load() {
		t.Error("task ran with a zero interval")
	}
}
