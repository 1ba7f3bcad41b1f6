package audit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingLogger struct {
	mu     sync.Mutex
	events []*Event
	err    error
	closed bool
}

func (l *recordingLogger) Log(_ context.Context, event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return l.err
}

func (l *recordingLogger) Close() error {
	l.closed = true
	return l.err
}

func (l *recordingLogger) Events() []*Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Event(nil), l.events...)
}

func TestMultiLogger(t *testing.T) {
	t.Run("fans out", func(t *testing.T) {
		a, b := &recordingLogger{}, &recordingLogger{}
		m := NewMultiLogger(a, b)

		require.NoError(t, m.Log(context.Background(), &Event{Action: ActionCreate}))
		assert.Len(t, a.Events(), 1)
		assert.Len(t, b.Events(), 1)

		require.NoError(t, m.Close())
		assert.True(t, a.closed)
		assert.True(t, b.closed)
	})

	t.Run("keeps writing after a failure", func(t *testing.T) {
		boom := errors.New("boom")
		a, b := &recordingLogger{err: boom}, &recordingLogger{}
		m := NewMultiLogger(a, b)

		err := m.Log(context.Background(), &Event{Action: ActionDelete})
		assert.ErrorIs(t, err, boom)
		assert.Len(t, b.Events(), 1)

		assert.ErrorIs(t, m.Close(), boom)
		assert.True(t, b.closed)
	})
}
