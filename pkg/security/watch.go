package security

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/platinummonkey/gantry/pkg/observability"
)

// WatchTokenFile reloads table whenever the token file at path changes,
// until ctx is done. The parent directory is watched so files replaced by
// a rename are picked up. A file that fails to load, or holds no token,
// leaves the table as is: a truncated file is usually still being written.
//
// The returned channel is closed when the watcher has stopped.
func WatchTokenFile(ctx context.Context, path string, table *TokenTable, logger *observability.Logger) (<-chan struct{}, error) {
	path = filepath.Clean(path)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", path, err)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer watcher.Close()
		defer observability.RecoverPanic(logger, "token file watcher")

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != path || event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				reloaded, err := LoadTokenFile(path)
				if err == nil && reloaded.Len() == 0 {
					err = fmt.Errorf("no tokens in %s", path)
				}
				if err != nil {
					logger.WithError(err).WithField("path", path).Warn("keeping previous tokens")
					continue
				}
				table.Replace(reloaded)
				logger.WithField("path", path).WithField("tokens", table.Len()).Info("reloaded bearer tokens")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.WithError(err).Warn("token file watcher error")
			}
		}
	}()
	return done, nil
}
