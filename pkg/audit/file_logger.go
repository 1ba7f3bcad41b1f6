package audit

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/goccy/go-json"
)

const currentFile = "audit.log"

// FileLogger appends events as JSON lines and rotates the file by size
type FileLogger struct {
	basePath string
	maxSize  int64
	maxFiles int

	mu      sync.Mutex
	file    *os.File // nil after Close or a failed rotation
	encoder *json.Encoder
	closed  bool
}

// FileLoggerConfig configures the file logger
type FileLoggerConfig struct {
	BasePath string // directory holding audit.log
	MaxSize  int64  // bytes before rotation, 100MB by default
	MaxFiles int    // rotated files kept, 10 by default
}

// NewFileLogger opens audit.log below config.BasePath, creating the directory
func NewFileLogger(config FileLoggerConfig) (*FileLogger, error) {
	if config.BasePath == "" {
		return nil, fmt.Errorf("audit log directory is required")
	}
	if err := os.MkdirAll(config.BasePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	l := &FileLogger{
		basePath: config.BasePath,
		maxSize:  config.MaxSize,
		maxFiles: config.MaxFiles,
	}
	if l.maxSize <= 0 {
		l.maxSize = 100 * 1024 * 1024
	}
	if l.maxFiles <= 0 {
		l.maxFiles = 10
	}
	if err := l.open(); err != nil {
		return nil, err
	}
	return l, nil
}

func (l *FileLogger) open() error {
	file, err := os.OpenFile(filepath.Join(l.basePath, currentFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open audit log file: %w", err)
	}
	l.file = file
	l.encoder = json.NewEncoder(file)
	return nil
}

// rotate renames the current file with a timestamp suffix and drops the
// oldest rotated files beyond maxFiles. The handle is released first, so a
// failed rotation leaves no file open and the next Log reopens audit.log.
func (l *FileLogger) rotate() error {
	err := l.file.Close()
	l.file, l.encoder = nil, nil
	if err != nil {
		return err
	}
	rotated := filepath.Join(l.basePath, fmt.Sprintf("audit-%s.log", time.Now().UTC().Format("20060102-150405.000000000")))
	if err := os.Rename(filepath.Join(l.basePath, currentFile), rotated); err != nil {
		return errors.Join(fmt.Errorf("failed to rename audit log file: %w", err), l.open())
	}

	files, err := filepath.Glob(filepath.Join(l.basePath, "audit-*.log"))
	if err != nil {
		return errors.Join(err, l.open())
	}
	// timestamped names sort chronologically
	sort.Strings(files)
	var errs []error
	for ; len(files) > l.maxFiles; files = files[1:] {
		if err := os.Remove(files[0]); err != nil {
			errs = append(errs, fmt.Errorf("failed to remove old audit log: %w", err))
		}
	}
	return errors.Join(append(errs, l.open())...)
}

// Log implements Logger
func (l *FileLogger) Log(_ context.Context, event *Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return fmt.Errorf("audit log is closed")
	}
	if l.file == nil {
		if err := l.open(); err != nil {
			return err
		}
	}
	if info, err := l.file.Stat(); err == nil && info.Size() >= l.maxSize {
		if err := l.rotate(); err != nil {
			return fmt.Errorf("failed to rotate audit log: %w", err)
		}
	}
	if err := l.encoder.Encode(event); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

// Close implements Logger
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file, l.encoder = nil, nil
	return err
}
