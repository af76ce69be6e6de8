package event

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	logDirPerm  = 0o755
	logFilePerm = 0o644

	// LogFileName is the event log created under the manifest's log
	// directory.
	LogFileName = "events.log"
)

// LogSink appends one timestamped line per event to a file, creating the
// parent directory on first use. Writes are serialized and synced so the
// log survives abrupt exits. Failures are logged, never propagated: event
// delivery is best effort by contract.
type LogSink struct {
	path   string
	logger *slog.Logger
	mu     sync.Mutex
}

// NewLogSink creates a sink appending to path. The logger receives write
// failures; nil discards them.
func NewLogSink(path string, logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &LogSink{path: path, logger: logger}
}

// Path returns the configured output path.
func (s *LogSink) Path() string {
	return s.path
}

func (s *LogSink) Notify(e Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.append(e); err != nil {
		s.logger.Warn("writing event log", "path", s.path, "error", err)
	}
}

func (s *LogSink) append(e Event) error {
	if err := os.MkdirAll(filepath.Dir(s.path), logDirPerm); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFilePerm)
	if err != nil {
		return fmt.Errorf("open event log: %w", err)
	}
	defer f.Close()

	when := e.Time
	if when.IsZero() {
		when = time.Now()
	}
	line := when.UTC().Format(time.RFC3339) + " " + e.String() + "\n"
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return f.Sync()
}
