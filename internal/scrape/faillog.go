package scrape

import (
	"fmt"
	"io"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FailureLog is the append-only skipped-link sink: one line per link with a
// human-readable reason. Operators read it; the pipeline never does.
type FailureLog struct {
	mu  sync.Mutex
	out io.WriteCloser
	now func() time.Time
}

// NewFailureLog opens a size-rotated failure log at path.
func NewFailureLog(path string, maxSizeMB, maxBackups, maxAgeDays int) *FailureLog {
	return &FailureLog{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
		},
		now: time.Now,
	}
}

// newFailureLogWithWriter is the test seam.
func newFailureLogWithWriter(w io.WriteCloser, now func() time.Time) *FailureLog {
	return &FailureLog{out: w, now: now}
}

// Record appends one failure line. Writes are serialized; a term crawl never
// interleaves with another mid-line. Write errors are swallowed, a failure
// line is never worth failing the crawl over.
func (l *FailureLog) Record(term, link, reason string) {
	line := fmt.Sprintf("%s term=%q link=%s reason=%q\n",
		l.now().UTC().Format(time.RFC3339), term, link, reason)
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write([]byte(line))
}

// Close flushes and closes the underlying file.
func (l *FailureLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.out.Close(); err != nil {
		return fmt.Errorf("close failure log: %w", err)
	}
	return nil
}
