// Package telemetry provides the append-only JSONL event log and an
// in-process aggregator used for offline success-rate and latency
// analysis.
package telemetry

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event kinds.
const (
	EventSessionStart = "session_start"
	EventSessionEnd   = "session_end"
	EventToolCall     = "tool_call"
	EventQueryAttempt = "query_attempt"
	EventError        = "error"
	EventIngestStep   = "ingest_step"
)

// Outcomes.
const (
	OutcomeOK      = "ok"
	OutcomeFailed  = "failed"
	OutcomeRetried = "retried"
	OutcomeDenied  = "denied"
)

// Event is one telemetry record. SessionID, Timestamp, Event,
// DurationMS, and Outcome are mandatory.
type Event struct {
	SessionID  string         `json:"session_id"`
	Timestamp  time.Time      `json:"timestamp"`
	Event      string         `json:"event"`
	DurationMS int64          `json:"duration_ms"`
	Outcome    string         `json:"outcome"`
	Payload    map[string]any `json:"payload,omitempty"`
}

// Log appends events to a date-stamped JSONL file, rotating by size or
// date. Append never fails the caller: write errors are logged and the
// event is still fed to the in-process aggregator.
type Log struct {
	mu       sync.Mutex
	dir      string
	maxBytes int64
	file     *os.File
	fileDay  string
	size     int64
	agg      *Aggregator
	logger   *slog.Logger
}

// NewLog opens (or creates) the telemetry directory and today's log file.
func NewLog(dir string, maxFileBytes int64) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating telemetry dir: %w", err)
	}
	l := &Log{
		dir:      dir,
		maxBytes: maxFileBytes,
		agg:      NewAggregator(),
		logger:   slog.Default().With("component", "telemetry"),
	}
	if err := l.openFile(time.Now()); err != nil {
		return nil, err
	}
	return l, nil
}

// Aggregator returns the in-process aggregator fed by this log.
func (l *Log) Aggregator() *Aggregator { return l.agg }

// Append writes one event. A zero Timestamp is filled in.
func (l *Log) Append(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	l.agg.Record(ev)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.rotateIfNeeded(ev.Timestamp); err != nil {
		l.logger.Warn("Telemetry rotation failed", "error", err)
	}

	line, err := json.Marshal(ev)
	if err != nil {
		l.logger.Warn("Telemetry marshal failed", "event", ev.Event, "error", err)
		return
	}
	line = append(line, '\n')
	n, err := l.file.Write(line)
	if err != nil {
		l.logger.Warn("Telemetry write failed", "error", err)
		return
	}
	l.size += int64(n)
}

// Close flushes and closes the underlying file.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

func (l *Log) openFile(now time.Time) error {
	day := now.Format("2006-01-02")
	path := filepath.Join(l.dir, "events-"+day+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening telemetry file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat telemetry file: %w", err)
	}
	if l.file != nil {
		_ = l.file.Close()
	}
	l.file = f
	l.fileDay = day
	l.size = info.Size()
	return nil
}

// rotateIfNeeded rolls to a new file when the date changes or the size
// cap is exceeded. Size rollover renames the full file aside with a
// time suffix so the date-stamped name stays current.
func (l *Log) rotateIfNeeded(now time.Time) error {
	day := now.Format("2006-01-02")
	if day != l.fileDay {
		return l.openFile(now)
	}
	if l.maxBytes > 0 && l.size >= l.maxBytes {
		old := filepath.Join(l.dir, "events-"+l.fileDay+".jsonl")
		aside := filepath.Join(l.dir,
			fmt.Sprintf("events-%s-%s.jsonl", l.fileDay, now.Format("150405")))
		_ = l.file.Close()
		l.file = nil
		if err := os.Rename(old, aside); err != nil {
			return fmt.Errorf("rotating telemetry file: %w", err)
		}
		return l.openFile(now)
	}
	return nil
}
