package storage

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jpequegn/paratest/internal/event"
)

// RunMetadata is the small JSON sidecar file written alongside a run's
// event log: enough to locate and label a run directory without
// decompressing and scanning its events.jsonl.gz.
type RunMetadata struct {
	RunID       string `json:"run_id"`
	ProfileName string `json:"profile_name"`
	StartTime   string `json:"start_time"`
}

// EventLog is a persisted run directory: one subdirectory per run
// (named by the run's UUID) holding a gzip-compressed
// newline-delimited JSON event log and a run-metadata file, the literal
// persisted-state layout described for external reporters/record-replay
// consumers. It also implements event.Sink so the run controller can
// write directly to it alongside any other configured sink.
type EventLog struct {
	dir     string
	mu      sync.Mutex
	file    *os.File
	gz      *gzip.Writer
	enc     *json.Encoder
	lastErr error
}

// NewEventLog creates <baseDir>/<runID>/ and opens its events.jsonl.gz
// for writing. Callers must call Close when the run finishes.
func NewEventLog(baseDir, runID string) (*EventLog, error) {
	dir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create run dir %s: %w", dir, err)
	}

	f, err := os.Create(filepath.Join(dir, "events.jsonl.gz"))
	if err != nil {
		return nil, fmt.Errorf("storage: create event log: %w", err)
	}
	gz := gzip.NewWriter(f)

	return &EventLog{
		dir:  dir,
		file: f,
		gz:   gz,
		enc:  json.NewEncoder(gz),
	}, nil
}

// WriteMetadata writes (or overwrites) the run-metadata sidecar file.
func (l *EventLog) WriteMetadata(meta RunMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: marshal run metadata: %w", err)
	}
	path := filepath.Join(l.dir, "run.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("storage: write %s: %w", path, err)
	}
	return nil
}

// Emit appends e to the event log, satisfying event.Sink. A write
// failure is recorded rather than surfaced here, since Sink.Emit has no
// error return; callers that need to react to a failed event log
// (escalating to event.CancelReportError) should poll Err() between
// events.
func (l *EventLog) Emit(e event.TestEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.enc.Encode(e); err != nil {
		l.lastErr = fmt.Errorf("storage: append event: %w", err)
	}
}

// Err returns the first write error encountered by Emit, if any.
func (l *EventLog) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Close flushes and closes the gzip stream and underlying file.
func (l *EventLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.gz.Close(); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("storage: close gzip writer: %w", err)
	}
	return l.file.Close()
}
