package storage

import (
	"time"

	"github.com/jpequegn/paratest/internal/event"
)

// RunRecord is one row of the run-history index: everything needed to
// list past runs and to feed the flaky/duration trend reporter, without
// replaying a run's full event log.
type RunRecord struct {
	RunID       string
	ProfileName string
	StartTime   time.Time
	Elapsed     time.Duration
	Stats       event.RunStats
}

// TestRecord is one row per test instance per run, the granularity the
// flaky-trend reporter needs: did this test pass, fail, or turn out
// flaky in this particular run.
type TestRecord struct {
	RunID     string
	TestKey   string
	TestName  string
	BinaryID  string
	Result    event.ResultKind
	Flaky     bool
	Attempts  int
	Timestamp time.Time
}

// History is the storage interface the reporter and CLI depend on;
// HistoryStore is its sqlite-backed implementation.
type History interface {
	Init() error
	Close() error
	SaveRun(run RunRecord, tests []TestRecord) error
	RecentRuns(limit int) ([]RunRecord, error)
	TestHistory(testKey string, limit int) ([]TestRecord, error)
	FlakyTests(lastNRuns, minFlakyOccurrences int) ([]string, error)
}
