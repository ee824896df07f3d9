package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jpequegn/paratest/internal/event"
)

// HistoryStore is a sqlite-backed run-history index: one runs row per
// completed run plus one test_runs row per test instance in that run,
// enough for the
// history/trend reporter to answer "how has this test behaved across
// its last few runs" without replaying any run's full event log.
type HistoryStore struct {
	db   *sql.DB
	path string
}

// NewHistoryStore opens (but does not yet initialize) a history store
// backed by the sqlite file at path.
func NewHistoryStore(path string) (*HistoryStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", path, err)
	}
	return &HistoryStore{db: db, path: path}, nil
}

// Init creates the schema if it does not already exist.
func (s *HistoryStore) Init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL UNIQUE,
		profile_name TEXT NOT NULL,
		start_time DATETIME NOT NULL,
		elapsed_ns INTEGER NOT NULL,
		stats_json TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_runs_start_time ON runs(start_time);

	CREATE TABLE IF NOT EXISTS test_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		test_key TEXT NOT NULL,
		test_name TEXT NOT NULL,
		binary_id TEXT NOT NULL,
		result INTEGER NOT NULL,
		flaky INTEGER NOT NULL,
		attempts INTEGER NOT NULL,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(run_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_test_runs_test_key ON test_runs(test_key);
	CREATE INDEX IF NOT EXISTS idx_test_runs_run_id ON test_runs(run_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("storage: create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *HistoryStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveRun persists one completed run and its per-test outcomes in a
// single transaction.
func (s *HistoryStore) SaveRun(run RunRecord, tests []TestRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("storage: begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statsJSON, err := json.Marshal(run.Stats)
	if err != nil {
		return fmt.Errorf("storage: marshal stats: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO runs (run_id, profile_name, start_time, elapsed_ns, stats_json)
		VALUES (?, ?, ?, ?, ?)
	`, run.RunID, run.ProfileName, run.StartTime, run.Elapsed.Nanoseconds(), string(statsJSON)); err != nil {
		return fmt.Errorf("storage: insert run: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO test_runs (run_id, test_key, test_name, binary_id, result, flaky, attempts, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("storage: prepare test_runs insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tests {
		if _, err := stmt.Exec(t.RunID, t.TestKey, t.TestName, t.BinaryID, int(t.Result), t.Flaky, t.Attempts, t.Timestamp); err != nil {
			return fmt.Errorf("storage: insert test_run %s: %w", t.TestKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit transaction: %w", err)
	}
	return nil
}

// RecentRuns returns the most recently started runs, newest first.
func (s *HistoryStore) RecentRuns(limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT run_id, profile_name, start_time, elapsed_ns, stats_json
		FROM runs
		ORDER BY start_time DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: query recent runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		var elapsedNS int64
		var statsJSON string
		if err := rows.Scan(&r.RunID, &r.ProfileName, &r.StartTime, &elapsedNS, &statsJSON); err != nil {
			return nil, fmt.Errorf("storage: scan run: %w", err)
		}
		r.Elapsed = time.Duration(elapsedNS)
		if err := json.Unmarshal([]byte(statsJSON), &r.Stats); err != nil {
			return nil, fmt.Errorf("storage: unmarshal stats for run %s: %w", r.RunID, err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TestHistory returns the most recent outcomes recorded for testKey,
// newest first.
func (s *HistoryStore) TestHistory(testKey string, limit int) ([]TestRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT run_id, test_key, test_name, binary_id, result, flaky, attempts, timestamp
		FROM test_runs
		WHERE test_key = ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, testKey, limit)
	if err != nil {
		return nil, fmt.Errorf("storage: query test history: %w", err)
	}
	defer rows.Close()

	var out []TestRecord
	for rows.Next() {
		var t TestRecord
		var result int
		if err := rows.Scan(&t.RunID, &t.TestKey, &t.TestName, &t.BinaryID, &result, &t.Flaky, &t.Attempts, &t.Timestamp); err != nil {
			return nil, fmt.Errorf("storage: scan test_run: %w", err)
		}
		t.Result = event.ResultKind(result)
		out = append(out, t)
	}
	return out, rows.Err()
}

// FlakyTests returns the test keys that were recorded flaky in at least
// minFlakyOccurrences of their last lastNRuns appearances, the cross-run
// view the terminal reporter surfaces as a trend warning.
func (s *HistoryStore) FlakyTests(lastNRuns, minFlakyOccurrences int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT test_key, flaky FROM test_runs
		ORDER BY test_key, timestamp DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("storage: query flaky candidates: %w", err)
	}
	defer rows.Close()

	seen := map[string]int{}
	flaky := map[string]int{}
	var order []string
	for rows.Next() {
		var key string
		var isFlaky bool
		if err := rows.Scan(&key, &isFlaky); err != nil {
			return nil, fmt.Errorf("storage: scan flaky candidate: %w", err)
		}
		if seen[key] >= lastNRuns {
			continue
		}
		if seen[key] == 0 {
			order = append(order, key)
		}
		seen[key]++
		if isFlaky {
			flaky[key]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []string
	for _, key := range order {
		if flaky[key] >= minFlakyOccurrences {
			out = append(out, key)
		}
	}
	return out, nil
}
