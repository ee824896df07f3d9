package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jpequegn/paratest/internal/event"
)

func setupTestHistory(t *testing.T) *HistoryStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := NewHistoryStore(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Init(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHistoryStoreSaveAndRecentRuns(t *testing.T) {
	s := setupTestHistory(t)

	run := RunRecord{
		RunID:       "run-1",
		ProfileName: "default",
		StartTime:   time.Now().Add(-time.Hour),
		Elapsed:     5 * time.Second,
		Stats:       event.RunStats{Started: 2, Passed: 2},
	}
	tests := []TestRecord{
		{RunID: "run-1", TestKey: "bin::test_a", TestName: "test_a", BinaryID: "bin", Result: event.ResultPass, Attempts: 1, Timestamp: run.StartTime},
		{RunID: "run-1", TestKey: "bin::test_b", TestName: "test_b", BinaryID: "bin", Result: event.ResultPass, Attempts: 1, Timestamp: run.StartTime},
	}
	if err := s.SaveRun(run, tests); err != nil {
		t.Fatal(err)
	}

	recent, err := s.RecentRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 || recent[0].RunID != "run-1" {
		t.Fatalf("unexpected recent runs: %+v", recent)
	}
	if recent[0].Stats.Passed != 2 {
		t.Fatalf("expected stats to round-trip, got %+v", recent[0].Stats)
	}
}

func TestHistoryStoreFlakyTests(t *testing.T) {
	s := setupTestHistory(t)

	for i := 0; i < 5; i++ {
		run := RunRecord{RunID: "run-" + string(rune('a'+i)), ProfileName: "default", StartTime: time.Now().Add(time.Duration(i) * time.Minute)}
		flaky := i < 3 // flaky in 3 of 5 runs
		tests := []TestRecord{
			{RunID: run.RunID, TestKey: "bin::flaky_test", TestName: "flaky_test", BinaryID: "bin", Result: event.ResultPass, Flaky: flaky, Attempts: 1, Timestamp: run.StartTime},
		}
		if err := s.SaveRun(run, tests); err != nil {
			t.Fatal(err)
		}
	}

	flaky, err := s.FlakyTests(5, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(flaky) != 1 || flaky[0] != "bin::flaky_test" {
		t.Fatalf("expected bin::flaky_test to be flagged, got %v", flaky)
	}

	notFlaky, err := s.FlakyTests(5, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(notFlaky) != 0 {
		t.Fatalf("expected no test to meet a 4-occurrence threshold, got %v", notFlaky)
	}
}
