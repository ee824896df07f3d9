package clock

import (
	"testing"
	"time"
)

func TestStopwatchPause(t *testing.T) {
	paused := NewStopwatch()
	unpaused := NewStopwatch()

	paused.Pause()
	time.Sleep(30 * time.Millisecond)
	paused.Resume()

	paused.Pause()
	time.Sleep(40 * time.Millisecond)
	paused.Resume()

	end := paused.Snapshot()
	unpausedEnd := unpaused.Snapshot()

	difference := unpausedEnd.Active - end.Active
	if difference < 50*time.Millisecond {
		t.Fatalf("expected unpaused stopwatch to be at least 50ms ahead, got %v", difference)
	}
}

func TestStopwatchSnapshotNonDecreasing(t *testing.T) {
	sw := NewStopwatch()
	first := sw.Snapshot()
	time.Sleep(5 * time.Millisecond)
	second := sw.Snapshot()

	if second.Active < first.Active {
		t.Fatalf("snapshot went backwards: %v -> %v", first.Active, second.Active)
	}
}

func TestStopwatchResumeWithoutPauseIsNoop(t *testing.T) {
	sw := NewStopwatch()
	sw.Resume() // no-op, must not panic or go negative
	if sw.IsPaused() {
		t.Fatal("expected stopwatch not to be paused")
	}
}

func TestStopwatchDoublePauseIsNoop(t *testing.T) {
	sw := NewStopwatch()
	sw.Pause()
	firstPauseAt := sw.pausedAt
	sw.Pause()
	if sw.pausedAt != firstPauseAt {
		t.Fatal("second Pause call should not reset pausedAt")
	}
}

func TestSnapshotEndTime(t *testing.T) {
	snap := Snapshot{StartTime: time.Unix(1000, 0), Active: 5 * time.Second}
	if got := snap.EndTime(); !got.Equal(time.Unix(1005, 0)) {
		t.Fatalf("expected end time 1005, got %v", got)
	}
}
