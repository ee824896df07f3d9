package clock

import (
	"testing"
	"time"
)

func TestTimerFiresAfterDuration(t *testing.T) {
	timer := NewTimer(20 * time.Millisecond)
	defer timer.Stop()

	select {
	case <-timer.C():
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timer did not fire in time")
	}
}

func TestTimerPauseDelaysFiring(t *testing.T) {
	timer := NewTimer(30 * time.Millisecond)
	defer timer.Stop()

	timer.Pause()
	if !timer.IsPaused() {
		t.Fatal("expected timer to report paused")
	}

	select {
	case <-timer.C():
		t.Fatal("paused timer must not fire")
	case <-time.After(60 * time.Millisecond):
	}

	timer.Resume()
	select {
	case <-timer.C():
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timer did not fire after resume")
	}
}

func TestTimerResetOriginalDuration(t *testing.T) {
	timer := NewTimer(10 * time.Millisecond)
	defer timer.Stop()

	time.Sleep(5 * time.Millisecond)
	timer.ResetOriginalDuration()

	start := time.Now()
	select {
	case <-timer.C():
		if time.Since(start) < 8*time.Millisecond {
			t.Fatal("timer fired too early after reset")
		}
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timer did not fire after reset")
	}
}

func TestTimerResumeWithoutPauseIsNoop(t *testing.T) {
	timer := NewTimer(time.Hour)
	defer timer.Stop()
	timer.Resume()
	if timer.IsPaused() {
		t.Fatal("expected timer not paused")
	}
}
