package clock

import "time"

// Timer is a timer for a target duration that can be paused (suspending
// progression toward the deadline) and resumed (shifting the deadline
// forward by exactly the paused interval). Used for the slow-timeout
// period, the termination grace period, and retry backoff.
//
// Timer is not safe for concurrent use.
type Timer struct {
	duration time.Duration
	timer    *time.Timer
	deadline time.Time

	paused    bool
	remaining time.Duration
}

// NewTimer creates a running Timer that fires after duration.
func NewTimer(duration time.Duration) *Timer {
	return &Timer{
		duration: duration,
		timer:    time.NewTimer(duration),
		deadline: nowFn().Add(duration),
	}
}

// C returns the channel that receives the firing time, mirroring
// time.Timer's API. While paused, the channel never fires.
func (t *Timer) C() <-chan time.Time {
	return t.timer.C
}

// IsPaused reports whether the timer is currently paused.
func (t *Timer) IsPaused() bool {
	return t.paused
}

// Pause suspends the timer, recording how much time remained until the
// deadline. Pausing an already-paused timer is a no-op.
func (t *Timer) Pause() {
	if t.paused {
		return
	}
	remaining := t.deadline.Sub(nowFn())
	if remaining < 0 {
		remaining = 0
	}
	// Stop and drain so a stale fire doesn't leak through after resume.
	if !t.timer.Stop() {
		select {
		case <-t.timer.C:
		default:
		}
	}
	t.remaining = remaining
	t.paused = true
}

// Resume restarts the timer for the remaining duration recorded at
// Pause time, shifting the deadline forward by the paused interval.
// Resuming a running timer is a no-op.
func (t *Timer) Resume() {
	if !t.paused {
		return
	}
	t.timer.Reset(t.remaining)
	t.deadline = nowFn().Add(t.remaining)
	t.paused = false
}

// ResetOriginalDuration restarts the timer from the original duration,
// counting from now, regardless of pause state.
func (t *Timer) ResetOriginalDuration() {
	if !t.timer.Stop() {
		select {
		case <-t.timer.C:
		default:
		}
	}
	t.timer.Reset(t.duration)
	t.deadline = nowFn().Add(t.duration)
	t.paused = false
}

// Stop releases the timer's resources. It is safe to call Stop more
// than once.
func (t *Timer) Stop() {
	t.timer.Stop()
}
