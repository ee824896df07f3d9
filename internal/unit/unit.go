package unit

import (
	"context"
	"time"

	"github.com/jpequegn/paratest/internal/clock"
	"github.com/jpequegn/paratest/internal/event"
	"github.com/jpequegn/paratest/internal/launcher"
	"github.com/jpequegn/paratest/internal/profile"
	"github.com/jpequegn/paratest/internal/retry"
	"github.com/jpequegn/paratest/internal/testid"
)

// LaunchFunc spawns the child for one attempt. published carries the
// accumulated setup-script environment.
type LaunchFunc func(attempt int, published map[string]string) (*launcher.Child, error)

// Unit drives one test instance through every attempt of its
// lifecycle, from the first Waiting->Running transition through a
// terminal Finished report. It is owned by exactly one goroutine for
// its entire life; the run controller holds only its Requests channel.
type Unit struct {
	Instance testid.TestInstance
	Profile  profile.Profile
	Launch   LaunchFunc

	requests chan Request
	reports  chan Report
}

// New constructs a Unit ready to Run. The caller must drain Reports()
// until it closes and may send on Requests() at any time.
func New(ti testid.TestInstance, p profile.Profile, launch LaunchFunc) *Unit {
	return &Unit{
		Instance: ti,
		Profile:  p,
		Launch:   launch,
		requests: make(chan Request, 4),
		reports:  make(chan Report, 8),
	}
}

// Requests returns the channel the controller sends cancellation,
// job-control, and info-query requests on.
func (u *Unit) Requests() chan<- Request { return u.requests }

// Reports returns the channel of observable facts this unit emits. It
// is closed after the terminal Finished report.
func (u *Unit) Reports() <-chan Report { return u.reports }

// Run drives the unit through every attempt until a terminal
// disposition is reached, then closes Reports(). Must be called exactly
// once, from the goroutine that owns this Unit.
func (u *Unit) Run(published map[string]string) {
	defer close(u.reports)

	var results []event.ExecutionResult
	var maxCancel event.CancelReason
	totalAttempts := u.Profile.Retries.Count + 1

	attempt := 1
	for {
		if attempt == 1 {
			u.reports <- Report{Kind: RptStarted, Attempt: attempt, TotalAttempts: totalAttempts}
		} else {
			u.reports <- Report{Kind: RptRetryStarted, Attempt: attempt, TotalAttempts: totalAttempts}
		}

		result, elapsed, stdout, stderr := u.runAttempt(attempt, published, &maxCancel)
		results = append(results, result)
		u.reports <- Report{Kind: RptExited, Attempt: attempt, Elapsed: elapsed, Result: result, Stdout: stdout, Stderr: stderr}

		decision := retry.Decide(result, attempt, u.Profile.Retries, maxCancel)
		if !decision.Retry {
			u.reports <- Report{Kind: RptFinished, AllResults: results}
			return
		}

		u.reports <- Report{Kind: RptAttemptFailedWillRetry, Attempt: attempt, Delay: decision.Delay, Result: result}
		u.sleepWithCancel(decision.Delay, &maxCancel)
		if maxCancel >= event.CancelTestFailure {
			u.reports <- Report{Kind: RptFinished, AllResults: results}
			return
		}
		attempt++
	}
}

// runAttempt spawns and drives one attempt's child through to exit,
// returning its ExecutionResult, elapsed active duration, and captured
// output. maxCancel accumulates the highest-severity cancel reason seen
// across the unit's whole lifetime.
func (u *Unit) runAttempt(attempt int, published map[string]string, maxCancel *event.CancelReason) (event.ExecutionResult, time.Duration, []byte, []byte) {
	sw := clock.NewStopwatch()

	child, err := u.Launch(attempt, published)
	if err != nil {
		return event.ExecutionResult{Kind: event.ResultExecFail}, sw.Snapshot().Active, nil, nil
	}

	var slowTimer *clock.Timer
	if u.Profile.SlowTimeout.Period > 0 {
		slowTimer = clock.NewTimer(u.Profile.SlowTimeout.Period)
		defer slowTimer.Stop()
	}
	var termTimer *clock.Timer

	slowCount := 0
	terminating := false
	isTimeout := false

	childExit := make(chan error, 1)
	go func() { childExit <- child.Wait(context.Background()) }()

	for {
		var slowCh <-chan time.Time
		if slowTimer != nil && !terminating {
			slowCh = slowTimer.C()
		}
		var termCh <-chan time.Time
		if termTimer != nil {
			termCh = termTimer.C()
		}

		select {
		case <-slowCh:
			slowCount++
			willTerminate := u.Profile.SlowTimeout.TerminateAfter > 0 && slowCount >= u.Profile.SlowTimeout.TerminateAfter
			u.reports <- Report{Kind: RptSlow, Attempt: attempt, Elapsed: sw.Snapshot().Active, WillTerminate: willTerminate}
			if willTerminate {
				isTimeout = true
				terminating = true
				_ = child.Terminate()
				termTimer = u.startGraceTimer(child, u.Profile.SlowTimeout.GracePeriod)
			} else {
				slowTimer.ResetOriginalDuration()
			}

		case <-termCh:
			_ = child.Kill()
			termTimer.Stop()
			termTimer = nil

		case req := <-u.requests:
			u.handleRequest(req, child, attempt, sw, &terminating, &slowTimer, &termTimer, maxCancel)

		case waitErr := <-childExit:
			if slowTimer != nil {
				slowTimer.Stop()
			}
			if termTimer != nil {
				termTimer.Stop()
			}
			elapsed := sw.Snapshot().Active
			pass, abortStatus := exitOutcome(waitErr)
			leaked, leakedAsFail := u.leakWatch(child)
			stdout, stderr := collectorBytes(child)

			var result event.ExecutionResult
			if isTimeout {
				tr := event.ResultFail
				if pass {
					tr = event.ResultPass
				}
				result = event.ExecutionResult{Kind: event.ResultTimeout, AbortStatus: abortStatus, Leaked: leaked, TimeoutResult: tr}
			} else {
				kind := event.ResultFail
				if pass && !(leaked && leakedAsFail) {
					kind = event.ResultPass
				}
				result = event.ExecutionResult{Kind: kind, AbortStatus: abortStatus, Leaked: leaked}
			}
			return result, elapsed, stdout, stderr
		}
	}
}

// startGraceTimer begins the grace-period countdown before escalating a
// Terminating unit to a hard kill. A zero grace period kills
// immediately and returns nil so the caller's select has nothing more
// to wait on for termination.
func (u *Unit) startGraceTimer(child *launcher.Child, grace time.Duration) *clock.Timer {
	if grace <= 0 {
		_ = child.Kill()
		return nil
	}
	return clock.NewTimer(grace)
}

// handleRequest applies one controller request to an in-flight attempt.
// slowTimer and termTimer are pointers to runAttempt's own timer
// variables so ReqStop/ReqContinue can pause and resume whichever of
// them is currently counting down.
func (u *Unit) handleRequest(req Request, child *launcher.Child, attempt int, sw *clock.Stopwatch, terminating *bool, slowTimer **clock.Timer, termTimer **clock.Timer, maxCancel *event.CancelReason) {
	switch req.Kind {
	case ReqCancel:
		if req.Reason > *maxCancel {
			*maxCancel = req.Reason
		}
		if !*terminating {
			*terminating = true
			_ = child.Terminate()
			*termTimer = u.startGraceTimer(child, u.Profile.SlowTimeout.GracePeriod)
		} else {
			// Already terminating: any further cancel request, of equal
			// or higher severity, kills at once. The controller's second
			// interrupt arrives here as a repeat of CancelInterrupt.
			_ = child.Kill()
		}
	case ReqStop:
		sw.Pause()
		if *slowTimer != nil {
			(*slowTimer).Pause()
		}
		if *termTimer != nil {
			(*termTimer).Pause()
		}
		_ = child.Pause()
	case ReqContinue:
		sw.Resume()
		if *slowTimer != nil {
			(*slowTimer).Resume()
		}
		if *termTimer != nil {
			(*termTimer).Resume()
		}
		_ = child.Resume()
	case ReqInfoQuery:
		if req.Reply != nil {
			state := Running
			if *terminating {
				state = Terminating
			}
			req.Reply <- Snapshot{
				Instance: u.Instance,
				State:    state,
				Attempt:  attempt,
				Pid:      child.Pid(),
				Elapsed:  sw.Snapshot().Active,
			}
		}
	}
}

// leakWatch polls the child's process group after its own process has
// exited, for up to LeakTimeout.Period, waiting for grandchildren to
// exit too. Returns whether a leak was observed and whether that should
// count as a failing outcome.
func (u *Unit) leakWatch(child *launcher.Child) (leaked bool, asFail bool) {
	period := u.Profile.LeakTimeout.Period
	if period <= 0 {
		return false, false
	}
	deadline := time.NewTimer(period)
	defer deadline.Stop()
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if !child.GroupAlive() {
			return false, false
		}
		select {
		case <-ticker.C:
		case <-deadline.C:
			return true, u.Profile.LeakTimeout.Result == profile.LeakFail
		}
	}
}

// sleepWithCancel waits out a retry backoff delay while still servicing
// info queries and accumulating the highest cancel severity observed, so
// a cancellation raised during the delay is honored before the next
// attempt is spawned.
func (u *Unit) sleepWithCancel(delay time.Duration, maxCancel *event.CancelReason) {
	timer := clock.NewTimer(delay)
	defer timer.Stop()
	for {
		select {
		case <-timer.C():
			return
		case req := <-u.requests:
			switch req.Kind {
			case ReqCancel:
				if req.Reason > *maxCancel {
					*maxCancel = req.Reason
				}
			case ReqStop:
				timer.Pause()
			case ReqContinue:
				timer.Resume()
			case ReqInfoQuery:
				if req.Reply != nil {
					req.Reply <- Snapshot{Instance: u.Instance, State: DelayBeforeRetry}
				}
			}
		}
	}
}

// collectorBytes returns whatever output bytes are available from the
// child's collector, preferring the Split strategy's stdout/stderr and
// falling back to the Combined strategy's single buffer.
func collectorBytes(child *launcher.Child) (stdout, stderr []byte) {
	out, errOut := child.Collector().Split()
	if out != nil {
		stdout = out.Bytes()
	}
	if errOut != nil {
		stderr = errOut.Bytes()
	}
	if out != nil || errOut != nil {
		return stdout, stderr
	}
	if combined := child.Collector().CombinedOutput(); combined != nil {
		return combined.Bytes(), nil
	}
	return nil, nil
}
