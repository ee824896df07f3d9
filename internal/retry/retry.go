// Package retry implements the stateless retry decision:
// given a failed attempt's result, the profile's retry policy, the
// attempt number, and the run's current cancellation state, decide
// whether to retry and, if so, after how long. Per-unit attempt
// counting lives in internal/unit, not here.
package retry

import (
	"math/rand"
	"time"

	"github.com/jpequegn/paratest/internal/event"
	"github.com/jpequegn/paratest/internal/profile"
)

// Decision is the coordinator's verdict for one failed attempt.
type Decision struct {
	// Retry is true when the unit should be relaunched after Delay.
	Retry bool
	// Delay is the backoff duration to wait before relaunching. Zero
	// when the backoff policy is "none" or this is not a retry.
	Delay time.Duration
	// StopReason explains why retrying was refused, for diagnostics;
	// empty when Retry is true.
	StopReason string
}

// Jitter is the randomization function applied to exponential backoff
// when the policy requests it. Tests override this for determinism.
var Jitter = func(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	// +/- 20%.
	delta := time.Duration(rand.Int63n(int64(d) / 5))
	if rand.Intn(2) == 0 {
		return d - delta
	}
	return d + delta
}

// Decide applies the refusal rules in order: a passing attempt ends
// the unit's lifecycle outright; ExecFail is never retried; a run
// already cancelling at TestFailure severity or above refuses further
// retries (no point launching more work when the run is winding down);
// the attempt cap (policy.Count) bounds the rest.
// attempt is 1-indexed: the value of the attempt that just completed.
func Decide(result event.ExecutionResult, attempt int, policy profile.RetryPolicy, cancelState event.CancelReason) Decision {
	if result.Kind == event.ResultPass {
		return Decision{StopReason: "attempt passed"}
	}
	if result.Kind == event.ResultExecFail {
		return Decision{StopReason: "exec-fail is never retried"}
	}
	if cancelState >= event.CancelTestFailure {
		return Decision{StopReason: "run is cancelling"}
	}
	if attempt > policy.Count {
		return Decision{StopReason: "retry attempts exhausted"}
	}
	delay := policy.Backoff.Delay(attempt, Jitter)
	return Decision{Retry: true, Delay: delay}
}

// IsFlaky reports whether a test is flaky: at
// least one attempt failed and the final attempt passed.
func IsFlaky(results []event.ExecutionResult) bool {
	if len(results) < 2 {
		return false
	}
	last := results[len(results)-1]
	if last.Kind != event.ResultPass {
		return false
	}
	for _, r := range results[:len(results)-1] {
		if r.Kind != event.ResultPass {
			return true
		}
	}
	return false
}
