package profile

import "time"

// OutputPolicy controls when captured test output is surfaced to the
// terminal reporter.
type OutputPolicy int

const (
	OutputNever OutputPolicy = iota
	OutputFinal
	OutputImmediate
	OutputImmediateFinal
)

func (p OutputPolicy) String() string {
	switch p {
	case OutputNever:
		return "never"
	case OutputFinal:
		return "final"
	case OutputImmediate:
		return "immediate"
	case OutputImmediateFinal:
		return "immediate-final"
	default:
		return "unknown"
	}
}

// StatusLevel is a verbosity tier for per-test status reporting.
type StatusLevel int

const (
	StatusNone StatusLevel = iota
	StatusFail
	StatusRetry
	StatusSlow
	StatusPass
	StatusAll
)

// BackoffKind selects the retry backoff strategy.
type BackoffKind int

const (
	BackoffNone BackoffKind = iota
	BackoffFixed
	BackoffExponential
)

// Backoff describes how long to wait before a retry attempt.
type Backoff struct {
	Kind    BackoffKind
	Fixed   time.Duration // used when Kind == BackoffFixed
	Initial time.Duration // used when Kind == BackoffExponential
	Factor  float64
	Max     time.Duration
	Jitter  bool
}

// Delay computes the backoff delay before the given 1-indexed retry
// attempt (attempt 1 is the delay before the first retry, i.e. after
// the first failure).
func (b Backoff) Delay(attempt int, jitterFn func(time.Duration) time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	var d time.Duration
	switch b.Kind {
	case BackoffNone:
		return 0
	case BackoffFixed:
		d = b.Fixed
	case BackoffExponential:
		d = b.Initial
		for i := 1; i < attempt; i++ {
			d = time.Duration(float64(d) * b.Factor)
			if b.Max > 0 && d > b.Max {
				d = b.Max
				break
			}
		}
		if b.Max > 0 && d > b.Max {
			d = b.Max
		}
	default:
		return 0
	}
	if b.Jitter && jitterFn != nil {
		d = jitterFn(d)
	}
	return d
}

// RetryPolicy bundles the retry count with its backoff strategy.
type RetryPolicy struct {
	Count   int // non-negative; 0 means a single attempt, no retries
	Backoff Backoff
}

// SlowTimeout configures the slow-test warning/termination cadence.
type SlowTimeout struct {
	Period         time.Duration
	TerminateAfter int // 0 means never terminate due to slowness
	GracePeriod    time.Duration
}

// LeakResult is the outcome recorded when grandchildren outlive the
// leak timeout.
type LeakResult int

const (
	LeakFail LeakResult = iota
	LeakPass
)

// LeakTimeout configures how long to wait, after a test's own process
// exits, for its grandchildren to exit too.
type LeakTimeout struct {
	Period time.Duration
	Result LeakResult
}

// StopPolicy is the fail-fast / max-fail stop strategy.
type StopPolicy struct {
	FailFast bool
	MaxFail  int // 0 means unlimited when FailFast is false
}

// Triggered reports whether the stop policy fires given the number of
// failures observed so far.
func (p StopPolicy) Triggered(failuresSoFar int) bool {
	if p.FailFast {
		return failuresSoFar >= 1
	}
	if p.MaxFail > 0 {
		return failuresSoFar >= p.MaxFail
	}
	return false
}

// Profile is the fully resolved set of settings for one test instance.
// It is produced fresh by the resolver and never mutated afterward.
type Profile struct {
	TestThreads             int
	ThreadsRequired         int
	Retries                 RetryPolicy
	SlowTimeout             SlowTimeout
	LeakTimeout             LeakTimeout
	GlobalTimeout           time.Duration // 0 means no whole-run deadline
	TestGroup               string        // empty means no group
	SuccessOutput           OutputPolicy
	FailureOutput           OutputPolicy
	StatusLevel             StatusLevel
	FinalStatusLevel        StatusLevel
	JunitStoreSuccessOutput bool
	JunitStoreFailureOutput bool
	Stop                    StopPolicy
	Priority                int // higher runs first; stable tiebreak by enqueue order
}

// DefaultProfile returns nextest's hardcoded defaults, used as the
// innermost fallback layer when no override supplies a field.
func DefaultProfile() Profile {
	return Profile{
		TestThreads:     NumCPU(),
		ThreadsRequired: 1,
		Retries:         RetryPolicy{Count: 0},
		SlowTimeout: SlowTimeout{
			Period:         60 * time.Second,
			TerminateAfter: 0,
			GracePeriod:    10 * time.Second,
		},
		LeakTimeout: LeakTimeout{
			Period: 100 * time.Millisecond,
			Result: LeakPass,
		},
		SuccessOutput:    OutputNever,
		FailureOutput:    OutputImmediate,
		StatusLevel:      StatusPass,
		FinalStatusLevel: StatusFail,
		Stop:             StopPolicy{},
		Priority:         0,
	}
}

// TestGroup is a named bucket with its own concurrency cap, used to
// bound contention on a shared external resource (e.g. a database).
type TestGroup struct {
	Name       string
	MaxThreads int
}
