package event

import (
	"time"

	"github.com/jpequegn/paratest/internal/testid"
)

// CancelReason orders the causes a run can be cancelling for. Higher
// values mask lower ones: a transition may only move to an equal or
// higher severity, never back down.
type CancelReason int

const (
	// CancelNone means the run is not cancelling.
	CancelNone CancelReason = iota
	// CancelSetupScriptFailure means a setup script failed.
	CancelSetupScriptFailure
	// CancelTestFailure means fail-fast or max-fail triggered.
	CancelTestFailure
	// CancelReportError means a reporter failed to accept an event.
	CancelReportError
	// CancelSignal means a termination signal (term/hangup/quit) or the
	// global timeout fired.
	CancelSignal
	// CancelInterrupt means the user requested cancellation (Ctrl-C or
	// a second interrupt escalating to a broadcast kill).
	CancelInterrupt
)

func (c CancelReason) String() string {
	switch c {
	case CancelNone:
		return "none"
	case CancelSetupScriptFailure:
		return "setup-script-failure"
	case CancelTestFailure:
		return "test-failure"
	case CancelReportError:
		return "report-error"
	case CancelSignal:
		return "signal"
	case CancelInterrupt:
		return "interrupt"
	default:
		return "unknown"
	}
}

// Escalate returns the higher-severity of c and other, implementing the
// "higher state masks a lower one" rule. A cancellation tracker should
// always store the result of Escalate, never overwrite unconditionally.
func (c CancelReason) Escalate(other CancelReason) CancelReason {
	if other > c {
		return other
	}
	return c
}

// ResultKind is the outcome of one execution attempt of a unit.
type ResultKind int

const (
	// ResultPass means the child exited successfully.
	ResultPass ResultKind = iota
	// ResultFail means the child exited with a failure code, was
	// signaled, or aborted.
	ResultFail
	// ResultExecFail means the child could not be spawned at all
	// (binary missing or non-executable).
	ResultExecFail
	// ResultTimeout means the unit was terminated for exceeding its
	// hard timeout; the embedded Inner result records what the
	// eventual exit looked like.
	ResultTimeout
)

func (k ResultKind) String() string {
	switch k {
	case ResultPass:
		return "pass"
	case ResultFail:
		return "fail"
	case ResultExecFail:
		return "exec-fail"
	case ResultTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// ExecutionResult is the outcome of one attempt at running a unit.
type ExecutionResult struct {
	Kind ResultKind
	// AbortStatus holds the terminating signal number (Unix) or NT
	// status code (Windows); zero if the child exited with a normal
	// status code.
	AbortStatus int
	// Leaked is true when the leak-timeout expired before the unit's
	// grandchildren exited.
	Leaked bool
	// TimeoutResult records whether the timed-out unit would otherwise
	// have passed or failed, only meaningful when Kind == ResultTimeout.
	TimeoutResult ResultKind
}

// RunStats is the monotonically-updated set of counters describing a
// run's progress so far. The run controller is the only task permitted
// to mutate it; every other component only ever reads a snapshot.
type RunStats struct {
	Started    int
	Passed     int
	Failed     int
	Flaky      int
	Skipped    int
	TimedOut   int
	ExecFailed int
}

// Finished reports whether every started unit has reached a terminal
// outcome accounted for in the stats.
func (s RunStats) Finished() bool {
	return s.Passed+s.Failed+s.Skipped+s.TimedOut+s.ExecFailed >= s.Started
}

// AnyFailures reports whether the run has recorded any non-pass
// terminal outcome.
func (s RunStats) AnyFailures() bool {
	return s.Failed > 0 || s.TimedOut > 0 || s.ExecFailed > 0
}

// RetryData describes a unit's position in its retry sequence,
// attached to slow/retry events so reporters can show "attempt 2/4".
type RetryData struct {
	Attempt       int
	TotalAttempts int
}

// Kind identifies which variant of observable fact a TestEvent carries.
type Kind int

const (
	KindRunStarted Kind = iota
	KindSetupScriptStarted
	KindSetupScriptSlow
	KindSetupScriptFinished
	KindTestStarted
	KindTestSlow
	KindTestAttemptFailedWillRetry
	KindTestRetryStarted
	KindTestFinished
	KindTestSkipped
	KindRunBeginCancel
	KindRunPaused
	KindRunContinued
	KindRunFinished
)

func (k Kind) String() string {
	switch k {
	case KindRunStarted:
		return "RunStarted"
	case KindSetupScriptStarted:
		return "SetupScriptStarted"
	case KindSetupScriptSlow:
		return "SetupScriptSlow"
	case KindSetupScriptFinished:
		return "SetupScriptFinished"
	case KindTestStarted:
		return "TestStarted"
	case KindTestSlow:
		return "TestSlow"
	case KindTestAttemptFailedWillRetry:
		return "TestAttemptFailedWillRetry"
	case KindTestRetryStarted:
		return "TestRetryStarted"
	case KindTestFinished:
		return "TestFinished"
	case KindTestSkipped:
		return "TestSkipped"
	case KindRunBeginCancel:
		return "RunBeginCancel"
	case KindRunPaused:
		return "RunPaused"
	case KindRunContinued:
		return "RunContinued"
	case KindRunFinished:
		return "RunFinished"
	default:
		return "Unknown"
	}
}

// TestEvent is one observable fact emitted by the run controller. Only
// the payload fields relevant to Kind are populated; the rest are zero
// values. This mirrors the tagged-union shape of the original event
// type while staying a single flat struct, which keeps JSON and history
// serialization (internal/storage, internal/reporter) straightforward.
type TestEvent struct {
	Timestamp time.Time
	Elapsed   time.Duration
	Kind      Kind

	// RunStarted
	RunID       string
	ProfileName string
	CLIArgs     []string
	TestList    *testid.TestList

	// SetupScript*
	SetupScriptName  string
	SetupScriptIndex int

	// Test*
	Instance      testid.TestInstance
	CurrentStats  RunStats
	Running       int
	RetryData     RetryData
	RunStatus     ExecutionResult
	RunStatuses   []ExecutionResult
	Delay         time.Duration
	WillTerminate bool
	SkipReason    string
	CancelState   CancelReason

	// RunBeginCancel
	Reason              CancelReason
	SetupScriptsRunning int

	// RunFinished
	StartTime time.Time
	RunStats  RunStats
}
