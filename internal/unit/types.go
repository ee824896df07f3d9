// Package unit implements the per-test process lifecycle state machine:
// one goroutine per in-flight unit, driven by a select loop over the
// slow-timeout timer, the grace-period timer, the child's exit, and a
// request channel the run controller broadcasts cancellation and
// job-control events through.
package unit

import (
	"time"

	"github.com/jpequegn/paratest/internal/event"
	"github.com/jpequegn/paratest/internal/testid"
)

// State is the unit's current position in the lifecycle.
type State int

const (
	Waiting State = iota
	Running
	Slow
	Terminating
	LeakWatch
	Exited
	DelayBeforeRetry
	Finished
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case Running:
		return "running"
	case Slow:
		return "slow"
	case Terminating:
		return "terminating"
	case LeakWatch:
		return "leak-watch"
	case Exited:
		return "exited"
	case DelayBeforeRetry:
		return "delay-before-retry"
	case Finished:
		return "finished"
	default:
		return "unknown"
	}
}

// TerminationMethod is how a Terminating unit is being shut down.
type TerminationMethod int

const (
	MethodSignal TerminationMethod = iota
	MethodKill
)

// RequestKind identifies what the controller is asking a unit to do.
type RequestKind int

const (
	ReqCancel RequestKind = iota
	ReqStop
	ReqContinue
	ReqInfoQuery
)

// Request is sent from the run controller to one unit's request
// channel. Reason is only meaningful for ReqCancel.
type Request struct {
	Kind   RequestKind
	Reason event.CancelReason
	// Reply, when non-nil, is the channel a ReqInfoQuery's Snapshot is
	// sent back on.
	Reply chan Snapshot
}

// Snapshot answers a ReqInfoQuery: the unit's state at the moment the
// query was processed.
type Snapshot struct {
	Instance testid.TestInstance
	State    State
	Attempt  int
	Pid      int
	Elapsed  time.Duration
	Stdout   []byte
	Stderr   []byte
}

// ReportKind identifies which event.Kind a Report corresponds to; the
// run controller translates Reports into stamped event.TestEvents.
type ReportKind int

const (
	RptStarted ReportKind = iota
	RptSlow
	RptAttemptFailedWillRetry
	RptRetryStarted
	RptExited
	RptFinished
)

// Report is one fact the unit emits for the controller to fold into the
// event stream and RunStats. Only fields relevant to Kind are populated.
type Report struct {
	Kind ReportKind

	Attempt       int
	TotalAttempts int
	Elapsed       time.Duration
	WillTerminate bool

	Result     event.ExecutionResult
	Delay      time.Duration
	AllResults []event.ExecutionResult

	Stdout []byte
	Stderr []byte
}
