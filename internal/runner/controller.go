package runner

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jpequegn/paratest/internal/event"
	"github.com/jpequegn/paratest/internal/inputsrc"
	"github.com/jpequegn/paratest/internal/launcher"
	"github.com/jpequegn/paratest/internal/profile"
	"github.com/jpequegn/paratest/internal/retry"
	"github.com/jpequegn/paratest/internal/scheduler"
	"github.com/jpequegn/paratest/internal/setupscript"
	"github.com/jpequegn/paratest/internal/signalsrc"
	"github.com/jpequegn/paratest/internal/testid"
	"github.com/jpequegn/paratest/internal/unit"
)

// Config is everything the controller needs to drive one run.
type Config struct {
	RunID       string // generated with uuid.New if empty
	ProfileName string
	CLIArgs     []string

	TestList  *testid.TestList
	Resolver  *profile.Resolver
	Scheduler *scheduler.Scheduler

	// NewLaunch builds the per-attempt launch function for one test
	// instance; target-runner substitution (internal/target) and any
	// binary-specific argument shaping happen inside it.
	NewLaunch func(ti testid.TestInstance) unit.LaunchFunc

	SetupScripts []setupscript.Script

	Sink    event.Sink
	Signals *signalsrc.Source
	Input   inputsrc.Source

	// InfoDumpSink, when set, receives the aggregated snapshot requested
	// by an input.InfoAll event. LastFailureSink likewise receives the
	// most recent failure's captured output for input.InfoLastFailure.
	// Both are optional display hooks; the controller itself only
	// aggregates, it never formats output.
	InfoDumpSink    func([]unit.Snapshot)
	LastFailureSink func(testid.TestInstance, []byte, []byte)
}

// Controller is the single owner of the run's event loop.
type Controller struct {
	cfg     Config
	sched   *scheduler.Scheduler
	started time.Time
	runID   string

	cancel         event.CancelReason
	interruptCount int
	stats          event.RunStats
	failuresSoFar  int

	published map[string]string
	profiles  map[string]profile.Profile
	running   map[string]*runningUnit
	reportsCh chan unitMsg

	lastFailure *failureInfo
}

type runningUnit struct {
	instance testid.TestInstance
	waiting  *scheduler.Waiting
	unit     *unit.Unit
}

type unitMsg struct {
	key    string
	report unit.Report
}

type failureInfo struct {
	Instance testid.TestInstance
	Stdout   []byte
	Stderr   []byte
}

// New constructs a Controller from cfg, filling in no-op signal/input
// sources when the caller doesn't supply one (tests, non-interactive
// CI runs).
func New(cfg Config) *Controller {
	if cfg.Signals == nil {
		cfg.Signals = signalsrc.NewNoop()
	}
	if cfg.Input == nil {
		cfg.Input = inputsrc.NewNoop()
	}
	return &Controller{
		cfg:       cfg,
		sched:     cfg.Scheduler,
		profiles:  make(map[string]profile.Profile),
		running:   make(map[string]*runningUnit),
		reportsCh: make(chan unitMsg, 32),
	}
}

// RunID returns the run's id: the configured one, or the generated
// uuid once Run has started. Empty before Run is called without a
// configured id.
func (c *Controller) RunID() string {
	if c.runID != "" {
		return c.runID
	}
	return c.cfg.RunID
}

// Run drives the whole lifecycle: setup scripts, test admission and
// execution, signal/input handling, and final RunStats aggregation.
// Blocks until every unit has reached a terminal state.
func (c *Controller) Run(ctx context.Context) event.RunStats {
	c.started = time.Now()
	c.runID = c.cfg.RunID
	if c.runID == "" {
		c.runID = uuid.New().String()
	}

	c.emit(event.TestEvent{
		Kind:        event.KindRunStarted,
		RunID:       c.runID,
		ProfileName: c.cfg.ProfileName,
		CLIArgs:     c.cfg.CLIArgs,
		TestList:    c.cfg.TestList,
	})

	if !c.runSetupScripts(ctx) {
		c.emit(event.TestEvent{Kind: event.KindRunFinished, StartTime: c.started, RunStats: c.stats})
		return c.stats
	}

	c.enqueueTests()
	c.admitAndSpawn()
	c.loop(ctx)

	c.emit(event.TestEvent{Kind: event.KindRunFinished, StartTime: c.started, RunStats: c.stats})
	return c.stats
}

// runSetupScripts runs every configured setup script in order, before
// any test is admitted. Returns false if one failed, in which case the
// caller must not proceed to the test phase.
func (c *Controller) runSetupScripts(ctx context.Context) bool {
	if len(c.cfg.SetupScripts) == 0 {
		c.published = map[string]string{}
		return true
	}

	r := &setupscript.Runner{
		Scripts: c.cfg.SetupScripts,
		OnStarted: func(i int, s setupscript.Script) {
			c.emit(event.TestEvent{Kind: event.KindSetupScriptStarted, SetupScriptName: s.Name, SetupScriptIndex: i})
		},
		OnSlow: func(i int, s setupscript.Script, elapsed time.Duration) {
			c.emit(event.TestEvent{Kind: event.KindSetupScriptSlow, SetupScriptName: s.Name, SetupScriptIndex: i, Elapsed: elapsed})
		},
		OnFinished: func(i int, s setupscript.Script, res setupscript.Result) {
			kind := event.ResultFail
			if res.Passed {
				kind = event.ResultPass
			}
			c.emit(event.TestEvent{
				Kind:             event.KindSetupScriptFinished,
				SetupScriptName:  s.Name,
				SetupScriptIndex: i,
				RunStatus:        event.ExecutionResult{Kind: kind},
			})
		},
	}

	published, _, firstFailure := r.RunAll(ctx)
	c.published = published
	if firstFailure != nil {
		c.cancel = c.cancel.Escalate(event.CancelSetupScriptFailure)
		c.emit(event.TestEvent{Kind: event.KindRunBeginCancel, Reason: c.cancel})
		return false
	}
	return true
}

// enqueueTests resolves each test instance's profile and either marks
// it skipped immediately (filtered out or ignored, per its FilterMatch)
// or enqueues it with the scheduler.
func (c *Controller) enqueueTests() {
	if c.cfg.TestList == nil {
		return
	}
	for _, ti := range c.cfg.TestList.Instances() {
		if ti.FilterMatch != testid.FilterMatched {
			c.stats.Skipped++
			reason := "filtered out"
			if ti.FilterMatch == testid.FilterIgnored {
				reason = "ignored"
			}
			c.emit(event.TestEvent{Kind: event.KindTestSkipped, Instance: ti, SkipReason: reason})
			continue
		}
		p := c.cfg.Resolver.Resolve(ti)
		c.profiles[ti.Key()] = p
		c.sched.Enqueue(&scheduler.Waiting{
			Instance: ti,
			Weight:   p.ThreadsRequired,
			Group:    p.TestGroup,
			Priority: p.Priority,
		})
	}
}

// loop runs the main select statement until no unit is running or
// waiting.
func (c *Controller) loop(ctx context.Context) {
	ctxDone := ctx.Done()

	var timeoutCh <-chan time.Time
	if gt := c.cfg.Resolver.Default.GlobalTimeout; gt > 0 {
		timer := time.NewTimer(gt)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	for !c.isDone() {
		select {
		case m := <-c.reportsCh:
			c.handleReport(m)

		case sig := <-c.cfg.Signals.Events():
			c.handleSignal(sig)

		case in := <-c.cfg.Input.Events():
			c.handleInput(in)

		case <-timeoutCh:
			timeoutCh = nil
			c.beginCancel(event.CancelSignal)

		case <-ctxDone:
			ctxDone = nil
			c.beginCancel(event.CancelSignal)
		}

		c.checkSinkErr()
	}
}

// checkSinkErr escalates the run to a report-error cancellation when a
// sink that persists events has recorded a write failure, so the user
// sees a visible cause. The event stream itself keeps flowing
// best-effort.
func (c *Controller) checkSinkErr() {
	if c.cancel >= event.CancelReportError {
		return
	}
	if es, ok := c.cfg.Sink.(interface{ Err() error }); ok && es.Err() != nil {
		c.beginCancel(event.CancelReportError)
	}
}

func (c *Controller) isDone() bool {
	return len(c.running) == 0 && c.sched.QueueLen() == 0
}

// admitAndSpawn pulls every currently-admissible waiting unit from the
// scheduler and starts it running.
func (c *Controller) admitAndSpawn() {
	if c.cancel >= event.CancelTestFailure {
		return
	}
	for _, w := range c.sched.Admit() {
		ti := w.Instance
		key := ti.Key()
		p := c.profiles[key]
		launch := c.cfg.NewLaunch(ti)
		u := unit.New(ti, p, launch)

		c.running[key] = &runningUnit{instance: ti, waiting: w, unit: u}
		go c.forwardReports(key, u)
		go u.Run(c.published)
	}
}

func (c *Controller) forwardReports(key string, u *unit.Unit) {
	for r := range u.Reports() {
		c.reportsCh <- unitMsg{key: key, report: r}
	}
}

func (c *Controller) handleReport(m unitMsg) {
	ru := c.running[m.key]
	if ru == nil {
		return
	}
	switch m.report.Kind {
	case unit.RptStarted:
		c.stats.Started++
		c.emit(event.TestEvent{
			Kind:         event.KindTestStarted,
			Instance:     ru.instance,
			RetryData:    event.RetryData{Attempt: m.report.Attempt, TotalAttempts: m.report.TotalAttempts},
			CurrentStats: c.stats,
			Running:      len(c.running),
		})

	case unit.RptRetryStarted:
		c.emit(event.TestEvent{
			Kind:      event.KindTestRetryStarted,
			Instance:  ru.instance,
			RetryData: event.RetryData{Attempt: m.report.Attempt, TotalAttempts: m.report.TotalAttempts},
		})

	case unit.RptSlow:
		c.emit(event.TestEvent{
			Kind:          event.KindTestSlow,
			Instance:      ru.instance,
			Elapsed:       m.report.Elapsed,
			WillTerminate: m.report.WillTerminate,
		})

	case unit.RptAttemptFailedWillRetry:
		c.emit(event.TestEvent{
			Kind:      event.KindTestAttemptFailedWillRetry,
			Instance:  ru.instance,
			RunStatus: m.report.Result,
			Delay:     m.report.Delay,
		})

	case unit.RptExited:
		if m.report.Result.Kind != event.ResultPass {
			c.lastFailure = &failureInfo{Instance: ru.instance, Stdout: m.report.Stdout, Stderr: m.report.Stderr}
		}

	case unit.RptFinished:
		c.finishUnit(ru, m.report)
	}
}

func (c *Controller) finishUnit(ru *runningUnit, report unit.Report) {
	delete(c.running, ru.instance.Key())
	c.sched.Release(ru.waiting)

	results := report.AllResults
	if len(results) == 0 {
		c.admitAndSpawn()
		return
	}
	last := results[len(results)-1]
	flaky := retry.IsFlaky(results)

	switch last.Kind {
	case event.ResultPass:
		c.stats.Passed++
		if flaky {
			c.stats.Flaky++
		}
	case event.ResultFail:
		c.stats.Failed++
	case event.ResultTimeout:
		c.stats.TimedOut++
	case event.ResultExecFail:
		c.stats.ExecFailed++
	}

	c.emit(event.TestEvent{
		Kind:         event.KindTestFinished,
		Instance:     ru.instance,
		RunStatuses:  results,
		CurrentStats: c.stats,
		Running:      len(c.running),
		CancelState:  c.cancel,
	})

	if last.Kind != event.ResultPass {
		c.failuresSoFar++
		if c.cfg.Resolver.Default.Stop.Triggered(c.failuresSoFar) {
			c.beginCancel(event.CancelTestFailure)
		}
	}

	c.admitAndSpawn()
}

// beginCancel escalates the run's cancellation state and, on a real
// escalation, broadcasts a cancel request to every running unit and
// emits RunBeginCancel. Repeated calls at the same severity are
// harmless no-ops; see handleSignal for the "second interrupt"
// unconditional-kill path, which bypasses this.
func (c *Controller) beginCancel(reason event.CancelReason) {
	next := c.cancel.Escalate(reason)
	if next == c.cancel {
		return
	}
	c.cancel = next
	c.emit(event.TestEvent{Kind: event.KindRunBeginCancel, Reason: c.cancel, Running: len(c.running)})
	c.broadcastCancel(c.cancel)

	// A cancelling run never admits the rest of the waiting queue;
	// report each queued unit as skipped and drop it so the main loop's
	// termination condition (no running, none waiting) can be reached.
	for _, w := range c.sched.DrainAll() {
		c.stats.Skipped++
		c.emit(event.TestEvent{Kind: event.KindTestSkipped, Instance: w.Instance, SkipReason: "canceled: " + c.cancel.String()})
	}
}

func (c *Controller) broadcastCancel(reason event.CancelReason) {
	for _, ru := range c.running {
		ru.unit.Requests() <- unit.Request{Kind: unit.ReqCancel, Reason: reason}
	}
}

func (c *Controller) handleSignal(ev signalsrc.Event) {
	switch ev.Kind {
	case signalsrc.Interrupt:
		c.interruptCount++
		if c.interruptCount == 1 {
			c.beginCancel(event.CancelInterrupt)
		} else {
			// Second interrupt: unconditional kill broadcast. Each
			// unit's own request handler escalates a repeated cancel
			// of equal severity to an immediate kill (internal/unit).
			c.broadcastCancel(event.CancelInterrupt)
		}

	case signalsrc.Terminate, signalsrc.Hangup, signalsrc.Quit:
		c.beginCancel(event.CancelSignal)

	case signalsrc.Stop:
		for _, ru := range c.running {
			ru.unit.Requests() <- unit.Request{Kind: unit.ReqStop}
		}
		c.emit(event.TestEvent{Kind: event.KindRunPaused})
		_ = launcher.SuspendSelf()

	case signalsrc.Continue:
		for _, ru := range c.running {
			ru.unit.Requests() <- unit.Request{Kind: unit.ReqContinue}
		}
		c.emit(event.TestEvent{Kind: event.KindRunContinued})
	}
}

func (c *Controller) handleInput(ev inputsrc.Event) {
	switch ev {
	case inputsrc.CancelRun:
		c.interruptCount++
		if c.interruptCount == 1 {
			c.beginCancel(event.CancelInterrupt)
		} else {
			c.broadcastCancel(event.CancelInterrupt)
		}

	case inputsrc.InfoAll:
		c.dispatchInfoAll()

	case inputsrc.InfoLastFailure:
		if c.cfg.LastFailureSink != nil && c.lastFailure != nil {
			c.cfg.LastFailureSink(c.lastFailure.Instance, c.lastFailure.Stdout, c.lastFailure.Stderr)
		}
	}
}

func (c *Controller) dispatchInfoAll() {
	var snaps []unit.Snapshot
	for _, ru := range c.running {
		reply := make(chan unit.Snapshot, 1)
		ru.unit.Requests() <- unit.Request{Kind: unit.ReqInfoQuery, Reply: reply}
		snaps = append(snaps, <-reply)
	}
	if c.cfg.InfoDumpSink != nil {
		c.cfg.InfoDumpSink(snaps)
	}
}

func (c *Controller) emit(e event.TestEvent) {
	if c.cfg.Sink == nil {
		return
	}
	c.cfg.Sink.Emit(event.Stamp(e, time.Now(), c.started))
}
