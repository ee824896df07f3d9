package runner

import (
	"context"
	"errors"
	"testing"

	"github.com/jpequegn/paratest/internal/capture"
	"github.com/jpequegn/paratest/internal/event"
	"github.com/jpequegn/paratest/internal/launcher"
	"github.com/jpequegn/paratest/internal/profile"
	"github.com/jpequegn/paratest/internal/scheduler"
	"github.com/jpequegn/paratest/internal/setupscript"
	"github.com/jpequegn/paratest/internal/testid"
	"github.com/jpequegn/paratest/internal/unit"
)

func shellFactory(script string) func(testid.TestInstance) unit.LaunchFunc {
	return func(ti testid.TestInstance) unit.LaunchFunc {
		return func(attempt int, published map[string]string) (*launcher.Child, error) {
			return launcher.Launch(launcher.Spec{
				Program:   "sh",
				Args:      []string{"-c", script},
				Cwd:       ti.Cwd,
				Instance:  ti,
				Published: published,
				Capture:   capture.Split,
			})
		}
	}
}

func testList(names ...string) *testid.TestList {
	cases := make([]testid.TestCase, len(names))
	for i, n := range names {
		cases[i] = testid.TestCase{Name: n, Match: testid.FilterMatched}
	}
	return &testid.TestList{Binaries: []testid.BinaryEntry{{BinaryID: "bin", Cwd: "/tmp", Cases: cases}}}
}

func TestControllerRunsAllTestsToCompletion(t *testing.T) {
	rec := &event.Recorder{}
	resolver := profile.NewResolver()
	resolver.Default.TestThreads = 4

	cfg := Config{
		TestList:  testList("a", "b", "c"),
		Resolver:  resolver,
		Scheduler: scheduler.New(4, nil),
		NewLaunch: shellFactory("exit 0"),
		Sink:      rec,
	}
	c := New(cfg)
	stats := c.Run(context.Background())

	if stats.Passed != 3 {
		t.Fatalf("expected 3 passes, got %+v", stats)
	}
	if !stats.Finished() {
		t.Fatalf("expected run to report finished, got %+v", stats)
	}

	var sawStart, sawFinish bool
	for _, e := range rec.Events {
		if e.Kind == event.KindRunStarted {
			sawStart = true
		}
		if e.Kind == event.KindRunFinished {
			sawFinish = true
		}
	}
	if !sawStart || !sawFinish {
		t.Fatalf("expected RunStarted and RunFinished events, got %d events", len(rec.Events))
	}
}

func TestControllerFailFastCancelsRemainingUnits(t *testing.T) {
	rec := &event.Recorder{}
	resolver := profile.NewResolver()
	resolver.Default.TestThreads = 1
	resolver.Default.Stop = profile.StopPolicy{FailFast: true}

	cfg := Config{
		TestList:  testList("a", "b", "c", "d"),
		Resolver:  resolver,
		Scheduler: scheduler.New(1, nil),
		NewLaunch: shellFactory("exit 1"),
		Sink:      rec,
	}
	c := New(cfg)
	stats := c.Run(context.Background())

	if stats.Failed < 1 {
		t.Fatalf("expected at least one failure recorded, got %+v", stats)
	}
	if stats.Failed+stats.Passed+stats.Skipped+stats.TimedOut+stats.ExecFailed > 4 {
		t.Fatalf("recorded more outcomes than tests: %+v", stats)
	}

	var sawCancel bool
	for _, e := range rec.Events {
		if e.Kind == event.KindRunBeginCancel && e.Reason == event.CancelTestFailure {
			sawCancel = true
		}
	}
	if !sawCancel {
		t.Fatalf("expected a RunBeginCancel(test-failure) event")
	}
}

func TestControllerSkipsFilteredTests(t *testing.T) {
	rec := &event.Recorder{}
	list := testList("a", "b")
	list.Binaries[0].Cases[1].Match = testid.FilterMismatch

	resolver := profile.NewResolver()
	resolver.Default.TestThreads = 2

	cfg := Config{
		TestList:  list,
		Resolver:  resolver,
		Scheduler: scheduler.New(2, nil),
		NewLaunch: shellFactory("exit 0"),
		Sink:      rec,
	}
	c := New(cfg)
	stats := c.Run(context.Background())

	if stats.Skipped != 1 || stats.Passed != 1 {
		t.Fatalf("expected 1 skipped and 1 passed, got %+v", stats)
	}
}

func TestControllerSetupScriptFailureCancelsBeforeTests(t *testing.T) {
	rec := &event.Recorder{}
	resolver := profile.NewResolver()
	resolver.Default.TestThreads = 2

	cfg := Config{
		TestList:  testList("a"),
		Resolver:  resolver,
		Scheduler: scheduler.New(2, nil),
		NewLaunch: shellFactory("exit 0"),
		Sink:      rec,
		SetupScripts: []setupscript.Script{
			{Name: "migrate", Program: "sh", Args: []string{"-c", "exit 1"}, Cwd: t.TempDir(), Capture: capture.Split},
		},
	}
	c := New(cfg)
	stats := c.Run(context.Background())

	if stats.Started != 0 {
		t.Fatalf("expected no tests started after a setup script failure, got %+v", stats)
	}

	var sawCancel bool
	for _, e := range rec.Events {
		if e.Kind == event.KindRunBeginCancel && e.Reason == event.CancelSetupScriptFailure {
			sawCancel = true
		}
	}
	if !sawCancel {
		t.Fatalf("expected a RunBeginCancel(setup-script-failure) event")
	}
}

type erringSink struct {
	rec *event.Recorder
	err error
}

func (s *erringSink) Emit(e event.TestEvent) { s.rec.Emit(e) }
func (s *erringSink) Err() error             { return s.err }

func TestControllerEscalatesOnReporterWriteError(t *testing.T) {
	rec := &event.Recorder{}
	sink := &erringSink{rec: rec, err: errors.New("event log: disk full")}

	resolver := profile.NewResolver()
	resolver.Default.TestThreads = 1

	cfg := Config{
		TestList:  testList("a", "b", "c"),
		Resolver:  resolver,
		Scheduler: scheduler.New(1, nil),
		NewLaunch: shellFactory("exit 0"),
		Sink:      sink,
	}
	c := New(cfg)
	stats := c.Run(context.Background())

	var sawCancel, sawFinished bool
	for _, e := range rec.Events {
		if e.Kind == event.KindRunBeginCancel && e.Reason == event.CancelReportError {
			sawCancel = true
		}
		if e.Kind == event.KindRunFinished {
			sawFinished = true
		}
	}
	if !sawCancel {
		t.Fatalf("expected a RunBeginCancel(report-error) event")
	}
	if !sawFinished {
		t.Fatalf("expected RunFinished to still be emitted best-effort")
	}
	if stats.Skipped != 2 {
		t.Fatalf("expected the 2 queued tests to be skipped on cancel, got %+v", stats)
	}
}
