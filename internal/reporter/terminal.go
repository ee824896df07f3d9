package reporter

import (
	"fmt"
	"io"
	"time"

	"golang.org/x/text/width"

	"github.com/jpequegn/paratest/internal/event"
	"github.com/jpequegn/paratest/internal/profile"
	"github.com/jpequegn/paratest/internal/retry"
)

// Terminal is a human-readable event.Sink: a line per test whose
// outcome clears the configured status level, and a closing summary of
// pass/fail/flaky counts when the run finishes.
type Terminal struct {
	w                io.Writer
	statusLevel      profile.StatusLevel
	finalStatusLevel profile.StatusLevel
	maxLineWidth     int
}

// NewTerminal builds a Terminal reporter writing to w, gated by the
// given status levels (ordinarily a profile's StatusLevel/
// FinalStatusLevel). maxLineWidth caps a captured test name's display
// width before truncation; 0 selects a sensible default.
func NewTerminal(w io.Writer, statusLevel, finalStatusLevel profile.StatusLevel, maxLineWidth int) *Terminal {
	if maxLineWidth <= 0 {
		maxLineWidth = 100
	}
	return &Terminal{w: w, statusLevel: statusLevel, finalStatusLevel: finalStatusLevel, maxLineWidth: maxLineWidth}
}

// Emit renders e, satisfying event.Sink.
func (t *Terminal) Emit(e event.TestEvent) {
	switch e.Kind {
	case event.KindRunStarted:
		fmt.Fprintf(t.w, "running %d tests (profile %q, run %s)\n", instanceCount(e), e.ProfileName, e.RunID)

	case event.KindSetupScriptStarted:
		fmt.Fprintf(t.w, "    SETUP %s\n", e.SetupScriptName)

	case event.KindSetupScriptSlow:
		fmt.Fprintf(t.w, "     SLOW %s (running %s)\n", e.SetupScriptName, e.Elapsed.Round(time.Second))

	case event.KindSetupScriptFinished:
		if e.RunStatus.Kind != event.ResultPass {
			fmt.Fprintf(t.w, "   FAILED %s\n", e.SetupScriptName)
		}

	case event.KindTestStarted:
		if t.statusLevel >= profile.StatusAll {
			fmt.Fprintf(t.w, "    START %s\n", t.truncate(e.Instance.String()))
		}

	case event.KindTestSlow:
		if t.statusLevel >= profile.StatusSlow {
			label := "SLOW"
			if e.WillTerminate {
				label = "TERMINATING"
			}
			fmt.Fprintf(t.w, "%9s %s (running %s)\n", label, t.truncate(e.Instance.String()), e.Elapsed.Round(time.Second))
		}

	case event.KindTestAttemptFailedWillRetry:
		if t.statusLevel >= profile.StatusRetry {
			fmt.Fprintf(t.w, "    RETRY %s (attempt %d/%d, retrying in %s)\n",
				t.truncate(e.Instance.String()), e.RetryData.Attempt, e.RetryData.TotalAttempts, e.Delay)
		}

	case event.KindTestRetryStarted:
		if t.statusLevel >= profile.StatusRetry {
			fmt.Fprintf(t.w, "    RETRY %s (attempt %d/%d)\n",
				t.truncate(e.Instance.String()), e.RetryData.Attempt, e.RetryData.TotalAttempts)
		}

	case event.KindTestFinished:
		t.emitFinished(e)

	case event.KindTestSkipped:
		if t.statusLevel >= profile.StatusAll {
			fmt.Fprintf(t.w, "     SKIP %s (%s)\n", t.truncate(e.Instance.String()), e.SkipReason)
		}

	case event.KindRunBeginCancel:
		fmt.Fprintf(t.w, "canceling due to %s\n", e.Reason)

	case event.KindRunPaused:
		fmt.Fprintln(t.w, "paused")

	case event.KindRunContinued:
		fmt.Fprintln(t.w, "resumed")

	case event.KindRunFinished:
		t.emitSummary(e)
	}
}

func (t *Terminal) emitFinished(e event.TestEvent) {
	level := t.statusLevel
	flaky := retry.IsFlaky(e.RunStatuses)
	var last event.ExecutionResult
	if n := len(e.RunStatuses); n > 0 {
		last = e.RunStatuses[n-1]
	}
	status := "PASS"
	switch {
	case flaky:
		status = "FLAKY"
	case last.Kind == event.ResultTimeout:
		status = "TIMEOUT"
	case last.Kind == event.ResultExecFail:
		status = "EXEC FAIL"
	case last.Kind != event.ResultPass:
		status = "FAIL"
	}

	threshold := profile.StatusPass
	if status != "PASS" {
		threshold = profile.StatusFail
	}
	if level < threshold {
		return
	}
	fmt.Fprintf(t.w, "%9s [%8s] %s\n", status, e.Elapsed.Round(time.Millisecond), t.truncate(e.Instance.String()))
}

func (t *Terminal) emitSummary(e event.TestEvent) {
	s := e.RunStats
	fmt.Fprintf(t.w, "\nSummary [%s]: %d tests run: %d passed, %d failed, %d flaky, %d timed out, %d exec failures, %d skipped\n",
		e.Elapsed.Round(time.Millisecond), s.Started, s.Passed, s.Failed, s.Flaky, s.TimedOut, s.ExecFailed, s.Skipped)
}

// truncate shortens s to fit within maxLineWidth display columns,
// counting East-Asian wide/fullwidth runes as two columns, matching
// how a real terminal renders them.
func (t *Terminal) truncate(s string) string {
	cols := 0
	cut := -1
	for i, r := range s {
		w := 1
		switch width.LookupRune(r).Kind() {
		case width.EastAsianWide, width.EastAsianFullwidth:
			w = 2
		}
		if cols+w > t.maxLineWidth-1 {
			cut = i
			break
		}
		cols += w
	}
	if cut < 0 {
		return s
	}
	return s[:cut] + "…"
}

func instanceCount(e event.TestEvent) int {
	if e.TestList == nil {
		return 0
	}
	return e.TestList.Len()
}
