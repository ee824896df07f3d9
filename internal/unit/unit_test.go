package unit

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jpequegn/paratest/internal/capture"
	"github.com/jpequegn/paratest/internal/event"
	"github.com/jpequegn/paratest/internal/launcher"
	"github.com/jpequegn/paratest/internal/profile"
	"github.com/jpequegn/paratest/internal/testid"
)

func shellLaunch(t *testing.T, script string) LaunchFunc {
	t.Helper()
	return func(attempt int, published map[string]string) (*launcher.Child, error) {
		return launcher.Launch(launcher.Spec{
			Program: "sh",
			Args:    []string{"-c", script},
			Cwd:     t.TempDir(),
			Capture: capture.Split,
		})
	}
}

func drain(u *Unit) []Report {
	var out []Report
	for r := range u.Reports() {
		out = append(out, r)
	}
	return out
}

func TestUnitSuccessBaseline(t *testing.T) {
	u := New(testid.TestInstance{BinaryID: "bin", TestName: "a"}, profile.DefaultProfile(), shellLaunch(t, "exit 0"))
	go u.Run(nil)
	reports := drain(u)

	kinds := kindsOf(reports)
	assertContains(t, kinds, RptStarted, RptExited, RptFinished)

	final := reports[len(reports)-1]
	if final.Kind != RptFinished {
		t.Fatalf("last report should be RptFinished, got %v", final.Kind)
	}
	if len(final.AllResults) != 1 || final.AllResults[0].Kind != event.ResultPass {
		t.Fatalf("expected a single passing result, got %+v", final.AllResults)
	}
}

func TestUnitFailureNoRetryByDefault(t *testing.T) {
	p := profile.DefaultProfile()
	u := New(testid.TestInstance{BinaryID: "bin", TestName: "b"}, p, shellLaunch(t, "exit 1"))
	go u.Run(nil)
	reports := drain(u)
	final := reports[len(reports)-1]
	if len(final.AllResults) != 1 || final.AllResults[0].Kind != event.ResultFail {
		t.Fatalf("expected single failing result, got %+v", final.AllResults)
	}
}

func TestUnitFlakyRetrySucceedsOnThirdAttempt(t *testing.T) {
	dir := t.TempDir()
	counter := filepath.Join(dir, "count")
	script := fmt.Sprintf(`
n=0
if [ -f %q ]; then n=$(cat %q); fi
n=$((n+1))
echo $n > %q
if [ "$n" -lt 3 ]; then exit 1; fi
exit 0
`, counter, counter, counter)

	p := profile.DefaultProfile()
	p.Retries = profile.RetryPolicy{Count: 3, Backoff: profile.Backoff{Kind: profile.BackoffFixed, Fixed: time.Millisecond}}

	u := New(testid.TestInstance{BinaryID: "bin", TestName: "flaky"}, p, func(attempt int, published map[string]string) (*launcher.Child, error) {
		return launcher.Launch(launcher.Spec{Program: "sh", Args: []string{"-c", script}, Cwd: dir, Capture: capture.Split})
	})
	go u.Run(nil)
	reports := drain(u)

	final := reports[len(reports)-1]
	if final.Kind != RptFinished {
		t.Fatalf("expected RptFinished, got %v", final.Kind)
	}
	if len(final.AllResults) != 3 {
		t.Fatalf("expected 3 attempts, got %d: %+v", len(final.AllResults), final.AllResults)
	}
	if final.AllResults[0].Kind != event.ResultFail || final.AllResults[1].Kind != event.ResultFail || final.AllResults[2].Kind != event.ResultPass {
		t.Fatalf("expected fail, fail, pass; got %+v", final.AllResults)
	}

	retryStarted := countKind(reports, RptRetryStarted)
	if retryStarted != 2 {
		t.Fatalf("expected 2 RptRetryStarted events, got %d", retryStarted)
	}
}

func TestUnitSlowTerminatesAfterThreshold(t *testing.T) {
	p := profile.DefaultProfile()
	p.SlowTimeout = profile.SlowTimeout{Period: 30 * time.Millisecond, TerminateAfter: 2, GracePeriod: 20 * time.Millisecond}

	u := New(testid.TestInstance{BinaryID: "bin", TestName: "slow"}, p, shellLaunch(t, "sleep 5"))
	go u.Run(nil)
	reports := drain(u)

	slowReports := filterKind(reports, RptSlow)
	if len(slowReports) < 2 {
		t.Fatalf("expected at least 2 slow reports, got %d", len(slowReports))
	}
	last := slowReports[len(slowReports)-1]
	if !last.WillTerminate {
		t.Fatalf("last slow report before termination should set WillTerminate")
	}

	final := reports[len(reports)-1]
	if final.AllResults[0].Kind != event.ResultTimeout {
		t.Fatalf("expected a timeout result, got %+v", final.AllResults[0])
	}
}

// stampedReport pairs a Report with the wall-clock time it was
// received, for tests that assert on timing.
type stampedReport struct {
	report Report
	at     time.Time
}

func stampedOfKind(items []stampedReport, kind ReportKind) []stampedReport {
	var out []stampedReport
	for _, it := range items {
		if it.report.Kind == kind {
			out = append(out, it)
		}
	}
	return out
}

func TestUnitJobControlPausesSlowTimer(t *testing.T) {
	p := profile.DefaultProfile()
	p.SlowTimeout = profile.SlowTimeout{Period: 40 * time.Millisecond, TerminateAfter: 100, GracePeriod: 20 * time.Millisecond}

	u := New(testid.TestInstance{BinaryID: "bin", TestName: "paused"}, p, shellLaunch(t, "sleep 5"))

	var mu sync.Mutex
	var reports []stampedReport
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range u.Reports() {
			mu.Lock()
			reports = append(reports, stampedReport{r, time.Now()})
			mu.Unlock()
		}
	}()

	start := time.Now()
	go u.Run(nil)

	time.Sleep(10 * time.Millisecond)
	u.Requests() <- Request{Kind: ReqStop}

	// Hold the pause across more than one slow-timeout period: if the
	// slow timer isn't actually paused alongside the stopwatch, it keeps
	// counting down and fires inside this window.
	pauseWindow := 150 * time.Millisecond
	time.Sleep(pauseWindow)

	mu.Lock()
	pausedCount := len(stampedOfKind(reports, RptSlow))
	mu.Unlock()
	if pausedCount != 0 {
		t.Fatalf("expected no slow reports while job-control paused, got %d", pausedCount)
	}

	u.Requests() <- Request{Kind: ReqContinue}
	// Give the resumed slow timer (roughly Period minus the ~10ms it had
	// already run before the pause) room to fire at least once before
	// the unit is torn down.
	time.Sleep(80 * time.Millisecond)
	u.Requests() <- Request{Kind: ReqCancel, Reason: event.CancelInterrupt}
	<-done

	mu.Lock()
	defer mu.Unlock()
	slowAfterResume := stampedOfKind(reports, RptSlow)
	if len(slowAfterResume) == 0 {
		t.Fatalf("expected at least one slow report after resuming")
	}
	if slowAfterResume[0].at.Sub(start) < pauseWindow {
		t.Fatalf("slow report fired before resume: %v after start, pause window was %v", slowAfterResume[0].at.Sub(start), pauseWindow)
	}
}

func TestUnitExecFailNeverRetried(t *testing.T) {
	p := profile.DefaultProfile()
	p.Retries = profile.RetryPolicy{Count: 5}
	u := New(testid.TestInstance{BinaryID: "bin", TestName: "missing"}, p, func(attempt int, published map[string]string) (*launcher.Child, error) {
		return launcher.Launch(launcher.Spec{Program: filepath.Join(os.TempDir(), "does-not-exist-binary-xyz"), Cwd: t.TempDir()})
	})
	go u.Run(nil)
	reports := drain(u)
	final := reports[len(reports)-1]
	if len(final.AllResults) != 1 || final.AllResults[0].Kind != event.ResultExecFail {
		t.Fatalf("expected single ExecFail result with no retry, got %+v", final.AllResults)
	}
}

func kindsOf(reports []Report) []ReportKind {
	var out []ReportKind
	for _, r := range reports {
		out = append(out, r.Kind)
	}
	return out
}

func assertContains(t *testing.T, kinds []ReportKind, want ...ReportKind) {
	t.Helper()
	for _, w := range want {
		found := false
		for _, k := range kinds {
			if k == w {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("expected report kind %v among %v", w, kinds)
		}
	}
}

func countKind(reports []Report, kind ReportKind) int {
	n := 0
	for _, r := range reports {
		if r.Kind == kind {
			n++
		}
	}
	return n
}

func filterKind(reports []Report, kind ReportKind) []Report {
	var out []Report
	for _, r := range reports {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}
