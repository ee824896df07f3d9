// Package setupscript runs ordered pre-test scripts, each with its own
// timeout and capture policy, optionally publishing environment
// variables (by writing a key/value file to a path passed in its
// environment) that are merged into every subsequently launched test's
// environment. A failed script cancels the test phase with
// CancelSetupScriptFailure.
package setupscript

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jpequegn/paratest/internal/capture"
	"github.com/jpequegn/paratest/internal/clock"
	"github.com/jpequegn/paratest/internal/launcher"
	"github.com/jpequegn/paratest/internal/testid"
)

// publishEnvVar is the environment variable a script reads to learn
// where to write its published key/value file.
const publishEnvVar = "NEXTEST_ENV"

// Script is one setup script to run before the test phase.
type Script struct {
	Name    string
	Program string
	Args    []string
	Cwd     string
	Timeout time.Duration // zero means no timeout
	// SlowTimeout is the period between slow warnings while the script
	// is still running; zero disables them.
	SlowTimeout time.Duration
	Capture     capture.Strategy
}

// Result is the outcome of running one script.
type Result struct {
	Script    Script
	Passed    bool
	Err       error
	Elapsed   time.Duration
	Stdout    []byte
	Stderr    []byte
	Published map[string]string
}

// Runner runs scripts in order, merging each one's published
// environment into the next's (and into every subsequent test's).
type Runner struct {
	Scripts []Script

	// OnStarted/OnSlow/OnFinished let the caller (internal/runner) emit
	// the SetupScriptStarted/Slow/Finished events without this package
	// depending on internal/event directly. OnSlow fires every
	// SlowTimeout period while a script is still running.
	OnStarted  func(index int, s Script)
	OnSlow     func(index int, s Script, elapsed time.Duration)
	OnFinished func(index int, s Script, r Result)
}

// RunAll runs every script in order. It stops at the first failure and
// returns the accumulated published environment from the scripts that
// succeeded plus the failing result; ctx cancellation (e.g. a
// higher-severity cancel arriving mid-phase) aborts the remaining
// scripts.
func (r *Runner) RunAll(ctx context.Context) (published map[string]string, results []Result, firstFailure *Result) {
	published = make(map[string]string)

	for i, script := range r.Scripts {
		select {
		case <-ctx.Done():
			return published, results, firstFailure
		default:
		}

		if r.OnStarted != nil {
			r.OnStarted(i, script)
		}

		result := r.runOne(ctx, i, script, published)
		results = append(results, result)
		if r.OnFinished != nil {
			r.OnFinished(i, script, result)
		}

		for k, v := range result.Published {
			published[k] = v
		}

		if !result.Passed {
			f := result
			firstFailure = &f
			return published, results, firstFailure
		}
	}
	return published, results, nil
}

func (r *Runner) runOne(ctx context.Context, index int, script Script, published map[string]string) Result {
	envFile, err := os.CreateTemp("", "paratest-setup-env-*")
	if err != nil {
		return Result{Script: script, Err: fmt.Errorf("setupscript: create env file: %w", err)}
	}
	envFile.Close()
	defer os.Remove(envFile.Name())

	ti := testid.TestInstance{BinaryID: "setup-script", TestName: script.Name}
	withPublishVar := make(map[string]string, len(published)+1)
	for k, v := range published {
		withPublishVar[k] = v
	}
	withPublishVar[publishEnvVar] = envFile.Name()

	runCtx := ctx
	var cancel context.CancelFunc
	if script.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, script.Timeout)
		defer cancel()
	}

	start := time.Now()
	child, err := launcher.Launch(launcher.Spec{
		Program:   script.Program,
		Args:      script.Args,
		Cwd:       script.Cwd,
		Instance:  ti,
		Published: withPublishVar,
		Capture:   script.Capture,
	})
	if err != nil {
		return Result{Script: script, Err: err, Elapsed: time.Since(start)}
	}

	waitErr := r.waitChild(runCtx, index, script, child, start)
	elapsed := time.Since(start)

	var stdout, stderr []byte
	if out, errOut := child.Collector().Split(); out != nil || errOut != nil {
		if out != nil {
			stdout = out.Bytes()
		}
		if errOut != nil {
			stderr = errOut.Bytes()
		}
	} else if combined := child.Collector().CombinedOutput(); combined != nil {
		stdout = combined.Bytes()
	}

	pub, _ := ParsePublishedFile(envFile.Name())
	return Result{
		Script:    script,
		Passed:    waitErr == nil,
		Err:       waitErr,
		Elapsed:   elapsed,
		Stdout:    stdout,
		Stderr:    stderr,
		Published: pub,
	}
}

// waitChild waits for the script's child, firing OnSlow every
// SlowTimeout period while it keeps running, and killing its process
// group if ctx is canceled or times out before it exits on its own.
func (r *Runner) waitChild(ctx context.Context, index int, script Script, child *launcher.Child, start time.Time) error {
	done := make(chan error, 1)
	go func() { done <- child.Wait(ctx) }()

	var slowTimer *clock.Timer
	if script.SlowTimeout > 0 {
		slowTimer = clock.NewTimer(script.SlowTimeout)
		defer slowTimer.Stop()
	}

	for {
		var slowCh <-chan time.Time
		if slowTimer != nil {
			slowCh = slowTimer.C()
		}

		select {
		case err := <-done:
			return err

		case <-slowCh:
			if r.OnSlow != nil {
				r.OnSlow(index, script, time.Since(start))
			}
			slowTimer.ResetOriginalDuration()

		case <-ctx.Done():
			_ = child.Terminate()
			select {
			case err := <-done:
				return err
			case <-time.After(2 * time.Second):
				_ = child.Kill()
				return <-done
			}
		}
	}
}

// ParsePublishedFile reads a setup script's published key/value file:
// one `KEY=VALUE` pair per line, blank lines and `#`-prefixed comments
// ignored.
func ParsePublishedFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	out := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		k, v, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, scanner.Err()
}
