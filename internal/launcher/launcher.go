package launcher

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/jpequegn/paratest/internal/capture"
	"github.com/jpequegn/paratest/internal/testid"
)

// Spec is everything needed to launch one child: the resolved command
// line (after target-runner substitution, internal/target), the test
// instance whose identity shapes the environment, and the accumulated
// setup-script-published environment.
type Spec struct {
	Program   string
	Args      []string
	Cwd       string
	Instance  testid.TestInstance
	Published map[string]string
	Capture   capture.Strategy

	// DoubleSpawn, when enabled, routes the spawn through a stub copy
	// of the paratest binary itself; see DoubleSpawn's doc comment.
	DoubleSpawn DoubleSpawn
}

// Child is a launched, running process plus the collector draining its
// output. It is owned by exactly one unit task for its entire lifetime.
type Child struct {
	cmd       *exec.Cmd
	collector *capture.Collector
	group     group
	started   bool
}

// Launch starts the child described by spec. The child is always given
// a null stdin; its stdout/stderr are wired into a fresh
// capture.Collector per spec.Capture. Returns a spawn error (never
// retried, surfaces as event.ResultExecFail) if the binary could not be
// exec'd at all.
func Launch(spec Spec) (*Child, error) {
	program, args := spec.DoubleSpawn.Rewrite(spec.Program, spec.Args)
	cmd := exec.Command(program, args...)
	cmd.Dir = spec.Cwd
	cmd.Env = BuildEnv(os.Environ(), spec.Instance, spec.Published)
	cmd.Stdin = nil

	applyProcessIsolation(cmd)

	collector := capture.NewCollector(spec.Capture)
	if spec.Capture != capture.None {
		stdoutPipe, err := cmd.StdoutPipe()
		if err != nil {
			return nil, fmt.Errorf("launcher: stdout pipe: %w", err)
		}
		stderrPipe, err := cmd.StderrPipe()
		if err != nil {
			return nil, fmt.Errorf("launcher: stderr pipe: %w", err)
		}
		collector.DrainPipe("stdout", stdoutPipe)
		collector.DrainPipe("stderr", stderrPipe)
	} else {
		cmd.Stdout = io.Discard
		cmd.Stderr = io.Discard
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launcher: spawn %s: %w", spec.Program, err)
	}

	return &Child{
		cmd:       cmd,
		collector: collector,
		group:     newGroup(cmd),
		started:   true,
	}, nil
}

// Pid returns the child's process id.
func (c *Child) Pid() int {
	if c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// Wait blocks until the child exits, then waits for its output drains
// to finish, and returns the process's exit error (nil on success).
func (c *Child) Wait(ctx context.Context) error {
	waitErr := c.cmd.Wait()
	if drainErr := c.collector.Wait(); drainErr != nil && waitErr == nil {
		return drainErr
	}
	return waitErr
}

// Collector returns the output collector draining this child's streams.
func (c *Child) Collector() *capture.Collector {
	return c.collector
}

// Terminate sends the platform's graceful-termination request to the
// whole process group / job object, so a single signal reaches every
// descendant.
func (c *Child) Terminate() error {
	return c.group.terminate()
}

// Kill forcibly kills the whole process group / job object.
func (c *Child) Kill() error {
	return c.group.kill()
}

// GroupAlive reports whether any process remains in the child's process
// group (Unix only; always false on Windows, where job-object semantics
// don't expose group liveness the same way). Used by the unit state
// machine's leak-timeout watch.
func (c *Child) GroupAlive() bool {
	if ga, ok := c.group.(interface{ alive() bool }); ok {
		return ga.alive()
	}
	return false
}

// Pause suspends the whole process group/job object for a job-control
// Stop event (Unix only; no-op on Windows, which has no SIGSTOP
// equivalent).
func (c *Child) Pause() error {
	if p, ok := c.group.(interface{ pause() error }); ok {
		return p.pause()
	}
	return nil
}

// Resume reverses Pause.
func (c *Child) Resume() error {
	if r, ok := c.group.(interface{ resume() error }); ok {
		return r.resume()
	}
	return nil
}

// group abstracts process-group (Unix) vs job-object (Windows)
// termination behind one interface, so the unit state machine
// (internal/unit) stays platform-agnostic.
type group interface {
	terminate() error
	kill() error
}
