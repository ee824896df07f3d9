//go:build windows

package launcher

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

// applyProcessIsolation puts the child in its own process group
// (CREATE_NEW_PROCESS_GROUP) so console control events don't cascade
// from paratest to the child unexpectedly; the real subtree-kill
// guarantee comes from the job object assigned in newGroup.
func applyProcessIsolation(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
}

// windowsGroup wraps a job object every child is assigned to, so a
// single TerminateJobObject call kills the whole subtree atomically.
type windowsGroup struct {
	job windows.Handle
}

func newGroup(cmd *exec.Cmd) group {
	job, err := windows.CreateJobObject(nil, nil)
	g := &windowsGroup{job: job}
	if err != nil || cmd.Process == nil {
		return g
	}
	proc, err := windows.OpenProcess(windows.PROCESS_ALL_ACCESS, false, uint32(cmd.Process.Pid))
	if err == nil {
		_ = windows.AssignProcessToJobObject(job, proc)
		windows.CloseHandle(proc)
	}
	return g
}

func (g *windowsGroup) terminate() error {
	if g.job == 0 {
		return nil
	}
	return windows.TerminateJobObject(g.job, 1)
}

func (g *windowsGroup) kill() error {
	return g.terminate()
}

// Signal is a no-op on Windows: there is no signal delivery mechanism
// finer than job-object termination, so the unit state machine's signal
// selection collapses to Terminate/Kill on this platform.
func (c *Child) Signal(_ int) error {
	return nil
}

// SuspendSelf has no Windows equivalent (no SIGSTOP); job-control
// pause/resume is Unix-only, so this is a no-op kept only so callers
// can build without a platform switch.
func SuspendSelf() error {
	return nil
}
