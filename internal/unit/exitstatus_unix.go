//go:build !windows

package unit

import (
	"os/exec"
	"syscall"
)

// exitOutcome classifies a child's Wait error into a pass/fail verdict
// plus the abort status (the terminating signal number).
func exitOutcome(err error) (pass bool, abortStatus int) {
	if err == nil {
		return true, 0
	}
	exitErr, ok := err.(*exec.ExitError)
	if !ok {
		return false, 0
	}
	ws, ok := exitErr.Sys().(syscall.WaitStatus)
	if !ok {
		return false, 0
	}
	if ws.Signaled() {
		return false, int(ws.Signal())
	}
	return ws.ExitStatus() == 0, 0
}
