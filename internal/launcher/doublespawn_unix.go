//go:build !windows

package launcher

import (
	"fmt"
	"os"
	"syscall"
)

// ExecStub is the stub half of the double-spawn hatch: invoked as
// `paratest --double-spawn-stub <program> [args...]`, it replaces the
// current process image with the real test binary. The exec inherits
// the process group and environment the launcher already set up, so
// downstream observers see the same child a direct spawn would have
// produced.
func ExecStub(program string, args []string) error {
	argv := append([]string{program}, args...)
	if err := syscall.Exec(program, argv, os.Environ()); err != nil {
		return fmt.Errorf("launcher: double-spawn exec %s: %w", program, err)
	}
	return nil
}
