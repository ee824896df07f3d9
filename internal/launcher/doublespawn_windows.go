//go:build windows

package launcher

import "fmt"

// ExecStub is unsupported on Windows: the SIGTSTP delivery race the
// double-spawn hatch closes does not exist there, and Windows has no
// exec-replace primitive.
func ExecStub(program string, args []string) error {
	return fmt.Errorf("launcher: double-spawn is not supported on windows")
}
