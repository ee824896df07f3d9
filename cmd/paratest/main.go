// Command paratest is a concurrent process-per-test runner: it replaces
// a sequential per-binary harness with a single scheduler that runs
// every test case as its own child process.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/jpequegn/paratest/internal/cmd"
	"github.com/jpequegn/paratest/internal/launcher"
)

func main() {
	// The double-spawn stub path must run before cobra sees the
	// arguments: a stub invocation exec-replaces this process with the
	// real test binary and never returns on success.
	if len(os.Args) >= 3 && os.Args[1] == "--double-spawn-stub" {
		if err := launcher.ExecStub(os.Args[2], os.Args[3:]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		// Failure categories carry their own exit code (test failure,
		// exec failure, setup-script failure, invalid filter, required
		// version not met, no tests matched); anything else is 1.
		var coded interface{ ExitCode() int }
		if errors.As(err, &coded) {
			os.Exit(coded.ExitCode())
		}
		os.Exit(1)
	}
}
