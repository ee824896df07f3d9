package cmd

// Process exit codes, mirroring cargo-nextest's documented values so CI
// wrappers written against it keep working.
const (
	exitNoTestsRun            = 4
	exitRequiredVersionNotMet = 92
	exitInvalidFilter         = 97
	exitTestRunFailed         = 100
	exitExecFailed            = 101
	exitSetupScriptFailed     = 104
)

// codedError is an error carrying a distinguishable process exit code.
// main asserts for the ExitCode method via errors.As rather than this
// concrete type, so the type can stay unexported.
type codedError struct {
	code int
	msg  string
}

func (e *codedError) Error() string { return e.msg }

// ExitCode returns the process exit code this error maps to.
func (e *codedError) ExitCode() int { return e.code }
