package launcher

// DoubleSpawn is an optional isolation hatch: on Unix, when DoubleSpawn
// is enabled Launch routes through a stub copy of the paratest binary,
// which exec's the real test binary (ExecStub). Neither Launch nor the
// stub blocks or unblocks SIGTSTP; the signal mask the stub inherited is
// passed on to the test binary unchanged. It is transparent: from the
// unit state machine's point of view a double-spawned child is
// observationally identical to a direct spawn (same pid reported to the
// caller once the stub has exec'd, same process-group membership).
//
// Disabled by default.
type DoubleSpawn struct {
	// Enabled turns the hatch on. When false, Launch spawns the test
	// binary directly.
	Enabled bool
	// SelfExe is the absolute path to the paratest binary itself, used
	// as the stub that re-execs into the real test binary. Required
	// when Enabled is true.
	SelfExe string
}

// Rewrite returns the program/args Launch should actually spawn, given
// the intended program and args and the double-spawn configuration. When
// disabled it returns program/args unchanged.
func (d DoubleSpawn) Rewrite(program string, args []string) (string, []string) {
	if !d.Enabled || d.SelfExe == "" {
		return program, args
	}
	stubArgs := append([]string{"--double-spawn-stub", program}, args...)
	return d.SelfExe, stubArgs
}
