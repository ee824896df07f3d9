//go:build windows

package signalsrc

import "os"

// jobControlSignals is empty on Windows: there is no SIGTSTP/SIGCONT
// equivalent, so only the shutdown-class signals are synthesized.
func jobControlSignals() []os.Signal {
	return nil
}

// translatePlatform never matches on Windows; every signal this source
// cares about is already covered by shutdownSignals.
func translatePlatform(sig os.Signal) (Kind, bool) {
	return 0, false
}
