//go:build windows

package inputsrc

import "os"

// NewTerm has no Windows console-raw-mode implementation yet; callers
// fall back to NoopSource on this platform.
func NewTerm(f *os.File) (*NoopSource, error) {
	return NewNoop(), nil
}
