//go:build !windows

package inputsrc

import (
	"os"

	"golang.org/x/sys/unix"
)

// TermSource reads single keystrokes from a controlling terminal put
// into raw/cbreak mode, translating 't' to CancelRun and other
// configured keys to info-dump requests.
type TermSource struct {
	fd      int
	orig    *unix.Termios
	ch      chan Event
	stopped chan struct{}
}

// NewTerm puts f (expected to be os.Stdin) into cbreak mode and starts
// reading keystrokes in the background. Returns an error if f is not a
// terminal; callers should fall back to NewNoop in that case.
func NewTerm(f *os.File) (*TermSource, error) {
	fd := int(f.Fd())
	orig, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return nil, err
	}

	raw := *orig
	raw.Lflag &^= unix.ECHO | unix.ICANON
	raw.Cc[unix.VMIN] = 1
	raw.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &raw); err != nil {
		return nil, err
	}

	t := &TermSource{
		fd:      fd,
		orig:    orig,
		ch:      make(chan Event, 8),
		stopped: make(chan struct{}),
	}
	go t.pump(f)
	return t, nil
}

func (t *TermSource) pump(f *os.File) {
	buf := make([]byte, 1)
	for {
		n, err := f.Read(buf)
		if err != nil || n == 0 {
			return
		}
		var ev Event
		switch buf[0] {
		case 't', 'T':
			ev = CancelRun
		case 'i', 'I':
			ev = InfoAll
		case 'l', 'L':
			ev = InfoLastFailure
		default:
			continue
		}
		select {
		case t.ch <- ev:
		case <-t.stopped:
			return
		}
	}
}

// Events returns the channel of translated keystroke events.
func (t *TermSource) Events() <-chan Event { return t.ch }

// Close restores the terminal's original mode.
func (t *TermSource) Close() error {
	select {
	case <-t.stopped:
	default:
		close(t.stopped)
	}
	if t.orig == nil {
		return nil
	}
	return unix.IoctlSetTermios(t.fd, ioctlSetTermios, t.orig)
}
