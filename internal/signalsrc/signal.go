package signalsrc

import (
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
)

// Kind identifies the class of signal-equivalent event delivered by a
// Source.
type Kind int

const (
	// Interrupt is the Ctrl-C equivalent (SIGINT). Delivered repeatedly
	// if the user presses it more than once; each delivery is preserved
	// and counted by the controller, which escalates on the second.
	Interrupt Kind = iota
	// Terminate is a request to shut down (SIGTERM).
	Terminate
	// Hangup is SIGHUP.
	Hangup
	// Quit is SIGQUIT.
	Quit
	// Stop is a job-control suspend request (SIGTSTP), Unix-only.
	Stop
	// Continue is a job-control resume (SIGCONT), Unix-only.
	Continue
)

func (k Kind) String() string {
	switch k {
	case Interrupt:
		return "interrupt"
	case Terminate:
		return "terminate"
	case Hangup:
		return "hangup"
	case Quit:
		return "quit"
	case Stop:
		return "stop"
	case Continue:
		return "continue"
	default:
		return "unknown"
	}
}

// Event is one signal-equivalent fact, with a sequence number so
// callers can detect a repeated Interrupt even if other events are
// interleaved.
type Event struct {
	Kind Kind
	Seq  uint64
}

// Source is a single FIFO-ordered stream of signal events. Production
// code uses New; tests use NewNoop or feed a Source's channel directly
// via Inject.
type Source struct {
	ch      chan Event
	raw     chan os.Signal
	seq     atomic.Uint64
	stopped chan struct{}
}

// New installs OS signal handlers and returns a Source delivering
// translated events on Events(). Job-control stop/continue are only
// ever registered on Unix platforms; everywhere else only the
// shutdown-class signals are synthesized. Call Close to stop listening
// and release the underlying os/signal registration.
func New() *Source {
	s := &Source{
		ch:      make(chan Event, 16),
		raw:     make(chan os.Signal, 16),
		stopped: make(chan struct{}),
	}
	sigs := shutdownSignals()
	sigs = append(sigs, jobControlSignals()...)
	signal.Notify(s.raw, sigs...)

	go s.pump()
	return s
}

// NewNoop returns a Source that never delivers events, for tests and
// non-interactive usage.
func NewNoop() *Source {
	s := &Source{ch: make(chan Event), stopped: make(chan struct{})}
	return s
}

func (s *Source) pump() {
	for {
		select {
		case sig, ok := <-s.raw:
			if !ok {
				return
			}
			if k, ok := translate(sig); ok {
				s.ch <- Event{Kind: k, Seq: s.seq.Add(1)}
			}
		case <-s.stopped:
			return
		}
	}
}

// Events returns the channel of translated signal events.
func (s *Source) Events() <-chan Event {
	return s.ch
}

// Inject delivers a synthetic event directly, bypassing the OS signal
// machinery entirely; used by tests to simulate a signal without
// sending a real one to the test process.
func (s *Source) Inject(k Kind) {
	s.ch <- Event{Kind: k, Seq: s.seq.Add(1)}
}

// Close stops delivering events and releases the os/signal
// registration. Safe to call once.
func (s *Source) Close() {
	if s.raw != nil {
		signal.Stop(s.raw)
	}
	select {
	case <-s.stopped:
	default:
		close(s.stopped)
	}
}

func shutdownSignals() []os.Signal {
	return []os.Signal{os.Interrupt, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGQUIT}
}

func translate(sig os.Signal) (Kind, bool) {
	switch sig {
	case os.Interrupt:
		return Interrupt, true
	case syscall.SIGTERM:
		return Terminate, true
	case syscall.SIGHUP:
		return Hangup, true
	case syscall.SIGQUIT:
		return Quit, true
	}
	return translatePlatform(sig)
}
