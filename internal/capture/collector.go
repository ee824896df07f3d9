package capture

import (
	"bytes"
	"fmt"
	"io"
	"sync"
	"unicode/utf8"

	"github.com/sourcegraph/conc"
)

// Strategy selects how a child's output streams are captured.
type Strategy int

const (
	// Split captures stdout and stderr into independent buffers.
	// Ordering between the two streams is not preserved.
	Split Strategy = iota
	// Combined merges both streams into one buffer, preserving
	// interleaving at the cost of losing the stdout/stderr distinction.
	Combined
	// None disables capture entirely (used for --no-capture style runs).
	None
)

// defaultLimit bounds how many bytes of a single stream are retained.
// Past this limit bytes are discarded but counted, never silently
// dropped from the eventual summary.
const defaultLimit = 1 << 20 // 1 MiB

// Output is a single captured stream (stdout, stderr, or a combined
// buffer). It lazily computes a lossy UTF-8 view on first access.
type Output struct {
	mu        sync.Mutex
	buf       []byte
	truncated bool
	origSize  int64

	strOnce sync.Once
	str     string
}

// Write appends p to the buffer, truncating (but continuing to count)
// once the limit is reached. Write is safe for concurrent use so it can
// be handed directly to a drain goroutine.
func (o *Output) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.origSize += int64(len(p))
	if o.truncated {
		return len(p), nil
	}
	room := defaultLimit - len(o.buf)
	if room <= 0 {
		o.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		o.buf = append(o.buf, p[:room]...)
		o.truncated = true
		return len(p), nil
	}
	o.buf = append(o.buf, p...)
	return len(p), nil
}

// Bytes returns the raw captured bytes, truncated if the limit was hit.
func (o *Output) Bytes() []byte {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.buf
}

// Truncated reports whether the buffer hit its limit, and the original
// untruncated size observed.
func (o *Output) Truncated() (bool, int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.truncated, o.origSize
}

// IsEmpty reports whether no bytes were captured.
func (o *Output) IsEmpty() bool {
	return len(o.Bytes()) == 0
}

// StringLossy returns the captured bytes decoded as lossy UTF-8,
// computed once and cached.
func (o *Output) StringLossy() string {
	o.strOnce.Do(func() {
		b := o.Bytes()
		if utf8.Valid(b) {
			o.str = string(b)
		} else {
			o.str = toValidUTF8(b)
		}
	})
	return o.str
}

func toValidUTF8(b []byte) string {
	var sb bytes.Buffer
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)
			b = b[1:]
			continue
		}
		sb.Write(b[:size])
		b = b[size:]
	}
	return sb.String()
}

// Collector concurrently drains a child's configured streams into
// bounded buffers without blocking the unit state machine's own select
// loop; callers fetch completed Output values after Wait returns.
type Collector struct {
	strategy Strategy
	stdout   *Output
	stderr   *Output
	combined *Output

	catcher conc.WaitGroup
}

// NewCollector constructs a Collector for the given strategy. Callers
// obtain io.Writer destinations via Stdout/Stderr and pass them to
// exec.Cmd before starting the child.
func NewCollector(strategy Strategy) *Collector {
	c := &Collector{strategy: strategy}
	switch strategy {
	case Split:
		c.stdout = &Output{}
		c.stderr = &Output{}
	case Combined:
		c.combined = &Output{}
	case None:
	}
	return c
}

// Stdout returns the writer the child's stdout should be directed to,
// or io.Discard if output isn't being captured under this strategy.
func (c *Collector) Stdout() io.Writer {
	switch c.strategy {
	case Split:
		return c.stdout
	case Combined:
		return c.combined
	default:
		return io.Discard
	}
}

// Stderr returns the writer the child's stderr should be directed to.
func (c *Collector) Stderr() io.Writer {
	switch c.strategy {
	case Split:
		return c.stderr
	case Combined:
		return c.combined
	default:
		return io.Discard
	}
}

// DrainPipe copies from r into the collector's backing buffer for the
// given stream name ("stdout" or "stderr"), run as a tracked goroutine
// so a panic inside the copy is caught and surfaced via Wait rather
// than crashing the process. Call once per pipe the launcher created.
func (c *Collector) DrainPipe(stream string, r io.Reader) {
	var dst io.Writer
	switch stream {
	case "stdout":
		dst = c.Stdout()
	case "stderr":
		dst = c.Stderr()
	default:
		dst = io.Discard
	}
	c.catcher.Go(func() {
		_, _ = io.Copy(dst, r)
	})
}

// Wait blocks until every DrainPipe goroutine has finished, returning
// the first panic value recovered from a drain goroutine, if any, as an
// error instead of re-panicking; an output-drain failure must never
// take down the controller.
func (c *Collector) Wait() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("capture: output drain panicked: %v", r)
		}
	}()
	c.catcher.Wait()
	return nil
}

// Split returns the stdout/stderr outputs, valid only when the
// collector was built with the Split strategy.
func (c *Collector) Split() (stdout, stderr *Output) {
	return c.stdout, c.stderr
}

// CombinedOutput returns the merged output, valid only when the
// collector was built with the Combined strategy.
func (c *Collector) CombinedOutput() *Output {
	return c.combined
}
