package profile

import (
	"fmt"
	"strings"
	"time"
)

// ParseDuration parses a humantime-like duration string such as "30s",
// "1m 30s", or "500ms". Internal whitespace between components is
// permitted (humantime allows it; Go's time.ParseDuration does not), so
// it is stripped before delegating to the standard parser.
func ParseDuration(s string) (time.Duration, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, fmt.Errorf("profile: empty duration string")
	}
	compact := strings.Join(strings.Fields(trimmed), "")
	d, err := time.ParseDuration(compact)
	if err != nil {
		return 0, fmt.Errorf("profile: invalid duration %q: %w", s, err)
	}
	return d, nil
}

// ParseThreadCount parses the test-threads / threads-required config
// syntax: a plain positive integer, "num-cpus", or "num-cpus - k" for a
// non-negative k (floor of 1 applied at Compute time).
func ParseThreadCount(s string) (ThreadCount, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "num-cpus" {
		return ThreadCount{Derived: true}, nil
	}
	if rest, ok := strings.CutPrefix(trimmed, "num-cpus"); ok {
		rest = strings.TrimSpace(rest)
		rest = strings.TrimPrefix(rest, "-")
		rest = strings.TrimSpace(rest)
		var offset int
		if _, err := fmt.Sscanf(rest, "%d", &offset); err != nil || offset < 0 {
			return ThreadCount{}, fmt.Errorf("profile: invalid num-cpus expression %q", s)
		}
		return ThreadCount{Derived: true, Offset: offset}, nil
	}
	var n int
	if _, err := fmt.Sscanf(trimmed, "%d", &n); err != nil {
		return ThreadCount{}, fmt.Errorf("profile: invalid thread count %q", s)
	}
	if n <= 0 {
		return ThreadCount{}, fmt.Errorf("profile: thread count must be positive, got %d", n)
	}
	return ThreadCount{Absolute: n}, nil
}
