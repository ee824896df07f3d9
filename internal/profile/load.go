package profile

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/jpequegn/paratest/internal/testid"
)

// Load reads and parses a nextest-style TOML config file (conventionally
// .config/nextest.toml) into a set of named Resolvers, one per
// `[profile.<name>]` table.
func Load(path string) (map[string]*Resolver, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse is Load without the filesystem read, for tests and embedded
// configs.
func Parse(data []byte) (map[string]*Resolver, error) {
	var root fileRoot
	if err := toml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("profile: parse config: %w", err)
	}

	resolvers := make(map[string]*Resolver, len(root.Profile))
	for name, fp := range root.Profile {
		r, err := fp.toResolver()
		if err != nil {
			return nil, fmt.Errorf("profile: profile %q: %w", name, err)
		}
		resolvers[name] = r
	}
	return resolvers, nil
}

// fileRoot is the top level of a nextest.toml document.
type fileRoot struct {
	Profile map[string]fileProfile `toml:"profile"`
}

type fileProfile struct {
	Retries          any            `toml:"retries"`
	SlowTimeout      any            `toml:"slow-timeout"`
	LeakTimeout      any            `toml:"leak-timeout"`
	TestThreads      any            `toml:"test-threads"`
	ThreadsRequired  any            `toml:"threads-required"`
	GlobalTimeout    *string        `toml:"global-timeout"`
	TestGroup        *string        `toml:"test-group"`
	SuccessOutput    *string        `toml:"success-output"`
	FailureOutput    *string        `toml:"failure-output"`
	StatusLevel      *string        `toml:"status-level"`
	FinalStatusLevel *string        `toml:"final-status-level"`
	FailFast         *bool          `toml:"fail-fast"`
	MaxFail          *int           `toml:"max-fail"`
	Priority         *int           `toml:"priority"`
	Overrides        []fileOverride `toml:"overrides"`
}

type fileOverride struct {
	BinaryID string `toml:"binary-id"`
	TestName string `toml:"test-name"`

	Retries         any     `toml:"retries"`
	SlowTimeout     any     `toml:"slow-timeout"`
	LeakTimeout     any     `toml:"leak-timeout"`
	TestThreads     any     `toml:"test-threads"`
	ThreadsRequired any     `toml:"threads-required"`
	Priority        *int    `toml:"priority"`
	TestGroup       *string `toml:"test-group"`
}

func (fp fileProfile) toResolver() (*Resolver, error) {
	r := NewResolver()

	base, err := fp.patch()
	if err != nil {
		return nil, err
	}
	r.Base = base

	for i, fo := range fp.Overrides {
		patch, err := fo.patch()
		if err != nil {
			return nil, fmt.Errorf("override %d: %w", i, err)
		}
		r.Overrides = append(r.Overrides, Override{
			Predicate: overridePredicate(fo),
			Patch:     patch,
		})
	}
	return r, nil
}

// overridePredicate builds the minimal binary-id/test-name predicate
// stand-in described in resolver.go's doc comment; an empty field
// matches anything for that dimension.
func overridePredicate(fo fileOverride) Predicate {
	return func(ti testid.TestInstance) bool {
		if fo.BinaryID != "" && fo.BinaryID != ti.BinaryID {
			return false
		}
		if fo.TestName != "" && fo.TestName != ti.TestName {
			return false
		}
		return true
	}
}

func (fp fileProfile) patch() (Patch, error) {
	var p Patch
	var err error

	if p.Retries, err = parseRetriesAny(fp.Retries); err != nil {
		return p, err
	}
	if p.SlowTimeout, err = parseSlowTimeoutAny(fp.SlowTimeout); err != nil {
		return p, err
	}
	if p.LeakTimeout, err = parseLeakTimeoutAny(fp.LeakTimeout); err != nil {
		return p, err
	}
	if p.TestThreads, err = parseThreadCountAny(fp.TestThreads); err != nil {
		return p, err
	}
	if p.ThreadsRequired, err = parseThreadsRequiredAny(fp.ThreadsRequired); err != nil {
		return p, err
	}
	if fp.GlobalTimeout != nil {
		d, err := ParseDuration(*fp.GlobalTimeout)
		if err != nil {
			return p, err
		}
		p.GlobalTimeout = &d
	}
	p.TestGroup = fp.TestGroup
	if fp.SuccessOutput != nil {
		v, err := parseOutputPolicy(*fp.SuccessOutput)
		if err != nil {
			return p, err
		}
		p.SuccessOutput = &v
	}
	if fp.FailureOutput != nil {
		v, err := parseOutputPolicy(*fp.FailureOutput)
		if err != nil {
			return p, err
		}
		p.FailureOutput = &v
	}
	if fp.StatusLevel != nil {
		v, err := parseStatusLevel(*fp.StatusLevel)
		if err != nil {
			return p, err
		}
		p.StatusLevel = &v
	}
	if fp.FinalStatusLevel != nil {
		v, err := parseStatusLevel(*fp.FinalStatusLevel)
		if err != nil {
			return p, err
		}
		p.FinalStatusLevel = &v
	}
	if fp.FailFast != nil || fp.MaxFail != nil {
		sp := StopPolicy{}
		if fp.FailFast != nil {
			sp.FailFast = *fp.FailFast
		}
		if fp.MaxFail != nil {
			sp.MaxFail = *fp.MaxFail
		}
		p.Stop = &sp
	}
	p.Priority = fp.Priority
	return p, nil
}

func (fo fileOverride) patch() (Patch, error) {
	var p Patch
	var err error
	if p.Retries, err = parseRetriesAny(fo.Retries); err != nil {
		return p, err
	}
	if p.SlowTimeout, err = parseSlowTimeoutAny(fo.SlowTimeout); err != nil {
		return p, err
	}
	if p.LeakTimeout, err = parseLeakTimeoutAny(fo.LeakTimeout); err != nil {
		return p, err
	}
	if p.TestThreads, err = parseThreadCountAny(fo.TestThreads); err != nil {
		return p, err
	}
	if p.ThreadsRequired, err = parseThreadsRequiredAny(fo.ThreadsRequired); err != nil {
		return p, err
	}
	p.Priority = fo.Priority
	p.TestGroup = fo.TestGroup
	return p, nil
}

func parseOutputPolicy(s string) (OutputPolicy, error) {
	switch s {
	case "never":
		return OutputNever, nil
	case "final":
		return OutputFinal, nil
	case "immediate":
		return OutputImmediate, nil
	case "immediate-final":
		return OutputImmediateFinal, nil
	default:
		return 0, fmt.Errorf("invalid output policy %q", s)
	}
}

func parseStatusLevel(s string) (StatusLevel, error) {
	switch s {
	case "none":
		return StatusNone, nil
	case "fail":
		return StatusFail, nil
	case "retry":
		return StatusRetry, nil
	case "slow":
		return StatusSlow, nil
	case "pass":
		return StatusPass, nil
	case "all":
		return StatusAll, nil
	default:
		return 0, fmt.Errorf("invalid status level %q", s)
	}
}

// parseRetriesAny accepts either a bare integer (the retry count, no
// backoff) or a table `{ count, backoff, delay, factor, max-delay, jitter }`.
func parseRetriesAny(v any) (*RetryPolicy, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case int64:
		return &RetryPolicy{Count: int(t)}, nil
	case map[string]any:
		policy := RetryPolicy{}
		if c, ok := t["count"].(int64); ok {
			policy.Count = int(c)
		}
		backoffKind := "none"
		if s, ok := t["backoff"].(string); ok {
			backoffKind = s
		}
		b := Backoff{}
		switch backoffKind {
		case "none":
			b.Kind = BackoffNone
		case "fixed":
			b.Kind = BackoffFixed
			if s, ok := t["delay"].(string); ok {
				d, err := ParseDuration(s)
				if err != nil {
					return nil, err
				}
				b.Fixed = d
			}
		case "exponential":
			b.Kind = BackoffExponential
			if s, ok := t["delay"].(string); ok {
				d, err := ParseDuration(s)
				if err != nil {
					return nil, err
				}
				b.Initial = d
			}
			if f, ok := t["factor"].(float64); ok {
				b.Factor = f
			} else {
				b.Factor = 2.0
			}
			if s, ok := t["max-delay"].(string); ok {
				d, err := ParseDuration(s)
				if err != nil {
					return nil, err
				}
				b.Max = d
			}
		default:
			return nil, fmt.Errorf("invalid backoff kind %q", backoffKind)
		}
		if j, ok := t["jitter"].(bool); ok {
			b.Jitter = j
		}
		policy.Backoff = b
		return &policy, nil
	default:
		return nil, fmt.Errorf("invalid retries value %#v", v)
	}
}

// parseSlowTimeoutAny accepts either a bare duration string or a table
// `{ period, terminate-after, grace-period }`, matching the source's
// string-or-table deserialize_slow_timeout.
func parseSlowTimeoutAny(v any) (*SlowTimeout, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case string:
		d, err := ParseDuration(t)
		if err != nil {
			return nil, err
		}
		return &SlowTimeout{Period: d, GracePeriod: 10 * time.Second}, nil
	case map[string]any:
		st := SlowTimeout{GracePeriod: 10 * time.Second}
		if s, ok := t["period"].(string); ok {
			d, err := ParseDuration(s)
			if err != nil {
				return nil, err
			}
			st.Period = d
		}
		if n, ok := t["terminate-after"].(int64); ok {
			st.TerminateAfter = int(n)
		}
		if s, ok := t["grace-period"].(string); ok {
			d, err := ParseDuration(s)
			if err != nil {
				return nil, err
			}
			st.GracePeriod = d
		}
		return &st, nil
	default:
		return nil, fmt.Errorf("invalid slow-timeout value %#v", v)
	}
}

func parseLeakTimeoutAny(v any) (*LeakTimeout, error) {
	if v == nil {
		return nil, nil
	}
	t, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("invalid leak-timeout value %#v", v)
	}
	lt := LeakTimeout{Result: LeakPass}
	if s, ok := t["period"].(string); ok {
		d, err := ParseDuration(s)
		if err != nil {
			return nil, err
		}
		lt.Period = d
	}
	if s, ok := t["result"].(string); ok {
		switch strings.ToLower(s) {
		case "fail":
			lt.Result = LeakFail
		case "pass":
			lt.Result = LeakPass
		default:
			return nil, fmt.Errorf("invalid leak-timeout result %q", s)
		}
	}
	return &lt, nil
}

func parseThreadCountAny(v any) (*ThreadCount, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case int64:
		return &ThreadCount{Absolute: int(t)}, nil
	case string:
		tc, err := ParseThreadCount(t)
		if err != nil {
			return nil, err
		}
		return &tc, nil
	default:
		return nil, fmt.Errorf("invalid thread count value %#v", v)
	}
}

func parseThreadsRequiredAny(v any) (*ThreadsRequired, error) {
	if v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case int64:
		return &ThreadsRequired{Kind: ThreadsRequiredCount, Count: int(t)}, nil
	case string:
		switch t {
		case "num-cpus":
			return &ThreadsRequired{Kind: ThreadsRequiredNumCPUs}, nil
		case "num-test-threads":
			return &ThreadsRequired{Kind: ThreadsRequiredNumTestThreads}, nil
		default:
			return nil, fmt.Errorf("invalid threads-required value %q", t)
		}
	default:
		return nil, fmt.Errorf("invalid threads-required value %#v", v)
	}
}
