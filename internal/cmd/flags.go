package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/jpequegn/paratest/internal/profile"
)

// retryPolicyFlag is a pflag.Value for --retries that accepts either a
// bare count ("3") or a count plus backoff ("3,fixed=10ms" /
// "3,exponential=100ms:2:5s:jitter"), so a CLI override can express the
// same retry policy shapes a nextest.toml override can.
type retryPolicyFlag struct {
	set    bool
	policy profile.RetryPolicy
}

var _ pflag.Value = (*retryPolicyFlag)(nil)

func (f *retryPolicyFlag) String() string {
	if !f.set {
		return ""
	}
	return strconv.Itoa(f.policy.Count)
}

func (f *retryPolicyFlag) Type() string { return "retryPolicy" }

func (f *retryPolicyFlag) Set(s string) error {
	count, rest, _ := strings.Cut(s, ",")
	n, err := strconv.Atoi(count)
	if err != nil || n < 0 {
		return fmt.Errorf("retries: invalid count %q", count)
	}

	policy := profile.RetryPolicy{Count: n}
	if rest != "" {
		backoff, err := parseBackoff(rest)
		if err != nil {
			return err
		}
		policy.Backoff = backoff
	}

	f.set = true
	f.policy = policy
	return nil
}

func parseBackoff(s string) (profile.Backoff, error) {
	kind, spec, _ := strings.Cut(s, "=")
	switch kind {
	case "fixed":
		d, err := profile.ParseDuration(spec)
		if err != nil {
			return profile.Backoff{}, fmt.Errorf("retries: fixed backoff: %w", err)
		}
		return profile.Backoff{Kind: profile.BackoffFixed, Fixed: d}, nil

	case "exponential":
		parts := strings.Split(spec, ":")
		if len(parts) < 3 {
			return profile.Backoff{}, fmt.Errorf("retries: exponential backoff needs initial:factor:max[:jitter], got %q", spec)
		}
		initial, err := profile.ParseDuration(parts[0])
		if err != nil {
			return profile.Backoff{}, fmt.Errorf("retries: exponential initial: %w", err)
		}
		factor, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return profile.Backoff{}, fmt.Errorf("retries: exponential factor: %w", err)
		}
		max, err := profile.ParseDuration(parts[2])
		if err != nil {
			return profile.Backoff{}, fmt.Errorf("retries: exponential max: %w", err)
		}
		jitter := len(parts) > 3 && parts[3] == "jitter"
		return profile.Backoff{Kind: profile.BackoffExponential, Initial: initial, Factor: factor, Max: max, Jitter: jitter}, nil

	default:
		return profile.Backoff{}, fmt.Errorf("retries: unknown backoff kind %q", kind)
	}
}
