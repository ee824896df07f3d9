package profile

import (
	"time"

	"github.com/jpequegn/paratest/internal/testid"
)

// Predicate decides whether an override patch applies to a given test
// instance. The real filter-expression grammar is out of scope for the
// core; this is the minimal stand-in the resolver needs.
type Predicate func(testid.TestInstance) bool

// MatchAll is a Predicate that applies to every test instance; used for
// the profile-base layer.
func MatchAll(testid.TestInstance) bool { return true }

// BinaryPredicate matches tests belonging to the given binary id.
func BinaryPredicate(binaryID string) Predicate {
	return func(ti testid.TestInstance) bool { return ti.BinaryID == binaryID }
}

// NamePredicate matches tests whose name equals the given string.
func NamePredicate(name string) Predicate {
	return func(ti testid.TestInstance) bool { return ti.TestName == name }
}

// Patch is a partial profile: each field is a pointer, nil meaning
// "inherit from the next layer down". Patch fields mirror Profile's,
// field for field, except TestThreads/ThreadsRequired which carry an
// uncomputed ThreadCount/ThreadsRequired so "num-cpus" derivation happens
// at resolve time, after all layers are known.
type Patch struct {
	TestThreads             *ThreadCount
	ThreadsRequired         *ThreadsRequired
	Retries                 *RetryPolicy
	SlowTimeout             *SlowTimeout
	LeakTimeout             *LeakTimeout
	GlobalTimeout           *time.Duration
	TestGroup               *string
	SuccessOutput           *OutputPolicy
	FailureOutput           *OutputPolicy
	StatusLevel             *StatusLevel
	FinalStatusLevel        *StatusLevel
	JunitStoreSuccessOutput *bool
	JunitStoreFailureOutput *bool
	Stop                    *StopPolicy
	Priority                *int
}

// Override is one predicate-gated patch layer.
type Override struct {
	Predicate Predicate
	Patch     Patch
}

// Resolver holds the layered configuration: hardcoded defaults, a
// profile-wide base patch, and a priority-ordered list of per-test
// overrides (index 0 is the highest priority — e.g. a user-supplied
// override beats a profile-file override).
type Resolver struct {
	Default   Profile
	Base      Patch
	Overrides []Override
}

// NewResolver creates a resolver seeded with nextest's hardcoded
// defaults.
func NewResolver() *Resolver {
	return &Resolver{Default: DefaultProfile()}
}

// Resolve computes the effective Profile for one test instance by
// folding matching layers from lowest to highest priority, so that a
// higher-priority layer's non-nil field always wins.
//
// threads-required can depend on the resolved test-threads count (the
// "num-test-threads" variant), so TestThreads is resolved in a first
// pass before the remaining fields, including threads-required, are
// resolved in a second pass.
func (r *Resolver) Resolve(ti testid.TestInstance) Profile {
	layers := r.matchingLayers(ti)

	result := r.Default
	for _, patch := range layers {
		if patch.TestThreads != nil {
			result.TestThreads = patch.TestThreads.Compute()
		}
	}

	for _, patch := range layers {
		applyPatch(&result, patch, result.TestThreads)
	}

	return result
}

// matchingLayers returns the patches that apply to ti, in low-to-high
// priority order (Base first, then overrides from lowest to highest
// priority), so a caller folding in order ends with the highest
// priority layer's writes in effect.
func (r *Resolver) matchingLayers(ti testid.TestInstance) []Patch {
	layers := make([]Patch, 0, len(r.Overrides)+1)
	layers = append(layers, r.Base)
	for i := len(r.Overrides) - 1; i >= 0; i-- {
		ov := r.Overrides[i]
		if ov.Predicate == nil || ov.Predicate(ti) {
			layers = append(layers, ov.Patch)
		}
	}
	return layers
}

func applyPatch(p *Profile, patch Patch, resolvedTestThreads int) {
	if patch.ThreadsRequired != nil {
		p.ThreadsRequired = patch.ThreadsRequired.Compute(resolvedTestThreads)
	}
	if patch.Retries != nil {
		p.Retries = *patch.Retries
	}
	if patch.SlowTimeout != nil {
		p.SlowTimeout = *patch.SlowTimeout
	}
	if patch.LeakTimeout != nil {
		p.LeakTimeout = *patch.LeakTimeout
	}
	if patch.GlobalTimeout != nil {
		p.GlobalTimeout = *patch.GlobalTimeout
	}
	if patch.TestGroup != nil {
		p.TestGroup = *patch.TestGroup
	}
	if patch.SuccessOutput != nil {
		p.SuccessOutput = *patch.SuccessOutput
	}
	if patch.FailureOutput != nil {
		p.FailureOutput = *patch.FailureOutput
	}
	if patch.StatusLevel != nil {
		p.StatusLevel = *patch.StatusLevel
	}
	if patch.FinalStatusLevel != nil {
		p.FinalStatusLevel = *patch.FinalStatusLevel
	}
	if patch.JunitStoreSuccessOutput != nil {
		p.JunitStoreSuccessOutput = *patch.JunitStoreSuccessOutput
	}
	if patch.JunitStoreFailureOutput != nil {
		p.JunitStoreFailureOutput = *patch.JunitStoreFailureOutput
	}
	if patch.Stop != nil {
		p.Stop = *patch.Stop
	}
	if patch.Priority != nil {
		p.Priority = *patch.Priority
	}
}
