package testid

import "fmt"

// Platform tags where a test binary was built for, relative to the
// host running paratest. The profile resolver uses this to pick
// host-only vs target-only overrides.
type Platform int

const (
	// PlatformHost means the binary runs on the same platform paratest
	// itself is running on.
	PlatformHost Platform = iota
	// PlatformTarget means the binary was cross-compiled for a
	// different target triple.
	PlatformTarget
)

func (p Platform) String() string {
	switch p {
	case PlatformHost:
		return "host"
	case PlatformTarget:
		return "target"
	default:
		return "unknown"
	}
}

// PackageMetadata is descriptive information about the package a test
// binary belongs to. It is consumed only to populate the child
// process's environment (see internal/launcher), never used for
// scheduling decisions.
type PackageMetadata struct {
	Name        string
	Version     string
	Authors     []string
	License     string
	LicenseFile string
	Homepage    string
	Repository  string
	Description string
	ManifestDir string
	MinLangVer  string
	BinaryPaths map[string]string // sibling binary name -> absolute path
}

// TestInstance is the identity of one executable test case: a
// (binary_id, test_name) pair plus everything needed to launch it.
type TestInstance struct {
	BinaryID    string
	TestName    string
	BinaryPath  string
	Cwd         string
	Package     PackageMetadata
	Platform    Platform
	FilterMatch FilterMatch
}

// Key returns the (binary_id, test_name) identity used as a map key.
// TestInstance.Key must be unique across a single run.
func (t TestInstance) Key() string {
	return t.BinaryID + "::" + t.TestName
}

func (t TestInstance) String() string {
	return fmt.Sprintf("%s %s", t.BinaryID, t.TestName)
}

// FilterMatch is the cached result of evaluating the pre-compiled
// filter predicate against a test instance. The filter-expression
// grammar itself is out of scope; the core only consumes the result.
type FilterMatch int

const (
	// FilterMatched means the test should be scheduled normally.
	FilterMatched FilterMatch = iota
	// FilterMismatch means the test is excluded before scheduling, or
	// scheduled as skipped, depending on the run's configuration.
	FilterMismatch
	// FilterIgnored means the test binary reported the case as
	// ignored; it is scheduled as skipped regardless of the filter.
	FilterIgnored
)

// TestCase is the per-case metadata tracked inside a TestList entry.
type TestCase struct {
	Name    string
	Ignored bool
	Match   FilterMatch
}

// BinaryEntry is one binary's worth of test cases in a TestList.
type BinaryEntry struct {
	BinaryID   string
	BinaryPath string
	Cwd        string
	Package    PackageMetadata
	Platform   Platform
	Cases      []TestCase
}

// TestList is an ordered multimap from binary_id to a non-empty set of
// test case metadata. It is built once by the (out-of-scope) discovery
// subsystem before scheduling and is immutable thereafter; every
// downstream component borrows it by reference.
type TestList struct {
	Binaries []BinaryEntry
}

// Instances flattens the list into individual TestInstance values, in
// binary-then-case order. This is the order the run controller uses to
// enqueue units absent any profile-configured priority.
func (l *TestList) Instances() []TestInstance {
	var out []TestInstance
	for _, b := range l.Binaries {
		for _, c := range b.Cases {
			out = append(out, TestInstance{
				BinaryID:    b.BinaryID,
				TestName:    c.Name,
				BinaryPath:  b.BinaryPath,
				Cwd:         b.Cwd,
				Package:     b.Package,
				Platform:    b.Platform,
				FilterMatch: c.Match,
			})
		}
	}
	return out
}

// Len returns the total number of test cases across all binaries.
func (l *TestList) Len() int {
	n := 0
	for _, b := range l.Binaries {
		n += len(b.Cases)
	}
	return n
}
