package profile

import "runtime"

// numCPUFn is overridden in tests so "num-cpus"/"num-cpus-k" resolution
// is deterministic regardless of the machine running the test suite.
var numCPUFn = runtime.NumCPU

// NumCPU returns the logical CPU count used to derive "num-cpus"-style
// thread counts.
func NumCPU() int {
	return numCPUFn()
}

// ThreadCount is the test-threads / threads-required config value: an
// absolute count, or a value derived from the CPU count.
type ThreadCount struct {
	Absolute int  // valid when !derived
	Derived  bool // true when parsed from "num-cpus" or "num-cpus - k"
	Offset   int  // the k in "num-cpus - k"; 0 for plain "num-cpus"
}

// Compute resolves the thread count to an absolute, floored-at-1 value.
func (t ThreadCount) Compute() int {
	if !t.Derived {
		if t.Absolute < 1 {
			return 1
		}
		return t.Absolute
	}
	n := NumCPU() - t.Offset
	if n < 1 {
		n = 1
	}
	return n
}

// ThreadsRequiredKind distinguishes the three shapes the
// threads-required config key can take.
type ThreadsRequiredKind int

const (
	ThreadsRequiredCount ThreadsRequiredKind = iota
	ThreadsRequiredNumCPUs
	ThreadsRequiredNumTestThreads
)

// ThreadsRequired is the threads-required config value. Unlike
// ThreadCount (used for test-threads), its NumTestThreads variant needs
// the already-resolved test-threads value to compute, so resolution
// happens after TestThreads is known.
type ThreadsRequired struct {
	Kind  ThreadsRequiredKind
	Count int
}

// Compute resolves the number of scheduler slots this test consumes,
// given the profile's already-resolved test-threads count.
func (t ThreadsRequired) Compute(testThreads int) int {
	switch t.Kind {
	case ThreadsRequiredNumCPUs:
		return NumCPU()
	case ThreadsRequiredNumTestThreads:
		return testThreads
	default:
		if t.Count < 1 {
			return 1
		}
		return t.Count
	}
}
