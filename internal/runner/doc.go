// Package runner implements the run controller: the single
// owner of the top-level event loop that admits units through the
// scheduler, drives each through internal/unit, folds their reports
// into RunStats and the event stream, and reacts to signals and
// terminal input with a strictly-escalating cancellation state.
package runner
