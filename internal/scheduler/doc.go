// Package scheduler implements the capacity scheduler: a
// global parallelism budget, a per-test-group budget table, and a
// setup-script barrier, with priority-ordered admission over a
// stable-tiebreak queue. It is owned and mutated exclusively by the run
// controller's single-threaded loop (internal/runner); Scheduler has no
// goroutine or locks of its own, so every method here must only ever be
// called from the controller's loop.
package scheduler
