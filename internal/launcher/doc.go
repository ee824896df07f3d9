// Package launcher constructs and spawns the child process for one test
// or setup-script invocation: building its environment,
// placing it in its own process group (Unix) or job object (Windows) so
// the whole subtree can be signaled/killed atomically, and wiring its
// stdout/stderr to an internal/capture.Collector.
package launcher
