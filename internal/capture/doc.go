// Package capture drains a child process's stdout/stderr into bounded
// in-memory buffers without ever blocking the unit state machine, and
// offers advisory heuristics for extracting a human-readable failure
// description from the captured bytes. The heuristics never change a
// pass/fail verdict; they only enrich reporting.
package capture
