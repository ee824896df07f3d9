// Package storage implements the two persistence surfaces a run needs:
// a per-run event log on disk (events.jsonl.gz + a small run-metadata
// file, named by the run's UUID) and a sqlite-backed run-history index
// used for cross-run flaky/duration trend reporting.
//
// The event log is the literal external interface: a downstream tool
// can replay a run by decompressing and decoding its events.jsonl.gz
// line by line. The history index is additional: it exists purely so
// the terminal reporter can say "this test has been flaky in 3 of its
// last 5 runs", a question the event log alone can't answer cheaply
// since it would require scanning every past run's log.
package storage
