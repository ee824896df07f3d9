// Package reporter hosts the downstream consumers of the event stream
// a run controller emits: terminal.go prints a human-readable live
// summary, junit.go writes a JUnit XML artifact for CI ingestion, and
// history.go renders the cross-run flaky/duration trend built on
// internal/storage's history index.
//
// Each reporter implements event.Sink, so the controller can fan a
// single run out to several of them (event.MultiSink) without knowing
// which are attached.
package reporter
