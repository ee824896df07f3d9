// Package event defines the typed, totally-ordered stream of observable
// facts a run produces. Every state transition in the scheduler, the
// run controller, and the unit state machine is surfaced here as a
// TestEvent; reporters (terminal, JUnit, history) consume the stream
// and never drive behavior back into the core.
package event
