// Package signalsrc turns OS signals into a single ordered event
// channel the run controller selects on alongside timers and child
// completions. Job-control events (stop/continue) are only ever
// synthesized on Unix; everywhere else the source degrades to
// shutdown-class signals only.
package signalsrc
