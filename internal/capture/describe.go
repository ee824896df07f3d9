package capture

import (
	"regexp"
	"strings"
)

// panickedAtRegex matches the first line of a Rust-style panic message,
// the format the test binaries this runner drives emit on a failed
// assertion.
var panickedAtRegex = regexp.MustCompile(`(?m)^thread '([^']+)' panicked at `)

// panicRegex matches a Go panic line, treated the same way as a Rust
// "thread panicked" line: a stack-trace style description, preferred
// over a bare Error: line.
var panicRegex = regexp.MustCompile(`(?m)^panic: `)

// errorRegex matches a leading "Error: " line.
var errorRegex = regexp.MustCompile(`(?m)^Error: `)

// shouldPanicMarker is the line child harnesses emit when a test
// expected to panic did not.
const shouldPanicMarker = "note: test did not panic as expected"

// DescriptionKind identifies which heuristic produced a Description.
type DescriptionKind int

const (
	// DescriptionNone means no heuristic matched.
	DescriptionNone DescriptionKind = iota
	// DescriptionAbort means the process aborted or was signaled;
	// description text comes from the exit status itself, not output.
	DescriptionAbort
	// DescriptionStackTrace means a panic line was found in stderr.
	DescriptionStackTrace
	// DescriptionErrorString means a leading "Error: " line was found.
	DescriptionErrorString
	// DescriptionShouldPanic means a should-panic-but-didn't marker
	// line was found in stdout.
	DescriptionShouldPanic
)

// Description is the advisory, human-readable explanation extracted
// from a failing unit's captured output. It never changes a pass/fail
// verdict; reporters use it purely to enrich a failure summary.
type Description struct {
	Kind DescriptionKind
	Text string
}

// ExtractDescription applies the heuristics in dispatch order: an
// abnormal exit (signal/abort) takes precedence over
// output inspection, then a stack-trace-style panic line in stderr,
// then a leading Error: line in stderr, then a should-panic marker in
// stdout. It returns a zero-value Description with Kind DescriptionNone
// if nothing matched.
func ExtractDescription(abortDescription string, stdout, stderr string) Description {
	if abortDescription != "" {
		return Description{Kind: DescriptionAbort, Text: abortDescription}
	}
	if d, ok := heuristicStackTrace(stderr); ok {
		return d
	}
	if d, ok := heuristicErrorStr(stderr); ok {
		return d
	}
	if d, ok := heuristicShouldPanic(stdout); ok {
		return d
	}
	return Description{Kind: DescriptionNone}
}

// heuristicStackTrace looks for a panic line in the given text. If the
// line immediately preceding the match starts with "Error: ", that line
// is folded into the match too, since some harnesses print the error
// value just before the panic trace.
func heuristicStackTrace(text string) (Description, bool) {
	loc := panickedAtRegex.FindStringIndex(text)
	if loc == nil {
		loc = panicRegex.FindStringIndex(text)
	}
	if loc == nil {
		return Description{}, false
	}

	start := loc[0]
	if prevStart, prevLine, ok := precedingLine(text, start); ok {
		if strings.HasPrefix(prevLine, "Error: ") {
			start = prevStart
		}
	}

	matched := strings.TrimRight(text[start:], "\n\r")
	return Description{Kind: DescriptionStackTrace, Text: matched}, true
}

// heuristicErrorStr looks for a leading "Error: " line in the given
// text and returns everything from that line to the end, trimmed.
func heuristicErrorStr(text string) (Description, bool) {
	loc := errorRegex.FindStringIndex(text)
	if loc == nil {
		return Description{}, false
	}
	matched := strings.TrimRight(text[loc[0]:], "\n\r \t")
	return Description{Kind: DescriptionErrorString, Text: matched}, true
}

// heuristicShouldPanic scans text for the "did not panic as expected"
// marker line and returns that single line.
func heuristicShouldPanic(text string) (Description, bool) {
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, shouldPanicMarker) {
			return Description{Kind: DescriptionShouldPanic, Text: strings.TrimRight(line, "\r")}, true
		}
	}
	return Description{}, false
}

// precedingLine returns the start offset and contents of the line
// immediately before the line containing byte offset pos, or ok=false
// if pos is on the first line.
func precedingLine(text string, pos int) (int, string, bool) {
	lineStart := strings.LastIndexByte(text[:pos], '\n')
	if lineStart <= 0 {
		return 0, "", false
	}
	prevEnd := lineStart
	prevStart := strings.LastIndexByte(text[:prevEnd], '\n') + 1
	return prevStart, text[prevStart:prevEnd], true
}
