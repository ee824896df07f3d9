package reporter

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jpequegn/paratest/internal/event"
	"github.com/jpequegn/paratest/internal/profile"
	"github.com/jpequegn/paratest/internal/testid"
)

func TestTerminalEmitsPassAtPassLevel(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, profile.StatusPass, profile.StatusFail, 0)

	term.Emit(event.TestEvent{
		Kind:        event.KindTestFinished,
		Instance:    testid.TestInstance{BinaryID: "bin", TestName: "test_one"},
		RunStatus:   event.ExecutionResult{Kind: event.ResultPass},
		RunStatuses: []event.ExecutionResult{{Kind: event.ResultPass}},
	})

	if !strings.Contains(buf.String(), "PASS") {
		t.Fatalf("expected a PASS line, got %q", buf.String())
	}
}

func TestTerminalSuppressesPassAtFailLevel(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, profile.StatusFail, profile.StatusFail, 0)

	term.Emit(event.TestEvent{
		Kind:        event.KindTestFinished,
		Instance:    testid.TestInstance{BinaryID: "bin", TestName: "test_one"},
		RunStatus:   event.ExecutionResult{Kind: event.ResultPass},
		RunStatuses: []event.ExecutionResult{{Kind: event.ResultPass}},
	})

	if buf.Len() != 0 {
		t.Fatalf("expected no output at StatusFail for a passing test, got %q", buf.String())
	}
}

func TestTerminalTruncatesLongNames(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, profile.StatusFail, profile.StatusFail, 20)

	long := strings.Repeat("x", 100)
	got := term.truncate(long)
	if len([]rune(got)) > 20 {
		t.Fatalf("expected truncated output within 20 columns, got %d runes", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
}

func TestTerminalSummaryReportsCounts(t *testing.T) {
	var buf bytes.Buffer
	term := NewTerminal(&buf, profile.StatusFail, profile.StatusFail, 0)

	term.Emit(event.TestEvent{
		Kind:     event.KindRunFinished,
		RunStats: event.RunStats{Started: 3, Passed: 2, Failed: 1},
	})

	out := buf.String()
	if !strings.Contains(out, "3 tests run") || !strings.Contains(out, "2 passed") {
		t.Fatalf("unexpected summary: %q", out)
	}
}
