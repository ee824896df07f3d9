package reporter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/jpequegn/paratest/internal/event"
	"github.com/jpequegn/paratest/internal/testid"
)

func TestJUnitWritesFailureElement(t *testing.T) {
	var buf bytes.Buffer
	j := NewJUnit(&buf, "paratest")

	j.Emit(event.TestEvent{Kind: event.KindRunStarted, Timestamp: time.Now()})
	j.Emit(event.TestEvent{
		Kind:        event.KindTestFinished,
		Instance:    testid.TestInstance{BinaryID: "bin", TestName: "test_fail"},
		RunStatus:   event.ExecutionResult{Kind: event.ResultFail},
		RunStatuses: []event.ExecutionResult{{Kind: event.ResultFail}},
		Elapsed:     200 * time.Millisecond,
	})
	j.Emit(event.TestEvent{
		Kind:     event.KindRunFinished,
		RunStats: event.RunStats{Started: 1, Failed: 1},
	})

	out := buf.String()
	if !strings.Contains(out, `<testsuite`) {
		t.Fatalf("expected a testsuite element, got %q", out)
	}
	if !strings.Contains(out, `<failure`) {
		t.Fatalf("expected a failure element, got %q", out)
	}
	if !strings.Contains(out, `name="test_fail"`) {
		t.Fatalf("expected the failing test name, got %q", out)
	}
}

func TestJUnitSkipsFlakyTestsFromFailures(t *testing.T) {
	var buf bytes.Buffer
	j := NewJUnit(&buf, "paratest")

	j.Emit(event.TestEvent{Kind: event.KindRunStarted, Timestamp: time.Now()})
	j.Emit(event.TestEvent{
		Kind:      event.KindTestFinished,
		Instance:  testid.TestInstance{BinaryID: "bin", TestName: "test_flaky"},
		RunStatus: event.ExecutionResult{Kind: event.ResultPass},
		RunStatuses: []event.ExecutionResult{
			{Kind: event.ResultFail},
			{Kind: event.ResultPass},
		},
	})
	j.Emit(event.TestEvent{Kind: event.KindRunFinished, RunStats: event.RunStats{Started: 1, Flaky: 1}})

	if strings.Contains(buf.String(), "<failure") {
		t.Fatalf("expected a flaky-but-ultimately-passing test not to be reported as a failure, got %q", buf.String())
	}
}
