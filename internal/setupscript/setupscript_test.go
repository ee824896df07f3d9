package setupscript

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jpequegn/paratest/internal/capture"
)

func shellScript(t *testing.T, name, body string) Script {
	t.Helper()
	return Script{
		Name:    name,
		Program: "sh",
		Args:    []string{"-c", body},
		Cwd:     t.TempDir(),
		Capture: capture.Split,
	}
}

func TestRunAllInOrder(t *testing.T) {
	r := &Runner{Scripts: []Script{
		shellScript(t, "first", "exit 0"),
		shellScript(t, "second", "exit 0"),
	}}

	var started []string
	r.OnStarted = func(i int, s Script) { started = append(started, s.Name) }

	published, results, firstFailure := r.RunAll(context.Background())
	if firstFailure != nil {
		t.Fatalf("unexpected failure: %+v", firstFailure)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if len(started) != 2 || started[0] != "first" || started[1] != "second" {
		t.Fatalf("scripts started out of order: %v", started)
	}
	if len(published) != 0 {
		t.Fatalf("expected no published env, got %v", published)
	}
}

func TestRunAllPublishesEnvToLaterScripts(t *testing.T) {
	// The first script publishes a variable; the second fails unless it
	// sees that variable in its own environment.
	r := &Runner{Scripts: []Script{
		shellScript(t, "publish", `echo "DB_URL=postgres://localhost" > "$NEXTEST_ENV"`),
		shellScript(t, "consume", `[ "$DB_URL" = "postgres://localhost" ]`),
	}}

	published, results, firstFailure := r.RunAll(context.Background())
	if firstFailure != nil {
		t.Fatalf("consume script did not see the published variable: %+v", firstFailure)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if published["DB_URL"] != "postgres://localhost" {
		t.Fatalf("expected DB_URL in accumulated env, got %v", published)
	}
}

func TestRunAllStopsAtFirstFailure(t *testing.T) {
	r := &Runner{Scripts: []Script{
		shellScript(t, "ok", "exit 0"),
		shellScript(t, "broken", "exit 3"),
		shellScript(t, "never-runs", "exit 0"),
	}}

	var finished []string
	r.OnFinished = func(i int, s Script, res Result) { finished = append(finished, s.Name) }

	_, results, firstFailure := r.RunAll(context.Background())
	if firstFailure == nil {
		t.Fatal("expected a failure")
	}
	if firstFailure.Script.Name != "broken" {
		t.Fatalf("expected broken to be the first failure, got %q", firstFailure.Script.Name)
	}
	if len(results) != 2 {
		t.Fatalf("expected the third script to be skipped, got %d results", len(results))
	}
	if len(finished) != 2 || finished[1] != "broken" {
		t.Fatalf("unexpected finish order: %v", finished)
	}
}

func TestRunAllCapturesOutput(t *testing.T) {
	r := &Runner{Scripts: []Script{
		shellScript(t, "noisy", "echo to-stdout; echo to-stderr >&2"),
	}}

	_, results, firstFailure := r.RunAll(context.Background())
	if firstFailure != nil {
		t.Fatalf("unexpected failure: %+v", firstFailure)
	}
	if got := string(results[0].Stdout); got != "to-stdout\n" {
		t.Fatalf("stdout = %q", got)
	}
	if got := string(results[0].Stderr); got != "to-stderr\n" {
		t.Fatalf("stderr = %q", got)
	}
}

func TestParsePublishedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "env")
	contents := `
# comment line
DB_URL=postgres://localhost
EMPTY=
SPACED = keeps trailing content
not-a-pair-without-equals-is-skipped
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := ParsePublishedFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"DB_URL": "postgres://localhost",
		"EMPTY":  "",
		"SPACED": " keeps trailing content",
	}
	if len(got) != len(want) {
		t.Fatalf("parsed %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("parsed %v, want %v", got, want)
		}
	}
}

func TestRunAllEmitsSlowWarnings(t *testing.T) {
	s := shellScript(t, "slow", "sleep 1")
	s.SlowTimeout = 100 * time.Millisecond

	r := &Runner{Scripts: []Script{s}}
	var slows []time.Duration
	r.OnSlow = func(i int, sc Script, elapsed time.Duration) { slows = append(slows, elapsed) }

	_, _, firstFailure := r.RunAll(context.Background())
	if firstFailure != nil {
		t.Fatalf("unexpected failure: %+v", firstFailure)
	}
	if len(slows) < 2 {
		t.Fatalf("expected at least 2 slow warnings for a 1s script at a 100ms period, got %d", len(slows))
	}
	for i, elapsed := range slows {
		if elapsed <= 0 {
			t.Fatalf("slow warning %d carried non-positive elapsed %v", i, elapsed)
		}
	}
}
