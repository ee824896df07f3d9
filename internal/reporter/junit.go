package reporter

import (
	"encoding/xml"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jpequegn/paratest/internal/event"
	"github.com/jpequegn/paratest/internal/retry"
)

// JUnit accumulates per-test outcomes as a run progresses and writes a
// JUnit XML artifact when the run finishes, for CI systems that ingest
// that format.
type JUnit struct {
	w    io.Writer
	name string

	mu    sync.Mutex
	cases []junitTestCase
	start time.Time
}

// NewJUnit builds a JUnit reporter that writes its document to w,
// naming the top-level <testsuite> suiteName, once the run finishes.
func NewJUnit(w io.Writer, suiteName string) *JUnit {
	return &JUnit{w: w, name: suiteName}
}

type junitDocument struct {
	XMLName xml.Name     `xml:"testsuites"`
	Suites  []junitSuite `xml:"testsuite"`
}

type junitSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Skipped   int             `xml:"skipped,attr"`
	Time      float64         `xml:"time,attr"`
	Timestamp string          `xml:"timestamp,attr"`
	Cases     []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	ClassName string        `xml:"classname,attr"`
	Name      string        `xml:"name,attr"`
	Time      float64       `xml:"time,attr"`
	Failure   *junitFailure `xml:"failure,omitempty"`
	Skipped   *junitSkipped `xml:"skipped,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Text    string `xml:",chardata"`
}

type junitSkipped struct {
	Message string `xml:"message,attr"`
}

// Emit records test outcomes, satisfying event.Sink.
func (j *JUnit) Emit(e event.TestEvent) {
	switch e.Kind {
	case event.KindRunStarted:
		j.mu.Lock()
		j.start = e.Timestamp
		j.mu.Unlock()

	case event.KindTestSkipped:
		j.mu.Lock()
		j.cases = append(j.cases, junitTestCase{
			ClassName: e.Instance.BinaryID,
			Name:      e.Instance.TestName,
			Skipped:   &junitSkipped{Message: e.SkipReason},
		})
		j.mu.Unlock()

	case event.KindTestFinished:
		tc := junitTestCase{
			ClassName: e.Instance.BinaryID,
			Name:      e.Instance.TestName,
			Time:      e.Elapsed.Seconds(),
		}
		var last event.ExecutionResult
		if n := len(e.RunStatuses); n > 0 {
			last = e.RunStatuses[n-1]
		}
		if last.Kind != event.ResultPass && !retry.IsFlaky(e.RunStatuses) {
			tc.Failure = &junitFailure{
				Message: last.Kind.String(),
				Text:    fmt.Sprintf("%s exited with status kind %s (abort status %d)", e.Instance.String(), last.Kind, last.AbortStatus),
			}
		}
		j.mu.Lock()
		j.cases = append(j.cases, tc)
		j.mu.Unlock()

	case event.KindRunFinished:
		j.write(e)
	}
}

func (j *JUnit) write(e event.TestEvent) {
	j.mu.Lock()
	defer j.mu.Unlock()

	failures := 0
	skipped := 0
	for _, c := range j.cases {
		if c.Failure != nil {
			failures++
		}
		if c.Skipped != nil {
			skipped++
		}
	}

	doc := junitDocument{Suites: []junitSuite{{
		Name:      j.name,
		Tests:     len(j.cases),
		Failures:  failures,
		Skipped:   skipped,
		Time:      e.Elapsed.Seconds(),
		Timestamp: j.start.Format(time.RFC3339),
		Cases:     j.cases,
	}}}

	if _, err := io.WriteString(j.w, xml.Header); err != nil {
		return
	}
	enc := xml.NewEncoder(j.w)
	enc.Indent("", "  ")
	_ = enc.Encode(doc)
}
