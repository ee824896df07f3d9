package reporter

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/jpequegn/paratest/internal/storage"
)

// History renders the cross-run flaky/duration trend report: a plain
// text summary built on internal/storage's history index.
type History struct {
	store storage.History
}

// NewHistory builds a History reporter over store.
func NewHistory(store storage.History) *History {
	return &History{store: store}
}

// WriteFlakyTrend writes a summary of tests flagged flaky in at least
// minOccurrences of their last lastNRuns recorded runs.
func (h *History) WriteFlakyTrend(w io.Writer, lastNRuns, minOccurrences int) error {
	keys, err := h.store.FlakyTests(lastNRuns, minOccurrences)
	if err != nil {
		return fmt.Errorf("reporter: load flaky trend: %w", err)
	}
	if len(keys) == 0 {
		fmt.Fprintf(w, "no tests flaky in >= %d of their last %d runs\n", minOccurrences, lastNRuns)
		return nil
	}

	sort.Strings(keys)
	fmt.Fprintf(w, "tests flaky in >= %d of their last %d runs:\n", minOccurrences, lastNRuns)
	for _, key := range keys {
		records, err := h.store.TestHistory(key, lastNRuns)
		if err != nil {
			return fmt.Errorf("reporter: load history for %s: %w", key, err)
		}
		flakyCount := 0
		for _, r := range records {
			if r.Flaky {
				flakyCount++
			}
		}
		fmt.Fprintf(w, "  %-50s flaky %d/%d runs\n", key, flakyCount, len(records))
	}
	return nil
}

// WriteRecentRuns writes a one-line-per-run summary, newest first.
func (h *History) WriteRecentRuns(w io.Writer, limit int) error {
	runs, err := h.store.RecentRuns(limit)
	if err != nil {
		return fmt.Errorf("reporter: load recent runs: %w", err)
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  %-12s  %8s  %d passed, %d failed, %d flaky\n",
			r.StartTime.Format("2006-01-02 15:04:05"), r.ProfileName, r.Elapsed.Round(time.Millisecond), r.Stats.Passed, r.Stats.Failed, r.Stats.Flaky)
	}
	return nil
}
