package runner

import (
	"github.com/jpequegn/paratest/internal/profile"
	"github.com/jpequegn/paratest/internal/scheduler"
)

// NewScheduler builds the scheduler a Controller needs from the
// resolved default profile's global thread budget and the configured
// test-group caps, saving callers from wiring scheduler.New by hand.
func NewScheduler(def profile.Profile, groups []profile.TestGroup) *scheduler.Scheduler {
	caps := make(map[string]int, len(groups))
	for _, g := range groups {
		caps[g.Name] = g.MaxThreads
	}
	return scheduler.New(def.TestThreads, caps)
}
