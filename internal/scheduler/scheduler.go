package scheduler

import (
	"container/heap"

	"github.com/jpequegn/paratest/internal/testid"
)

// Waiting describes one unit (test or setup script) queued for
// admission.
type Waiting struct {
	Instance      testid.TestInstance
	Weight        int // threads_required
	Group         string
	Priority      int // higher admits first
	IsSetupScript bool

	seq   uint64 // enqueue order, stable tiebreak
	index int    // heap bookkeeping
}

// Scheduler admits waiting units respecting the global parallelism
// budget and per-group caps.
type Scheduler struct {
	globalCap    int
	globalInUse  int
	groupCaps    map[string]int
	groupInUse   map[string]int
	setupPending int // setup scripts queued or running; blocks test admission

	queue   priorityQueue
	nextSeq uint64
}

// New constructs a Scheduler with the given global thread budget and
// named test-group caps.
func New(globalCap int, groups map[string]int) *Scheduler {
	caps := make(map[string]int, len(groups))
	for name, limit := range groups {
		caps[name] = limit
	}
	s := &Scheduler{
		globalCap:  globalCap,
		groupCaps:  caps,
		groupInUse: make(map[string]int),
	}
	heap.Init(&s.queue)
	return s
}

// Enqueue adds w to the waiting queue. Returns w with its enqueue
// sequence number stamped, for the caller to correlate with later
// Release calls.
func (s *Scheduler) Enqueue(w *Waiting) *Waiting {
	w.seq = s.nextSeq
	s.nextSeq++
	heap.Push(&s.queue, w)
	return w
}

// SetSetupScriptsPending sets the count of setup scripts still queued or
// running; a non-zero count blocks all test (non-setup-script)
// admission until the setup phase has fully drained.
func (s *Scheduler) SetSetupScriptsPending(n int) {
	s.setupPending = n
}

// Admit pops every currently-admittable waiting unit from the queue, in
// priority order, and marks it running by reserving its slots. Units
// that can't yet fit are left in the queue and re-attempted on the next
// Admit call (typically after a Release). This is a work-conserving
// pass: a unit that can't fit doesn't block a smaller, lower-priority
// unit behind it from being admitted in the same pass.
func (s *Scheduler) Admit() []*Waiting {
	var admitted []*Waiting
	var skipped []*Waiting

	for s.queue.Len() > 0 {
		w := heap.Pop(&s.queue).(*Waiting)
		if s.canAdmit(w) {
			s.reserve(w)
			admitted = append(admitted, w)
		} else {
			skipped = append(skipped, w)
		}
	}
	for _, w := range skipped {
		heap.Push(&s.queue, w)
	}
	return admitted
}

// canAdmit applies the admission checks in order: setup barrier,
// global budget, then group budget.
func (s *Scheduler) canAdmit(w *Waiting) bool {
	if s.setupPending > 0 && !w.IsSetupScript {
		return false
	}

	// A unit whose threads_required exceeds the global budget is
	// admitted only when the scheduler is completely idle; it would
	// otherwise wait forever.
	if w.Weight > s.globalCap {
		if s.globalInUse > 0 {
			return false
		}
	} else if s.globalCap-s.globalInUse < w.Weight {
		return false
	}

	if w.Group != "" {
		if groupCap, ok := s.groupCaps[w.Group]; ok {
			inUse := s.groupInUse[w.Group]
			if w.Weight > groupCap {
				if inUse > 0 {
					return false
				}
			} else if groupCap-inUse < w.Weight {
				return false
			}
		}
	}
	return true
}

func (s *Scheduler) reserve(w *Waiting) {
	s.globalInUse += w.Weight
	if w.Group != "" {
		s.groupInUse[w.Group] += w.Weight
	}
}

// Release returns w's reserved slots to the pool after it completes.
func (s *Scheduler) Release(w *Waiting) {
	s.globalInUse -= w.Weight
	if s.globalInUse < 0 {
		s.globalInUse = 0
	}
	if w.Group != "" {
		s.groupInUse[w.Group] -= w.Weight
		if s.groupInUse[w.Group] < 0 {
			s.groupInUse[w.Group] = 0
		}
	}
}

// DrainAll removes every unit still waiting, admitted or not, without
// reserving slots for them. Used by the run controller to empty the
// queue once a run has entered a cancelling state and will never admit
// the rest of the waiting work.
func (s *Scheduler) DrainAll() []*Waiting {
	var drained []*Waiting
	for s.queue.Len() > 0 {
		drained = append(drained, heap.Pop(&s.queue).(*Waiting))
	}
	return drained
}

// GlobalInUse returns the number of global slots currently reserved.
func (s *Scheduler) GlobalInUse() int { return s.globalInUse }

// QueueLen returns the number of units still waiting for admission.
func (s *Scheduler) QueueLen() int { return s.queue.Len() }

// priorityQueue orders Waiting units by descending Priority, with a
// stable tiebreak on enqueue order.
type priorityQueue []*Waiting

func (q priorityQueue) Len() int { return len(q) }
func (q priorityQueue) Less(i, j int) bool {
	if q[i].Priority != q[j].Priority {
		return q[i].Priority > q[j].Priority
	}
	return q[i].seq < q[j].seq
}
func (q priorityQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
	q[i].index, q[j].index = i, j
}
func (q *priorityQueue) Push(x any) {
	w := x.(*Waiting)
	w.index = len(*q)
	*q = append(*q, w)
}
func (q *priorityQueue) Pop() any {
	old := *q
	n := len(old)
	w := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return w
}
