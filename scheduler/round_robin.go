package scheduler

import (
	"sync"

	"github.com/entropyengine/workservice/group"
)

// RoundRobin scans from a per-worker cursor, returning the first group
// with ready work and advancing the cursor to (i+1) mod N regardless of
// whether the probe succeeded, so a full cycle always touches every group
// exactly once. After N probes with nothing ready it reports ShouldSleep.
//
// Ported from RoundRobinScheduler.{h,cpp}. Use when strict fairness across
// groups matters more than adapting to load.
type RoundRobin struct {
	cursors sync.Map // workerID int -> *int
}

// NewRoundRobin constructs a RoundRobin scheduler.
func NewRoundRobin(Config) *RoundRobin { return &RoundRobin{} }

func (s *RoundRobin) cursorFor(workerID int) *int {
	if v, ok := s.cursors.Load(workerID); ok {
		return v.(*int)
	}
	v, _ := s.cursors.LoadOrStore(workerID, new(int))
	return v.(*int)
}

func (s *RoundRobin) SelectNext(groups []group.Group, ctx Context) Result {
	n := len(groups)
	if n == 0 {
		return Result{ShouldSleep: true}
	}

	cursor := s.cursorFor(ctx.WorkerID)
	i := *cursor % n
	if i < 0 {
		i = 0
	}

	for probes := 0; probes < n; probes++ {
		g := groups[i]
		next := (i + 1) % n
		if g.ReadyCount() > 0 {
			*cursor = next
			return Result{Group: g}
		}
		i = next
	}
	*cursor = i
	return Result{ShouldSleep: true}
}

func (s *RoundRobin) NotifyExecuted(group.Group, int) {}

func (s *RoundRobin) NotifyGroupsChanged(groups []group.Group) {
	// Cursors are indices into the registry-order snapshot; they remain
	// meaningful (mod the new length) across membership changes, so there
	// is nothing to invalidate here.
}

func (s *RoundRobin) Reset() {
	s.cursors.Range(func(k, _ interface{}) bool {
		s.cursors.Delete(k)
		return true
	})
}

func (s *RoundRobin) Name() string { return "RoundRobin" }
