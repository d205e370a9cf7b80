package scheduler

import (
	"math/rand"
	"sync"

	"github.com/entropyengine/workservice/group"
)

// Random picks uniformly among groups that currently have ready work. It
// is present in EntropyCore's original scheduler set
// (RandomScheduler.{h,cpp}) but was dropped from the distilled design;
// restored here as a test and chaos-injection fixture — it is never the
// production default (Adaptive is), but it is useful for fuzzing the
// scheduler interface's thread-safety property and for the demo CLI's
// --scheduler=random flag.
type Random struct {
	mu   sync.Mutex
	rngs map[int]*rand.Rand
}

// NewRandom constructs a Random scheduler.
func NewRandom(Config) *Random {
	return &Random{rngs: make(map[int]*rand.Rand)}
}

func (s *Random) rngFor(workerID int) *rand.Rand {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rngs[workerID]
	if !ok {
		// Seed deterministically per worker so a failing fuzz run can be
		// reproduced by pinning GOMAXPROCS/thread count; cryptographic
		// randomness is not required for load-spreading decisions.
		r = rand.New(rand.NewSource(int64(workerID) + 1))
		s.rngs[workerID] = r
	}
	return r
}

func (s *Random) SelectNext(groups []group.Group, ctx Context) Result {
	var candidates []group.Group
	for _, g := range groups {
		if g.ReadyCount() > 0 {
			candidates = append(candidates, g)
		}
	}
	if len(candidates) == 0 {
		return Result{ShouldSleep: true}
	}
	r := s.rngFor(ctx.WorkerID)
	return Result{Group: candidates[r.Intn(len(candidates))]}
}

func (s *Random) NotifyExecuted(group.Group, int)          {}
func (s *Random) NotifyGroupsChanged(groups []group.Group) {}

func (s *Random) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rngs = make(map[int]*rand.Rand)
}

func (s *Random) Name() string { return "Random" }
