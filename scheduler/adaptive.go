package scheduler

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/entropyengine/workservice/group"
)

// Adaptive is the default scheduler. It learns from workload pressure to
// balance throughput against cache locality: a worker stays "sticky" to
// the group it last pulled from (so the group's data stays hot) until the
// group runs dry or a consecutive-execution budget is exhausted, at which
// point it consults its ranking (recomputing it first if it is stale) and
// picks the highest-ranked group that has ready work.
//
// Ranking formula, computed per group with ready count s and executing
// count e, against the configured thread count T:
//
//	rank = (s / (e + 1)) * (1 - (e + 1) / T)
//
// Groups with s == 0 are excluded from ranking. Each worker keeps its own
// copy of the ranking; small divergence between workers is intentional —
// it desynchronizes workers and avoids every one of them piling onto
// whichever single group currently looks best.
//
// Ported from AdaptiveRankingScheduler.{h,cpp}.
type Adaptive struct {
	config Config

	groupsGeneration atomic.Uint64

	states sync.Map // workerID int -> *adaptiveState
}

type adaptiveState struct {
	rankedGroups              []group.Group
	currentGroupIndex         int
	consecutiveExecutionCount int
	rankingUpdateCounter      uint64
	lastSeenGeneration        uint64
}

func (s *adaptiveState) reset() {
	s.rankedGroups = nil
	s.currentGroupIndex = 0
	s.consecutiveExecutionCount = 0
	s.rankingUpdateCounter = 0
	s.lastSeenGeneration = 0
}

// NewAdaptive constructs an Adaptive scheduler with the given config.
// Config.ThreadCount must be positive for the rank formula to be
// meaningful; a value of 0 is treated as 1.
func NewAdaptive(config Config) *Adaptive {
	if config.MaxConsecutiveExecutions <= 0 {
		config.MaxConsecutiveExecutions = 8
	}
	if config.UpdateCycleInterval == 0 {
		config.UpdateCycleInterval = 16
	}
	if config.ThreadCount <= 0 {
		config.ThreadCount = 1
	}
	return &Adaptive{config: config}
}

func (s *Adaptive) stateFor(workerID int) *adaptiveState {
	if v, ok := s.states.Load(workerID); ok {
		return v.(*adaptiveState)
	}
	v, _ := s.states.LoadOrStore(workerID, &adaptiveState{})
	return v.(*adaptiveState)
}

func (s *Adaptive) SelectNext(groups []group.Group, ctx Context) Result {
	st := s.stateFor(ctx.WorkerID)

	// Phase 1: stay sticky for cache locality while the budget allows.
	if st.consecutiveExecutionCount < s.config.MaxConsecutiveExecutions {
		if sticky := s.currentGroupIfValid(st); sticky != nil && sticky.ReadyCount() > 0 {
			return Result{Group: sticky}
		}
	}

	// Phase 2: sticky state is broken, recompute if needed.
	st.consecutiveExecutionCount = 0

	if s.needsRankingUpdate(st, groups) {
		s.updateRankings(st, groups)
	}

	// Phase 3: walk the ranked plan looking for the first group with work.
	if selected := s.executeWorkPlan(st, groups); selected != nil {
		return Result{Group: selected}
	}

	return Result{ShouldSleep: true}
}

func (s *Adaptive) currentGroupIfValid(st *adaptiveState) group.Group {
	if st.currentGroupIndex < 0 || st.currentGroupIndex >= len(st.rankedGroups) {
		return nil
	}
	return st.rankedGroups[st.currentGroupIndex]
}

func (s *Adaptive) needsRankingUpdate(st *adaptiveState, groups []group.Group) bool {
	if len(st.rankedGroups) == 0 {
		return true
	}
	if st.lastSeenGeneration != s.groupsGeneration.Load() {
		return true
	}
	if st.rankingUpdateCounter >= s.config.UpdateCycleInterval {
		return true
	}
	if current := s.currentGroupIfValid(st); current != nil && current.ReadyCount() == 0 {
		return true
	}
	return false
}

type groupRank struct {
	group group.Group
	rank  float64
}

func (s *Adaptive) updateRankings(st *adaptiveState, groups []group.Group) {
	rankings := make([]groupRank, 0, len(groups))
	threadCount := float64(s.config.ThreadCount)

	for _, g := range groups {
		if g == nil {
			continue
		}
		scheduled := g.ReadyCount()
		if scheduled == 0 {
			continue
		}
		executing := g.ExecutingCount()

		executionCountF := float64(executing) + 1.0
		scheduleCountF := float64(scheduled)

		threadPenalty := 1.0 - (executionCountF / threadCount)
		rank := (scheduleCountF / executionCountF) * threadPenalty

		rankings = append(rankings, groupRank{group: g, rank: rank})
	}

	sort.SliceStable(rankings, func(i, j int) bool {
		return rankings[i].rank > rankings[j].rank
	})

	st.rankedGroups = st.rankedGroups[:0]
	for _, r := range rankings {
		st.rankedGroups = append(st.rankedGroups, r.group)
	}

	st.rankingUpdateCounter = 0
	st.currentGroupIndex = 0
	st.lastSeenGeneration = s.groupsGeneration.Load()
}

func (s *Adaptive) executeWorkPlan(st *adaptiveState, groups []group.Group) group.Group {
	for i, g := range st.rankedGroups {
		if g == nil {
			continue
		}
		if !contains(groups, g) {
			// Removed from the registry since we last ranked; skip it.
			continue
		}
		if g.ReadyCount() > 0 {
			st.currentGroupIndex = i
			st.consecutiveExecutionCount = 1
			return g
		}
	}
	return nil
}

func contains(groups []group.Group, needle group.Group) bool {
	for _, g := range groups {
		if g == needle {
			return true
		}
	}
	return false
}

func (s *Adaptive) NotifyExecuted(g group.Group, workerID int) {
	st := s.stateFor(workerID)
	st.consecutiveExecutionCount++
	st.rankingUpdateCounter++
}

func (s *Adaptive) NotifyGroupsChanged(groups []group.Group) {
	s.groupsGeneration.Add(1)
}

// Reset clears every worker's cached ranking and affinity state by
// dropping each worker's state entry, so no worker's state is written from
// the calling goroutine; each worker starts from fresh state on its next
// call. See the Scheduler.Reset doc comment for why this differs from the
// original engine's thread-local-only reset.
func (s *Adaptive) Reset() {
	s.states.Range(func(k, _ interface{}) bool {
		s.states.Delete(k)
		return true
	})
	s.groupsGeneration.Store(0)
}

func (s *Adaptive) Name() string { return "AdaptiveRanking" }
