// Package scheduler implements the pluggable policies that decide which
// work group a worker goroutine should pull its next contract from.
//
// Ported from EntropyCore's IWorkScheduler and its four concrete
// strategies (DirectScheduler, SpinningDirectScheduler, RoundRobinScheduler,
// AdaptiveRankingScheduler), plus RandomScheduler, which the original
// engine ships but the distilled design dropped — restored here as a
// test/benchmark fixture, see Random.
//
// All implementations must be safe for concurrent invocation from every
// worker goroutine. Per-worker state is kept in a map keyed by worker ID
// (a sync.Map, or a mutex-guarded map for Random) and is written only by
// its owning worker; shared counters are atomics.
package scheduler

import (
	"time"

	"github.com/entropyengine/workservice/group"
)

// Config is the common configuration accepted by every strategy.
type Config struct {
	// MaxConsecutiveExecutions bounds how many times in a row a worker may
	// stay "stuck" to the same group before the Adaptive strategy
	// re-evaluates its ranking. Default 8.
	MaxConsecutiveExecutions int
	// UpdateCycleInterval is how many executions (counted through
	// NotifyExecuted) the Adaptive strategy allows before its next
	// re-evaluation refreshes the rankings. Default 16.
	UpdateCycleInterval uint64
	// FailureSleep is accepted for API compatibility with the original
	// engine but is not consulted by any strategy in this package; the
	// worker loop parks on a channel instead. See Service.FailureSleep.
	FailureSleep time.Duration
	// ThreadCount is the configured worker count, used by Adaptive's rank
	// formula. Set by Service at construction time.
	ThreadCount int
}

// DefaultConfig returns a Config with the documented defaults.
func DefaultConfig() Config {
	return Config{
		MaxConsecutiveExecutions: 8,
		UpdateCycleInterval:      16,
		ThreadCount:              1,
	}
}

// Context carries per-call scheduling state supplied by the worker loop.
type Context struct {
	// WorkerID identifies the calling worker goroutine, stable for its
	// lifetime, in [0, ThreadCount).
	WorkerID int
	// ConsecutiveFailures is how many scheduling iterations in a row found
	// no work for this worker.
	ConsecutiveFailures uint64
	// LastExecutedGroup is the group this worker most recently completed a
	// contract from, or nil.
	LastExecutedGroup group.Group
}

// Result is the outcome of a scheduling decision.
type Result struct {
	// Group is the selected group, or nil if none has ready work.
	Group group.Group
	// ShouldSleep hints that the caller found nothing to do anywhere and
	// should park. Ignored when Group is non-nil.
	ShouldSleep bool
}

// Scheduler decides which group a worker should pull from next. All four
// methods must tolerate concurrent invocation from every worker goroutine
// and must never panic or otherwise propagate an internal error to the
// caller — on any internal failure a strategy must behave as though no
// work was found.
type Scheduler interface {
	// SelectNext returns the group to pull from next, given the current
	// registry snapshot and the calling worker's context.
	SelectNext(groups []group.Group, ctx Context) Result
	// NotifyExecuted is called after a worker successfully executes a
	// contract from g.
	NotifyExecuted(g group.Group, workerID int)
	// NotifyGroupsChanged is called after a registry mutation publishes a
	// new snapshot.
	NotifyGroupsChanged(groups []group.Group)
	// Reset clears all learned state for every worker. The original engine
	// resets only the calling thread's thread-local cache and lets other
	// threads reset lazily; Go has no thread-local storage, so here Reset
	// clears every worker's cached state unconditionally (see DESIGN.md).
	Reset()
	// Name identifies the strategy, e.g. for metrics labels and CLI flags.
	Name() string
}
