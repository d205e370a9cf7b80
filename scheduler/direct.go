package scheduler

import "github.com/entropyengine/workservice/group"

// Direct returns the first group in registry order with ready work. It
// hints ShouldSleep when none is found. Direct is stateless: the zero
// value is ready to use and safe for concurrent use by construction.
//
// Ported from EntropyCore's DirectScheduler.h. Use as a scheduling
// baseline or when every group's latency profile is identical.
type Direct struct{}

// NewDirect constructs a Direct scheduler.
func NewDirect(Config) *Direct { return &Direct{} }

func (s *Direct) SelectNext(groups []group.Group, _ Context) Result {
	for _, g := range groups {
		if g.ReadyCount() > 0 {
			return Result{Group: g}
		}
	}
	return Result{ShouldSleep: true}
}

func (s *Direct) NotifyExecuted(group.Group, int)       {}
func (s *Direct) NotifyGroupsChanged(groups []group.Group) {}
func (s *Direct) Reset()                                {}
func (s *Direct) Name() string                          { return "Direct" }
