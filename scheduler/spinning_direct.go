package scheduler

import "github.com/entropyengine/workservice/group"

// SpinningDirect is identical to Direct except it never hints
// ShouldSleep, favoring minimum latency over CPU usage. Intended for
// latency benchmarking, ported from SpinningDirectScheduler.h.
type SpinningDirect struct{}

// NewSpinningDirect constructs a SpinningDirect scheduler.
func NewSpinningDirect(Config) *SpinningDirect { return &SpinningDirect{} }

func (s *SpinningDirect) SelectNext(groups []group.Group, _ Context) Result {
	for _, g := range groups {
		if g.ReadyCount() > 0 {
			return Result{Group: g}
		}
	}
	return Result{ShouldSleep: false}
}

func (s *SpinningDirect) NotifyExecuted(group.Group, int)          {}
func (s *SpinningDirect) NotifyGroupsChanged(groups []group.Group) {}
func (s *SpinningDirect) Reset()                                   {}
func (s *SpinningDirect) Name() string                             { return "SpinningDirect" }
