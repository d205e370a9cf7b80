package scheduler_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entropyengine/workservice/group"
	"github.com/entropyengine/workservice/internal/testgroup"
	"github.com/entropyengine/workservice/scheduler"
)

// TestRoundRobinFairness is scenario 3 from the design's testable
// properties: three groups each holding one item, one worker, three
// calls should touch each group exactly once in registry order.
func TestRoundRobinFairness(t *testing.T) {
	groups := []group.Group{
		&testgroup.Fixed{ReadyN: 1},
		&testgroup.Fixed{ReadyN: 1},
		&testgroup.Fixed{ReadyN: 1},
	}

	s := scheduler.NewRoundRobin(scheduler.DefaultConfig())
	ctx := scheduler.Context{WorkerID: 0}

	for i, want := range groups {
		result := s.SelectNext(groups, ctx)
		require.Equal(t, want, result.Group, "call %d should return group %d", i, i)
		// Simulate having drained it so the next scan moves on.
		f := result.Group.(*testgroup.Fixed)
		f.ReadyN = 0
	}
}

func TestRoundRobinSleepsAfterFullCycleEmpty(t *testing.T) {
	groups := []group.Group{
		&testgroup.Fixed{ReadyN: 0},
		&testgroup.Fixed{ReadyN: 0},
	}
	s := scheduler.NewRoundRobin(scheduler.DefaultConfig())
	result := s.SelectNext(groups, scheduler.Context{WorkerID: 0})
	require.Nil(t, result.Group)
	require.True(t, result.ShouldSleep)
}

func TestRoundRobinCursorsAreIndependentPerWorker(t *testing.T) {
	groups := []group.Group{
		&testgroup.Fixed{ReadyN: 1},
		&testgroup.Fixed{ReadyN: 1},
	}
	s := scheduler.NewRoundRobin(scheduler.DefaultConfig())

	first := s.SelectNext(groups, scheduler.Context{WorkerID: 0})
	second := s.SelectNext(groups, scheduler.Context{WorkerID: 1})
	require.Equal(t, groups[0], first.Group)
	require.Equal(t, groups[0], second.Group, "a fresh worker ID starts its own cursor at 0")
}
