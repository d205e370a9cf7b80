package scheduler_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entropyengine/workservice/group"
	"github.com/entropyengine/workservice/internal/testgroup"
	"github.com/entropyengine/workservice/scheduler"
)

func TestRandomOnlyPicksReadyGroups(t *testing.T) {
	empty := &testgroup.Fixed{ReadyN: 0}
	ready := &testgroup.Fixed{ReadyN: 1}

	s := scheduler.NewRandom(scheduler.DefaultConfig())
	for i := 0; i < 50; i++ {
		result := s.SelectNext([]group.Group{empty, ready}, scheduler.Context{WorkerID: 0})
		require.Equal(t, group.Group(ready), result.Group)
	}
}

func TestRandomSleepsWhenNothingReady(t *testing.T) {
	empty := &testgroup.Fixed{ReadyN: 0}
	s := scheduler.NewRandom(scheduler.DefaultConfig())
	result := s.SelectNext([]group.Group{empty}, scheduler.Context{WorkerID: 0})
	require.Nil(t, result.Group)
	require.True(t, result.ShouldSleep)
}
