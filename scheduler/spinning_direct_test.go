package scheduler_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entropyengine/workservice/group"
	"github.com/entropyengine/workservice/internal/testgroup"
	"github.com/entropyengine/workservice/scheduler"
)

func TestSpinningDirectNeverHintsSleep(t *testing.T) {
	a := &testgroup.Fixed{ReadyN: 0}
	s := scheduler.NewSpinningDirect(scheduler.DefaultConfig())
	result := s.SelectNext([]group.Group{a}, scheduler.Context{})
	require.Nil(t, result.Group)
	require.False(t, result.ShouldSleep, "SpinningDirect must never hint ShouldSleep, unlike Direct")
}
