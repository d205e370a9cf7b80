package workservice_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	workservice "github.com/entropyengine/workservice"
	"github.com/entropyengine/workservice/internal/testgroup"
	"github.com/entropyengine/workservice/scheduler"
)

// TestStoppingGroupIsSkippedNotExecuted exercises the worker loop's step
// 5 branch: a group reporting IsStopping must never be selected for
// execution, even though it has ready work.
func TestStoppingGroupIsSkippedNotExecuted(t *testing.T) {
	cfg := workservice.DefaultConfig()
	cfg.ThreadCount = 1
	svc := workservice.New(cfg, nil)

	g := testgroup.New("stopping")
	var executed atomic.Int64
	g.Submit(func() { executed.Add(1) })
	g.Stop()

	svc.AddGroup(g)
	svc.Start()

	time.Sleep(50 * time.Millisecond)
	require.NoError(t, svc.Stop())

	require.EqualValues(t, 0, executed.Load(), "a stopping group's contracts must never be dequeued")
}

// TestNotifyGroupDestroyedIsSafeWhileRunning is scenario 4's
// destruction-safety counterpart: removing a group via
// NotifyGroupDestroyed while workers are actively running other groups
// must return only after quiescence, and must never panic.
func TestNotifyGroupDestroyedIsSafeWhileRunning(t *testing.T) {
	cfg := workservice.DefaultConfig()
	cfg.ThreadCount = 4
	svc := workservice.New(cfg, nil)

	victim := testgroup.New("victim")
	survivor := testgroup.New("survivor")
	svc.AddGroup(victim)
	svc.AddGroup(survivor)

	var survivorExecuted atomic.Int64
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			default:
				survivor.Submit(func() { survivorExecuted.Add(1) })
				time.Sleep(time.Millisecond)
			}
		}
	}()

	svc.Start()
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, svc.NotifyGroupDestroyed(victim))

	close(stop)
	require.NoError(t, svc.Stop())

	require.Equal(t, 1, svc.GroupCount())
}

func TestNewClampsZeroThreadCount(t *testing.T) {
	cfg := workservice.DefaultConfig()
	cfg.ThreadCount = 0
	svc := workservice.New(cfg, nil)
	require.GreaterOrEqual(t, svc.ThreadCount(), 1)
}

func TestSchedulerSelectionOverride(t *testing.T) {
	cfg := workservice.DefaultConfig()
	cfg.ThreadCount = 2
	// Passing nil falls back to Adaptive; exercised implicitly by every
	// other test in this package. This test only checks that a custom
	// scheduler's Name surfaces without panicking the Service
	// constructor's scheduler_info gauge registration.
	svc := workservice.New(cfg, scheduler.NewRoundRobin(scheduler.DefaultConfig()))
	require.NotNil(t, svc)
	require.Equal(t, "RoundRobin", svc.SchedulerName())
}
