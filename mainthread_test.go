package workservice_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	workservice "github.com/entropyengine/workservice"
	"github.com/entropyengine/workservice/internal/testgroup"
)

// TestMainThreadPump is scenario 5: a group with 3 worker contracts and 2
// main-thread contracts; pumping with max=10 executes exactly the 2
// main-thread contracts and reports no more available, while workers
// independently drain the 3 worker contracts.
func TestMainThreadPump(t *testing.T) {
	cfg := workservice.DefaultConfig()
	cfg.ThreadCount = 2
	svc := workservice.New(cfg, nil)

	g := testgroup.New("pump")
	svc.AddGroup(g)

	var workerExecuted atomic.Int64
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		g.Submit(func() {
			workerExecuted.Add(1)
			wg.Done()
		})
	}

	var mainExecuted atomic.Int64
	for i := 0; i < 2; i++ {
		g.SubmitMainThread(func() {
			mainExecuted.Add(1)
		})
	}

	svc.Start()
	t.Cleanup(func() { _ = svc.Stop() })

	result := svc.ExecuteMainThreadWork(10)
	require.Equal(t, 2, result.Executed)
	require.Equal(t, 1, result.GroupsTouched)
	require.False(t, result.MoreAvailable)
	require.EqualValues(t, 2, mainExecuted.Load())

	waitOrTimeout(t, &wg, 2*time.Second)
	require.EqualValues(t, 3, workerExecuted.Load())
}

func TestHasMainThreadWork(t *testing.T) {
	svc := workservice.New(workservice.DefaultConfig(), nil)
	g := testgroup.New("pump")
	svc.AddGroup(g)

	require.False(t, svc.HasMainThreadWork())
	g.SubmitMainThread(func() {})
	require.True(t, svc.HasMainThreadWork())

	n := svc.ExecuteMainThreadWorkFor(g, 1)
	require.Equal(t, 1, n)
	require.False(t, svc.HasMainThreadWork())
}
