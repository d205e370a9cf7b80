package registry_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/entropyengine/workservice/group"
	"github.com/entropyengine/workservice/internal/testgroup"
	"github.com/entropyengine/workservice/registry"
)

type countingNotifier struct {
	mu      sync.Mutex
	changes int
	resets  int
}

func (n *countingNotifier) NotifyGroupsChanged(groups []group.Group) {
	n.mu.Lock()
	n.changes++
	n.mu.Unlock()
}

func (n *countingNotifier) Reset() {
	n.mu.Lock()
	n.resets++
	n.mu.Unlock()
}

func (n *countingNotifier) snapshot() (changes, resets int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.changes, n.resets
}

type noopProvider struct{}

func (noopProvider) NotifyWorkAvailable(group.Group) {}

func TestAddPublishesNewSnapshot(t *testing.T) {
	n := &countingNotifier{}
	r := registry.New(n, noopProvider{})

	a := testgroup.New("a")
	status := r.Add(a)
	require.Equal(t, group.Added, status)
	require.Equal(t, []group.Group{a}, r.Snapshot())

	changes, _ := n.snapshot()
	require.Equal(t, 1, changes)
}

func TestAddDuplicateIsRejected(t *testing.T) {
	n := &countingNotifier{}
	r := registry.New(n, noopProvider{})

	a := testgroup.New("a")
	require.Equal(t, group.Added, r.Add(a))
	require.Equal(t, group.AlreadyPresent, r.Add(a))
	require.Len(t, r.Snapshot(), 1)
}

func TestRemoveNotFound(t *testing.T) {
	n := &countingNotifier{}
	r := registry.New(n, noopProvider{})

	a := testgroup.New("a")
	require.Equal(t, group.NotFound, r.Remove(a))
}

func TestRemoveClearsProvider(t *testing.T) {
	n := &countingNotifier{}
	r := registry.New(n, noopProvider{})

	a := &testgroup.Fixed{}
	r.Add(a)
	require.NotNil(t, a.Provider)
	require.Equal(t, group.Removed, r.Remove(a))
	require.Empty(t, r.Snapshot())
	require.Nil(t, a.Provider)
}

func TestClearEmptiesRegistryAndResetsNotifier(t *testing.T) {
	n := &countingNotifier{}
	r := registry.New(n, noopProvider{})

	r.Add(testgroup.New("a"))
	r.Add(testgroup.New("b"))
	require.Len(t, r.Snapshot(), 2)

	r.Clear()
	require.Empty(t, r.Snapshot())

	_, resets := n.snapshot()
	require.Equal(t, 1, resets)
}

// TestConcurrentAddRemove is scenario 4: concurrently removing one group
// and adding another against a registry that already holds a third must
// leave a consistent final snapshot containing exactly the surviving
// groups, with no observed duplicate or missing entry.
func TestConcurrentAddRemove(t *testing.T) {
	n := &countingNotifier{}
	r := registry.New(n, noopProvider{})

	a := testgroup.New("a")
	b := testgroup.New("b")
	c := testgroup.New("c")

	r.Add(a)
	r.Add(b)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		r.Remove(a)
	}()
	go func() {
		defer wg.Done()
		r.Add(c)
	}()
	wg.Wait()

	final := r.Snapshot()
	require.Len(t, final, 2)

	names := map[string]bool{}
	for _, g := range final {
		names[g.(*testgroup.Group).Name()] = true
	}
	require.True(t, names["b"])
	require.True(t, names["c"])
	require.False(t, names["a"])
}

func TestReclaimRetiredWaitsForAllWorkers(t *testing.T) {
	n := &countingNotifier{}
	r := registry.New(n, noopProvider{})
	r.InitWorkerSlots(2)

	a := testgroup.New("a")
	r.Add(a)
	gen0, _ := r.WorkerSlots(0)
	gen1, _ := r.WorkerSlots(1)
	gen0.Store(r.Generation())
	gen1.Store(r.Generation())

	r.Remove(a) // retires the one-element snapshot

	// Both workers are past the initial empty snapshot that Add retired, so
	// that one is reclaimed here. Neither has observed the post-removal
	// generation yet, so the one-element snapshot must still be held.
	require.Equal(t, uint64(1), r.ReclaimedTotal())

	gen0.Store(r.Generation())
	gen1.Store(r.Generation())
	r.ReclaimRetired()
	require.Equal(t, uint64(2), r.ReclaimedTotal())
}

func TestNotifyGroupDestroyedWaitsForEpochWhenRunning(t *testing.T) {
	n := &countingNotifier{}
	r := registry.New(n, noopProvider{})
	r.InitWorkerSlots(1)

	a := testgroup.New("a")
	r.Add(a)

	_, epochSlot := r.WorkerSlots(0)

	done := make(chan struct{})
	go func() {
		r.NotifyGroupDestroyed(a, true)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("NotifyGroupDestroyed returned before the worker published its epoch")
	default:
	}

	epochSlot.Store(r.Epoch())
	<-done

	requireNotRegistered(t, r, a)
}

// TestNotifyGroupDestroyedTimesOutWithDiagnostics covers the case where a
// worker never publishes the epoch NotifyGroupDestroyed is waiting for
// (e.g. it exited or is wedged): the wait must give up after
// epochWaitTimeout rather than block forever, and report which worker is
// stuck.
func TestNotifyGroupDestroyedTimesOutWithDiagnostics(t *testing.T) {
	n := &countingNotifier{}
	r := registry.New(n, noopProvider{})
	r.InitWorkerSlots(1)

	a := testgroup.New("a")
	r.Add(a)

	err := r.NotifyGroupDestroyed(a, true)
	require.Error(t, err)
	require.Contains(t, err.Error(), "worker 0 stuck")

	requireNotRegistered(t, r, a)
}

func requireNotRegistered(t *testing.T, r *registry.Registry, g group.Group) {
	t.Helper()
	for _, existing := range r.Snapshot() {
		if existing == g {
			t.Fatalf("expected %v to have been removed from the registry", g)
		}
	}
}
