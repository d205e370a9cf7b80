// Package registry implements the lock-free, copy-on-write registry of
// work groups and the two-channel reclamation scheme (generation and
// epoch) that lets worker goroutines read a group snapshot without ever
// taking a lock, while still letting the registry's owner safely retire
// old snapshots and safely wait out a destroyed group.
//
// Ported from WorkService's group-bookkeeping half (WorkService.cpp):
// addWorkContractGroup, removeWorkContractGroup, clear,
// reclaimRetiredVectors, and notifyGroupDestroyed. The scheduling half of
// WorkService lives in the workservice package; this package only knows
// about group membership and the two counters.
package registry

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/entropyengine/workservice/group"
	"github.com/entropyengine/workservice/internal/logging"
)

// epochWaitTimeout bounds how long NotifyGroupDestroyed spins for worker
// quiescence before giving up and reporting which workers are stuck,
// rather than spinning forever against a wedged or dead worker goroutine.
const epochWaitTimeout = 2 * time.Second

// ChangeNotifier receives registry membership changes. *scheduler
// implementations satisfy this through their NotifyGroupsChanged/Reset
// methods; it is declared narrowly here so this package does not need to
// import the scheduler package.
type ChangeNotifier interface {
	NotifyGroupsChanged(groups []group.Group)
	Reset()
}

type retiredSnapshot struct {
	groups    []group.Group
	retiredAt uint64
}

// Registry holds the current set of registered groups behind a single
// atomic pointer to an immutable slice, published by copy-on-write.
type Registry struct {
	snapshot   atomic.Pointer[[]group.Group]
	generation atomic.Uint64
	epoch      atomic.Uint64

	notifier ChangeNotifier
	provider group.ConcurrencyProvider

	retireMu sync.Mutex
	retired  []retiredSnapshot

	threadMu    sync.Mutex
	generations []*atomic.Uint64
	epochs      []*atomic.Uint64

	reclaimedTotal atomic.Uint64

	logger *logging.Logger
}

// New constructs an empty Registry. notifier is told about every
// membership change; provider is installed on groups via
// SetConcurrencyProvider as they are added, and cleared as they are
// removed.
func New(notifier ChangeNotifier, provider group.ConcurrencyProvider) *Registry {
	r := &Registry{
		notifier: notifier,
		provider: provider,
		logger:   logging.GetLogger("registry"),
	}
	empty := []group.Group{}
	r.snapshot.Store(&empty)
	return r
}

// Snapshot returns the current immutable group list. The returned slice
// is never mutated in place; registry mutations always publish a freshly
// allocated slice.
func (r *Registry) Snapshot() []group.Group {
	return *r.snapshot.Load()
}

// GroupCount returns the number of currently registered groups.
func (r *Registry) GroupCount() int {
	return len(r.Snapshot())
}

// Generation returns the current registry mutation counter.
func (r *Registry) Generation() uint64 {
	return r.generation.Load()
}

// Epoch returns the current group-destruction epoch counter.
func (r *Registry) Epoch() uint64 {
	return r.epoch.Load()
}

// Add publishes old ∪ {g}. Returns AlreadyPresent without mutating
// anything if g is already registered.
func (r *Registry) Add(g group.Group) group.OperationStatus {
	for {
		oldPtr := r.snapshot.Load()
		old := *oldPtr

		for _, existing := range old {
			if existing == g {
				return group.AlreadyPresent
			}
		}

		newSnap := make([]group.Group, len(old)+1)
		copy(newSnap, old)
		newSnap[len(old)] = g

		if r.snapshot.CompareAndSwap(oldPtr, &newSnap) {
			r.retire(oldPtr)
			r.generation.Add(1)
			r.notifier.NotifyGroupsChanged(newSnap)
			g.SetConcurrencyProvider(r.provider)
			return group.Added
		}
		// Lost the race to another writer; retry with the fresh snapshot.
	}
}

// Remove publishes old \ {g}. Returns NotFound without mutating anything
// if g is not registered.
func (r *Registry) Remove(g group.Group) group.OperationStatus {
	for {
		oldPtr := r.snapshot.Load()
		old := *oldPtr

		found := false
		for _, existing := range old {
			if existing == g {
				found = true
				break
			}
		}
		if !found {
			return group.NotFound
		}

		newSnap := make([]group.Group, 0, len(old)-1)
		for _, existing := range old {
			if existing != g {
				newSnap = append(newSnap, existing)
			}
		}

		if r.snapshot.CompareAndSwap(oldPtr, &newSnap) {
			r.retire(oldPtr)
			r.generation.Add(1)
			r.notifier.NotifyGroupsChanged(newSnap)
			g.SetConcurrencyProvider(nil)
			return group.Removed
		}
	}
}

// Clear publishes an empty snapshot, retires the old one, and resets the
// notifier's learned state. Per the original design this does not wait on
// the epoch, and does not clear removed groups' concurrency provider —
// see DESIGN.md's Open Questions for why that asymmetry is intentional.
func (r *Registry) Clear() {
	empty := []group.Group{}
	oldPtr := r.snapshot.Swap(&empty)

	r.retire(oldPtr)
	r.generation.Add(1)
	r.notifier.NotifyGroupsChanged(nil)
	r.notifier.Reset()
}

// retire files oldPtr's contents for reclamation once every worker's
// published generation has moved past the registry's generation at the
// moment of retirement, then opportunistically reclaims while it already
// holds the retire-list mutex.
func (r *Registry) retire(oldPtr *[]group.Group) {
	if oldPtr == nil {
		return
	}
	retiredAt := r.generation.Load()

	r.retireMu.Lock()
	defer r.retireMu.Unlock()
	r.retired = append(r.retired, retiredSnapshot{groups: *oldPtr, retiredAt: retiredAt})
	r.reclaimRetiredLocked()
}

// ReclaimRetired drops references to retired snapshots that every worker
// has definitely moved past, letting the garbage collector free them.
// Safe to call at any time; called opportunistically from retire and may
// also be called periodically by the owning service.
func (r *Registry) ReclaimRetired() {
	r.retireMu.Lock()
	defer r.retireMu.Unlock()
	r.reclaimRetiredLocked()
}

func (r *Registry) reclaimRetiredLocked() {
	minGeneration := r.minWorkerGeneration()
	// No workers registered, or none has published yet: be conservative
	// and keep everything, exactly as the original does.
	if minGeneration == math.MaxUint64 || minGeneration == 0 {
		return
	}

	kept := r.retired[:0]
	for _, rs := range r.retired {
		if rs.retiredAt >= minGeneration {
			kept = append(kept, rs)
		} else {
			// Every worker has moved past this snapshot's retirement
			// point; dropping the slice reference here lets the GC
			// reclaim it, which is this package's equivalent of the
			// original's explicit `delete`.
			r.reclaimedTotal.Add(1)
		}
	}
	r.retired = kept
}

// ReclaimedTotal returns the lifetime count of retired snapshots dropped
// by reclamation. Exposed for callers and tests; it is not exported as a
// metric.
func (r *Registry) ReclaimedTotal() uint64 {
	return r.reclaimedTotal.Load()
}

func (r *Registry) minWorkerGeneration() uint64 {
	r.threadMu.Lock()
	defer r.threadMu.Unlock()

	min := uint64(math.MaxUint64)
	for _, g := range r.generations {
		if g == nil {
			continue
		}
		if v := g.Load(); v < min {
			min = v
		}
	}
	return min
}

// InitWorkerSlots (re)allocates the per-worker generation/epoch trackers
// for n workers. Must be called before any worker goroutine starts, and
// must not be called concurrently with worker execution.
func (r *Registry) InitWorkerSlots(n int) {
	r.threadMu.Lock()
	defer r.threadMu.Unlock()

	r.generations = make([]*atomic.Uint64, n)
	r.epochs = make([]*atomic.Uint64, n)
	for i := range r.generations {
		r.generations[i] = new(atomic.Uint64)
		r.epochs[i] = new(atomic.Uint64)
	}
}

// WorkerSlots returns the stable generation/epoch counters for workerID,
// to be cached by the calling worker goroutine and updated directly
// (without going back through the registry's lock) once per loop
// iteration. Must be called after InitWorkerSlots.
func (r *Registry) WorkerSlots(workerID int) (generation, epoch *atomic.Uint64) {
	r.threadMu.Lock()
	defer r.threadMu.Unlock()
	return r.generations[workerID], r.epochs[workerID]
}

// NotifyGroupDestroyed removes g from the registry and, if running is
// true, blocks until every worker has observed an epoch at least as new
// as the one minted for this destruction. When running is false the wait
// is skipped, since workers are not progressing and would never advance
// their published epoch — waiting would deadlock.
//
// If the wait exceeds epochWaitTimeout, it gives up and returns an
// aggregated error naming every worker that has not yet caught up,
// rather than spinning forever; the caller is still free to retry or to
// log and proceed.
func (r *Registry) NotifyGroupDestroyed(g group.Group, running bool) error {
	r.Remove(g)

	if !running {
		return nil
	}

	target := r.epoch.Add(1)
	deadline := time.Now().Add(epochWaitTimeout)
	for !r.allWorkersAtLeast(target) {
		if time.Now().After(deadline) {
			return r.stuckWorkerErrors(target)
		}
		runtime.Gosched()
	}
	return nil
}

// stuckWorkerErrors reports, as an aggregated error, every worker whose
// published epoch has not yet reached target.
func (r *Registry) stuckWorkerErrors(target uint64) error {
	r.threadMu.Lock()
	defer r.threadMu.Unlock()

	var result *multierror.Error
	for i, e := range r.epochs {
		if e == nil {
			continue
		}
		if v := e.Load(); v < target {
			result = multierror.Append(result, fmt.Errorf("worker %d stuck at epoch %d, want at least %d", i, v, target))
		}
	}
	return result.ErrorOrNil()
}

func (r *Registry) allWorkersAtLeast(target uint64) bool {
	r.threadMu.Lock()
	defer r.threadMu.Unlock()

	for _, e := range r.epochs {
		if e == nil {
			continue
		}
		if e.Load() < target {
			return false
		}
	}
	return true
}
