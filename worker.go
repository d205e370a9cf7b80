package workservice

import (
	"fmt"
	"runtime"

	"github.com/entropyengine/workservice/group"
	"github.com/entropyengine/workservice/internal/logging"
	"github.com/entropyengine/workservice/scheduler"
)

// workerLoop is the per-goroutine driver. It owns no long-lived state
// beyond its published generation/epoch slots, its soft-failure counter,
// and the last group it executed from — everything else is read fresh
// from the registry and scheduler each iteration.
func (s *Service) workerLoop(workerID int) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.recordShutdownError(fmt.Errorf("worker %d panicked: %v", workerID, r))
		}
	}()

	genSlot, epochSlot := s.reg.WorkerSlots(workerID)
	logger := s.logger.With("worker", workerID)

	var softFailures uint64
	var lastExecuted group.Group

	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		// Step 2: publish this worker's view of the world before doing
		// any scheduling work, so reclamation and epoch waits can always
		// observe a value no staler than "about to make a decision."
		genSlot.Store(s.reg.Generation())
		epochSlot.Store(s.reg.Epoch())

		groups := s.reg.Snapshot()
		if len(groups) == 0 {
			s.parkIdle(emptySnapshotParkTimeout)
			continue
		}

		result := s.sched.SelectNext(groups, scheduler.Context{
			WorkerID:            workerID,
			ConsecutiveFailures: softFailures,
			LastExecutedGroup:   lastExecuted,
		})

		g := result.Group
		if g == nil {
			softFailuresTotal.Inc()
			if result.ShouldSleep || softFailures >= s.MaxSoftFailures() {
				s.parkIdle(idleParkTimeout)
				softFailures = 0
			} else {
				softFailures++
				runtime.Gosched()
			}
			continue
		}

		if g.IsStopping() {
			softFailures++
			softFailuresTotal.Inc()
			continue
		}

		c, ok := g.SelectForExecution()
		if !ok {
			// Lost the race to another worker; not an error, just retry.
			softFailures++
			softFailuresTotal.Inc()
			continue
		}

		select {
		case <-s.stopCh:
			// Shutdown observed after selection but before execution:
			// still pair the selection with a completion so the group's
			// state machine is never left mid-transition.
			g.CompleteExecution(c)
			return
		default:
		}

		s.executeContract(g, c, logger)
		g.CompleteExecution(c)
		s.sched.NotifyExecuted(g, workerID)

		contractsExecutedTotal.Inc()
		softFailures = 0
		lastExecuted = g
	}
}

// executeContract runs the group-supplied contract body, recovering any
// panic so a misbehaving contract cannot take down the whole worker pool.
// CompleteExecution is always called by the caller regardless of whether
// this recovers a panic — see the Group contract invariant that every
// successful SelectForExecution is paired with exactly one
// CompleteExecution. A recovered panic is tracked by contractPanicsTotal,
// a distinct concern from the soft-failure counters above: it is a
// misbehaving contract, not a scheduling miss.
func (s *Service) executeContract(g group.Group, c group.Contract, logger *logging.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("contract execution panicked", "panic", r)
			contractPanicsTotal.Inc()
		}
	}()
	g.ExecuteContract(c)
}
