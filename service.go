// Package workservice implements a fixed-size worker pool that pulls
// ready work out of independently-managed work groups and executes it on
// dedicated goroutines, plus a cooperative main-thread pump for
// contracts a group marks as main-thread-only.
//
// Ported from EntropyCore's WorkService: the registry and epoch
// reclamation machinery lives in the registry subpackage, the scheduling
// policies live in the scheduler subpackage, and this package owns the
// worker loop, the main-thread pump, and service lifecycle.
package workservice

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/entropyengine/workservice/group"
	"github.com/entropyengine/workservice/internal/logging"
	"github.com/entropyengine/workservice/registry"
	"github.com/entropyengine/workservice/scheduler"
)

// State is the Service lifecycle state.
type State int32

const (
	StateNew State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (st State) String() string {
	switch st {
	case StateNew:
		return "new"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const (
	idleParkTimeout          = 10 * time.Millisecond
	emptySnapshotParkTimeout = time.Millisecond
)

// Service drives a fixed pool of worker goroutines against a dynamic set
// of registered Groups. The zero value is not usable; construct with New.
type Service struct {
	threadCount int
	sched       scheduler.Scheduler
	reg         *registry.Registry

	state       atomic.Int32
	lifecycleMu sync.Mutex

	maxSoftFailures atomic.Uint64
	failureSleep    atomic.Int64 // nanoseconds; see Config.FailureSleep

	// wakeCh approximates the original's work_available flag plus a
	// notify-one condition variable: a non-blocking send wakes at most
	// one parked worker. stopCh, closed by RequestStop, approximates the
	// original's notify-all-on-shutdown broadcast.
	wakeCh chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup

	// shutdownErr aggregates worker panics and epoch-wait timeouts
	// observed during this run, surfaced by WaitForStop/Stop.
	shutdownMu  sync.Mutex
	shutdownErr *multierror.Error

	logger *logging.Logger
}

// recordShutdownError appends a non-nil diagnostic to the aggregate
// returned by WaitForStop/Stop.
func (s *Service) recordShutdownError(err error) {
	if err == nil {
		return
	}
	s.shutdownMu.Lock()
	s.shutdownErr = multierror.Append(s.shutdownErr, err)
	s.shutdownMu.Unlock()
}

// New constructs a Service. If sched is nil, an Adaptive scheduler is
// constructed from cfg.SchedulerConfig. Workers are not started until
// Start is called.
func New(cfg Config, sched scheduler.Scheduler) *Service {
	registerMetrics()

	threadCount := cfg.ThreadCount
	if threadCount <= 0 {
		threadCount = runtime.NumCPU()
	}
	if threadCount < 1 {
		threadCount = 1
	}
	cfg.SchedulerConfig.ThreadCount = threadCount

	if sched == nil {
		sched = scheduler.NewAdaptive(cfg.SchedulerConfig)
	}

	s := &Service{
		threadCount: threadCount,
		sched:       sched,
		wakeCh:      make(chan struct{}, 1),
		logger:      logging.GetLogger("workservice"),
	}

	maxSoftFailures := cfg.MaxSoftFailures
	if maxSoftFailures == 0 {
		maxSoftFailures = DefaultMaxSoftFailures
	}
	s.maxSoftFailures.Store(maxSoftFailures)
	s.failureSleep.Store(int64(cfg.FailureSleep))

	s.reg = registry.New(sched, s)
	s.reg.InitWorkerSlots(threadCount)

	schedulerInfo.WithLabelValues(sched.Name()).Set(1)

	return s
}

// Start spawns the worker pool if the service is not already running. A
// no-op if the service is already Running.
func (s *Service) Start() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if State(s.state.Load()) == StateRunning {
		return
	}

	s.stopCh = make(chan struct{})
	s.state.Store(int32(StateRunning))

	s.wg.Add(s.threadCount)
	for i := 0; i < s.threadCount; i++ {
		go s.workerLoop(i)
	}
	s.logger.Debug("started", "workers", s.threadCount, "scheduler", s.sched.Name())
}

// RequestStop signals every worker to exit at the top of its next
// iteration. Does not block; call WaitForStop to join.
func (s *Service) RequestStop() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if State(s.state.Load()) != StateRunning {
		return
	}
	s.state.Store(int32(StateStopping))
	close(s.stopCh)
}

// WaitForStop blocks until every worker goroutine has exited and returns
// the aggregate of any worker panics or epoch-wait timeouts recorded
// during this run (nil if none occurred).
func (s *Service) WaitForStop() error {
	s.wg.Wait()
	s.state.Store(int32(StateStopped))

	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()
	return s.shutdownErr.ErrorOrNil()
}

// Stop is RequestStop followed by WaitForStop.
func (s *Service) Stop() error {
	s.RequestStop()
	return s.WaitForStop()
}

// IsRunning reports whether the worker pool is currently active.
func (s *Service) IsRunning() bool {
	return State(s.state.Load()) == StateRunning
}

// AddGroup registers g. See group.OperationStatus.
func (s *Service) AddGroup(g group.Group) group.OperationStatus {
	status := s.reg.Add(g)
	groupsRegistered.Set(float64(s.reg.GroupCount()))
	return status
}

// RemoveGroup unregisters g. This does not wait for worker quiescence;
// use NotifyGroupDestroyed instead when the caller is about to free g.
func (s *Service) RemoveGroup(g group.Group) group.OperationStatus {
	status := s.reg.Remove(g)
	groupsRegistered.Set(float64(s.reg.GroupCount()))
	return status
}

// Clear unregisters every group and resets the scheduler's learned state.
func (s *Service) Clear() {
	s.reg.Clear()
	groupsRegistered.Set(0)
}

// GroupCount returns the number of currently registered groups.
func (s *Service) GroupCount() int {
	return s.reg.GroupCount()
}

// ThreadCount returns the resolved (never-zero) worker count.
func (s *Service) ThreadCount() int {
	return s.threadCount
}

// MaxSoftFailures returns the current soft-failure park threshold.
func (s *Service) MaxSoftFailures() uint64 {
	return s.maxSoftFailures.Load()
}

// SetMaxSoftFailures updates the soft-failure park threshold.
func (s *Service) SetMaxSoftFailures(n uint64) {
	s.maxSoftFailures.Store(n)
}

// FailureSleep returns the legacy failure-sleep hint. Unused by the
// worker loop; see Config.FailureSleep.
func (s *Service) FailureSleep() time.Duration {
	return time.Duration(s.failureSleep.Load())
}

// SetFailureSleep updates the legacy failure-sleep hint.
func (s *Service) SetFailureSleep(d time.Duration) {
	s.failureSleep.Store(int64(d))
}

// SchedulerName returns the active scheduler's Name(), e.g. for
// introspection and metrics labels.
func (s *Service) SchedulerName() string {
	return s.sched.Name()
}

// NotifyGroupDestroyed removes g from the registry and, if the service is
// running, blocks until every worker has observably moved past it. Call
// this before freeing a Group implementation; see the package-level
// invariants in registry.Registry.NotifyGroupDestroyed.
//
// If the wait times out, the returned error names every stuck worker and
// is also folded into the aggregate WaitForStop/Stop report.
func (s *Service) NotifyGroupDestroyed(g group.Group) error {
	running := s.IsRunning()
	if running {
		epochWaitsTotal.Inc()
	}
	err := s.reg.NotifyGroupDestroyed(g, running)
	if err != nil {
		err = fmt.Errorf("notify group destroyed: %w", err)
		s.recordShutdownError(err)
		s.logger.Error("epoch wait timed out", "error", err)
	}
	groupsRegistered.Set(float64(s.reg.GroupCount()))
	return err
}

// NotifyWorkAvailable implements group.ConcurrencyProvider. Groups call
// this when a contract transitions to ready; it must not block, and it
// isn't: the send is non-blocking and drops the wakeup if a worker is
// already about to check for work.
func (s *Service) NotifyWorkAvailable(group.Group) {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

// parkIdle waits up to timeout for a wakeup or shutdown, whichever comes
// first, mirroring the original's CV wait with a bounded timeout so a
// notify can always cut the park short.
func (s *Service) parkIdle(timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.wakeCh:
	case <-s.stopCh:
	case <-timer.C:
	}
}
