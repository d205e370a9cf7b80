// Package testgroup provides a minimal group.Group implementation used
// by this module's own tests and by the demo CLI's synthetic workload.
// It is not part of the public API: real applications are expected to
// bring their own WorkContractGroup-equivalent container, per §6.2 of
// the design this core implements.
//
// The ready queue is backed by eapache/channels.InfiniteChannel, the
// same non-blocking fan-in primitive the teacher codebase uses for its
// block-processing pipeline (worker/storage/committee), rather than a
// mutex-guarded slice.
package testgroup

import (
	"sync/atomic"

	"github.com/eapache/channels"

	"github.com/entropyengine/workservice/group"
)

// Func is a contract body: an arbitrary unit of work.
type Func func()

type contract struct {
	fn Func
}

func (c *contract) Valid() bool { return c != nil }

// Group is a reference Group implementation holding two independent
// FIFOs: one for worker-executable contracts, one for main-thread-only
// contracts.
type Group struct {
	name string

	ready     *channels.InfiniteChannel
	mainReady *channels.InfiniteChannel

	executing atomic.Int64
	stopping  atomic.Bool

	provider atomic.Pointer[group.ConcurrencyProvider]
}

// New constructs an empty Group. name is used only for logging/debugging
// by callers; the core never inspects it.
func New(name string) *Group {
	return &Group{
		name:      name,
		ready:     channels.NewInfiniteChannel(),
		mainReady: channels.NewInfiniteChannel(),
	}
}

// Name returns the group's debug name.
func (g *Group) Name() string { return g.name }

// Submit enqueues fn as a worker-executable contract and wakes the
// service's concurrency provider, if one is installed.
func (g *Group) Submit(fn Func) {
	g.ready.In() <- &contract{fn: fn}
	g.notify()
}

// SubmitMainThread enqueues fn as a main-thread-only contract.
func (g *Group) SubmitMainThread(fn Func) {
	g.mainReady.In() <- &contract{fn: fn}
}

// Stop marks the group as refusing new execution. Already-enqueued
// contracts are not discarded; ReadyCount simply stops being serviced by
// workers, which treat a stopping group as a soft failure.
func (g *Group) Stop() { g.stopping.Store(true) }

func (g *Group) notify() {
	if p := g.provider.Load(); p != nil {
		(*p).NotifyWorkAvailable(g)
	}
}

func (g *Group) ReadyCount() int      { return g.ready.Len() }
func (g *Group) ExecutingCount() int  { return int(g.executing.Load()) }
func (g *Group) IsStopping() bool     { return g.stopping.Load() }
func (g *Group) HasMainThreadWork() bool {
	return g.mainReady.Len() > 0
}

func (g *Group) SelectForExecution() (group.Contract, bool) {
	select {
	case v, ok := <-g.ready.Out():
		if !ok {
			return nil, false
		}
		g.executing.Add(1)
		return v.(*contract), true
	default:
		return nil, false
	}
}

func (g *Group) ExecuteContract(c group.Contract) {
	cc, ok := c.(*contract)
	if !ok || cc.fn == nil {
		return
	}
	cc.fn()
}

func (g *Group) CompleteExecution(group.Contract) {
	g.executing.Add(-1)
}

func (g *Group) ExecuteMainThreadWork(max int) int {
	executed := 0
	// Only the single main-thread caller consumes mainReady, so once Len
	// reports a queued contract a blocking receive is guaranteed to get it.
	for executed < max && g.mainReady.Len() > 0 {
		v, ok := <-g.mainReady.Out()
		if !ok {
			return executed
		}
		if cc, ok := v.(*contract); ok && cc.fn != nil {
			cc.fn()
		}
		executed++
	}
	return executed
}

func (g *Group) SetConcurrencyProvider(p group.ConcurrencyProvider) {
	if p == nil {
		g.provider.Store(nil)
		return
	}
	g.provider.Store(&p)
}
