package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/entropyengine/workservice/deadletter"
	"github.com/entropyengine/workservice/internal/testgroup"
)

// flakyGroup wraps a testgroup.Group to demonstrate the optional
// dead-letter queue end to end: it tracks consecutive panics per logical
// task ID and, on the second panic in a row for the same ID, pushes an
// Entry before letting the panic continue unwinding into the core's own
// recovery in Service.executeContract. The core never sees or depends on
// this bookkeeping; it lives entirely on the Group side, per a Group
// implementation's freedom to opt into durable failure handling.
type flakyGroup struct {
	*testgroup.Group

	dlq *deadletter.Queue

	mu         sync.Mutex
	panicCount map[string]int
}

func newFlakyGroup(name string, dlq *deadletter.Queue) *flakyGroup {
	return &flakyGroup{
		Group:      testgroup.New(name),
		dlq:        dlq,
		panicCount: make(map[string]int),
	}
}

// SubmitTask enqueues fn under taskID. If fn panics twice in a row for
// the same taskID, the second panic is recorded to the dead-letter queue
// before being re-raised.
func (g *flakyGroup) SubmitTask(taskID string, fn func()) {
	g.Group.Submit(func() {
		defer func() {
			if r := recover(); r != nil {
				g.mu.Lock()
				g.panicCount[taskID]++
				n := g.panicCount[taskID]
				g.mu.Unlock()

				if n >= 2 && g.dlq != nil {
					entry := deadletter.Entry{
						GroupName: g.Name(),
						Reason:    fmt.Sprintf("panic on attempt %d: %v", n, r),
						FailedAt:  time.Now(),
					}
					if putErr := g.dlq.Put(taskID, entry); putErr != nil {
						logger.Error("failed to persist dead-lettered contract", "task", taskID, "error", putErr)
					} else {
						logger.Info("dead-lettered contract", "task", taskID)
					}
				}
				panic(r)
			}

			g.mu.Lock()
			delete(g.panicCount, taskID)
			g.mu.Unlock()
		}()
		fn()
	})
}
