package workservice

import (
	"time"

	"github.com/entropyengine/workservice/scheduler"
)

// Config configures a Service at construction time. Unset numeric fields
// fall back to the documented defaults when passed to New.
type Config struct {
	// ThreadCount is the fixed worker goroutine count. 0 means
	// runtime.NumCPU(); any value is otherwise clamped to ≥1.
	ThreadCount int
	// MaxSoftFailures is how many consecutive no-work iterations a worker
	// tolerates before parking instead of yielding. 0 means
	// DefaultMaxSoftFailures.
	MaxSoftFailures uint64
	// FailureSleep is accepted for API compatibility with the original
	// engine's config struct but is not consulted by the worker loop,
	// which parks on a channel instead. Legacy/observability-only.
	FailureSleep time.Duration
	// SchedulerConfig is forwarded to the default Adaptive scheduler when
	// New is called without an explicit scheduler. Its ThreadCount field
	// is overwritten with the resolved thread count.
	SchedulerConfig scheduler.Config
}

// DefaultMaxSoftFailures is used when Config.MaxSoftFailures is zero.
const DefaultMaxSoftFailures uint64 = 64

// DefaultConfig returns a Config with every field set to its documented
// default, scheduled to run with one worker.
func DefaultConfig() Config {
	return Config{
		ThreadCount:     1,
		MaxSoftFailures: DefaultMaxSoftFailures,
		SchedulerConfig: scheduler.DefaultConfig(),
	}
}
