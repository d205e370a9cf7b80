// Command workservice-demo drives a Service against a small set of
// synthetic work groups so the scheduling strategies and main-thread
// pump can be observed end to end. Not part of the library's public API.
package main

import (
	"fmt"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	workservice "github.com/entropyengine/workservice"
	"github.com/entropyengine/workservice/deadletter"
	"github.com/entropyengine/workservice/internal/introspect"
	"github.com/entropyengine/workservice/internal/logging"
	"github.com/entropyengine/workservice/scheduler"
)

const (
	cfgThreads        = "threads"
	cfgGroups         = "groups"
	cfgScheduler      = "scheduler"
	cfgDuration       = "duration"
	cfgLogLevel       = "log.level"
	cfgGRPCAddr       = "grpc.addr"
	cfgMaxSticky      = "scheduler.max_consecutive_executions"
	cfgUpdateCycle    = "scheduler.update_cycle_interval"
	cfgDeadLetterPath = "dead_letter.path"
	cfgFlakyRate      = "dead_letter.flaky_rate"
)

var (
	rootFlags = flag.NewFlagSet("", flag.ContinueOnError)

	logger = logging.GetLogger("cmd/workservice-demo")

	rootCmd = &cobra.Command{
		Use:   "workservice-demo",
		Short: "drive a synthetic workload through the workservice concurrency core",
		Run:   doRun,
	}
)

func doRun(cmd *cobra.Command, args []string) {
	logging.SetLevel(viper.GetString(cfgLogLevel))

	cfg := workservice.DefaultConfig()
	cfg.ThreadCount = viper.GetInt(cfgThreads)
	cfg.SchedulerConfig.MaxConsecutiveExecutions = viper.GetInt(cfgMaxSticky)
	cfg.SchedulerConfig.UpdateCycleInterval = viper.GetUint64(cfgUpdateCycle)

	sched, err := buildScheduler(viper.GetString(cfgScheduler), cfg.SchedulerConfig)
	if err != nil {
		logger.Error("failed to build scheduler", "error", err)
		os.Exit(1)
	}

	svc := workservice.New(cfg, sched)

	var dlq *deadletter.Queue
	if path := viper.GetString(cfgDeadLetterPath); path != "" {
		dlq, err = deadletter.Open(path)
		if err != nil {
			logger.Error("failed to open dead-letter queue", "error", err)
			os.Exit(1)
		}
		defer dlq.Close()
	}

	groupCount := viper.GetInt(cfgGroups)
	groups := make([]*flakyGroup, groupCount)
	var produced atomic.Int64
	var executed atomic.Int64

	for i := 0; i < groupCount; i++ {
		g := newFlakyGroup(fmt.Sprintf("group-%d", i), dlq)
		groups[i] = g
		if status := svc.AddGroup(g); status != 0 {
			logger.Warn("unexpected add status", "group", i, "status", status)
		}
	}

	svc.Start()

	if addr := viper.GetString(cfgGRPCAddr); addr != "" {
		grpcSrv, boundAddr, err := introspect.Serve(addr, svc)
		if err != nil {
			logger.Error("failed to start introspection service", "error", err)
		} else {
			logger.Info("introspection service listening", "address", boundAddr.String())
			defer grpcSrv.GracefulStop()
		}
	}

	// flakyRate of submissions target one of a handful of task IDs whose
	// body always panics, so the same taskID panics repeatedly in a row
	// and demonstrates the dead-letter queue's panic-recovery path end to
	// end when cfgDeadLetterPath is set. With dlq nil this is a no-op;
	// the panics still exercise the core's own recovery and metrics.
	flakyRate := viper.GetFloat64(cfgFlakyRate)
	stopProducing := make(chan struct{})
	go func() {
		rng := rand.New(rand.NewSource(1))
		var seq int64
		for {
			select {
			case <-stopProducing:
				return
			default:
			}
			g := groups[rng.Intn(len(groups))]
			if rng.Float64() < flakyRate {
				taskID := fmt.Sprintf("%s-flaky-%d", g.Name(), seq%5)
				g.SubmitTask(taskID, func() { panic("synthetic contract failure") })
			} else {
				g.SubmitTask(fmt.Sprintf("%s-ok-%d", g.Name(), seq), func() { executed.Add(1) })
			}
			seq++
			produced.Add(1)
			time.Sleep(time.Millisecond)
		}
	}()

	duration := viper.GetDuration(cfgDuration)
	logger.Info("running", "duration", duration, "scheduler", sched.Name(), "threads", svc.ThreadCount())
	time.Sleep(duration)

	close(stopProducing)
	if stopErr := svc.Stop(); stopErr != nil {
		logger.Warn("shutdown reported diagnostics", "error", stopErr)
	}

	summary := fmt.Sprintf("produced=%d executed=%d groups=%d scheduler=%s",
		produced.Load(), executed.Load(), svc.GroupCount(), sched.Name())
	if dlq != nil {
		if n, lenErr := dlq.Len(); lenErr == nil {
			summary += fmt.Sprintf(" dead_lettered=%d", n)
		}
	}
	fmt.Println(summary)
}

func buildScheduler(name string, cfg scheduler.Config) (scheduler.Scheduler, error) {
	switch name {
	case "direct":
		return scheduler.NewDirect(cfg), nil
	case "spinning-direct":
		return scheduler.NewSpinningDirect(cfg), nil
	case "round-robin":
		return scheduler.NewRoundRobin(cfg), nil
	case "adaptive":
		return scheduler.NewAdaptive(cfg), nil
	case "random":
		return scheduler.NewRandom(cfg), nil
	default:
		return nil, fmt.Errorf("unknown scheduler %q", name)
	}
}

func init() {
	rootFlags.Int(cfgThreads, 4, "worker thread count (0 = hardware concurrency)")
	rootFlags.Int(cfgGroups, 3, "number of synthetic work groups")
	rootFlags.String(cfgScheduler, "adaptive", "scheduler strategy: direct, spinning-direct, round-robin, adaptive, random")
	rootFlags.Duration(cfgDuration, 5*time.Second, "how long to run before stopping")
	rootFlags.String(cfgLogLevel, "info", "log level: trace, debug, info, warn, error")
	rootFlags.String(cfgGRPCAddr, "", "if set, serve the read-only introspection service on this address")
	rootFlags.Int(cfgMaxSticky, 8, "Adaptive: max consecutive executions before re-ranking")
	rootFlags.Uint64(cfgUpdateCycle, 16, "Adaptive: ranking refresh cadence")
	rootFlags.String(cfgDeadLetterPath, "", "if set, open a badger-backed dead-letter queue at this path and demonstrate the panic-recovery path")
	rootFlags.Float64(cfgFlakyRate, 0.02, "fraction of submitted contracts that deliberately panic, to exercise dead-lettering")

	rootCmd.Flags().AddFlagSet(rootFlags)
	_ = viper.BindPFlags(rootFlags)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}
