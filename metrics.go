package workservice

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collectors are package-level and registered at most once per
// process, mirroring worker/storage/committee's prometheusOnce pattern:
// a sync.Once guards prometheus.MustRegister so constructing more than
// one Service in a process (as tests routinely do) never panics on
// duplicate registration.
var (
	metricsOnce sync.Once

	contractsExecutedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "workservice_contracts_executed_total",
		Help: "Total contracts executed by worker goroutines across all services in this process.",
	})
	softFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "workservice_soft_failures_total",
		Help: "Total soft failures observed by workers: no group returned by the scheduler, stopping groups, and lost selection races.",
	})
	contractPanicsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "workservice_contract_panics_total",
		Help: "Total panics recovered from Group.ExecuteContract.",
	})
	groupsRegistered = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "workservice_groups_registered",
		Help: "Current number of registered work groups, summed across all services in this process.",
	})
	epochWaitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "workservice_epoch_waits_total",
		Help: "Total NotifyGroupDestroyed calls that waited for worker quiescence.",
	})
	schedulerInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "workservice_scheduler_info",
		Help: "Constant 1-valued gauge labeled with the name of an active scheduler.",
	}, []string{"name"})

	metricsCollectors = []prometheus.Collector{
		contractsExecutedTotal,
		softFailuresTotal,
		contractPanicsTotal,
		groupsRegistered,
		epochWaitsTotal,
		schedulerInfo,
	}
)

func registerMetrics() {
	metricsOnce.Do(func() {
		prometheus.MustRegister(metricsCollectors...)
	})
}
