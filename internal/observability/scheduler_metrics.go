package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerCollector exposes component scheduler metrics. It satisfies
// scheduler.ExecutionRecorder.
type SchedulerCollector struct {
	gatherer prometheus.Gatherer

	ComponentRuns        *prometheus.CounterVec
	ComponentRunDuration *prometheus.HistogramVec
}

// NewSchedulerCollector registers scheduler metrics against the provided registerer.
func NewSchedulerCollector(reg prometheus.Registerer) (*SchedulerCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	runs, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_component_runs_total",
		Help: "Component executions, labeled by component and power routine (main or off).",
	}, []string{"component", "routine"}), "scheduler_component_runs_total")
	if err != nil {
		return nil, err
	}

	durations, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduler_component_run_duration_seconds",
		Help:    "Wall-clock duration of one component execution.",
		Buckets: []float64{0.000001, 0.000005, 0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.01},
	}, []string{"component"}), "scheduler_component_run_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &SchedulerCollector{
		gatherer:             gatherer,
		ComponentRuns:        runs,
		ComponentRunDuration: durations,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SchedulerCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveExecution records one component run.
func (c *SchedulerCollector) ObserveExecution(component string, poweredOn bool, d time.Duration) {
	if c == nil {
		return
	}
	routine := "main"
	if !poweredOn {
		routine = "off"
	}
	c.ComponentRuns.WithLabelValues(component, routine).Inc()
	c.ComponentRunDuration.WithLabelValues(component).Observe(d.Seconds())
}
