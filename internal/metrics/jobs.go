package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobTransitions, processorRuns, processorDuration, dispatchQueueDepth) }

var (
	jobTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_job_transitions_total",
			Help: "Job status transitions by target status.",
		},
		[]string{"status"},
	)

	processorRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clip_processor_runs_total",
			Help: "External processor invocations by outcome.",
		},
		[]string{"outcome"}, // completed, launch_error, runtime_error, no_output
	)

	processorDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "clip_processor_duration_seconds",
			Help:    "Wall time of external processor invocations.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 2400},
		},
		[]string{"outcome"},
	)

	dispatchQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "clip_dispatch_queue_depth",
			Help: "Jobs waiting for a free in-process processor slot.",
		},
	)
)

// Processor run outcomes
const (
	OutcomeCompleted    = "completed"
	OutcomeLaunchError  = "launch_error"
	OutcomeRuntimeError = "runtime_error"
	OutcomeNoOutput     = "no_output"
)

// JobTransition counts a job entering status
func JobTransition(status string) {
	jobTransitions.WithLabelValues(norm(status)).Inc()
}

// ObserveProcessorRun records the outcome and duration of one processor run
func ObserveProcessorRun(outcome string, seconds float64) {
	processorRuns.WithLabelValues(norm(outcome)).Inc()
	processorDuration.WithLabelValues(norm(outcome)).Observe(seconds)
}

// SetDispatchQueueDepth reports the number of queued in-process dispatches
func SetDispatchQueueDepth(n int) {
	dispatchQueueDepth.Set(float64(n))
}
