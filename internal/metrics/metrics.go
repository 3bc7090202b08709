// Package metrics records how a collection run went in a per-run Prometheus
// registry. The registry is written into the dump as a textfile, so support
// can see at a glance which steps and commands failed.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"supportdump/internal/executor"
)

const namespace = "supportdump"

// Recorder holds the run's collectors.
type Recorder struct {
	registry        *prometheus.Registry
	steps           *prometheus.CounterVec
	commands        *prometheus.CounterVec
	commandDuration prometheus.Histogram
	warnings        prometheus.Counter
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Collection steps by outcome.",
		}, []string{"step", "result"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "External commands by outcome.",
		}, []string{"result"}),
		commandDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Wall-clock duration of external commands.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warnings_total",
			Help:      "Non-fatal problems logged during the run.",
		}),
	}
	r.registry.MustRegister(r.steps, r.commands, r.commandDuration, r.warnings)
	return r
}

// ObserveCommand records one command result. It matches executor.Observer.
func (r *Recorder) ObserveCommand(res executor.Result) {
	result := "ok"
	switch {
	case res.TimedOut:
		result = "timeout"
	case !res.Success():
		result = "failed"
	}
	r.commands.WithLabelValues(result).Inc()
	r.commandDuration.Observe(res.Duration.Seconds())
}

// ObserveStep records the outcome of one orchestrator step.
func (r *Recorder) ObserveStep(step string, err error) {
	result := "ok"
	if err != nil {
		result = "failed"
	}
	r.steps.WithLabelValues(step, result).Inc()
}

// Warn counts one warning.
func (r *Recorder) Warn() {
	r.warnings.Inc()
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// WriteTextfile writes all metrics in the text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
