package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PipelineMetrics holds all Prometheus metrics for the stream processor.
type PipelineMetrics struct {
	EventsTotal        *prometheus.CounterVec
	PublishErrorsTotal *prometheus.CounterVec
	FetchErrorsTotal   prometheus.Counter
	SnapshotsTotal     prometheus.Counter
	CommitsTotal       prometheus.Counter
}

// NewPipelineMetrics initializes and registers the metrics with the default
// registry.
func NewPipelineMetrics() *PipelineMetrics {
	return NewPipelineMetricsWith(prometheus.DefaultRegisterer)
}

// NewPipelineMetricsWith registers the metrics with a caller-supplied
// registry. Tests use this to avoid duplicate registration panics.
func NewPipelineMetricsWith(reg prometheus.Registerer) *PipelineMetrics {
	factory := promauto.With(reg)
	return &PipelineMetrics{
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "login_processor",
			Subsystem: "pipeline",
			Name:      "events_total",
			Help:      "Total number of consumed events by status.",
		}, []string{"status"}), // status: processed, error_parse
		PublishErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "login_processor",
			Subsystem: "egress",
			Name:      "publish_errors_total",
			Help:      "Total number of failed delivery attempts by output topic.",
		}, []string{"topic"}),
		FetchErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "login_processor",
			Subsystem: "pipeline",
			Name:      "fetch_errors_total",
			Help:      "Total number of failed input stream polls.",
		}),
		SnapshotsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "login_processor",
			Subsystem: "pipeline",
			Name:      "snapshots_total",
			Help:      "Total number of aggregate snapshots emitted.",
		}),
		CommitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "login_processor",
			Subsystem: "pipeline",
			Name:      "commits_total",
			Help:      "Total number of successful offset commits.",
		}),
	}
}
