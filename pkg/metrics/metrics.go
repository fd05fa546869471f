package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Recorder metrics
	Recordings       *prometheus.CounterVec
	RecordedDuration prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests *prometheus.CounterVec
	TranscriptionLatency  prometheus.Histogram

	// Patient store metrics
	StoreOperations      *prometheus.CounterVec
	StoreOffline         prometheus.Gauge
	ConcurrentMutations  prometheus.Counter
	MirrorWrites         *prometheus.CounterVec
	RemoteRequestLatency *prometheus.HistogramVec

	// Patient event metrics
	EventsPublished *prometheus.CounterVec
	EventsConsumed  *prometheus.CounterVec

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
	DatabaseLatency    *prometheus.HistogramVec
}

// NewMetrics creates all application metrics and registers them with reg.
// A nil reg yields unregistered collectors, which is what tests want.
func NewMetrics(namespace, subsystem string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Recordings: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "recordings_total",
			Help:      "Total number of recording sessions by outcome",
		}, []string{"outcome"}),
		RecordedDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "recorded_duration_seconds",
			Help:      "Length of finished recordings",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300},
		}),

		TranscriptionRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transcription_requests_total",
			Help:      "Total number of transcription submissions",
		}, []string{"status"}),
		TranscriptionLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transcription_duration_seconds",
			Help:      "Time spent waiting for the transcription service",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		}),

		StoreOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_operations_total",
			Help:      "Total number of patient store mutations",
		}, []string{"operation", "status"}),
		StoreOffline: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_offline",
			Help:      "1 while the patient store is serving from its local mirror",
		}),
		ConcurrentMutations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "store_concurrent_mutations_total",
			Help:      "Mutations applied over a record that changed while the remote write was in flight",
		}),
		MirrorWrites: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "mirror_writes_total",
			Help:      "Total number of local mirror writes",
		}, []string{"driver", "status"}),
		RemoteRequestLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "remote_request_duration_seconds",
			Help:      "Duration of patient API requests",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"operation"}),

		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_published_total",
			Help:      "Total number of patient change events published",
		}, []string{"type", "status"}),
		EventsConsumed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_consumed_total",
			Help:      "Total number of patient change events received by the audit worker",
		}, []string{"type"}),

		DatabaseOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operations_total",
			Help:      "Total number of database operations",
		}, []string{"operation", "status"}),
		DatabaseLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "database_operation_duration_seconds",
			Help:      "Duration of database operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
	}
}

// New creates metrics that are not registered anywhere.
func New(namespace string) *Metrics {
	return NewMetrics(namespace, "", nil)
}

// Status labels an outcome for the *_total counters.
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
