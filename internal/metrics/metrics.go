package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the Prometheus instrumentation of capture and encoding.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Capture metrics
	ChunksRead    prometheus.Counter
	BytesCaptured prometheus.Counter
	ReadErrors    prometheus.Counter
	SinkErrors    prometheus.Counter
	Sessions      prometheus.Counter
	State         prometheus.Gauge

	// Encode metrics
	EncodeJobs     *prometheus.CounterVec
	EncodeDuration prometheus.Histogram
}

// New creates all metrics on a fresh registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ChunksRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "pcmcapture_chunks_read_total",
			Help: "Total number of successful device reads",
		}),
		BytesCaptured: factory.NewCounter(prometheus.CounterOpts{
			Name: "pcmcapture_bytes_captured_total",
			Help: "Total number of PCM bytes written to raw sinks",
		}),
		ReadErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "pcmcapture_read_errors_total",
			Help: "Total number of transient device read errors",
		}),
		SinkErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "pcmcapture_sink_errors_total",
			Help: "Total number of raw sink failures that ended a capture",
		}),
		Sessions: factory.NewCounter(prometheus.CounterOpts{
			Name: "pcmcapture_sessions_started_total",
			Help: "Total number of capture sessions started",
		}),
		State: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pcmcapture_recorder_state",
			Help: "Current controller state (0 not ready, 1 ready, 2 recording, 3 stopped)",
		}),

		EncodeJobs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pcmcapture_encode_jobs_total",
			Help: "Total number of container encode jobs by result",
		}, []string{"result"}),
		EncodeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pcmcapture_encode_duration_seconds",
			Help:    "Time spent building containers",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordChunk records one successful device read of n bytes
func (m *Metrics) RecordChunk(n int) {
	if m == nil {
		return
	}
	m.ChunksRead.Inc()
	m.BytesCaptured.Add(float64(n))
}

// RecordReadError increments the transient read error counter
func (m *Metrics) RecordReadError() {
	if m == nil {
		return
	}
	m.ReadErrors.Inc()
}

// RecordSinkError increments the sink failure counter
func (m *Metrics) RecordSinkError() {
	if m == nil {
		return
	}
	m.SinkErrors.Inc()
}

// RecordSessionStarted increments the sessions counter
func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}
	m.Sessions.Inc()
}

// SetState publishes the controller state as its ordinal
func (m *Metrics) SetState(state int) {
	if m == nil {
		return
	}
	m.State.Set(float64(state))
}

// RecordEncode records the outcome and duration of one encode job
func (m *Metrics) RecordEncode(ok bool, durationSeconds float64) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.EncodeJobs.WithLabelValues(result).Inc()
	m.EncodeDuration.Observe(durationSeconds)
}
