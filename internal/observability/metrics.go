package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions   prometheus.Gauge
	ActiveRooms      prometheus.Gauge
	PipelineRuns     *prometheus.CounterVec
	ProviderErrors   *prometheus.CounterVec
	UnknownLanguages prometheus.Counter
	WSMessages       *prometheus.CounterVec
	RoomEvents       *prometheus.CounterVec
	ArtifactsStored  prometheus.Counter
	ArtifactsSwept   prometheus.Counter
	PipelineLatency  prometheus.Histogram

	stages *stageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active tutoring sessions.",
		}),
		ActiveRooms: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of registered realtime rooms.",
		}),
		PipelineRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Response pipeline runs by outcome.",
		}, []string{"outcome"}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Downstream provider errors by service.",
		}, []string{"service"}),
		UnknownLanguages: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unknown_languages_total",
			Help:      "Language resolutions that fell back to the default profile.",
		}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket chat messages by direction and type.",
		}, []string{"direction", "type"}),
		RoomEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_events_total",
			Help:      "Room lifecycle events by type.",
		}, []string{"event"}),
		ArtifactsStored: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_stored_total",
			Help:      "Audio artifacts uploaded to object storage.",
		}),
		ArtifactsSwept: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifacts_swept_total",
			Help:      "Expired audio artifacts deleted by the retention sweeper.",
		}),
		PipelineLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_latency_ms",
			Help:      "End-to-end response pipeline latency in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 3500, 5000, 8000, 15000},
		}),
		stages: newStageWindow(256),
	}
}

// ObserveStage records one pipeline stage duration into both the Prometheus
// histogram (total only) and the sliding perf window.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	ms := float64(d.Milliseconds())
	if stage == StageTotal {
		m.PipelineLatency.Observe(ms)
	}
	m.stages.Observe(stage, ms)
}

func (m *Metrics) ObserveIndicator(name string) {
	m.stages.ObserveIndicator(name)
}

// PerfSnapshot returns latency stats over the recent sample window.
func (m *Metrics) PerfSnapshot() StageSnapshot {
	return m.stages.Snapshot()
}

func (m *Metrics) ResetPerfWindow() {
	m.stages.Reset()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
