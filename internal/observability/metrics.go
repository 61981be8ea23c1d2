package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	dispatchTotal    *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
	commandTotal     *prometheus.CounterVec
	triggerTotal     *prometheus.CounterVec

	outboundTotal *prometheus.CounterVec

	delegateTotal    *prometheus.CounterVec
	delegateDuration *prometheus.HistogramVec

	artifactTotal *prometheus.CounterVec

	sessionLoadDuration prometheus.Histogram
	sessionSaveDuration prometheus.Histogram
	sessionsExpired     prometheus.Counter

	webhookTotal    *prometheus.CounterVec
	webhookDuration *prometheus.HistogramVec

	activeLanes   prometheus.Gauge
	laneTaskTotal *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			dispatchTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "dispatch_total",
					Help: "Total dispatched inbound events by outcome.",
				},
				[]string{"outcome"},
			),
			dispatchDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "dispatch_duration_seconds",
					Help:    "Dispatch decision duration in seconds (excluding delivery).",
					Buckets: prometheus.DefBuckets,
				},
			),
			commandTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "command_total",
					Help: "Total structured commands handled by kind.",
				},
				[]string{"kind"},
			),
			triggerTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "trigger_total",
					Help: "Total topical triggers fired by category.",
				},
				[]string{"category"},
			),
			outboundTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "outbound_send_total",
					Help: "Total outbound provider sends by kind and status.",
				},
				[]string{"kind", "status"},
			),
			delegateTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "delegate_calls_total",
					Help: "Total delegate responder calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			delegateDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "delegate_call_duration_seconds",
					Help:    "Delegate responder call duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			artifactTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "artifact_total",
					Help: "Total generated artifacts and lookups by kind and status.",
				},
				[]string{"kind", "status"},
			),
			sessionLoadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_load_duration_seconds",
					Help:    "Session load duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			sessionSaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_save_duration_seconds",
					Help:    "Session save duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			sessionsExpired: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "sessions_expired_total",
					Help: "Total sessions purged after the inactivity TTL.",
				},
			),
			webhookTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "webhook_requests_total",
					Help: "Total webhook requests by method and status code.",
				},
				[]string{"method", "status"},
			),
			webhookDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "webhook_request_duration_seconds",
					Help:    "Webhook request duration in seconds by method.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"method"},
			),
			activeLanes: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_lanes",
					Help: "Current number of contact lanes with queued or running tasks.",
				},
			),
			laneTaskTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "lane_task_total",
					Help: "Total lane tasks completed by status.",
				},
				[]string{"status"},
			),
		}

		prometheus.MustRegister(
			m.dispatchTotal,
			m.dispatchDuration,
			m.commandTotal,
			m.triggerTotal,
			m.outboundTotal,
			m.delegateTotal,
			m.delegateDuration,
			m.artifactTotal,
			m.sessionLoadDuration,
			m.sessionSaveDuration,
			m.sessionsExpired,
			m.webhookTotal,
			m.webhookDuration,
			m.activeLanes,
			m.laneTaskTotal,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

func RecordDispatch(outcome string, duration time.Duration) {
	m := getMetrics()
	m.dispatchTotal.WithLabelValues(outcome).Inc()
	m.dispatchDuration.Observe(duration.Seconds())
}

func RecordCommand(kind string) {
	getMetrics().commandTotal.WithLabelValues(kind).Inc()
}

func RecordTrigger(category string) {
	getMetrics().triggerTotal.WithLabelValues(category).Inc()
}

func RecordOutbound(kind string, success bool) {
	getMetrics().outboundTotal.WithLabelValues(kind, statusLabel(success)).Inc()
}

func RecordDelegateCall(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	m.delegateTotal.WithLabelValues(provider, statusLabel(success)).Inc()
	m.delegateDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func RecordArtifact(kind string, success bool) {
	getMetrics().artifactTotal.WithLabelValues(kind, statusLabel(success)).Inc()
}

func RecordSessionLoad(duration time.Duration) {
	getMetrics().sessionLoadDuration.Observe(duration.Seconds())
}

func RecordSessionSave(duration time.Duration) {
	getMetrics().sessionSaveDuration.Observe(duration.Seconds())
}

func RecordSessionsExpired(count int64) {
	if count <= 0 {
		return
	}
	getMetrics().sessionsExpired.Add(float64(count))
}

func RecordWebhookRequest(method string, status string, duration time.Duration) {
	m := getMetrics()
	m.webhookTotal.WithLabelValues(method, status).Inc()
	m.webhookDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func SetActiveLanes(count int) {
	getMetrics().activeLanes.Set(float64(count))
}

func RecordLaneTask(success bool) {
	getMetrics().laneTaskTotal.WithLabelValues(statusLabel(success)).Inc()
}
