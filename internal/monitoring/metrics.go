package monitoring

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type collectors struct {
	activeConsultations  prometheus.Gauge
	consultationsEnded   *prometheus.CounterVec
	consultationDuration prometheus.Histogram
	messagesPosted       *prometheus.CounterVec
	notificationPushes   *prometheus.CounterVec
	expiryCorrections    prometheus.Counter
	apiLatency           *prometheus.HistogramVec
	maintenanceRuns      *prometheus.CounterVec
}

func newCollectors(namespace string) *collectors {
	return &collectors{
		activeConsultations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_consultations",
			Help:      "Number of consultations currently in the active state.",
		}),
		consultationsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consultations_ended_total",
			Help:      "Consultations that reached a terminal state, by reason.",
		}, []string{"reason"}),
		consultationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "consultation_duration_seconds",
			Help:      "Observed consultation duration from mutual join to end.",
			Buckets:   prometheus.ExponentialBuckets(60, 2, 8),
		}),
		messagesPosted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consultation_messages_total",
			Help:      "Messages appended to consultation threads, by sender role.",
		}, []string{"role"}),
		notificationPushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_pushes_total",
			Help:      "Best-effort notification deliveries, by result.",
		}, []string{"result"}),
		expiryCorrections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_expiry_corrections_total",
			Help:      "Stale sessions flipped to expired during lazy read-side checks.",
		}),
		apiLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "HTTP request latency by method, route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		maintenanceRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "maintenance_runs_total",
			Help:      "Completed maintenance jobs, by job and result.",
		}, []string{"job", "result"}),
	}
}

func (c *collectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.activeConsultations,
		c.consultationsEnded,
		c.consultationDuration,
		c.messagesPosted,
		c.notificationPushes,
		c.expiryCorrections,
		c.apiLatency,
		c.maintenanceRuns,
	}
}

// AdjustActiveConsultations modifies the live consultation gauge by delta.
func AdjustActiveConsultations(delta int64) {
	module := ensureModule()
	if module == nil || delta == 0 {
		return
	}
	module.metrics.activeConsultations.Add(float64(delta))
}

// RecordConsultationEnded records a terminal transition and its duration.
func RecordConsultationEnded(reason string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	module.metrics.consultationsEnded.WithLabelValues(normalizeLabel(reason)).Inc()
	module.metrics.consultationDuration.Observe(duration.Seconds())
}

// RecordMessagePosted increments the thread message counter for a role.
func RecordMessagePosted(role string) {
	module := ensureModule()
	if module == nil {
		return
	}
	module.metrics.messagesPosted.WithLabelValues(normalizeLabel(role)).Inc()
}

// RecordNotificationPush tracks a best-effort delivery attempt outcome.
func RecordNotificationPush(result string) {
	module := ensureModule()
	if module == nil {
		return
	}
	module.metrics.notificationPushes.WithLabelValues(normalizeLabel(result)).Inc()
}

// RecordExpiryCorrection counts a lazy waiting/active -> expired fix-up.
func RecordExpiryCorrection() {
	module := ensureModule()
	if module == nil {
		return
	}
	module.metrics.expiryCorrections.Inc()
}

// ObserveAPILatency captures the HTTP request latency for the supplied route.
func ObserveAPILatency(method, path, status string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	path = normalizePath(path)
	status = strings.TrimSpace(status)
	if status == "" {
		status = "unknown"
	}
	module.metrics.apiLatency.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordMaintenanceRun records the completion of a maintenance job.
func RecordMaintenanceRun(job, result string) {
	module := ensureModule()
	if module == nil {
		return
	}
	module.metrics.maintenanceRuns.WithLabelValues(normalizeLabel(job), normalizeLabel(result)).Inc()
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	path = strings.ReplaceAll(path, " ", "_")
	if path == "" {
		return "root"
	}
	return path
}
