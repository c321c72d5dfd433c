package metrics

import "github.com/prometheus/client_golang/prometheus"

// CleanupMetrics описывает фоновую очистку отозванных токенов.
type CleanupMetrics struct {
	runs        *prometheus.CounterVec
	deleted     prometheus.Counter
	lastDeleted prometheus.Gauge
}

// NewCleanupMetrics регистрирует метрики в registerer (nil: DefaultRegisterer).
func NewCleanupMetrics(registerer prometheus.Registerer) *CleanupMetrics {
	return &CleanupMetrics{
		runs: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "serviceflow_revocation_cleanup_runs_total",
			Help: "Total number of revoked token cleanup runs grouped by result.",
		}, "result"),
		deleted: registerCounter(registerer, prometheus.CounterOpts{
			Name: "serviceflow_revocation_cleanup_deleted_total",
			Help: "Total number of deleted expired token revocations.",
		}),
		lastDeleted: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "serviceflow_revocation_cleanup_last_deleted",
			Help: "Number of deleted records during the last cleanup run.",
		}),
	}
}

// RecordRun учитывает завершённый цикл очистки (ok или error).
func (m *CleanupMetrics) RecordRun(result string, deleted int) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(result).Inc()
	if result == "ok" {
		m.lastDeleted.Set(float64(deleted))
	}
}

// AddDeleted увеличивает общий счётчик удалённых записей.
func (m *CleanupMetrics) AddDeleted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.deleted.Add(float64(n))
}
