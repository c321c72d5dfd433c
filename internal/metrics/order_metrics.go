package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Результаты операций для label result.
const (
	ResultOK          = "ok"
	ResultNotFound    = "not_found"
	ResultInvalid     = "invalid"
	ResultConflict    = "conflict"
	ResultError       = "error"
	ResultRejected    = "rejected"
	ResultRateLimited = "rate_limited"
)

// OrderMetrics содержит метрики сервиса заказов и аутентификации.
type OrderMetrics struct {
	operations     *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	statusChanges  *prometheus.CounterVec
	timelineEvents prometheus.Counter
	outboxEvents   prometheus.Counter
	authAttempts   *prometheus.CounterVec
}

// NewOrderMetrics регистрирует метрики в registerer (nil: DefaultRegisterer).
func NewOrderMetrics(registerer prometheus.Registerer) *OrderMetrics {
	return &OrderMetrics{
		operations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "serviceflow_order_operations_total",
			Help: "Total number of service order operations grouped by operation and result.",
		}, "operation", "result"),
		duration: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "serviceflow_order_operation_duration_seconds",
			Help:    "Duration of service order operations in seconds.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, "operation"),
		statusChanges: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "serviceflow_order_status_changes_total",
			Help: "Total number of service order status transitions grouped by target status.",
		}, "status"),
		timelineEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "serviceflow_timeline_events_total",
			Help: "Total number of timeline events recorded.",
		}),
		outboxEvents: registerCounter(registerer, prometheus.CounterOpts{
			Name: "serviceflow_outbox_events_enqueued_total",
			Help: "Total number of events written to the transactional outbox.",
		}),
		authAttempts: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "serviceflow_auth_attempts_total",
			Help: "Total number of authentication attempts grouped by action and result.",
		}, "action", "result"),
	}
}

// ObserveOperation фиксирует результат и длительность операции над заказом.
func (m *OrderMetrics) ObserveOperation(operation, result string, duration time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.duration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordStatusChange увеличивает счётчик переходов в статус.
func (m *OrderMetrics) RecordStatusChange(status string) {
	if m == nil {
		return
	}
	m.statusChanges.WithLabelValues(status).Inc()
}

// RecordTimelineEvent увеличивает счётчик событий timeline.
func (m *OrderMetrics) RecordTimelineEvent() {
	if m == nil {
		return
	}
	m.timelineEvents.Inc()
}

// RecordOutboxEvent увеличивает счётчик событий outbox.
func (m *OrderMetrics) RecordOutboxEvent() {
	if m == nil {
		return
	}
	m.outboxEvents.Inc()
}

// RecordAuth фиксирует попытку sign-in/sign-up/refresh.
func (m *OrderMetrics) RecordAuth(action, result string) {
	if m == nil {
		return
	}
	m.authAttempts.WithLabelValues(action, result).Inc()
}
