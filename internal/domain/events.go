package domain

import "time"

// AggregateServiceOrder: тип агрегата в outbox-сообщениях.
const AggregateServiceOrder = "service_order"

// Типы интеграционных событий сервисного заказа.
const (
	EventOrderCreated       = "order.created"
	EventOrderUpdated       = "order.updated"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderDeleted       = "order.deleted"
)

// OrderEventPayload: полезная нагрузка outbox-сообщения о заказе.
type OrderEventPayload struct {
	OrderID        string        `json:"order_id"`
	Status         OrderStatus   `json:"status,omitempty"`
	PreviousStatus OrderStatus   `json:"previous_status,omitempty"`
	Order          *ServiceOrder `json:"order,omitempty"`
	OccurredAt     time.Time     `json:"occurred_at"`
}
