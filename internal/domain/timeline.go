package domain

import "time"

// Типы событий истории заказа.
const (
	TimelineOrderCreated       = "OrderCreated"
	TimelineOrderUpdated       = "OrderUpdated"
	TimelineOrderStatusChanged = "OrderStatusChanged"
	TimelineOrderDeleted       = "OrderDeleted"
)

// TimelineEvent описывает событие в истории сервисного заказа.
type TimelineEvent struct {
	OrderID  string    `json:"order_id"`
	Type     string    `json:"type"`
	Reason   string    `json:"reason,omitempty"`
	Occurred time.Time `json:"occurred"`
}
