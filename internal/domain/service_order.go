package domain

import (
	"strings"
	"time"
)

// Priority: срочность выполнения сервисного заказа.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Valid сообщает, входит ли значение в допустимый набор приоритетов.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	default:
		return false
	}
}

// OrderStatus описывает жизненный цикл сервисного заказа.
type OrderStatus string

const (
	// OrderStatusPending: заказ создан и ожидает взятия в работу.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusInProgress: техник выполняет работы.
	OrderStatusInProgress OrderStatus = "in_progress"
	// OrderStatusCompleted: работы завершены.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled: заказ отменён.
	OrderStatusCancelled OrderStatus = "cancelled"
)

// OrderStatuses перечисляет статусы в порядке жизненного цикла.
var OrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusInProgress,
	OrderStatusCompleted,
	OrderStatusCancelled,
}

// Valid сообщает, является ли статус известным.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusInProgress, OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// ServiceOrder: единица запрошенной работы, отслеживаемая от создания до завершения.
type ServiceOrder struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	Client      string      `json:"client"`
	Priority    Priority    `json:"priority"`
	Status      OrderStatus `json:"status"`
	Category    string      `json:"category"`
	Technician  string      `json:"technician,omitempty"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
	DueDate     *time.Time  `json:"dueDate,omitempty"`
	// EstimatedHours: неотрицательная оценка трудоёмкости; nil означает «не задано».
	EstimatedHours *int   `json:"estimatedHours,omitempty"`
	Notes          string `json:"notes,omitempty"`
	// Version используется для optimistic locking при сохранении.
	Version int64 `json:"version"`
}

// Clone возвращает копию заказа без общих указателей с оригиналом.
func (o ServiceOrder) Clone() ServiceOrder {
	if o.DueDate != nil {
		due := *o.DueDate
		o.DueDate = &due
	}
	if o.EstimatedHours != nil {
		hours := *o.EstimatedHours
		o.EstimatedHours = &hours
	}
	return o
}

// Matches проверяет регистронезависимое вхождение query в title, client или description.
// Пустой запрос совпадает с любым заказом.
func (o ServiceOrder) Matches(query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)
	return strings.Contains(strings.ToLower(o.Title), q) ||
		strings.Contains(strings.ToLower(o.Client), q) ||
		strings.Contains(strings.ToLower(o.Description), q)
}

// ValidateInvariants проверяет инварианты сохранённого заказа.
func (o *ServiceOrder) ValidateInvariants() []error {
	var errs []error

	if o.ID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	errs = append(errs, validateRequired(o.Title, o.Description, o.Client, o.Category)...)
	if !o.Priority.Valid() {
		errs = append(errs, ErrInvalidPriority)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrInvalidStatus)
	}
	if o.EstimatedHours != nil && *o.EstimatedHours < 0 {
		errs = append(errs, ErrEstimatedHoursNegative)
	}
	if o.UpdatedAt.Before(o.CreatedAt) {
		errs = append(errs, ErrTimestampsInconsistent)
	}

	return errs
}

// CreateServiceOrderData: поля, которые клиент передаёт при создании заказа.
type CreateServiceOrderData struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Client         string     `json:"client"`
	Priority       Priority   `json:"priority"`
	Category       string     `json:"category"`
	Technician     string     `json:"technician,omitempty"`
	DueDate        *time.Time `json:"dueDate,omitempty"`
	EstimatedHours *int       `json:"estimatedHours,omitempty"`
	Notes          string     `json:"notes,omitempty"`
}

// Validate возвращает *ValidationError со всеми нарушенными правилами или nil.
func (d CreateServiceOrderData) Validate() error {
	errs := validateRequired(d.Title, d.Description, d.Client, d.Category)
	if !d.Priority.Valid() {
		errs = append(errs, ErrInvalidPriority)
	}
	if d.EstimatedHours != nil && *d.EstimatedHours < 0 {
		errs = append(errs, ErrEstimatedHoursNegative)
	}
	return NewValidationError(errs)
}

// NewServiceOrder собирает новый заказ: статус pending, createdAt == updatedAt == now.
func NewServiceOrder(id string, data CreateServiceOrderData, now time.Time) ServiceOrder {
	order := ServiceOrder{
		ID:             id,
		Title:          strings.TrimSpace(data.Title),
		Description:    strings.TrimSpace(data.Description),
		Client:         strings.TrimSpace(data.Client),
		Priority:       data.Priority,
		Status:         OrderStatusPending,
		Category:       strings.TrimSpace(data.Category),
		Technician:     strings.TrimSpace(data.Technician),
		CreatedAt:      now,
		UpdatedAt:      now,
		DueDate:        data.DueDate,
		EstimatedHours: data.EstimatedHours,
		Notes:          data.Notes,
	}
	return order.Clone()
}

func validateRequired(title, description, client, category string) []error {
	var errs []error
	if strings.TrimSpace(title) == "" {
		errs = append(errs, ErrTitleRequired)
	}
	if strings.TrimSpace(description) == "" {
		errs = append(errs, ErrDescriptionRequired)
	}
	if strings.TrimSpace(client) == "" {
		errs = append(errs, ErrClientRequired)
	}
	if strings.TrimSpace(category) == "" {
		errs = append(errs, ErrCategoryRequired)
	}
	return errs
}
