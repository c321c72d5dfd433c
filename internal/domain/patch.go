package domain

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// Field: значение частичного обновления, различающее три состояния:
// поле отсутствует (Set=false), явный null (Set=true, Null=true) и переданное значение.
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Some возвращает поле с заданным значением.
func Some[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// Null возвращает поле с явным null.
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

// IsZero нужен для тега omitzero: отсутствующее поле не сериализуется.
func (f Field[T]) IsZero() bool {
	return !f.Set
}

// Present сообщает, что поле передано и не равно null.
func (f Field[T]) Present() bool {
	return f.Set && !f.Null
}

func (f Field[T]) MarshalJSON() ([]byte, error) {
	if !f.Present() {
		return []byte("null"), nil
	}
	return json.Marshal(f.Value)
}

func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		var zero T
		f.Null = true
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(data, &f.Value)
}

// UpdateServiceOrderData: патч заказа. Отсутствующие поля не меняются,
// null очищает необязательные поля.
type UpdateServiceOrderData struct {
	Title          Field[string]      `json:"title,omitzero"`
	Description    Field[string]      `json:"description,omitzero"`
	Client         Field[string]      `json:"client,omitzero"`
	Priority       Field[Priority]    `json:"priority,omitzero"`
	Status         Field[OrderStatus] `json:"status,omitzero"`
	Category       Field[string]      `json:"category,omitzero"`
	Technician     Field[string]      `json:"technician,omitzero"`
	DueDate        Field[time.Time]   `json:"dueDate,omitzero"`
	EstimatedHours Field[int]         `json:"estimatedHours,omitzero"`
	Notes          Field[string]      `json:"notes,omitzero"`
}

// IsEmpty сообщает, что патч не содержит ни одного поля.
func (u UpdateServiceOrderData) IsEmpty() bool {
	return !u.Title.Set && !u.Description.Set && !u.Client.Set && !u.Priority.Set &&
		!u.Status.Set && !u.Category.Set && !u.Technician.Set && !u.DueDate.Set &&
		!u.EstimatedHours.Set && !u.Notes.Set
}

// Validate проверяет патч. Обязательные поля нельзя обнулить или сделать пустыми.
func (u UpdateServiceOrderData) Validate() error {
	var errs []error

	requiredText := []struct {
		field Field[string]
		err   error
	}{
		{u.Title, ErrTitleRequired},
		{u.Description, ErrDescriptionRequired},
		{u.Client, ErrClientRequired},
		{u.Category, ErrCategoryRequired},
	}
	for _, rt := range requiredText {
		if rt.field.Set && (rt.field.Null || strings.TrimSpace(rt.field.Value) == "") {
			errs = append(errs, rt.err)
		}
	}

	if u.Priority.Set && (u.Priority.Null || !u.Priority.Value.Valid()) {
		errs = append(errs, ErrInvalidPriority)
	}
	if u.Status.Set && (u.Status.Null || !u.Status.Value.Valid()) {
		errs = append(errs, ErrInvalidStatus)
	}
	if u.EstimatedHours.Present() && u.EstimatedHours.Value < 0 {
		errs = append(errs, ErrEstimatedHoursNegative)
	}

	return NewValidationError(errs)
}

// Apply накладывает патч на копию заказа и обновляет UpdatedAt.
// ID, CreatedAt и Version не меняются.
func (u UpdateServiceOrderData) Apply(order ServiceOrder, now time.Time) ServiceOrder {
	out := order.Clone()

	if u.Title.Present() {
		out.Title = strings.TrimSpace(u.Title.Value)
	}
	if u.Description.Present() {
		out.Description = strings.TrimSpace(u.Description.Value)
	}
	if u.Client.Present() {
		out.Client = strings.TrimSpace(u.Client.Value)
	}
	if u.Priority.Present() {
		out.Priority = u.Priority.Value
	}
	if u.Status.Present() {
		out.Status = u.Status.Value
	}
	if u.Category.Present() {
		out.Category = strings.TrimSpace(u.Category.Value)
	}
	if u.Technician.Set {
		out.Technician = strings.TrimSpace(u.Technician.Value)
	}
	if u.DueDate.Set {
		if u.DueDate.Null {
			out.DueDate = nil
		} else {
			due := u.DueDate.Value
			out.DueDate = &due
		}
	}
	if u.EstimatedHours.Set {
		if u.EstimatedHours.Null {
			out.EstimatedHours = nil
		} else {
			hours := u.EstimatedHours.Value
			out.EstimatedHours = &hours
		}
	}
	if u.Notes.Set {
		out.Notes = u.Notes.Value
	}

	out.UpdatedAt = now
	return out
}
