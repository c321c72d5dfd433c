package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateServiceOrderData_UnmarshalDistinguishesAbsentNullValue(t *testing.T) {
	var patch UpdateServiceOrderData
	err := json.Unmarshal([]byte(`{"status":"completed","technician":null,"estimatedHours":0}`), &patch)
	require.NoError(t, err)

	assert.True(t, patch.Status.Present())
	assert.Equal(t, OrderStatusCompleted, patch.Status.Value)

	assert.True(t, patch.Technician.Set)
	assert.True(t, patch.Technician.Null)

	assert.True(t, patch.EstimatedHours.Present())
	assert.Equal(t, 0, patch.EstimatedHours.Value)

	assert.False(t, patch.Title.Set)
	assert.False(t, patch.Notes.Set)
	assert.False(t, patch.IsEmpty())
}

func TestUpdateServiceOrderData_MarshalOmitsAbsent(t *testing.T) {
	patch := UpdateServiceOrderData{
		Status: Some(OrderStatusInProgress),
		Notes:  Null[string](),
	}

	data, err := json.Marshal(patch)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"in_progress","notes":null}`, string(data))
}

func TestUpdateServiceOrderData_Validate(t *testing.T) {
	tests := []struct {
		name  string
		patch UpdateServiceOrderData
		want  error
	}{
		{"null title", UpdateServiceOrderData{Title: Null[string]()}, ErrTitleRequired},
		{"blank client", UpdateServiceOrderData{Client: Some("  ")}, ErrClientRequired},
		{"bad priority", UpdateServiceOrderData{Priority: Some(Priority("asap"))}, ErrInvalidPriority},
		{"null status", UpdateServiceOrderData{Status: Null[OrderStatus]()}, ErrInvalidStatus},
		{"negative hours", UpdateServiceOrderData{EstimatedHours: Some(-3)}, ErrEstimatedHoursNegative},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, errors.Is(tt.patch.Validate(), tt.want))
		})
	}

	ok := UpdateServiceOrderData{Technician: Null[string](), DueDate: Null[time.Time]()}
	assert.NoError(t, ok.Validate())
	assert.NoError(t, UpdateServiceOrderData{}.Validate())
	assert.True(t, UpdateServiceOrderData{}.IsEmpty())
}

func TestUpdateServiceOrderData_Apply(t *testing.T) {
	created := time.Date(2025, 1, 10, 8, 0, 0, 0, time.UTC)
	due := created.Add(72 * time.Hour)
	hours := 3
	order := ServiceOrder{
		ID:             "so-1",
		Title:          "Test",
		Description:    "d",
		Client:         "C",
		Priority:       PriorityLow,
		Status:         OrderStatusPending,
		Category:       "X",
		Technician:     "Ana",
		CreatedAt:      created,
		UpdatedAt:      created,
		DueDate:        &due,
		EstimatedHours: &hours,
		Notes:          "keep",
		Version:        2,
	}

	now := created.Add(time.Hour)
	patch := UpdateServiceOrderData{
		Status:         Some(OrderStatusCompleted),
		Technician:     Null[string](),
		DueDate:        Null[time.Time](),
		EstimatedHours: Some(5),
	}

	updated := patch.Apply(order, now)

	assert.Equal(t, OrderStatusCompleted, updated.Status)
	assert.Empty(t, updated.Technician)
	assert.Nil(t, updated.DueDate)
	require.NotNil(t, updated.EstimatedHours)
	assert.Equal(t, 5, *updated.EstimatedHours)
	assert.Equal(t, "keep", updated.Notes)
	assert.Equal(t, "Test", updated.Title)
	assert.Equal(t, order.ID, updated.ID)
	assert.Equal(t, order.Version, updated.Version)
	assert.True(t, updated.CreatedAt.Equal(created))
	assert.True(t, updated.UpdatedAt.Equal(now))

	// исходный заказ не изменился
	assert.Equal(t, 3, *order.EstimatedHours)
	assert.Equal(t, "Ana", order.Technician)
}
