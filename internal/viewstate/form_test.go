package viewstate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
)

func TestFormInput_Validate(t *testing.T) {
	valid := FormInput{Title: "t", Description: "d", Client: "c", Priority: "low", Category: "x"}

	tests := []struct {
		name   string
		mutate func(*FormInput)
		fields []string
	}{
		{name: "valid", mutate: func(*FormInput) {}},
		{name: "blank required", mutate: func(f *FormInput) { f.Title = "  "; f.Client = "" }, fields: []string{"title", "client"}},
		{name: "bad priority", mutate: func(f *FormInput) { f.Priority = "urgent" }, fields: []string{"priority"}},
		{name: "bad status", mutate: func(f *FormInput) { f.Status = "archived" }, fields: []string{"status"}},
		{name: "fractional hours", mutate: func(f *FormInput) { f.EstimatedHours = "2.5" }, fields: []string{"estimatedHours"}},
		{name: "negative hours", mutate: func(f *FormInput) { f.EstimatedHours = "-3" }, fields: []string{"estimatedHours"}},
		{name: "bad date", mutate: func(f *FormInput) { f.DueDate = "31/12/2025" }, fields: []string{"dueDate"}},
		{name: "rfc3339 date", mutate: func(f *FormInput) { f.DueDate = "2025-12-31T10:00:00-03:00" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := valid
			tt.mutate(&form)
			err := form.Validate()
			if len(tt.fields) == 0 {
				require.NoError(t, err)
				return
			}
			var formErr *FormErrors
			require.ErrorAs(t, err, &formErr)
			for _, field := range tt.fields {
				assert.Contains(t, formErr.Fields, field)
			}
			assert.Len(t, formErr.Fields, len(tt.fields))
		})
	}
}

func TestFormInput_ToCreate(t *testing.T) {
	form := FormInput{
		Title: " Fix AC ", Description: "d", Client: "c", Priority: "high", Category: "x",
		DueDate: "2025-12-31", EstimatedHours: "4",
	}

	data, err := form.ToCreate()
	require.NoError(t, err)

	assert.Equal(t, "Fix AC", data.Title)
	require.NotNil(t, data.DueDate)
	assert.True(t, data.DueDate.Equal(time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)))
	require.NotNil(t, data.EstimatedHours)
	assert.Equal(t, 4, *data.EstimatedHours)
	assert.Empty(t, data.Technician)
}

func TestFormInput_ToUpdateSendsEveryField(t *testing.T) {
	form := FormInput{Title: "t", Description: "d", Client: "c", Priority: "low", Category: "x", Status: "completed"}

	patch, err := form.ToUpdate()
	require.NoError(t, err)

	assert.Equal(t, domain.Some("t"), patch.Title)
	assert.Equal(t, domain.Some(domain.OrderStatusCompleted), patch.Status)
	assert.Equal(t, domain.Null[string](), patch.Technician)
	assert.Equal(t, domain.Null[string](), patch.Notes)
	assert.True(t, patch.DueDate.Set && patch.DueDate.Null)
	assert.True(t, patch.EstimatedHours.Set && patch.EstimatedHours.Null)
	require.NoError(t, patch.Validate())
}

func TestFormFromOrderRoundTrip(t *testing.T) {
	due := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	hours := 6
	order := domain.ServiceOrder{
		ID: "so-1", Title: "t", Description: "d", Client: "c", Priority: domain.PriorityMedium,
		Status: domain.OrderStatusInProgress, Category: "x", Technician: "Ana", DueDate: &due, EstimatedHours: &hours,
	}

	form := FormFromOrder(order)
	assert.Equal(t, "2025-07-01", form.DueDate)
	assert.Equal(t, "6", form.EstimatedHours)

	patch, err := form.ToUpdate()
	require.NoError(t, err)
	applied := patch.Apply(order, time.Now())
	assert.Equal(t, order.Technician, applied.Technician)
	assert.True(t, applied.DueDate.Equal(due))
	assert.Equal(t, hours, *applied.EstimatedHours)
	assert.Equal(t, order.Status, applied.Status)
}

func TestFormFromOrder_KeepsDueTimeOnTitleOnlyEdit(t *testing.T) {
	due := time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)
	order := domain.ServiceOrder{
		ID: "so-1", Title: "t", Description: "d", Client: "c", Priority: domain.PriorityLow,
		Status: domain.OrderStatusPending, Category: "x", DueDate: &due,
	}

	form := FormFromOrder(order)
	assert.Equal(t, "2025-06-01T15:30:00Z", form.DueDate)

	form.Title = "renamed"
	patch, err := form.ToUpdate()
	require.NoError(t, err)
	applied := patch.Apply(order, time.Now())
	assert.Equal(t, "renamed", applied.Title)
	require.NotNil(t, applied.DueDate)
	assert.True(t, applied.DueDate.Equal(due), "due date moved to %s", applied.DueDate)

	local := time.Date(2025, 6, 1, 12, 0, 0, 5000, time.FixedZone("UTC+3", 3*3600))
	order.DueDate = &local
	reparsed, err := FormFromOrder(order).dueDate()
	require.NoError(t, err)
	assert.True(t, reparsed.Equal(local))
}

func TestNewFormDefaultsPriority(t *testing.T) {
	assert.Equal(t, "medium", NewForm().Priority)
}
