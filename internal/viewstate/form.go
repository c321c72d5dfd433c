package viewstate

import (
	"errors"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/vladislavdragonenkov/serviceflow/internal/domain"
)

const dueDateLayout = "2006-01-02"

// FormInput: поля формы заказа в том виде, в каком их ввёл пользователь.
type FormInput struct {
	Title          string
	Description    string
	Client         string
	Priority       string
	Status         string
	Category       string
	Technician     string
	DueDate        string
	EstimatedHours string
	Notes          string
}

// NewForm возвращает пустую форму с приоритетом medium.
func NewForm() FormInput {
	return FormInput{Priority: string(domain.PriorityMedium)}
}

// FormFromOrder заполняет форму редактирования текущими значениями заказа.
func FormFromOrder(order domain.ServiceOrder) FormInput {
	form := FormInput{
		Title:       order.Title,
		Description: order.Description,
		Client:      order.Client,
		Priority:    string(order.Priority),
		Status:      string(order.Status),
		Category:    order.Category,
		Technician:  order.Technician,
		Notes:       order.Notes,
	}
	if order.DueDate != nil {
		form.DueDate = formatDueDate(*order.DueDate)
	}
	if order.EstimatedHours != nil {
		form.EstimatedHours = strconv.Itoa(*order.EstimatedHours)
	}
	return form
}

// FormErrors: ошибки формы по именам полей.
type FormErrors struct {
	Fields map[string]string
}

func (e *FormErrors) Error() string {
	keys := slices.Sorted(maps.Keys(e.Fields))
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

// Validate проверяет форму до обращения к backend. Возвращает *FormErrors или nil.
func (f FormInput) Validate() error {
	fields := make(map[string]string)

	required := []struct{ name, value string }{
		{"title", f.Title},
		{"description", f.Description},
		{"client", f.Client},
		{"category", f.Category},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			fields[r.name] = "is required"
		}
	}
	if !domain.Priority(f.Priority).Valid() {
		fields["priority"] = "must be one of low, medium, high"
	}
	if f.Status != "" && !domain.OrderStatus(f.Status).Valid() {
		fields["status"] = "must be one of pending, in_progress, completed, cancelled"
	}
	if _, err := f.dueDate(); err != nil {
		fields["dueDate"] = err.Error()
	}
	if _, err := f.estimatedHours(); err != nil {
		fields["estimatedHours"] = err.Error()
	}

	if len(fields) == 0 {
		return nil
	}
	return &FormErrors{Fields: fields}
}

// ToCreate собирает данные создания. Пустые необязательные поля не передаются.
func (f FormInput) ToCreate() (domain.CreateServiceOrderData, error) {
	if err := f.Validate(); err != nil {
		return domain.CreateServiceOrderData{}, err
	}
	due, _ := f.dueDate()
	hours, _ := f.estimatedHours()
	return domain.CreateServiceOrderData{
		Title:          strings.TrimSpace(f.Title),
		Description:    strings.TrimSpace(f.Description),
		Client:         strings.TrimSpace(f.Client),
		Priority:       domain.Priority(f.Priority),
		Category:       strings.TrimSpace(f.Category),
		Technician:     strings.TrimSpace(f.Technician),
		DueDate:        due,
		EstimatedHours: hours,
		Notes:          f.Notes,
	}, nil
}

// ToUpdate собирает патч редактирования: форма передаёт все поля,
// пустые необязательные поля очищаются явным null.
func (f FormInput) ToUpdate() (domain.UpdateServiceOrderData, error) {
	if err := f.Validate(); err != nil {
		return domain.UpdateServiceOrderData{}, err
	}
	due, _ := f.dueDate()
	hours, _ := f.estimatedHours()

	patch := domain.UpdateServiceOrderData{
		Title:       domain.Some(strings.TrimSpace(f.Title)),
		Description: domain.Some(strings.TrimSpace(f.Description)),
		Client:      domain.Some(strings.TrimSpace(f.Client)),
		Priority:    domain.Some(domain.Priority(f.Priority)),
		Category:    domain.Some(strings.TrimSpace(f.Category)),
		Technician:  optionalText(f.Technician),
		Notes:       optionalText(f.Notes),
	}
	if f.Status != "" {
		patch.Status = domain.Some(domain.OrderStatus(f.Status))
	}
	if due != nil {
		patch.DueDate = domain.Some(*due)
	} else {
		patch.DueDate = domain.Null[time.Time]()
	}
	if hours != nil {
		patch.EstimatedHours = domain.Some(*hours)
	} else {
		patch.EstimatedHours = domain.Null[int]()
	}
	return patch, nil
}

func optionalText(v string) domain.Field[string] {
	if strings.TrimSpace(v) == "" {
		return domain.Null[string]()
	}
	return domain.Some(strings.TrimSpace(v))
}

// formatDueDate пишет дату без времени только для полуночи UTC, иначе время
// сохраняется, чтобы неизменённая форма не сдвигала срок.
func formatDueDate(t time.Time) string {
	t = t.UTC()
	if t.Equal(t.Truncate(24 * time.Hour)) {
		return t.Format(dueDateLayout)
	}
	return t.Format(time.RFC3339Nano)
}

// dueDate принимает YYYY-MM-DD (полночь UTC) или RFC 3339.
func (f FormInput) dueDate() (*time.Time, error) {
	raw := strings.TrimSpace(f.DueDate)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(dueDateLayout, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, errors.New("must be a date in YYYY-MM-DD format")
	}
	t = t.UTC()
	return &t, nil
}

func (f FormInput) estimatedHours() (*int, error) {
	raw := strings.TrimSpace(f.EstimatedHours)
	if raw == "" {
		return nil, nil
	}
	hours, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.New("must be a whole number")
	}
	if hours < 0 {
		return nil, errors.New("must be non-negative")
	}
	return &hours, nil
}
