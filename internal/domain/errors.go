package domain

import (
	"errors"
	"strings"
)

var (
	// Ошибка отсутствующего идентификатора заказа.
	ErrOrderIDRequired = errors.New("id is required")
	// Ошибка пустого заголовка.
	ErrTitleRequired = errors.New("title is required")
	// Ошибка пустого описания.
	ErrDescriptionRequired = errors.New("description is required")
	// Ошибка пустого имени клиента.
	ErrClientRequired = errors.New("client is required")
	// Ошибка пустой категории.
	ErrCategoryRequired = errors.New("category is required")
	// Ошибка неизвестного приоритета.
	ErrInvalidPriority = errors.New("priority must be one of low, medium, high")
	// Ошибка неизвестного статуса.
	ErrInvalidStatus = errors.New("status must be one of pending, in_progress, completed, cancelled")
	// Ошибка отрицательной оценки часов.
	ErrEstimatedHoursNegative = errors.New("estimatedHours must be non-negative")
	// Ошибка, если updatedAt раньше createdAt.
	ErrTimestampsInconsistent = errors.New("updatedAt must not precede createdAt")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("service order not found")
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("service order version conflict")
	// ErrOutboxPublish: ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrInvalidCredentials: единое сообщение для неверного email или пароля.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrEmailInvalid: email не передан или имеет неверный формат.
	ErrEmailInvalid = errors.New("email is invalid")
	// ErrPasswordTooShort: пароль короче минимальной длины.
	ErrPasswordTooShort = errors.New("password must be at least 6 characters")
	// ErrPasswordTooLong: пароль длиннее 72 байт (ограничение bcrypt).
	ErrPasswordTooLong = errors.New("password must be at most 72 bytes")
	// ErrEmailTaken: пользователь с таким email уже существует.
	ErrEmailTaken = errors.New("email is already registered")
	// ErrUserNotFound возвращается репозиторием пользователей.
	ErrUserNotFound = errors.New("user not found")
	// ErrUnauthorized: токен отсутствует, просрочен, отозван или подделан.
	ErrUnauthorized = errors.New("unauthorized")
)

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// ValidationError агрегирует нарушения правил валидации входных данных.
type ValidationError struct {
	Errs []error
}

// NewValidationError возвращает nil, если нарушений нет.
func NewValidationError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return &ValidationError{Errs: errs}
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages(), "; ")
}

// Unwrap позволяет проверять конкретные нарушения через errors.Is.
func (e *ValidationError) Unwrap() []error {
	return e.Errs
}

// Messages возвращает тексты нарушений в исходном порядке.
func (e *ValidationError) Messages() []string {
	msgs := make([]string, 0, len(e.Errs))
	for _, err := range e.Errs {
		msgs = append(msgs, err.Error())
	}
	return msgs
}

// IsValidation сообщает, что ошибка вызвана невалидными входными данными.
func IsValidation(err error) bool {
	var vErr *ValidationError
	return errors.As(err, &vErr)
}
