package domain

import (
	"net/mail"
	"strings"
	"time"
)

const (
	// MinPasswordLength: минимальная длина пароля при регистрации.
	MinPasswordLength = 6
	// MaxPasswordBytes: предел bcrypt.
	MaxPasswordBytes = 72
)

// User: учётная запись пользователя приложения.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// NormalizeEmail приводит email к каноничному виду для поиска и уникальности.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateSignUp проверяет данные регистрации.
func ValidateSignUp(email, password string) error {
	var errs []error
	normalized := NormalizeEmail(email)
	if addr, err := mail.ParseAddress(normalized); err != nil || addr.Address != normalized {
		errs = append(errs, ErrEmailInvalid)
	}
	if len([]rune(password)) < MinPasswordLength {
		errs = append(errs, ErrPasswordTooShort)
	}
	if len(password) > MaxPasswordBytes {
		errs = append(errs, ErrPasswordTooLong)
	}
	return NewValidationError(errs)
}
