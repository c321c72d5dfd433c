package client

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnauthorized возвращается, когда сервер отверг токен (401).
var ErrUnauthorized = errors.New("unauthorized: sign in again")

// APIError: ответ сервера с кодом вне 2xx.
type APIError struct {
	StatusCode int
	Message    string
	Details    []string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
	if len(e.Details) > 0 {
		msg += " (" + strings.Join(e.Details, "; ") + ")"
	}
	return msg
}

// IsStatus сообщает, что err: APIError с указанным кодом.
func IsStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
