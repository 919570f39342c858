package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// StatusError отказ backend с исходным статусом и телом ответа.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   []byte
}

func (e *StatusError) Error() string {
	if msg := e.Message(); msg != "" {
		return fmt.Sprintf("backend %s %s: status %d: %s", e.Method, e.Path, e.Code, msg)
	}
	return fmt.Sprintf("backend %s %s: status %d", e.Method, e.Path, e.Code)
}

// Message извлекает поле "message" из JSON-тела ответа, если оно есть.
func (e *StatusError) Message() string {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(e.Body, &payload); err != nil {
		return ""
	}
	return payload.Message
}

// IsUnauthorized сообщает, что ошибка является окончательным 401 от backend.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusUnauthorized
}

// StatusCode возвращает HTTP-код из цепочки ошибок или 0.
func StatusCode(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code
	}
	return 0
}
