package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Local validation errors. They are returned before any request is sent and
// their text is shown to the user as is.
var (
	ErrTextTooShort = errors.New("Введите минимум 10 символов")
	ErrNoFile       = errors.New("Выберите файл изображения")
	ErrEmptyURL     = errors.New("Введите URL")
)

// IsValidation reports whether err is one of the local validation errors
func IsValidation(err error) bool {
	return errors.Is(err, ErrTextTooShort) || errors.Is(err, ErrNoFile) || errors.Is(err, ErrEmptyURL)
}

// StatusError is a non-2xx response from the backend
type StatusError struct {
	StatusCode int
	Detail     string // "detail" field of the body, if any
	Message    string // "error" field of the body, if any
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Ошибка %d", e.StatusCode)
}

// FailureError is a well-formed response carrying success:false. Message is the
// backend's "error" field and may be empty.
type FailureError struct {
	Message string
}

func (e *FailureError) Error() string {
	return e.Message
}

// TransportError wraps a failure to reach the backend at all
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// detailText turns the "detail" field into display text. FastAPI sends a string
// for explicit errors and a list of objects for request validation errors.
func detailText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return string(raw)
	}
	return compact.String()
}
