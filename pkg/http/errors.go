package http

import (
	"fmt"
	"net/http"
)

// AppError is an error the API is willing to show a client. Err carries the
// cause for logs and is never serialized.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError builds an error for status. A 5xx message is replaced by the
// status text: server-side causes belong in logs, not responses.
func NewAppError(code, field, message string, status int) *AppError {
	if status >= http.StatusInternalServerError || message == "" {
		message = http.StatusText(status)
	}
	return &AppError{Code: code, Message: message, Field: field, Status: status}
}

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError attaches the cause.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

func InternalError() *AppError {
	return NewAppError("ERR_INTERNAL", "", "", http.StatusInternalServerError)
}

func ServiceUnavailableError() *AppError {
	return NewAppError("ERR_UNAVAILABLE", "", "", http.StatusServiceUnavailable)
}
