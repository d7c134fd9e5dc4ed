package http

import (
	"fmt"
	"net/http"
)

const (
	CodeUnknownSymbol = "ERR_UNKNOWN_SYMBOL"
	CodeUnavailable   = "ERR_UNAVAILABLE"
	CodeInternal      = "ERR_INTERNAL"
)

// AppError is an error that knows its HTTP status.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
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

func (e *AppError) Unwrap() error { return e.Err }

// UnknownSymbol reports a symbol the engine has never seen.
func UnknownSymbol(symbol string) *AppError {
	return &AppError{
		Code:    CodeUnknownSymbol,
		Message: fmt.Sprintf("symbol %s is not tracked", symbol),
		Params:  map[string]interface{}{"symbol": symbol},
		Status:  http.StatusNotFound,
	}
}

// Unavailable reports a disabled or unreachable backend.
func Unavailable(component string) *AppError {
	return &AppError{
		Code:    CodeUnavailable,
		Message: component + " is disabled",
		Params:  map[string]interface{}{"component": component},
		Status:  http.StatusServiceUnavailable,
	}
}

// Internal wraps an unexpected failure. The cause is logged, not returned.
func Internal(message string, err error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Status: http.StatusInternalServerError, Err: err}
}
