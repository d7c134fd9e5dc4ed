package http

import "github.com/labstack/echo/v4"

// Handler registers routes on the server.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}

// Envelope is the body of every API response. Status mirrors the HTTP code.
type Envelope struct {
	Status  int         `json:"status" example:"200"`
	Message string      `json:"message" example:"OK"`
	Data    interface{} `json:"data,omitempty"`
}

// FieldError describes one rejected query parameter.
type FieldError struct {
	Code    string                 `json:"code" example:"ERR_REQUIRED"`
	Field   string                 `json:"field,omitempty" example:"symbol"`
	Message string                 `json:"message" example:"symbol is required"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ListData wraps collection results.
type ListData struct {
	Rows  interface{} `json:"rows"`
	Total int         `json:"total"`
}
