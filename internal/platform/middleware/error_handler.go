package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Error kinds carried in the "error" field of API error bodies.
const (
	ErrKindInvalidInput = "Invalid input data"
	ErrKindMapping      = "Mapping failure"
	ErrKindStorage      = "Storage failure"
	ErrKindNotFound     = "Not found"
	ErrKindInternal     = "Internal server error"
)

// ErrorBody is the JSON shape of every /api error response.
type ErrorBody struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// APIError is returned by handlers to produce a specific status and body.
type APIError struct {
	Status int
	Body   ErrorBody
}

func (e *APIError) Error() string {
	if e.Body.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Body.Error, e.Body.Message)
	}
	return fmt.Sprintf("%d %s", e.Status, e.Body.Error)
}

func NewAPIError(status int, kind, message string, details map[string]interface{}) *APIError {
	return &APIError{Status: status, Body: ErrorBody{Error: kind, Message: message, Details: details}}
}

// StatusOf returns the HTTP status ErrorHandler will send for err.
func StatusOf(err error) int {
	var apiErr *APIError
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &apiErr):
		return apiErr.Status
	case errors.As(err, &httpErr):
		return httpErr.Code
	default:
		return http.StatusInternalServerError
	}
}

// ErrorHandler renders handler errors as ErrorBody JSON. Unknown errors
// become a generic 500 and are logged; their text never reaches the client.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := http.StatusInternalServerError, ErrorBody{Error: ErrKindInternal}

		var apiErr *APIError
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &apiErr):
			status, body = apiErr.Status, apiErr.Body
		case errors.As(err, &httpErr):
			status = httpErr.Code
			body = ErrorBody{Error: http.StatusText(status)}
			if status == http.StatusNotFound {
				body.Error = ErrKindNotFound
			}
			if msg, ok := httpErr.Message.(string); ok && msg != http.StatusText(status) {
				body.Message = msg
			}
		default:
			logger.Error().Err(err).
				Str("request_id", fmt.Sprintf("%v", c.Get(RequestIDKey))).
				Msg("unhandled error")
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(status)
		} else {
			werr = c.JSON(status, body)
		}
		if werr != nil {
			logger.Error().Err(werr).Msg("write error response")
		}
	}
}
