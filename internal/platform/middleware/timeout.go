package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/ehr/fhirtransform/internal/platform/fhir"
)

const ErrKindTimeout = "Request timeout"

// RequestTimeout puts a deadline on each request context. The handler runs
// on the request goroutine; when it returns an error caused by the deadline
// the response is a 504: an OperationOutcome under /fhir, an APIError
// elsewhere. Paths under any of skipPrefixes (long-lived streams) get no
// deadline. timeout must be positive.
func RequestTimeout(timeout time.Duration, skipPrefixes ...string) echo.MiddlewareFunc {
	return echomw.ContextTimeoutWithConfig(echomw.ContextTimeoutConfig{
		Timeout: timeout,
		Skipper: func(c echo.Context) bool {
			path := c.Request().URL.Path
			for _, p := range skipPrefixes {
				if strings.HasPrefix(path, p) {
					return true
				}
			}
			return false
		},
		ErrorHandler: func(err error, c echo.Context) error {
			if !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			msg := "request processing exceeded " + timeout.String()
			if isFHIRPath(c.Request().URL.Path) {
				if c.Response().Committed {
					return nil
				}
				return fhir.Outcome(c, http.StatusGatewayTimeout,
					fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeTimeout, msg))
			}
			return NewAPIError(http.StatusGatewayTimeout, ErrKindTimeout, msg, nil)
		},
	})
}
