package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ehr/fhirtransform/internal/platform/metrics"
)

// Metrics records request count and latency labelled by route template,
// not raw path, to keep label cardinality bounded.
func Metrics() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				status = StatusOf(err)
			}
			endpoint := c.Path()
			if endpoint == "" {
				endpoint = "unmatched"
			}
			metrics.RecordHTTPRequest(c.Request().Method, endpoint, status, time.Since(start))
			return err
		}
	}
}
