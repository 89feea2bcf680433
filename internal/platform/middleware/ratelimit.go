package middleware

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"

	"github.com/ehr/fhirtransform/internal/platform/fhir"
)

type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// RateLimit applies a per-client-IP token bucket. Denied requests get 429
// with Retry-After. A non-positive rate disables limiting.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	if cfg.RequestsPerSecond <= 0 {
		return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = 1
	}

	store := echomw.NewRateLimiterMemoryStoreWithConfig(echomw.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(cfg.RequestsPerSecond),
		Burst:     cfg.BurstSize,
		ExpiresIn: 3 * time.Minute,
	})
	retryAfter := strconv.Itoa(int(math.Ceil(1 / cfg.RequestsPerSecond)))

	return echomw.RateLimiterWithConfig(echomw.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			p := c.Request().URL.Path
			return p == "/health" || p == "/metrics"
		},
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return NewAPIError(http.StatusForbidden, http.StatusText(http.StatusForbidden), "cannot identify client", nil)
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			c.Response().Header().Set("Retry-After", retryAfter)
			if isFHIRPath(c.Request().URL.Path) {
				return fhir.Outcome(c, http.StatusTooManyRequests, fhir.ThrottleOutcome())
			}
			return NewAPIError(http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests),
				"rate limit exceeded, retry later", nil)
		},
	})
}
