package middleware

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/ehr/fhirtransform/internal/platform/fhir"
)

// BodyLimit rejects request bodies larger than limit ("1M", "512K", "2G",
// or a bare byte count) with 413. A declared Content-Length over the limit
// is refused up front; otherwise the body is cut off while it is read.
func BodyLimit(limit string) echo.MiddlewareFunc {
	max := parseLimit(limit)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if req.Body == nil || req.Body == http.NoBody {
				return next(c)
			}
			if req.ContentLength > max {
				return payloadTooLarge(c, max)
			}
			req.Body = &limitedReadCloser{ReadCloser: req.Body, remaining: max}
			return next(c)
		}
	}
}

type limitedReadCloser struct {
	io.ReadCloser
	remaining int64
	exceeded  bool
}

func (r *limitedReadCloser) Read(p []byte) (int, error) {
	if r.exceeded {
		return 0, errBodyTooLarge
	}
	// one byte of headroom detects overflow
	if int64(len(p)) > r.remaining+1 {
		p = p[:r.remaining+1]
	}
	n, err := r.ReadCloser.Read(p)
	r.remaining -= int64(n)
	if r.remaining < 0 {
		r.exceeded = true
		return 0, errBodyTooLarge
	}
	return n, err
}

var errBodyTooLarge = echo.NewHTTPError(http.StatusRequestEntityTooLarge, "request body too large")

func payloadTooLarge(c echo.Context, limit int64) error {
	msg := fmt.Sprintf("request body exceeds maximum allowed size of %d bytes", limit)
	if isFHIRPath(c.Request().URL.Path) {
		return fhir.Outcome(c, http.StatusRequestEntityTooLarge,
			fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeTooCostly, msg))
	}
	return NewAPIError(http.StatusRequestEntityTooLarge, http.StatusText(http.StatusRequestEntityTooLarge), msg, nil)
}

func isFHIRPath(path string) bool {
	return path == "/fhir" || strings.HasPrefix(path, "/fhir/")
}

// parseLimit turns "1M" style sizes into bytes; unparsable input means 1 MB.
func parseLimit(s string) int64 {
	const fallback = 1 << 20

	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return fallback
	}
	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "G"):
		multiplier = 1 << 30
	case strings.HasSuffix(s, "M"):
		multiplier = 1 << 20
	case strings.HasSuffix(s, "K"):
		multiplier = 1 << 10
	}
	if multiplier > 1 {
		s = s[:len(s)-1]
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return fallback
	}
	return n * multiplier
}
