package fhir

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

const MIMEFHIRJSON = "application/fhir+json"

// Outcome writes an OperationOutcome with the FHIR JSON media type.
func Outcome(c echo.Context, status int, o *OperationOutcome) error {
	c.Response().Header().Set(echo.HeaderContentType, MIMEFHIRJSON)
	return c.JSON(status, o)
}

// Raw writes an already serialized resource without re-encoding it.
func Raw(c echo.Context, status int, doc []byte) error {
	return c.Blob(status, MIMEFHIRJSON, doc)
}

// OutcomeStatus maps an outcome's first issue code to an HTTP status.
func OutcomeStatus(o *OperationOutcome) int {
	if len(o.Issue) == 0 {
		return http.StatusOK
	}
	switch o.Issue[0].Code {
	case IssueTypeInvalid, IssueTypeRequired, IssueTypeProcessing:
		return http.StatusBadRequest
	case IssueTypeNotFound:
		return http.StatusNotFound
	case IssueTypeLogin:
		return http.StatusUnauthorized
	case IssueTypeThrottled:
		return http.StatusTooManyRequests
	case IssueTypeTooCostly:
		return http.StatusRequestEntityTooLarge
	case IssueTypeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
