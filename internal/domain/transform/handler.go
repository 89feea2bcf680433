package transform

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ehr/fhirtransform/internal/platform/fhir"
	"github.com/ehr/fhirtransform/internal/platform/metrics"
	"github.com/ehr/fhirtransform/internal/platform/middleware"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the public ping and the transform endpoints. guard
// is applied per route so unknown paths under the groups still 404.
func (h *Handler) RegisterRoutes(api, fhirGroup *echo.Group, guard ...echo.MiddlewareFunc) {
	api.GET("/ping", h.Ping)
	api.POST("/transform", h.Transform, guard...)
	fhirGroup.POST("/Bundle/$transform", h.TransformFHIR, guard...)
}

func (h *Handler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Transform accepts a submission and answers 201 with the stored bundle.
func (h *Handler) Transform(c echo.Context) error {
	res, err := h.process(c)
	if err != nil {
		return apiError(err)
	}
	c.Response().Header().Set(echo.HeaderLocation, "/api/bundles/"+res.BundleID)
	return c.Blob(http.StatusCreated, echo.MIMEApplicationJSON, res.Document)
}

// TransformFHIR is Transform with OperationOutcome error bodies.
func (h *Handler) TransformFHIR(c echo.Context) error {
	res, err := h.process(c)
	if err != nil {
		if o := outcome(err); o != nil {
			return fhir.Outcome(c, fhir.OutcomeStatus(o), o)
		}
		return err
	}
	c.Response().Header().Set(echo.HeaderLocation, "/fhir/Bundle/"+res.BundleID)
	return fhir.Raw(c, http.StatusCreated, res.Document)
}

func (h *Handler) process(c echo.Context) (*Result, error) {
	sub, err := DecodeSubmission(c.Request().Body)
	if err != nil {
		var inv *InvalidInputError
		if errors.As(err, &inv) {
			metrics.RecordTransform(metrics.ResultInvalidInput)
		}
		return nil, err
	}
	return h.svc.Process(c.Request().Context(), sub)
}

// apiError maps domain errors to the /api error body. Anything else is
// returned as is for the global error handler.
func apiError(err error) error {
	var (
		inv     *InvalidInputError
		mapErr  *MappingError
		storErr *StorageError
	)
	switch {
	case errors.As(err, &inv):
		details := make(map[string]interface{}, len(inv.Fields))
		for k, v := range inv.Fields {
			details[k] = v
		}
		return middleware.NewAPIError(http.StatusBadRequest, middleware.ErrKindInvalidInput,
			"request validation failed", details)
	case errors.As(err, &mapErr):
		return middleware.NewAPIError(http.StatusBadRequest, middleware.ErrKindMapping,
			mapErr.Error(), map[string]interface{}{mapErr.Field: mapErr.Reason})
	case errors.As(err, &storErr):
		return middleware.NewAPIError(http.StatusInternalServerError, middleware.ErrKindStorage,
			"bundle could not be stored", nil)
	default:
		return err
	}
}

func outcome(err error) *fhir.OperationOutcome {
	var (
		inv     *InvalidInputError
		mapErr  *MappingError
		storErr *StorageError
	)
	switch {
	case errors.As(err, &inv):
		return fhir.FieldIssuesOutcome(inv.Fields)
	case errors.As(err, &mapErr):
		o := fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeProcessing, mapErr.Error())
		o.Issue[0].Expression = []string{mapErr.Field}
		return o
	case errors.As(err, &storErr):
		return fhir.InternalErrorOutcome("bundle could not be stored")
	default:
		return nil
	}
}
