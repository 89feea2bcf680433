package bundle

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/fhirtransform/internal/platform/fhir"
	"github.com/ehr/fhirtransform/internal/platform/middleware"
	"github.com/ehr/fhirtransform/pkg/pagination"
)

const storeUnavailable = "bundle store unavailable"

type Handler struct {
	repo   Repository
	logger zerolog.Logger
}

func NewHandler(repo Repository, logger zerolog.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

func (h *Handler) RegisterRoutes(api, fhirGroup *echo.Group, guard ...echo.MiddlewareFunc) {
	api.GET("/bundles", h.ListBundles, guard...)
	api.GET("/bundles/:id", h.GetBundle, guard...)

	fhirGroup.GET("/Bundle/:id", h.GetBundleFHIR, guard...)
}

// GetBundle returns the stored document exactly as it was produced.
func (h *Handler) GetBundle(c echo.Context) error {
	id := c.Param("id")
	b, err := h.repo.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return middleware.NewAPIError(http.StatusNotFound, middleware.ErrKindNotFound,
				fmt.Sprintf("bundle %s not found", id), nil)
		}
		h.logger.Error().Err(err).Str("bundle_id", id).Msg("read bundle")
		return middleware.NewAPIError(http.StatusInternalServerError, middleware.ErrKindStorage, storeUnavailable, nil)
	}
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, b.Document)
}

func (h *Handler) ListBundles(c echo.Context) error {
	pg := pagination.FromContext(c)
	items, total, err := h.repo.List(c.Request().Context(), pg.Limit, pg.Offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("list bundles")
		return middleware.NewAPIError(http.StatusInternalServerError, middleware.ErrKindStorage, storeUnavailable, nil)
	}
	if items == nil {
		items = []*Summary{}
	}
	return c.JSON(http.StatusOK, pg.NewPage(items, total, c.Request().URL.Path))
}

func (h *Handler) GetBundleFHIR(c echo.Context) error {
	id := c.Param("id")
	b, err := h.repo.GetByID(c.Request().Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fhir.Outcome(c, http.StatusNotFound, fhir.NotFoundOutcome(fhir.ResourceTypeBundle, id))
		}
		h.logger.Error().Err(err).Str("bundle_id", id).Msg("read bundle")
		return fhir.Outcome(c, http.StatusInternalServerError, fhir.InternalErrorOutcome(storeUnavailable))
	}
	return fhir.Raw(c, http.StatusOK, b.Document)
}
