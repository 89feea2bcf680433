package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestRecordTransform(t *testing.T) {
	before := testutil.ToFloat64(TransformTotal.WithLabelValues(ResultMapping))
	RecordTransform(ResultMapping)
	assert.Equal(t, before+1, testutil.ToFloat64(TransformTotal.WithLabelValues(ResultMapping)))
}

func TestRecordNotifyFailure(t *testing.T) {
	before := testutil.ToFloat64(NotifyFailuresTotal.WithLabelValues("mqtt"))
	RecordNotifyFailure("mqtt")
	RecordNotifyFailure("mqtt")
	assert.Equal(t, before+2, testutil.ToFloat64(NotifyFailuresTotal.WithLabelValues("mqtt")))
}

func TestRecordHTTPRequest(t *testing.T) {
	c := HTTPRequestsTotal.WithLabelValues("POST", "/api/transform", "201")
	before := testutil.ToFloat64(c)
	RecordHTTPRequest("POST", "/api/transform", 201, 15*time.Millisecond)
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	ObserveBundleEntries(3)

	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/metrics", nil), rec)
	if err := Handler()(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := rec.Body.String()
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(body, "fhir_bundle_entries_bucket"), "missing bundle entries histogram")
}

func TestCollectSystem_SetsHeapGauge(t *testing.T) {
	collectSystem(context.Background(), zerolog.Nop())
	assert.Greater(t, testutil.ToFloat64(GoHeapAlloc), 0.0)
}

func TestStartSystemCollector_DisabledInterval(t *testing.T) {
	// must return without starting anything
	StartSystemCollector(context.Background(), 0, zerolog.Nop())
}
