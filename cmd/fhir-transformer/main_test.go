package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ehr/fhirtransform/internal/config"
	"github.com/ehr/fhirtransform/internal/domain/transform"
	"github.com/ehr/fhirtransform/internal/platform/notification"
	"github.com/ehr/fhirtransform/internal/platform/websocket"
)

const submission = `{
	"patient": {"vorname": "Max", "nachname": "Mustermann", "geburtsdatum": "1980-05-12", "geschlecht": "male"},
	"diagnosen": [{"icd10": "I10", "beschreibung": "Essentielle Hypertonie"}],
	"prozeduren": [{"ops": "5-470.11", "datum": "2020-06-01"}],
	"laborwerte": [{"loinc": "2345-7", "wert": 5.4, "einheit": "mmol/L", "referenz_min": 3.9, "referenz_max": 5.6}]
}`

func testConfig() *config.Config {
	return &config.Config{
		StoreBackend: config.BackendMemory,
		LogFormat:    "json",
		BodyLimit:    "1M",
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *echo.Echo {
	t.Helper()
	st, err := openStore(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(st.Close)
	svc := transform.NewService(transform.NewTransformer(), st.repo, nil, zerolog.Nop())
	t.Cleanup(svc.Wait)
	return newServer(cfg, zerolog.Nop(), st, svc, websocket.NewHub(zerolog.Nop()))
}

func do(e *echo.Echo, method, path, body string, header ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestServer_Ping(t *testing.T) {
	e := newTestServer(t, testConfig())
	rec := do(e, http.MethodGet, "/api/ping", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestServer_UnknownRoute(t *testing.T) {
	e := newTestServer(t, testConfig())
	for _, path := range []string{"/nope", "/api/nope"} {
		rec := do(e, http.MethodGet, path, "")
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: expected 404, got %d", path, rec.Code)
		}
		var body map[string]interface{}
		json.Unmarshal(rec.Body.Bytes(), &body)
		if body["error"] != "Not found" {
			t.Errorf("%s: expected error 'Not found', got %v", path, body["error"])
		}
	}
}

func TestServer_TransformThenGet(t *testing.T) {
	e := newTestServer(t, testConfig())

	rec := do(e, http.MethodPost, "/api/transform", submission)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := rec.Body.String()

	var doc struct {
		ID    string            `json:"id"`
		Entry []json.RawMessage `json:"entry"`
	}
	if err := json.Unmarshal([]byte(created), &doc); err != nil {
		t.Fatalf("decode bundle: %v", err)
	}
	if len(doc.Entry) != 4 {
		t.Errorf("expected 4 entries, got %d", len(doc.Entry))
	}

	rec = do(e, http.MethodGet, "/api/bundles/"+doc.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != created {
		t.Error("stored bundle differs from the transform response")
	}

	rec = do(e, http.MethodGet, "/fhir/Bundle/"+doc.ID, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from FHIR read, got %d", rec.Code)
	}

	rec = do(e, http.MethodGet, "/api/bundles", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 from list, got %d", rec.Code)
	}
	var page struct {
		Total int `json:"total"`
	}
	json.Unmarshal(rec.Body.Bytes(), &page)
	if page.Total != 1 {
		t.Errorf("expected total 1, got %d", page.Total)
	}
}

func TestServer_TransformInvalidInput(t *testing.T) {
	e := newTestServer(t, testConfig())
	rec := do(e, http.MethodPost, "/api/transform", `{"patient": {}}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Error != "Invalid input data" {
		t.Errorf("unexpected error kind %q", body.Error)
	}
	if _, ok := body.Details["patient.vorname"]; !ok {
		t.Errorf("expected patient.vorname in details, got %v", body.Details)
	}
}

func TestServer_BundleNotFound(t *testing.T) {
	e := newTestServer(t, testConfig())
	rec := do(e, http.MethodGet, "/api/bundles/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestServer_BodyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.BodyLimit = "1K"
	e := newTestServer(t, cfg)

	big := `{"patient": {"vorname": "` + strings.Repeat("x", 2048) + `"}}`
	rec := do(e, http.MethodPost, "/api/transform", big)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
}

func TestServer_Health(t *testing.T) {
	e := newTestServer(t, testConfig())
	rec := do(e, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]interface{}
	json.Unmarshal(rec.Body.Bytes(), &body)
	if body["backend"] != config.BackendMemory {
		t.Errorf("expected backend memory, got %v", body["backend"])
	}
}

func TestServer_Metrics(t *testing.T) {
	e := newTestServer(t, testConfig())
	do(e, http.MethodGet, "/api/ping", "")
	rec := do(e, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "http_requests_total") {
		t.Error("expected http_requests_total in exposition")
	}
}

func TestServer_JWTGuardsAPIRoutes(t *testing.T) {
	cfg := testConfig()
	cfg.AuthJWTSecret = "server-test-secret"
	e := newTestServer(t, cfg)

	if rec := do(e, http.MethodGet, "/api/ping", ""); rec.Code != http.StatusOK {
		t.Errorf("ping must stay public, got %d", rec.Code)
	}
	if rec := do(e, http.MethodPost, "/api/transform", submission); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", rec.Code)
	}
	if rec := do(e, http.MethodGet, "/api/bundles", ""); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 on list without token, got %d", rec.Code)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "ingest-client",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	signed, err := token.SignedString([]byte(cfg.AuthJWTSecret))
	if err != nil {
		t.Fatal(err)
	}
	rec := do(e, http.MethodPost, "/api/transform", submission, echo.HeaderAuthorization, "Bearer "+signed)
	if rec.Code != http.StatusCreated {
		t.Errorf("expected 201 with token, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOpenPublishers_NoneConfigured(t *testing.T) {
	pub, closeFn, err := openPublishers(testConfig(), zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()
	if _, ok := pub.(notification.Nop); !ok {
		t.Errorf("expected Nop publisher, got %T", pub)
	}
}

func TestOpenPublishers_Webhook(t *testing.T) {
	cfg := testConfig()
	cfg.WebhookURL = "https://hooks.example/fhir"
	pub, closeFn, err := openPublishers(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()
	if pub.Name() != "webhook" {
		t.Errorf("expected webhook publisher, got %s", pub.Name())
	}

	cfg.WebhookURL = "ftp://hooks.example"
	if _, _, err := openPublishers(cfg, zerolog.Nop()); err == nil {
		t.Error("expected error for non-http webhook url")
	}
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	cfg := testConfig()
	cfg.StoreBackend = "sqlite"
	if _, err := openStore(context.Background(), cfg, zerolog.Nop()); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestTransformCmd_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submission.json")
	if err := os.WriteFile(path, []byte(submission), 0o600); err != nil {
		t.Fatal(err)
	}

	cmd := transformCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--file", path})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var doc map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if doc["resourceType"] != "Bundle" {
		t.Errorf("expected Bundle, got %v", doc["resourceType"])
	}
}

func TestTransformCmd_Stdin(t *testing.T) {
	cmd := transformCmd()
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader(`{"patient": {"vorname": "Max"}}`))
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "patient.nachname") {
		t.Errorf("expected field list in error, got %q", err.Error())
	}
	if out.Len() != 0 {
		t.Error("no bundle may be printed for invalid input")
	}
}

func TestOpenPublishers_ExtraChannel(t *testing.T) {
	hub := websocket.NewHub(zerolog.Nop())
	pub, closeFn, err := openPublishers(testConfig(), zerolog.Nop(), hub)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer closeFn()
	if pub.Name() != "websocket" {
		t.Errorf("expected the hub as sole publisher, got %s", pub.Name())
	}
}

func TestServer_OpenAPI(t *testing.T) {
	e := newTestServer(t, testConfig())
	rec := do(e, http.MethodGet, "/api/openapi.json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatal(err)
	}
	if doc["openapi"] != "3.0.3" {
		t.Errorf("unexpected openapi version %v", doc["openapi"])
	}
}
