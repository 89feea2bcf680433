package openapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Generator builds the OpenAPI 3.0 description of the HTTP surface.
type Generator struct {
	version string
	baseURL string
}

func NewGenerator(version, baseURL string) *Generator {
	return &Generator{version: version, baseURL: baseURL}
}

// GenerateSpec produces the OpenAPI 3.0 spec as a map.
func (g *Generator) GenerateSpec() map[string]interface{} {
	idParam := []map[string]interface{}{
		{"name": "id", "in": "path", "required": true, "schema": map[string]string{"type": "string"}},
	}

	paths := map[string]interface{}{
		"/api/ping": map[string]interface{}{
			"get": map[string]interface{}{
				"summary":     "Liveness probe",
				"operationId": "ping",
				"tags":        []string{"service"},
				"responses": map[string]interface{}{
					"200": map[string]interface{}{"description": "Service is up"},
				},
			},
		},
		"/api/transform": map[string]interface{}{
			"post": map[string]interface{}{
				"summary":     "Transform a submission into a FHIR collection Bundle",
				"operationId": "transform",
				"tags":        []string{"transform"},
				"security":    bearer(),
				"requestBody": jsonBody("#/components/schemas/Submission"),
				"responses": map[string]interface{}{
					"201": jsonResponse("Stored Bundle", "application/json", "#/components/schemas/Bundle"),
					"400": jsonResponse("Invalid input data or mapping failure", "application/json", "#/components/schemas/Error"),
					"413": jsonResponse("Request body too large", "application/json", "#/components/schemas/Error"),
					"500": jsonResponse("Storage failure", "application/json", "#/components/schemas/Error"),
				},
			},
		},
		"/api/bundles": map[string]interface{}{
			"get": map[string]interface{}{
				"summary":     "List stored bundles, newest first",
				"operationId": "listBundles",
				"tags":        []string{"bundles"},
				"security":    bearer(),
				"parameters": []map[string]interface{}{
					{"name": "limit", "in": "query", "schema": map[string]interface{}{"type": "integer", "minimum": 1, "maximum": 100, "default": 20}},
					{"name": "offset", "in": "query", "schema": map[string]interface{}{"type": "integer", "minimum": 0, "default": 0}},
				},
				"responses": map[string]interface{}{
					"200": jsonResponse("Page of bundle summaries", "application/json", "#/components/schemas/BundlePage"),
				},
			},
		},
		"/api/bundles/{id}": map[string]interface{}{
			"get": map[string]interface{}{
				"summary":     "Read a stored bundle exactly as it was returned",
				"operationId": "getBundle",
				"tags":        []string{"bundles"},
				"security":    bearer(),
				"parameters":  idParam,
				"responses": map[string]interface{}{
					"200": jsonResponse("Stored Bundle", "application/json", "#/components/schemas/Bundle"),
					"404": jsonResponse("Not found", "application/json", "#/components/schemas/Error"),
				},
			},
		},
		"/api/events": map[string]interface{}{
			"get": map[string]interface{}{
				"summary":     "WebSocket feed of bundle.created events",
				"operationId": "events",
				"tags":        []string{"bundles"},
				"security":    bearer(),
				"responses": map[string]interface{}{
					"101": map[string]interface{}{"description": "Switching to the WebSocket protocol"},
				},
			},
		},
		"/fhir/Bundle/$transform": map[string]interface{}{
			"post": map[string]interface{}{
				"summary":     "Transform a submission, FHIR error semantics",
				"operationId": "fhirTransform",
				"tags":        []string{"fhir"},
				"security":    bearer(),
				"requestBody": jsonBody("#/components/schemas/Submission"),
				"responses": map[string]interface{}{
					"201": jsonResponse("Stored Bundle", "application/fhir+json", "#/components/schemas/Bundle"),
					"400": jsonResponse("Invalid input", "application/fhir+json", "#/components/schemas/OperationOutcome"),
					"500": jsonResponse("Storage failure", "application/fhir+json", "#/components/schemas/OperationOutcome"),
				},
			},
		},
		"/fhir/Bundle/{id}": map[string]interface{}{
			"get": map[string]interface{}{
				"summary":     "Read a stored Bundle",
				"operationId": "fhirReadBundle",
				"tags":        []string{"fhir"},
				"security":    bearer(),
				"parameters":  idParam,
				"responses": map[string]interface{}{
					"200": jsonResponse("Stored Bundle", "application/fhir+json", "#/components/schemas/Bundle"),
					"404": jsonResponse("Not found", "application/fhir+json", "#/components/schemas/OperationOutcome"),
				},
			},
		},
		"/health": map[string]interface{}{
			"get": map[string]interface{}{
				"summary":     "Store health",
				"operationId": "health",
				"tags":        []string{"service"},
				"responses": map[string]interface{}{
					"200": map[string]interface{}{"description": "Store reachable"},
					"503": map[string]interface{}{"description": "Store unreachable"},
				},
			},
		},
	}

	return map[string]interface{}{
		"openapi": "3.0.3",
		"info": map[string]interface{}{
			"title":       "FHIR Transformer API",
			"version":     g.version,
			"description": "Maps clinical submissions to FHIR R4 collection Bundles",
		},
		"servers": []map[string]string{
			{"url": g.baseURL},
		},
		"paths": paths,
		"components": map[string]interface{}{
			"schemas": buildComponentSchemas(),
			"securitySchemes": map[string]interface{}{
				"bearerAuth": map[string]interface{}{"type": "http", "scheme": "bearer", "bearerFormat": "JWT"},
			},
		},
	}
}

func bearer() []map[string][]string {
	return []map[string][]string{{"bearerAuth": {}}}
}

func jsonBody(schemaRef string) map[string]interface{} {
	return map[string]interface{}{
		"required": true,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{
				"schema": map[string]interface{}{"$ref": schemaRef},
			},
		},
	}
}

func jsonResponse(description, mediaType, schemaRef string) map[string]interface{} {
	return map[string]interface{}{
		"description": description,
		"content": map[string]interface{}{
			mediaType: map[string]interface{}{
				"schema": map[string]interface{}{"$ref": schemaRef},
			},
		},
	}
}

func buildComponentSchemas() map[string]interface{} {
	return map[string]interface{}{
		// input
		"Submission":       buildSubmissionSchema(),
		"PatientInput":     buildPatientInputSchema(),
		"DiagnosisInput":   buildDiagnosisInputSchema(),
		"ProcedureInput":   buildProcedureInputSchema(),
		"ObservationInput": buildObservationInputSchema(),

		// output
		"Coding":           buildCodingSchema(),
		"CodeableConcept":  buildCodeableConceptSchema(),
		"Reference":        buildReferenceSchema(),
		"Quantity":         buildQuantitySchema(),
		"Bundle":           buildBundleSchema(),
		"OperationOutcome": buildOperationOutcomeSchema(),
		"Error":            buildErrorSchema(),
		"BundlePage":       buildBundlePageSchema(),
	}
}

func str() map[string]interface{} { return map[string]interface{}{"type": "string"} }

func ref(name string) map[string]interface{} {
	return map[string]interface{}{"$ref": "#/components/schemas/" + name}
}

func arrayOf(items map[string]interface{}) map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": items}
}

func date() map[string]interface{} {
	return map[string]interface{}{"type": "string", "format": "date", "example": "1980-05-12"}
}

// ── Submission schemas ──────────────────────────────────────────────────

func buildSubmissionSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"patient":    ref("PatientInput"),
			"diagnosen":  arrayOf(ref("DiagnosisInput")),
			"prozeduren": arrayOf(ref("ProcedureInput")),
			"laborwerte": arrayOf(ref("ObservationInput")),
		},
		"required": []string{"patient"},
	}
}

func buildPatientInputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"id":           str(),
			"vorname":      str(),
			"nachname":     str(),
			"geburtsdatum": date(),
			"geschlecht":   map[string]interface{}{"type": "string", "enum": []string{"male", "female"}},
		},
		"required": []string{"vorname", "nachname", "geburtsdatum", "geschlecht"},
	}
}

func buildDiagnosisInputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"icd10":             str(),
			"beschreibung":      str(),
			"begonnen_am":       date(),
			"klinischer_status": map[string]interface{}{"type": "string", "default": "active"},
		},
		"required": []string{"icd10"},
	}
}

func buildProcedureInputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"ops":          str(),
			"beschreibung": str(),
			"datum":        date(),
		},
		"required": []string{"ops"},
	}
}

func buildObservationInputSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"loinc":        str(),
			"beschreibung": str(),
			"wert":         map[string]interface{}{"type": "number"},
			"einheit":      str(),
			"gemessen_am":  map[string]interface{}{"type": "string", "format": "date-time"},
			"referenz_min": map[string]interface{}{"type": "number"},
			"referenz_max": map[string]interface{}{"type": "number"},
		},
		"required": []string{"loinc", "wert", "einheit"},
	}
}

// ── FHIR schemas ────────────────────────────────────────────────────────

func buildCodingSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"system":  map[string]interface{}{"type": "string", "format": "uri"},
			"code":    str(),
			"display": str(),
		},
	}
}

func buildCodeableConceptSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"coding": arrayOf(ref("Coding")),
			"text":   str(),
		},
	}
}

func buildReferenceSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"reference": map[string]interface{}{"type": "string", "example": "Patient/pat-1"},
		},
	}
}

func buildQuantitySchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"value": map[string]interface{}{"type": "number"},
			"unit":  str(),
		},
	}
}

func buildBundleSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"resourceType": map[string]interface{}{"type": "string", "enum": []string{"Bundle"}},
			"id":           str(),
			"type":         map[string]interface{}{"type": "string", "enum": []string{"collection"}},
			"timestamp":    map[string]interface{}{"type": "string", "format": "date-time"},
			"entry": arrayOf(map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"resource": map[string]interface{}{
						"type":        "object",
						"description": "Patient first, then Conditions, Procedures and Observations in submission order",
					},
				},
			}),
		},
		"required": []string{"resourceType", "id", "type", "timestamp", "entry"},
	}
}

func buildOperationOutcomeSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"resourceType": map[string]interface{}{"type": "string", "enum": []string{"OperationOutcome"}},
			"issue": arrayOf(map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"severity": map[string]interface{}{
						"type": "string",
						"enum": []string{"fatal", "error", "warning", "information"},
					},
					"code":        str(),
					"diagnostics": str(),
					"expression":  arrayOf(str()),
				},
				"required": []string{"severity", "code"},
			}),
		},
		"required": []string{"resourceType", "issue"},
	}
}

func buildErrorSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"error": map[string]interface{}{
				"type": "string",
				"enum": []string{"Invalid input data", "Mapping failure", "Storage failure", "Not found", "Internal server error"},
			},
			"message": str(),
			"details": map[string]interface{}{"type": "object", "additionalProperties": str()},
		},
		"required": []string{"error"},
	}
}

func buildBundlePageSchema() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"data": arrayOf(map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"id":         str(),
					"created_at": map[string]interface{}{"type": "string", "format": "date-time"},
				},
			}),
			"total":    map[string]interface{}{"type": "integer"},
			"limit":    map[string]interface{}{"type": "integer"},
			"offset":   map[string]interface{}{"type": "integer"},
			"has_more": map[string]interface{}{"type": "boolean"},
			"next":     str(),
		},
	}
}

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>FHIR Transformer API - Swagger UI</title>
  <link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" >
  <style>
    html { box-sizing: border-box; overflow-y: scroll; }
    *, *:before, *:after { box-sizing: inherit; }
    body { margin: 0; background: #fafafa; }
  </style>
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({
      url: "/api/openapi.json",
      dom_id: '#swagger-ui',
      deepLinking: true,
      presets: [
        SwaggerUIBundle.presets.apis,
        SwaggerUIBundle.SwaggerUIStandalonePreset
      ],
      layout: "BaseLayout"
    })
  </script>
</body>
</html>`

// RegisterRoutes registers the OpenAPI endpoints.
func (g *Generator) RegisterRoutes(apiGroup *echo.Group) {
	spec := g.GenerateSpec()
	apiGroup.GET("/openapi.json", func(c echo.Context) error {
		return c.JSON(http.StatusOK, spec)
	})
	apiGroup.GET("/docs", func(c echo.Context) error {
		return c.HTML(http.StatusOK, swaggerUIHTML)
	})
}
