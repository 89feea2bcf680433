package transform

import "github.com/ehr/fhirtransform/internal/platform/fhir"

const (
	SystemICD10 = "http://hl7.org/fhir/sid/icd-10"
	SystemOPS   = "http://fhir.de/CodeSystem/dimdi/ops"
	SystemLOINC = "http://loinc.org"

	ProfilePatient = "http://hl7.org/fhir/StructureDefinition/Patient"

	DefaultClinicalStatus = "active"
	ProcedureStatus       = "completed"
	ObservationStatus     = "final"
	ObservationCategory   = "laboratory"
)

const (
	ResourceTypePatient     = "Patient"
	ResourceTypeCondition   = "Condition"
	ResourceTypeProcedure   = "Procedure"
	ResourceTypeObservation = "Observation"
)

type Patient struct {
	ResourceType string           `json:"resourceType"`
	ID           string           `json:"id"`
	Meta         *fhir.Meta       `json:"meta,omitempty"`
	Name         []fhir.HumanName `json:"name"`
	Gender       string           `json:"gender"`
	BirthDate    string           `json:"birthDate"`
}

func (p *Patient) GetResourceType() string { return p.ResourceType }
func (p *Patient) GetID() string           { return p.ID }

type Condition struct {
	ResourceType   string               `json:"resourceType"`
	ID             string               `json:"id"`
	Subject        fhir.Reference       `json:"subject"`
	Code           fhir.CodeableConcept `json:"code"`
	ClinicalStatus fhir.CodeableConcept `json:"clinicalStatus"`
	OnsetDateTime  string               `json:"onsetDateTime,omitempty"`
}

func (c *Condition) GetResourceType() string { return c.ResourceType }
func (c *Condition) GetID() string           { return c.ID }

type Procedure struct {
	ResourceType      string               `json:"resourceType"`
	ID                string               `json:"id"`
	Status            string               `json:"status"`
	Subject           fhir.Reference       `json:"subject"`
	Code              fhir.CodeableConcept `json:"code"`
	PerformedDateTime string               `json:"performedDateTime,omitempty"`
}

func (p *Procedure) GetResourceType() string { return p.ResourceType }
func (p *Procedure) GetID() string           { return p.ID }

type Observation struct {
	ResourceType      string                 `json:"resourceType"`
	ID                string                 `json:"id"`
	Status            string                 `json:"status"`
	Category          []fhir.CodeableConcept `json:"category"`
	Code              fhir.CodeableConcept   `json:"code"`
	Subject           fhir.Reference         `json:"subject"`
	EffectiveDateTime string                 `json:"effectiveDateTime,omitempty"`
	ValueQuantity     fhir.Quantity          `json:"valueQuantity"`
	ReferenceRange    []fhir.ReferenceRange  `json:"referenceRange,omitempty"`
}

func (o *Observation) GetResourceType() string { return o.ResourceType }
func (o *Observation) GetID() string           { return o.ID }
