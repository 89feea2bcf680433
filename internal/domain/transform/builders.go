package transform

import "github.com/ehr/fhirtransform/internal/platform/fhir"

// Builders are pure: identifiers and the patient reference are always
// passed in, never produced here.

// BuildPatient maps the submitted patient. A sex outside the closed
// male/female enumeration is a *MappingError.
func BuildPatient(id string, in PatientInput) (*Patient, error) {
	if !in.Sex.Valid() {
		return nil, &MappingError{
			Field:  "patient.geschlecht",
			Value:  string(in.Sex),
			Reason: "must be one of male, female",
		}
	}
	return &Patient{
		ResourceType: ResourceTypePatient,
		ID:           id,
		Meta:         &fhir.Meta{Profile: []string{ProfilePatient}},
		Name: []fhir.HumanName{{
			Family: in.FamilyName,
			Given:  []string{in.GivenName},
		}},
		Gender:    string(in.Sex),
		BirthDate: string(in.BirthDate),
	}, nil
}

// PatientReference is the subject reference every other resource carries.
func PatientReference(patientID string) fhir.Reference {
	return fhir.Reference{Reference: fhir.FormatReference(ResourceTypePatient, patientID)}
}

// BuildCondition maps one diagnosis. A missing clinical status becomes
// "active"; a supplied one is copied verbatim.
func BuildCondition(id string, subject fhir.Reference, in DiagnosisInput) *Condition {
	status := in.ClinicalStatus
	if status == "" {
		status = DefaultClinicalStatus
	}
	return &Condition{
		ResourceType:   ResourceTypeCondition,
		ID:             id,
		Subject:        subject,
		Code:           codedValue(SystemICD10, in.ICD10, in.Description),
		ClinicalStatus: fhir.TextConcept(status),
		OnsetDateTime:  string(in.OnsetDate),
	}
}

// BuildProcedure maps one procedure; procedures are always reported completed.
func BuildProcedure(id string, subject fhir.Reference, in ProcedureInput) *Procedure {
	return &Procedure{
		ResourceType:      ResourceTypeProcedure,
		ID:                id,
		Status:            ProcedureStatus,
		Subject:           subject,
		Code:              codedValue(SystemOPS, in.OPS, in.Description),
		PerformedDateTime: string(in.PerformedDate),
	}
}

// BuildObservation maps one laboratory result. The reference range is
// emitted only when both bounds are present.
func BuildObservation(id string, subject fhir.Reference, in ObservationInput) *Observation {
	obs := &Observation{
		ResourceType:      ResourceTypeObservation,
		ID:                id,
		Status:            ObservationStatus,
		Category:          []fhir.CodeableConcept{fhir.TextConcept(ObservationCategory)},
		Code:              codedValue(SystemLOINC, in.LOINC, in.Description),
		Subject:           subject,
		EffectiveDateTime: string(in.MeasuredAt),
		ValueQuantity:     fhir.Quantity{Value: valueOf(in.Value), Unit: in.Unit},
	}
	if in.RangeLow != nil && in.RangeHigh != nil {
		obs.ReferenceRange = []fhir.ReferenceRange{{
			Low:  &fhir.Quantity{Value: *in.RangeLow, Unit: in.Unit},
			High: &fhir.Quantity{Value: *in.RangeHigh, Unit: in.Unit},
		}}
	}
	return obs
}

// codedValue builds the code concept. Without a description both the
// coding display and the concept text are left out.
func codedValue(system, code, description string) fhir.CodeableConcept {
	return fhir.CodeableConcept{
		Coding: []fhir.Coding{{
			System:  system,
			Code:    code,
			Display: description,
		}},
		Text: description,
	}
}

func valueOf(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
