package transform

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPatient(t *testing.T) {
	p, err := BuildPatient("pat-1", PatientInput{GivenName: "Max", FamilyName: "Mustermann", BirthDate: "1980-05-12", Sex: SexMale})
	require.NoError(t, err)
	assert.Equal(t, "pat-1", p.ID)
	assert.Equal(t, "male", p.Gender)
	assert.Equal(t, []string{ProfilePatient}, p.Meta.Profile)
	require.Len(t, p.Name, 1)
	assert.Equal(t, "Mustermann", p.Name[0].Family)
	assert.Equal(t, []string{"Max"}, p.Name[0].Given)
}

func TestBuildPatient_RejectsUnknownSex(t *testing.T) {
	for _, sex := range []Sex{"", "MALE", "unknown"} {
		_, err := BuildPatient("pat-1", PatientInput{Sex: sex})
		var mapErr *MappingError
		require.True(t, errors.As(err, &mapErr), "sex %q", sex)
		assert.Equal(t, "patient.geschlecht", mapErr.Field)
		assert.Equal(t, string(sex), mapErr.Value)
	}
}

func TestBuildCondition_ClinicalStatus(t *testing.T) {
	ref := PatientReference("pat-1")

	c := BuildCondition("cond-1", ref, DiagnosisInput{ICD10: "I10"})
	assert.Equal(t, DefaultClinicalStatus, c.ClinicalStatus.Text)

	c = BuildCondition("cond-2", ref, DiagnosisInput{ICD10: "I10", ClinicalStatus: "remission"})
	assert.Equal(t, "remission", c.ClinicalStatus.Text)
	assert.Equal(t, "Patient/pat-1", c.Subject.Reference)
}

func TestBuildObservation_RangeNeedsBothBounds(t *testing.T) {
	ref := PatientReference("pat-1")

	obs := BuildObservation("obs-1", ref, ObservationInput{LOINC: "718-7", Value: ptr(13.2), Unit: "g/dL", RangeHigh: ptr(17)})
	assert.Empty(t, obs.ReferenceRange)

	obs = BuildObservation("obs-2", ref, ObservationInput{LOINC: "718-7", Value: ptr(13.2), Unit: "g/dL", RangeLow: ptr(12), RangeHigh: ptr(17)})
	require.Len(t, obs.ReferenceRange, 1)
	assert.Equal(t, 12.0, obs.ReferenceRange[0].Low.Value)
	assert.Equal(t, 17.0, obs.ReferenceRange[0].High.Value)
	assert.Equal(t, "g/dL", obs.ReferenceRange[0].High.Unit)
}

func TestBuildProcedure(t *testing.T) {
	p := BuildProcedure("proc-1", PatientReference("pat-1"), ProcedureInput{OPS: "5-470.11"})
	assert.Equal(t, ProcedureStatus, p.Status)
	assert.Equal(t, SystemOPS, p.Code.Coding[0].System)
	assert.Empty(t, p.Code.Text)
	assert.Empty(t, p.Code.Coding[0].Display)
}
