package transform

import (
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func invalidFields(t *testing.T, body string) map[string]string {
	t.Helper()
	_, err := DecodeSubmission(strings.NewReader(body))
	var inv *InvalidInputError
	require.True(t, errors.As(err, &inv), "expected InvalidInputError, got %v", err)
	return inv.Fields
}

func TestDecodeSubmission_Valid(t *testing.T) {
	sub, err := DecodeSubmission(strings.NewReader(`{
		"patient": {"vorname": "Max", "nachname": "Mustermann", "geburtsdatum": "1985-05-15", "geschlecht": "male"},
		"laborwerte": [{"loinc": "2345-7", "wert": 5.4, "einheit": "mmol/L", "gemessen_am": "2024-03-14T08:15:00.123+01:00"}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, Date("1985-05-15"), sub.Patient.BirthDate)
	assert.Empty(t, sub.Diagnoses)
	require.Len(t, sub.Observations, 1)
	assert.Equal(t, DateTime("2024-03-14T08:15:00.123+01:00"), sub.Observations[0].MeasuredAt)
}

func TestDecodeSubmission_MissingPatient(t *testing.T) {
	fields := invalidFields(t, `{"diagnosen": []}`)
	assert.Equal(t, map[string]string{"patient": "field required"}, fields)
}

func TestDecodeSubmission_ReportsEveryMissingField(t *testing.T) {
	fields := invalidFields(t, `{
		"patient": {"vorname": " ", "geburtsdatum": "1985-05-15", "geschlecht": "male"},
		"diagnosen": [{"beschreibung": "x"}],
		"prozeduren": [{}],
		"laborwerte": [{"loinc": "1-8"}]
	}`)
	assert.Equal(t, map[string]string{
		"patient.vorname":       "field required",
		"patient.nachname":      "field required",
		"diagnosen[0].icd10":    "field required",
		"prozeduren[0].ops":     "field required",
		"laborwerte[0].wert":    "field required",
		"laborwerte[0].einheit": "field required",
	}, fields)
}

func TestDecodeSubmission_DateFormats(t *testing.T) {
	fields := invalidFields(t, `{
		"patient": {"vorname": "A", "nachname": "B", "geburtsdatum": "15.05.1985", "geschlecht": "male"},
		"diagnosen": [{"icd10": "I10", "begonnen_am": "2020-13-01"}],
		"prozeduren": [{"ops": "1-1", "datum": "2020-01-01T10:00:00"}],
		"laborwerte": [{"loinc": "1-8", "wert": 1, "einheit": "mg", "gemessen_am": "2024-03-14"}]
	}`)
	assert.Contains(t, fields["patient.geburtsdatum"], "YYYY-MM-DD")
	assert.Contains(t, fields, "diagnosen[0].begonnen_am")
	assert.Contains(t, fields, "prozeduren[0].datum")
	assert.Contains(t, fields["laborwerte[0].gemessen_am"], "ISO 8601")
}

func TestDecodeSubmission_WrongPrimitiveType(t *testing.T) {
	fields := invalidFields(t, `{
		"patient": {"vorname": "A", "nachname": "B", "geburtsdatum": "2000-01-01", "geschlecht": "male"},
		"laborwerte": [{"loinc": "1-8", "wert": "high", "einheit": "mg"}]
	}`)
	require.Len(t, fields, 1)
	for path, msg := range fields {
		assert.Contains(t, path, "wert")
		assert.Contains(t, msg, "float64")
	}
}

func TestDecodeSubmission_MalformedJSON(t *testing.T) {
	assert.Contains(t, invalidFields(t, `{"patient": `), "body")
	assert.Contains(t, invalidFields(t, `{"patient": }`), "body")
	assert.Equal(t, "request body is empty", invalidFields(t, ``)["body"])
	assert.Equal(t, "expected a JSON object", invalidFields(t, `[1,2]`)["body"])
}

func TestDecodeSubmission_SexNotCheckedByValidator(t *testing.T) {
	sub, err := DecodeSubmission(strings.NewReader(
		`{"patient": {"vorname": "A", "nachname": "B", "geburtsdatum": "2000-01-01", "geschlecht": "diverse"}}`))
	require.NoError(t, err)
	assert.False(t, sub.Patient.Sex.Valid())
}

type failingReader struct{ err error }

func (r failingReader) Read([]byte) (int, error) { return 0, r.err }

func TestDecodeSubmission_ReadErrorIsNotInvalidInput(t *testing.T) {
	readErr := errors.New("connection reset")
	_, err := DecodeSubmission(failingReader{err: readErr})

	var inv *InvalidInputError
	assert.False(t, errors.As(err, &inv))
	assert.ErrorIs(t, err, readErr)
}

func TestDateTime_Valid(t *testing.T) {
	valid := []DateTime{"2024-03-14T08:15:00Z", "2024-03-14T08:15:00", "2024-03-14T08:15:00.5", "2024-03-14T08:15:00+02:00"}
	for _, d := range valid {
		assert.True(t, d.Valid(), string(d))
	}
	invalid := []DateTime{"2024-03-14", "2024-03-14 08:15:00", "yesterday"}
	for _, d := range invalid {
		assert.False(t, d.Valid(), string(d))
	}
}

func TestInvalidInputError_MessageIsSorted(t *testing.T) {
	err := newInvalidInput(map[string]string{"b": "two", "a": "one"})
	assert.Equal(t, "invalid input: a: one; b: two", err.Error())
}

var _ io.Reader = failingReader{}

func TestDecodeSubmission_RejectsTrailingData(t *testing.T) {
	valid := `{"patient": {"vorname": "A", "nachname": "B", "geburtsdatum": "2000-01-01", "geschlecht": "female"}}`

	for _, trailing := range []string{` {"not":"a submission"} garbage`, ` garbage`, `{`, `]`} {
		fields := invalidFields(t, valid+trailing)
		assert.Equal(t, "unexpected data after the JSON object", fields["body"], "trailing %q", trailing)
	}

	_, err := DecodeSubmission(strings.NewReader(valid + "\n\t "))
	assert.NoError(t, err, "trailing whitespace is allowed")
}

func TestDecodeSubmission_ReadErrorAfterObject(t *testing.T) {
	readErr := errors.New("connection reset")
	valid := `{"patient": {"vorname": "A", "nachname": "B", "geburtsdatum": "2000-01-01", "geschlecht": "female"}} `
	_, err := DecodeSubmission(io.MultiReader(strings.NewReader(valid), failingReader{err: readErr}))

	var inv *InvalidInputError
	assert.False(t, errors.As(err, &inv))
	assert.ErrorIs(t, err, readErr)
}
