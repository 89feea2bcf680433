package transform

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Sex is the administrative sex of the submitted patient.
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
)

// Valid reports whether s is one of the two accepted values.
func (s Sex) Valid() bool {
	return s == SexMale || s == SexFemale
}

// Date is a calendar date in YYYY-MM-DD form, kept exactly as submitted.
type Date string

const dateLayout = "2006-01-02"

func (d Date) IsZero() bool { return d == "" }

func (d Date) Valid() bool {
	_, err := time.Parse(dateLayout, string(d))
	return err == nil
}

// DateTime is an ISO 8601 date-time, kept exactly as submitted so its
// precision and offset are never rewritten.
type DateTime string

// Accepted date-time shapes: seconds precision with optional fraction,
// with or without a zone designator.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
}

func (d DateTime) IsZero() bool { return d == "" }

func (d DateTime) Valid() bool {
	for _, layout := range dateTimeLayouts {
		if _, err := time.Parse(layout, string(d)); err == nil {
			return true
		}
	}
	return false
}

// Submission is one medical submission: a patient plus optional lists of
// diagnoses, procedures and laboratory results.
type Submission struct {
	Patient      *PatientInput      `json:"patient"`
	Diagnoses    []DiagnosisInput   `json:"diagnosen"`
	Procedures   []ProcedureInput   `json:"prozeduren"`
	Observations []ObservationInput `json:"laborwerte"`
}

type PatientInput struct {
	// ID, when set, is used verbatim as the Patient resource id.
	ID         string `json:"id,omitempty"`
	GivenName  string `json:"vorname"`
	FamilyName string `json:"nachname"`
	BirthDate  Date   `json:"geburtsdatum"`
	Sex        Sex    `json:"geschlecht"`
}

type DiagnosisInput struct {
	ICD10          string `json:"icd10"`
	Description    string `json:"beschreibung,omitempty"`
	OnsetDate      Date   `json:"begonnen_am,omitempty"`
	ClinicalStatus string `json:"klinischer_status,omitempty"`
}

type ProcedureInput struct {
	OPS           string `json:"ops"`
	Description   string `json:"beschreibung,omitempty"`
	PerformedDate Date   `json:"datum,omitempty"`
}

type ObservationInput struct {
	LOINC       string   `json:"loinc"`
	Description string   `json:"beschreibung,omitempty"`
	Value       *float64 `json:"wert"`
	Unit        string   `json:"einheit"`
	MeasuredAt  DateTime `json:"gemessen_am,omitempty"`
	RangeLow    *float64 `json:"referenz_min,omitempty"`
	RangeHigh   *float64 `json:"referenz_max,omitempty"`
}

// DecodeSubmission reads one JSON submission and validates it. Malformed
// or invalid input is returned as an *InvalidInputError; failures reading
// r itself are wrapped and returned unchanged.
func DecodeSubmission(r io.Reader) (*Submission, error) {
	var sub Submission
	dec := json.NewDecoder(r)
	if err := dec.Decode(&sub); err != nil {
		return nil, decodeError(err)
	}
	if err := dec.Decode(&json.RawMessage{}); !errors.Is(err, io.EOF) {
		if err != nil {
			var inv *InvalidInputError
			if derr := decodeError(err); !errors.As(derr, &inv) {
				return nil, derr
			}
		}
		return nil, newInvalidInput(map[string]string{"body": "unexpected data after the JSON object"})
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	return &sub, nil
}

func decodeError(err error) error {
	var (
		typeErr   *json.UnmarshalTypeError
		syntaxErr *json.SyntaxError
	)
	switch {
	case errors.As(err, &typeErr) && typeErr.Field != "":
		return newInvalidInput(map[string]string{
			typeErr.Field: fmt.Sprintf("expected %s, got %s", typeErr.Type.String(), typeErr.Value),
		})
	case errors.As(err, &typeErr):
		return newInvalidInput(map[string]string{"body": "expected a JSON object"})
	case errors.As(err, &syntaxErr):
		return newInvalidInput(map[string]string{"body": syntaxErr.Error()})
	case errors.Is(err, io.EOF):
		return newInvalidInput(map[string]string{"body": "request body is empty"})
	case errors.Is(err, io.ErrUnexpectedEOF):
		return newInvalidInput(map[string]string{"body": "unexpected end of JSON input"})
	default:
		return fmt.Errorf("read submission: %w", err)
	}
}

// Validate checks presence and primitive shape of every field. It does not
// check the patient's sex against the enumeration; that is a mapping rule.
func (s *Submission) Validate() error {
	v := fieldErrors{}

	if s.Patient == nil {
		v.add("patient", "field required")
	} else {
		p := s.Patient
		v.required("patient.vorname", p.GivenName)
		v.required("patient.nachname", p.FamilyName)
		v.date("patient.geburtsdatum", p.BirthDate, true)
		v.required("patient.geschlecht", string(p.Sex))
	}

	for i, d := range s.Diagnoses {
		prefix := fmt.Sprintf("diagnosen[%d]", i)
		v.required(prefix+".icd10", d.ICD10)
		v.date(prefix+".begonnen_am", d.OnsetDate, false)
	}
	for i, p := range s.Procedures {
		prefix := fmt.Sprintf("prozeduren[%d]", i)
		v.required(prefix+".ops", p.OPS)
		v.date(prefix+".datum", p.PerformedDate, false)
	}
	for i, o := range s.Observations {
		prefix := fmt.Sprintf("laborwerte[%d]", i)
		v.required(prefix+".loinc", o.LOINC)
		if o.Value == nil {
			v.add(prefix+".wert", "field required")
		}
		v.required(prefix+".einheit", o.Unit)
		if !o.MeasuredAt.IsZero() && !o.MeasuredAt.Valid() {
			v.add(prefix+".gemessen_am", "invalid datetime, expected ISO 8601")
		}
	}

	if len(v) > 0 {
		return newInvalidInput(v)
	}
	return nil
}

type fieldErrors map[string]string

func (f fieldErrors) add(path, msg string) { f[path] = msg }

func (f fieldErrors) required(path, value string) {
	if strings.TrimSpace(value) == "" {
		f.add(path, "field required")
	}
}

func (f fieldErrors) date(path string, d Date, required bool) {
	switch {
	case d.IsZero() && required:
		f.add(path, "field required")
	case !d.IsZero() && !d.Valid():
		f.add(path, "invalid date, expected YYYY-MM-DD")
	}
}
