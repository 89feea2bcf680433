package transform

import (
	"io"
	"time"

	"github.com/ehr/fhirtransform/internal/platform/fhir"
)

// Transformer turns a validated Submission into a collection Bundle. Its
// output is a pure function of the submission, the randomness source and
// the clock; it holds no other state.
type Transformer struct {
	ids       *IdentifierAllocator
	assembler *Assembler
	now       func() time.Time
}

type Option func(*Transformer)

// WithRandom sets the source identifier tokens are drawn from.
func WithRandom(r io.Reader) Option {
	return func(t *Transformer) { t.ids = NewIdentifierAllocator(r) }
}

// WithClock sets the clock read once per transformation for the bundle
// timestamp.
func WithClock(now func() time.Time) Option {
	return func(t *Transformer) { t.now = now }
}

func NewTransformer(opts ...Option) *Transformer {
	t := &Transformer{
		ids: NewIdentifierAllocator(nil),
		now: time.Now,
	}
	for _, o := range opts {
		o(t)
	}
	t.assembler = NewAssembler(t.ids)
	return t
}

// Transform builds the bundle for sub. The patient identifier is fixed
// first and threaded into every other builder, so no resource exists
// without its subject reference. A *MappingError aborts the whole call.
func (t *Transformer) Transform(sub *Submission) (*fhir.Bundle, error) {
	if sub == nil || sub.Patient == nil {
		return nil, newInvalidInput(map[string]string{"patient": "field required"})
	}

	patientID := sub.Patient.ID
	if patientID == "" {
		patientID = t.ids.Allocate(KindPatient)
	}
	patient, err := BuildPatient(patientID, *sub.Patient)
	if err != nil {
		return nil, err
	}
	subject := PatientReference(patient.ID)

	conditions := make([]*Condition, len(sub.Diagnoses))
	for i, d := range sub.Diagnoses {
		conditions[i] = BuildCondition(t.ids.Allocate(KindCondition), subject, d)
	}
	procedures := make([]*Procedure, len(sub.Procedures))
	for i, p := range sub.Procedures {
		procedures[i] = BuildProcedure(t.ids.Allocate(KindProcedure), subject, p)
	}
	observations := make([]*Observation, len(sub.Observations))
	for i, o := range sub.Observations {
		observations[i] = BuildObservation(t.ids.Allocate(KindObservation), subject, o)
	}

	return t.assembler.Assemble(patient, conditions, procedures, observations, t.now()), nil
}
