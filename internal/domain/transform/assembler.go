package transform

import (
	"time"

	"github.com/ehr/fhirtransform/internal/platform/fhir"
)

// TimestampLayout is the bundle timestamp shape: UTC, seconds precision.
const TimestampLayout = "2006-01-02T15:04:05Z"

// Assembler composes built resources into a collection Bundle.
type Assembler struct {
	ids *IdentifierAllocator
}

func NewAssembler(ids *IdentifierAllocator) *Assembler {
	return &Assembler{ids: ids}
}

// Assemble allocates the bundle id, stamps now and orders entries as
// patient, conditions, procedures, observations, each in input order.
func (a *Assembler) Assemble(patient *Patient, conditions []*Condition, procedures []*Procedure, observations []*Observation, now time.Time) *fhir.Bundle {
	resources := make([]fhir.Resource, 0, 1+len(conditions)+len(procedures)+len(observations))
	resources = append(resources, patient)
	for _, c := range conditions {
		resources = append(resources, c)
	}
	for _, p := range procedures {
		resources = append(resources, p)
	}
	for _, o := range observations {
		resources = append(resources, o)
	}

	return fhir.NewCollectionBundle(
		a.ids.Allocate(KindBundle),
		now.UTC().Format(TimestampLayout),
		resources,
	)
}
