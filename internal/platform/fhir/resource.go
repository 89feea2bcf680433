package fhir

import "fmt"

// Resource is implemented by every typed resource that can be placed in a
// Bundle entry.
type Resource interface {
	GetResourceType() string
	GetID() string
}

type Meta struct {
	Profile []string `json:"profile,omitempty"`
}

type Coding struct {
	System  string `json:"system,omitempty"`
	Code    string `json:"code,omitempty"`
	Display string `json:"display,omitempty"`
}

type CodeableConcept struct {
	Coding []Coding `json:"coding,omitempty"`
	Text   string   `json:"text,omitempty"`
}

type Reference struct {
	Reference string `json:"reference,omitempty"`
}

type HumanName struct {
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

// Quantity always serializes its value, zero included.
type Quantity struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit,omitempty"`
}

type ReferenceRange struct {
	Low  *Quantity `json:"low,omitempty"`
	High *Quantity `json:"high,omitempty"`
}

// FormatReference builds a relative literal reference such as "Patient/pat-1".
func FormatReference(resourceType, id string) string {
	return fmt.Sprintf("%s/%s", resourceType, id)
}

// TextConcept returns a CodeableConcept that carries only free text.
func TextConcept(text string) CodeableConcept {
	return CodeableConcept{Text: text}
}
