package fhir

import (
	"encoding/json"
	"testing"
)

func TestFormatReference(t *testing.T) {
	if got := FormatReference("Patient", "pat-1"); got != "Patient/pat-1" {
		t.Errorf("expected Patient/pat-1, got %s", got)
	}
}

func TestTextConcept(t *testing.T) {
	cc := TextConcept("appendectomy")
	if cc.Text != "appendectomy" || len(cc.Coding) != 0 {
		t.Errorf("unexpected concept %+v", cc)
	}

	data, err := json.Marshal(cc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"text":"appendectomy"}` {
		t.Errorf("unexpected json %s", data)
	}
}

func TestQuantity_ZeroValueSerialized(t *testing.T) {
	data, err := json.Marshal(Quantity{Value: 0, Unit: "mg"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"value":0,"unit":"mg"}` {
		t.Errorf("unexpected json %s", data)
	}
}

func TestReferenceRange_OmitsMissingBounds(t *testing.T) {
	data, err := json.Marshal(ReferenceRange{})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{}` {
		t.Errorf("unexpected json %s", data)
	}
}
