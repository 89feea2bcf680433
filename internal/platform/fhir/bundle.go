package fhir

import (
	"encoding/json"
	"fmt"
)

const (
	ResourceTypeBundle   = "Bundle"
	BundleTypeCollection = "collection"
)

// Bundle represents a FHIR Bundle resource. Timestamp is kept as the exact
// instant string it was stamped with so serialization never changes its
// precision.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id"`
	Type         string        `json:"type"`
	Timestamp    string        `json:"timestamp"`
	Entry        []BundleEntry `json:"entry"`
}

type BundleEntry struct {
	Resource Resource `json:"resource"`
}

// NewCollectionBundle wraps resources, in the given order, in a collection
// Bundle. A nil slice still yields an empty entry array.
func NewCollectionBundle(id, timestamp string, resources []Resource) *Bundle {
	entries := make([]BundleEntry, len(resources))
	for i, r := range resources {
		entries[i] = BundleEntry{Resource: r}
	}
	return &Bundle{
		ResourceType: ResourceTypeBundle,
		ID:           id,
		Type:         BundleTypeCollection,
		Timestamp:    timestamp,
		Entry:        entries,
	}
}

// Marshal serializes the bundle to its wire form.
func (b *Bundle) Marshal() ([]byte, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal bundle %s: %w", b.ID, err)
	}
	return data, nil
}
