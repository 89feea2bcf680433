package bundle

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCouchbaseConnString(t *testing.T) {
	assert.Equal(t, "couchbase://localhost", couchbaseConnString("localhost"))
	assert.Equal(t, "couchbases://cb.example.com", couchbaseConnString("couchbases://cb.example.com"))
}

func TestCouchbaseKey(t *testing.T) {
	assert.Equal(t, "bundle::bundle-123", couchbaseKey("bundle-123"))
}

func TestCouchbaseDoc_KeepsDocumentAsString(t *testing.T) {
	doc := couchbaseDoc{
		Type:      couchbaseDocType,
		ID:        "bundle-1",
		Document:  `{"resourceType":"Bundle","id":"bundle-1"}`,
		CreatedAt: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC),
	}
	raw, err := json.Marshal(doc)
	require.NoError(t, err)

	var back couchbaseDoc
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, doc.Document, back.Document)
	assert.Equal(t, "bundle", back.Type)
}
