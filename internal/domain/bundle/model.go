package bundle

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by every Repository when a bundle id is unknown.
var ErrNotFound = errors.New("bundle not found")

// StoredBundle is a produced bundle document as persisted. Document is the
// exact byte sequence that was returned to the client.
type StoredBundle struct {
	ID        string          `json:"id"`
	Document  json.RawMessage `json:"document"`
	CreatedAt time.Time       `json:"created_at"`
}

// Summary is the list view of a stored bundle.
type Summary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}
