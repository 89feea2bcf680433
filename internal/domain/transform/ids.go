package transform

import (
	"crypto/rand"
	"io"
	"sync"

	"github.com/google/uuid"
)

// Kind tags the resource an identifier is allocated for.
type Kind int

const (
	KindPatient Kind = iota
	KindCondition
	KindProcedure
	KindObservation
	KindBundle
)

var kindPrefixes = map[Kind]string{
	KindPatient:     "pat",
	KindCondition:   "cond",
	KindProcedure:   "proc",
	KindObservation: "obs",
	KindBundle:      "bundle",
}

// Prefix returns the fixed identifier prefix for the kind.
func (k Kind) Prefix() string {
	return kindPrefixes[k]
}

// IdentifierAllocator issues "<prefix>-<uuid>" identifiers whose random part
// is drawn from an injected source. Reads from the source are serialized so
// any io.Reader may be shared between concurrent transformations.
type IdentifierAllocator struct {
	mu   sync.Mutex
	rand io.Reader
}

// NewIdentifierAllocator returns an allocator reading from r, or from
// crypto/rand when r is nil.
func NewIdentifierAllocator(r io.Reader) *IdentifierAllocator {
	if r == nil {
		r = rand.Reader
	}
	return &IdentifierAllocator{rand: r}
}

// Allocate returns a fresh identifier for kind. Like uuid.New it panics if
// the randomness source fails.
func (a *IdentifierAllocator) Allocate(kind Kind) string {
	a.mu.Lock()
	id := uuid.Must(uuid.NewRandomFromReader(a.rand))
	a.mu.Unlock()
	return kind.Prefix() + "-" + id.String()
}
