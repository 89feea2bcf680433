// Package notification publishes domain events about produced bundles to
// outbound channels.
package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const EventBundleCreated = "bundle.created"

// Event is the payload sent on every channel.
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	BundleID   string    `json:"bundle_id"`
	EntryCount int       `json:"entry_count"`
	Timestamp  time.Time `json:"timestamp"`
}

func NewBundleCreated(bundleID string, entryCount int, at time.Time) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       EventBundleCreated,
		BundleID:   bundleID,
		EntryCount: entryCount,
		Timestamp:  at.UTC(),
	}
}

// Publisher delivers events to one channel.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, evt Event) error
}

// PublishError records which channel failed.
type PublishError struct {
	Channel string
	Err     error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish to %s: %v", e.Channel, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Multi publishes to every channel even when some fail. The returned error
// joins one *PublishError per failed channel.
type Multi []Publisher

func (m Multi) Name() string { return "multi" }

func (m Multi) Publish(ctx context.Context, evt Event) error {
	var errs []error
	for _, p := range m {
		if err := p.Publish(ctx, evt); err != nil {
			errs = append(errs, &PublishError{Channel: p.Name(), Err: err})
		}
	}
	return errors.Join(errs...)
}

// FailedChannels lists the channels named by the PublishErrors inside err.
func FailedChannels(err error) []string {
	if err == nil {
		return nil
	}
	var out []string
	var walk func(error)
	walk = func(e error) {
		if j, ok := e.(interface{ Unwrap() []error }); ok {
			for _, inner := range j.Unwrap() {
				walk(inner)
			}
			return
		}
		var pe *PublishError
		if errors.As(e, &pe) {
			out = append(out, pe.Channel)
		}
	}
	walk(err)
	return out
}

// Nop discards events. Used when no channel is configured.
type Nop struct{}

func (Nop) Name() string                        { return "nop" }
func (Nop) Publish(context.Context, Event) error { return nil }
