package transform

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ehr/fhirtransform/internal/domain/bundle"
	"github.com/ehr/fhirtransform/internal/platform/auth"
	"github.com/ehr/fhirtransform/internal/platform/metrics"
	"github.com/ehr/fhirtransform/internal/platform/notification"
)

const notifyTimeout = 30 * time.Second

// StorageError means the bundle was produced but could not be persisted.
// Nothing is returned to the client in that case.
type StorageError struct {
	BundleID string
	Err      error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("store bundle %s: %v", e.BundleID, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Result is a persisted bundle in its wire form.
type Result struct {
	BundleID   string
	EntryCount int
	Document   []byte
}

// Service runs a transformation, persists the document and announces it.
type Service struct {
	transformer *Transformer
	repo        bundle.Repository
	publisher   notification.Publisher
	logger      zerolog.Logger
	now         func() time.Time

	pending sync.WaitGroup
}

func NewService(t *Transformer, repo bundle.Repository, pub notification.Publisher, logger zerolog.Logger) *Service {
	if pub == nil {
		pub = notification.Nop{}
	}
	return &Service{
		transformer: t,
		repo:        repo,
		publisher:   pub,
		logger:      logger,
		now:         time.Now,
	}
}

// Process transforms sub and saves the exact bytes it returns. Publishing
// the bundle.created event happens in the background and never fails the
// call.
func (s *Service) Process(ctx context.Context, sub *Submission) (*Result, error) {
	b, err := s.transformer.Transform(sub)
	if err != nil {
		var mapErr *MappingError
		if errors.As(err, &mapErr) {
			metrics.RecordTransform(metrics.ResultMapping)
		} else {
			metrics.RecordTransform(metrics.ResultInvalidInput)
		}
		return nil, err
	}

	doc, err := b.Marshal()
	if err != nil {
		return nil, err
	}

	// A request past its deadline must not leave a bundle behind.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("store bundle %s: %w", b.ID, err)
	}

	stored := &bundle.StoredBundle{ID: b.ID, Document: doc, CreatedAt: s.now().UTC()}
	if err := s.repo.Save(ctx, stored); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("store bundle %s: %w", b.ID, ctxErr)
		}
		metrics.RecordTransform(metrics.ResultStorage)
		return nil, &StorageError{BundleID: b.ID, Err: err}
	}

	res := &Result{BundleID: b.ID, EntryCount: len(b.Entry), Document: doc}
	metrics.RecordTransform(metrics.ResultSuccess)
	metrics.ObserveBundleEntries(res.EntryCount)

	evt := s.logger.Info().
		Str("bundle_id", res.BundleID).
		Int("entries", res.EntryCount)
	if sub := auth.SubjectFromContext(ctx); sub != "" {
		evt = evt.Str("subject", sub)
	}
	evt.Msg("bundle stored")

	s.notify(ctx, notification.NewBundleCreated(res.BundleID, res.EntryCount, stored.CreatedAt))
	return res, nil
}

func (s *Service) notify(ctx context.Context, evt notification.Event) {
	ctx = context.WithoutCancel(ctx)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(ctx, notifyTimeout)
		defer cancel()

		if err := s.publisher.Publish(ctx, evt); err != nil {
			channels := notification.FailedChannels(err)
			if len(channels) == 0 {
				channels = []string{s.publisher.Name()}
			}
			for _, ch := range channels {
				metrics.RecordNotifyFailure(ch)
			}
			s.logger.Warn().Err(err).
				Str("bundle_id", evt.BundleID).
				Strs("channels", channels).
				Msg("bundle.created notification failed")
		}
	}()
}

// Wait blocks until in-flight notifications finish.
func (s *Service) Wait() {
	s.pending.Wait()
}
