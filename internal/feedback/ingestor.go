// Package feedback records suggestion feedback locally and forwards it, with
// interactions, to persistent storage on a best-effort basis.
package feedback

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apperrors"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/metrics"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/store"
)

// Sink persists feedback events.
type Sink interface {
	PersistFeedback(ctx context.Context, ev apptype.FeedbackEvent) error
}

// InteractionSink persists interaction records.
type InteractionSink interface {
	PersistInteraction(ctx context.Context, ix apptype.Interaction) error
}

// DefaultPersistTimeout bounds a single background write.
const DefaultPersistTimeout = 5 * time.Second

// Ingestor updates the feedback store synchronously and forwards events in
// the background. Forwarding failures are logged and never retried.
type Ingestor struct {
	store        *store.FeedbackStore
	sink         Sink
	interactions InteractionSink
	timeout      time.Duration
	now          func() time.Time
	logger       *zap.Logger

	// mu makes the closed check and wg.Add atomic with respect to Close.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithSink sets the feedback sink.
func WithSink(s Sink) Option { return func(i *Ingestor) { i.sink = s } }

// WithInteractionSink sets the interaction sink.
func WithInteractionSink(s InteractionSink) Option {
	return func(i *Ingestor) { i.interactions = s }
}

// WithTimeout bounds each background write.
func WithTimeout(d time.Duration) Option {
	return func(i *Ingestor) {
		if d > 0 {
			i.timeout = d
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(i *Ingestor) {
		if now != nil {
			i.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(i *Ingestor) {
		if l != nil {
			i.logger = l
		}
	}
}

// NewIngestor returns an ingestor writing to fs.
func NewIngestor(fs *store.FeedbackStore, opts ...Option) *Ingestor {
	i := &Ingestor{
		store:   fs,
		timeout: DefaultPersistTimeout,
		now:     time.Now,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Submit records feedback about suggestionID shown to entityID. The local
// counter is updated before Submit returns; only missing ids are reported.
func (i *Ingestor) Submit(entityID, suggestionID string, helpful bool) (apptype.FeedbackEvent, error) {
	if entityID == "" {
		return apptype.FeedbackEvent{}, apperrors.NewValidationError("entityId is required")
	}
	if suggestionID == "" {
		return apptype.FeedbackEvent{}, apperrors.NewValidationError("suggestionId is required")
	}

	i.store.Record(suggestionID, helpful)
	ev := apptype.FeedbackEvent{
		ID:           uuid.NewString(),
		EntityID:     entityID,
		SuggestionID: suggestionID,
		IsHelpful:    helpful,
		Timestamp:    i.now().UTC(),
	}

	if i.sink == nil {
		metrics.Default().IncFeedback(false)
		return ev, nil
	}
	i.forward("feedback", func(ctx context.Context) error {
		return i.sink.PersistFeedback(ctx, ev)
	}, func(err error) {
		metrics.Default().IncFeedback(err == nil)
		if err != nil {
			i.logger.Warn("feedback persistence failed",
				zap.String("entity_id", entityID),
				zap.String("suggestion_id", suggestionID),
				zap.String("event_id", ev.ID),
				zap.Error(err),
			)
		}
	})
	return ev, nil
}

// ForwardInteraction persists ix in the background when an interaction sink is set.
func (i *Ingestor) ForwardInteraction(ix apptype.Interaction) {
	if i.interactions == nil {
		return
	}
	i.forward("interaction", func(ctx context.Context) error {
		return i.interactions.PersistInteraction(ctx, ix)
	}, func(err error) {
		if err != nil {
			i.logger.Warn("interaction persistence failed",
				zap.String("source_id", ix.Source),
				zap.String("target_id", ix.Target),
				zap.Error(err),
			)
		}
	})
}

func (i *Ingestor) forward(kind string, write func(context.Context) error, done func(error)) {
	i.mu.Lock()
	if i.closed {
		i.mu.Unlock()
		i.logger.Debug("ingestor closed, skipping persistence", zap.String("kind", kind))
		return
	}
	i.wg.Add(1)
	i.mu.Unlock()
	go func() {
		defer i.wg.Done()
		// Detached from the request: the caller has already returned.
		ctx, cancel := context.WithTimeout(context.Background(), i.timeout)
		defer cancel()
		done(write(ctx))
	}()
}

// Wait blocks until in-flight writes finish.
func (i *Ingestor) Wait() { i.wg.Wait() }

// Close stops accepting background writes and waits for in-flight ones, or
// for ctx to end.
func (i *Ingestor) Close(ctx context.Context) error {
	i.mu.Lock()
	i.closed = true
	i.mu.Unlock()
	finished := make(chan struct{})
	go func() {
		i.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
