package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/feedback"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/scoring"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/suggest"
)

// Settings holds the engine's tunables.
type Settings struct {
	DefaultMaxResults int
	MaxResultsLimit   int
	CacheTTL          time.Duration
	SweepThreshold    int
	PersistTimeout    time.Duration
}

// DefaultSettings mirrors the built-in configuration.
func DefaultSettings() Settings {
	return Settings{
		DefaultMaxResults: 10,
		MaxResultsLimit:   100,
		CacheTTL:          5 * time.Minute,
		SweepThreshold:    suggest.DefaultSweepThreshold,
		PersistTimeout:    feedback.DefaultPersistTimeout,
	}
}

// Option configures an Engine.
type Option func(*Engine)

// WithRemote enables the remote ranking backend.
func WithRemote(r Remote) Option { return func(e *Engine) { e.remote = r } }

// WithFeedbackSink forwards feedback to persistent storage.
func WithFeedbackSink(s feedback.Sink) Option { return func(e *Engine) { e.feedbackSink = s } }

// WithInteractionSink forwards interactions to persistent storage.
func WithInteractionSink(s feedback.InteractionSink) Option {
	return func(e *Engine) { e.interactionSink = s }
}

// WithEntitySink writes registered entities and links through to storage.
func WithEntitySink(s EntitySink) Option { return func(e *Engine) { e.entitySink = s } }

// WithScorer replaces the composite scorer.
func WithScorer(s scoring.Scorer) Option { return func(e *Engine) { e.scorer = s } }

// WithPicker replaces the deterministic reason picker.
func WithPicker(p suggest.Picker) Option { return func(e *Engine) { e.picker = p } }

// WithClock overrides time.Now for cache expiry and event timestamps.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.logger = l } }
