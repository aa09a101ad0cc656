// Package suggest is the library-first API for the suggestion engine, usable
// without the MCP or REST transports.
package suggest

import (
	"context"

	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/app"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/engine"
)

type (
	Entity          = apptype.Entity
	EntityType      = apptype.EntityType
	Relation        = apptype.Relation
	Suggestion      = apptype.Suggestion
	GenerateOptions = apptype.GenerateOptions
	FeedbackCounts  = apptype.FeedbackCounts
	Stats           = engine.Stats
)

// Service provides suggestion operations without a transport.
type Service struct {
	app *app.App
}

// NewService constructs a Service with the provided config; nil uses defaults.
func NewService(ctx context.Context, cfg *Config, logger *zap.Logger) (*Service, error) {
	c := cfg.toInternal()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	a, err := app.New(ctx, c, logger)
	if err != nil {
		return nil, err
	}
	return &Service{app: a}, nil
}

// Close drains pending writes and releases resources.
func (s *Service) Close(ctx context.Context) error { return s.app.Close(ctx) }

// RegisterEntities adds or replaces entities.
func (s *Service) RegisterEntities(ctx context.Context, ents []Entity) error {
	return s.app.Engine.RegisterEntities(ctx, ents)
}

// Link creates undirected relations between registered entities.
func (s *Service) Link(ctx context.Context, rels []Relation) error {
	return s.app.Engine.Link(ctx, rels)
}

// Suggest returns ranked suggestions for entityID.
func (s *Service) Suggest(ctx context.Context, entityID string, opts GenerateOptions) ([]Suggestion, error) {
	return s.app.Engine.GenerateSuggestions(ctx, entityID, opts)
}

// SubmitFeedback records whether a suggestion was helpful.
func (s *Service) SubmitFeedback(entityID, suggestionID string, helpful bool) error {
	return s.app.Engine.SubmitFeedback(entityID, suggestionID, helpful)
}

// RecordInteraction notes that sourceID acted on targetID.
func (s *Service) RecordInteraction(sourceID, targetID string) error {
	return s.app.Engine.RecordInteraction(sourceID, targetID)
}

// Feedback returns the counters for a suggestion target.
func (s *Service) Feedback(targetID string) FeedbackCounts {
	return s.app.Engine.FeedbackCounts(targetID)
}

func (s *Service) Stats() Stats { return s.app.Engine.Stats() }
