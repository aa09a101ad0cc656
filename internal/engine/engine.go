// Package engine is the suggestion engine: it owns every store and the cache,
// and answers suggestion, feedback and interaction calls.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apperrors"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/feedback"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/metrics"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/remote"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/scoring"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/store"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/suggest"
)

// Remote is an external ranking backend.
type Remote interface {
	Fetch(ctx context.Context, req apptype.RemoteRequest) ([]apptype.Suggestion, error)
	State() string
}

// EntitySink persists registered entities and links.
type EntitySink interface {
	UpsertEntities(ctx context.Context, entities []apptype.Entity) error
	CreateRelations(ctx context.Context, relations []apptype.Relation) error
}

// Result sources reported to metrics.
const (
	sourceCache  = "cache"
	sourceRemote = "remote"
	sourceLocal  = "local"
)

// Engine owns the graph, tag index, interaction ledger, feedback counters and
// suggestion cache. It is safe for concurrent use.
type Engine struct {
	settings Settings

	registry     *store.Registry
	graph        *store.Graph
	index        *store.AttributeIndex
	interactions *store.InteractionLedger
	feedback     *store.FeedbackStore

	cache    *suggest.Cache
	pipeline *suggest.Pipeline
	ingestor *feedback.Ingestor

	remote          Remote
	entitySink      EntitySink
	feedbackSink    feedback.Sink
	interactionSink feedback.InteractionSink
	scorer          scoring.Scorer
	picker          suggest.Picker

	validate *validator.Validate
	now      func() time.Time
	logger   *zap.Logger
}

// New builds an engine with fresh, empty stores.
func New(settings Settings, opts ...Option) (*Engine, error) {
	def := DefaultSettings()
	if settings.DefaultMaxResults <= 0 {
		settings.DefaultMaxResults = def.DefaultMaxResults
	}
	if settings.MaxResultsLimit <= 0 {
		settings.MaxResultsLimit = def.MaxResultsLimit
	}
	if settings.DefaultMaxResults > settings.MaxResultsLimit {
		return nil, fmt.Errorf("default max results %d exceeds limit %d", settings.DefaultMaxResults, settings.MaxResultsLimit)
	}
	if settings.CacheTTL <= 0 {
		settings.CacheTTL = def.CacheTTL
	}
	if settings.PersistTimeout <= 0 {
		settings.PersistTimeout = def.PersistTimeout
	}

	e := &Engine{
		settings:     settings,
		registry:     store.NewRegistry(),
		graph:        store.NewGraph(),
		index:        store.NewAttributeIndex(),
		interactions: store.NewInteractionLedger(),
		feedback:     store.NewFeedbackStore(),
		validate:     validator.New(),
		now:          time.Now,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}

	e.cache = suggest.NewCache(settings.SweepThreshold, e.now, e.logger)
	e.pipeline = suggest.NewPipeline(suggest.Stores{
		Registry:     e.registry,
		Graph:        e.graph,
		Index:        e.index,
		Interactions: e.interactions,
		Feedback:     e.feedback,
	}, e.scorer, suggest.NewReasonBuilder(e.picker))

	ingOpts := []feedback.Option{
		feedback.WithTimeout(settings.PersistTimeout),
		feedback.WithClock(e.now),
		feedback.WithLogger(e.logger),
	}
	if e.feedbackSink != nil {
		ingOpts = append(ingOpts, feedback.WithSink(e.feedbackSink))
	}
	if e.interactionSink != nil {
		ingOpts = append(ingOpts, feedback.WithInteractionSink(e.interactionSink))
	}
	e.ingestor = feedback.NewIngestor(e.feedback, ingOpts...)
	return e, nil
}

// GenerateSuggestions returns ranked suggestions for entityID. Only invalid
// input produces an error; unknown entities yield an empty list and remote
// failures fall back to the local pipeline.
func (e *Engine) GenerateSuggestions(ctx context.Context, entityID string, opts apptype.GenerateOptions) ([]apptype.Suggestion, error) {
	if entityID == "" {
		return nil, apperrors.NewValidationError("entityId is required")
	}
	if err := e.validate.Struct(opts); err != nil {
		return nil, apperrors.FromValidation(err)
	}
	if opts.MaxResults > e.settings.MaxResultsLimit {
		return nil, apperrors.NewValidationError(fmt.Sprintf("maxresults must be at most %d", e.settings.MaxResultsLimit))
	}
	if opts.MaxResults == 0 {
		opts.MaxResults = e.settings.DefaultMaxResults
	}

	observe := metrics.TimeGenerate()
	source, ok := e.registry.Get(entityID)
	if !ok {
		observe(sourceLocal)
		return []apptype.Suggestion{}, nil
	}

	key := suggest.NewKey(entityID, opts)
	if cached, hit := e.cache.Get(key); hit {
		metrics.Default().IncCacheLookup(true)
		observe(sourceCache)
		return cached, nil
	}
	metrics.Default().IncCacheLookup(false)

	if e.remote != nil {
		if list, ok := e.fetchRemote(ctx, source, opts); ok {
			e.cache.Set(key, list, e.settings.CacheTTL)
			observe(sourceRemote)
			return list, nil
		}
	}

	list := e.pipeline.Generate(entityID, opts)
	e.cache.Set(key, list, e.localTTL())
	observe(sourceLocal)
	return list, nil
}

// localTTL is half the cache TTL, never less than 1ns.
func (e *Engine) localTTL() time.Duration {
	if ttl := e.settings.CacheTTL / 2; ttl > 0 {
		return ttl
	}
	return e.settings.CacheTTL
}

// fetchRemote makes the single remote attempt. ok is false when the caller
// should fall back to the local pipeline.
func (e *Engine) fetchRemote(ctx context.Context, source apptype.Entity, opts apptype.GenerateOptions) ([]apptype.Suggestion, bool) {
	types := opts.TypeFilter
	if types == nil {
		types = []apptype.EntityType{}
	}
	list, err := e.remote.Fetch(ctx, apptype.RemoteRequest{
		EntityID:   source.ID,
		EntityType: source.Type,
		Types:      types,
		Limit:      opts.MaxResults,
	})
	if err != nil {
		outcome := remoteOutcome(err)
		metrics.Default().IncRemoteFetch(outcome)
		e.logger.Warn("remote suggestions failed, using local pipeline",
			zap.String("entity_id", source.ID),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
		return nil, false
	}

	list = e.sanitizeRemote(source, list, opts)
	if len(list) == 0 {
		metrics.Default().IncRemoteFetch(metrics.RemoteEmpty)
		e.logger.Debug("remote returned no usable suggestions", zap.String("entity_id", source.ID))
		return nil, false
	}
	metrics.Default().IncRemoteFetch(metrics.RemoteOK)
	return list, true
}

func remoteOutcome(err error) string {
	switch {
	case errors.Is(err, remote.ErrUnavailable):
		return metrics.RemoteOpen
	case errors.Is(err, remote.ErrMalformed):
		return metrics.RemoteMalformed
	case apperrors.IsType(err, apperrors.ErrorTypeTimeout), errors.Is(err, context.DeadlineExceeded):
		return metrics.RemoteTimeout
	default:
		return metrics.RemoteError
	}
}

// sanitizeRemote enforces the same output guarantees as the local pipeline:
// no source or excluded ids, unique ids, the type filter, confidence order and
// the result limit. Display fields are completed from the registry.
func (e *Engine) sanitizeRemote(source apptype.Entity, list []apptype.Suggestion, opts apptype.GenerateOptions) []apptype.Suggestion {
	skip := map[string]struct{}{source.ID: {}}
	for _, id := range opts.ExcludeIDs {
		skip[id] = struct{}{}
	}
	allowed := make(map[apptype.EntityType]struct{}, len(opts.TypeFilter))
	for _, t := range opts.TypeFilter {
		allowed[t] = struct{}{}
	}

	out := make([]apptype.Suggestion, 0, len(list))
	for _, s := range list {
		if _, bad := skip[s.ID]; bad {
			continue
		}
		skip[s.ID] = struct{}{}

		known, isKnown := e.registry.Get(s.ID)
		if s.Type == "" && isKnown {
			s.Type = known.Type
		}
		if len(allowed) > 0 {
			if _, ok := allowed[s.Type]; !ok {
				continue
			}
		}
		if isKnown && (s.Label == "" || s.Label == s.ID) {
			s.Label = known.DisplayLabel()
		}
		s.Confidence = scoring.Clamp(s.Confidence)
		s.Priority = scoring.PriorityFor(s.Confidence)
		mutual := e.graph.SharedNeighbors(source.ID, s.ID)
		s.MutualConnections = len(mutual)

		if !opts.IncludeTags {
			s.Tags = nil
		} else if len(s.Tags) == 0 && isKnown && len(known.Tags) > 0 {
			s.Tags = append([]string(nil), known.Tags...)
		}
		if !opts.IncludeReason {
			s.Reason = ""
		} else if s.Reason == "" && isKnown {
			s.Reason = e.pipeline.Reason(source, known, mutual)
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Confidence > out[j].Confidence })
	if len(out) > opts.MaxResults {
		out = out[:opts.MaxResults]
	}
	return out
}

// SubmitFeedback records whether suggestionID was helpful to entityID. The
// local counters are updated before returning; persistence is best-effort.
func (e *Engine) SubmitFeedback(entityID, suggestionID string, helpful bool) error {
	if _, err := e.ingestor.Submit(entityID, suggestionID, helpful); err != nil {
		return err
	}
	e.cache.Invalidate(entityID)
	return nil
}

// RecordInteraction notes that sourceID acted on targetID.
func (e *Engine) RecordInteraction(sourceID, targetID string) error {
	ix := apptype.Interaction{Source: sourceID, Target: targetID}
	if err := e.validate.Struct(ix); err != nil {
		return apperrors.FromValidation(err)
	}
	if !e.interactions.Record(sourceID, targetID) {
		return nil
	}
	e.cache.Invalidate(sourceID)
	e.ingestor.ForwardInteraction(ix)
	return nil
}

// RegisterEntities adds or replaces entities and indexes their tags. With an
// entity sink configured the batch is written through first.
func (e *Engine) RegisterEntities(ctx context.Context, entities []apptype.Entity) error {
	if len(entities) == 0 {
		return apperrors.NewValidationError("at least one entity is required")
	}
	for _, ent := range entities {
		if err := e.validateEntity(ent); err != nil {
			return err
		}
	}
	if e.entitySink != nil {
		if err := e.entitySink.UpsertEntities(ctx, entities); err != nil {
			return apperrors.NewDatabaseError("failed to persist entities", err)
		}
	}
	for _, ent := range entities {
		e.putEntity(ent)
	}
	e.cache.Purge()
	return nil
}

// RegisterEntity is RegisterEntities for a single entity.
func (e *Engine) RegisterEntity(ctx context.Context, ent apptype.Entity) error {
	return e.RegisterEntities(ctx, []apptype.Entity{ent})
}

func (e *Engine) validateEntity(ent apptype.Entity) error {
	if err := e.validate.Struct(ent); err != nil {
		return apperrors.FromValidation(err)
	}
	if ent.Properties != nil && ent.Properties.EntityType() != ent.Type {
		return apperrors.NewValidationError(fmt.Sprintf("entity %q: %s properties on a %s", ent.ID, ent.Properties.EntityType(), ent.Type))
	}
	return nil
}

func (e *Engine) putEntity(ent apptype.Entity) {
	e.registry.Put(ent)
	e.index.Index(ent.ID, ent.Tags)
}

// Link adds undirected edges between registered entities.
func (e *Engine) Link(ctx context.Context, relations []apptype.Relation) error {
	if len(relations) == 0 {
		return apperrors.NewValidationError("at least one relation is required")
	}
	for _, r := range relations {
		if err := e.validate.Struct(r); err != nil {
			return apperrors.FromValidation(err)
		}
		for _, id := range []string{r.A, r.B} {
			if !e.registry.Exists(id) {
				return apperrors.NewNotFoundError(fmt.Sprintf("entity %q", id))
			}
		}
	}
	if e.entitySink != nil {
		if err := e.entitySink.CreateRelations(ctx, relations); err != nil {
			return apperrors.NewDatabaseError("failed to persist relations", err)
		}
	}
	added := false
	for _, r := range relations {
		if e.graph.AddEdge(r.A, r.B) {
			added = true
		}
	}
	if added {
		e.cache.Purge()
	}
	return nil
}

// Restore loads persisted state into the stores without writing it back.
func (e *Engine) Restore(snap apptype.Snapshot) {
	for _, ent := range snap.Entities {
		e.putEntity(ent)
	}
	for _, r := range snap.Relations {
		e.graph.AddEdge(r.A, r.B)
	}
	e.feedback.Restore(snap.Feedback)
	for _, ix := range snap.Interactions {
		e.interactions.Record(ix.Source, ix.Target)
	}
	e.cache.Purge()
	e.logger.Info("engine state restored", zap.Stringer("snapshot", snap))
}

// Entity returns a registered entity.
func (e *Engine) Entity(id string) (apptype.Entity, bool) { return e.registry.Get(id) }

// FeedbackCounts returns the counters recorded for a suggestion target.
func (e *Engine) FeedbackCounts(targetID string) apptype.FeedbackCounts {
	return e.feedback.Counts(targetID)
}

// Stats summarizes engine state.
type Stats struct {
	Entities        int    `json:"entities"`
	Edges           int    `json:"edges"`
	Tags            int    `json:"tags"`
	FeedbackTargets int    `json:"feedbackTargets"`
	CachedKeys      int    `json:"cachedKeys"`
	RemoteState     string `json:"remoteState"`
	ScoringModel    string `json:"scoringModel"`
}

// Stats returns current counts and the remote breaker state.
func (e *Engine) Stats() Stats {
	state := "disabled"
	if e.remote != nil {
		state = e.remote.State()
	}
	return Stats{
		Entities:        e.registry.Len(),
		Edges:           e.graph.EdgeCount(),
		Tags:            e.index.Tags(),
		FeedbackTargets: e.feedback.Len(),
		CachedKeys:      e.cache.Len(),
		RemoteState:     state,
		ScoringModel:    e.pipeline.Scorer().Name(),
	}
}

// Close waits for in-flight persistence or until ctx ends.
func (e *Engine) Close(ctx context.Context) error {
	return e.ingestor.Close(ctx)
}
