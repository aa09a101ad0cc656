// Package suggest discovers, scores and ranks relationship suggestions for an
// entity, and caches the ranked lists.
package suggest

import (
	"sort"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/scoring"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/store"
)

// Stores groups the read-only state the pipeline walks.
type Stores struct {
	Registry     *store.Registry
	Graph        *store.Graph
	Index        *store.AttributeIndex
	Interactions *store.InteractionLedger
	Feedback     *store.FeedbackStore
}

// Pipeline runs the local suggestion walk: direct neighbors, then
// second-degree neighbors, then tag similarity when results are short.
type Pipeline struct {
	stores  Stores
	scorer  scoring.Scorer
	reasons *ReasonBuilder
}

// NewPipeline wires a pipeline. Nil scorer and reasons use the composite
// scorer and a deterministic reason builder.
func NewPipeline(stores Stores, scorer scoring.Scorer, reasons *ReasonBuilder) *Pipeline {
	if scorer == nil {
		scorer = scoring.Composite{}
	}
	if reasons == nil {
		reasons = NewReasonBuilder(nil)
	}
	return &Pipeline{stores: stores, scorer: scorer, reasons: reasons}
}

// Scorer returns the active scoring strategy.
func (p *Pipeline) Scorer() scoring.Scorer { return p.scorer }

type candidate struct {
	entity     apptype.Entity
	tier       apptype.Tier
	order      int
	confidence float64
	mutual     []string
}

// Generate returns at most opts.MaxResults suggestions for entityID. Unknown
// entities and non-positive limits yield an empty, non-nil slice.
func (p *Pipeline) Generate(entityID string, opts apptype.GenerateOptions) []apptype.Suggestion {
	source, ok := p.stores.Registry.Get(entityID)
	if !ok || opts.MaxResults <= 0 {
		return []apptype.Suggestion{}
	}

	excluded := make(map[string]struct{}, len(opts.ExcludeIDs)+1)
	excluded[entityID] = struct{}{}
	for _, id := range opts.ExcludeIDs {
		excluded[id] = struct{}{}
	}
	allowed := make(map[apptype.EntityType]struct{}, len(opts.TypeFilter))
	for _, t := range opts.TypeFilter {
		allowed[t] = struct{}{}
	}

	// seen covers every id already reached, eligible or not, so a filtered
	// direct neighbor never resurfaces in a later tier.
	seen := map[string]struct{}{entityID: {}}
	var cands []*candidate

	consider := func(id string, tier apptype.Tier) {
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		if _, skip := excluded[id]; skip {
			return
		}
		e, ok := p.stores.Registry.Get(id)
		if !ok {
			return
		}
		if len(allowed) > 0 {
			if _, ok := allowed[e.Type]; !ok {
				return
			}
		}
		cands = append(cands, &candidate{entity: e, tier: tier, order: len(cands)})
	}

	direct := p.stores.Graph.Neighbors(entityID)
	for _, id := range direct {
		consider(id, apptype.TierDirect)
	}
	for _, hop := range direct {
		for _, id := range p.stores.Graph.Neighbors(hop) {
			consider(id, apptype.TierSecondDegree)
		}
	}
	if len(cands) < opts.MaxResults {
		for _, tag := range uniqueTags(source.Tags) {
			for _, id := range p.stores.Index.ByTag(tag) {
				consider(id, apptype.TierSimilarity)
			}
		}
	}

	for _, c := range cands {
		p.score(source, c)
	}

	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i], cands[j]
		if a.confidence != b.confidence {
			return a.confidence > b.confidence
		}
		if a.tier != b.tier {
			return a.tier < b.tier
		}
		return a.order < b.order
	})
	if len(cands) > opts.MaxResults {
		cands = cands[:opts.MaxResults]
	}

	out := make([]apptype.Suggestion, 0, len(cands))
	for _, c := range cands {
		s := apptype.Suggestion{
			ID:                c.entity.ID,
			Type:              c.entity.Type,
			Label:             c.entity.DisplayLabel(),
			Confidence:        c.confidence,
			Priority:          scoring.PriorityFor(c.confidence),
			MutualConnections: len(c.mutual),
		}
		if opts.IncludeTags && len(c.entity.Tags) > 0 {
			s.Tags = append([]string(nil), c.entity.Tags...)
		}
		if opts.IncludeReason {
			s.Reason = p.Reason(source, c.entity, c.mutual)
		}
		out = append(out, s)
	}
	return out
}

func (p *Pipeline) score(source apptype.Entity, c *candidate) {
	targetID := c.entity.ID
	c.mutual = p.stores.Graph.SharedNeighbors(source.ID, targetID)
	counts := p.stores.Feedback.Counts(targetID)
	ratio, _ := p.stores.Feedback.Ratio(targetID)

	sig := scoring.Signals{
		Direct:            c.tier == apptype.TierDirect,
		SharedConnections: len(c.mutual),
		Interacted:        p.stores.Interactions.Has(source.ID, targetID),
		FeedbackRatio:     ratio,
		FeedbackTotal:     counts.Total(),
		SharedTags:        len(sharedTags(source.Tags, c.entity.Tags)),
	}
	raw := p.scorer.Score(source.ID, targetID, sig)
	c.confidence = scoring.Clamp(raw * scoring.Dampening(c.tier))
}

// Reason explains why target is suggested to source; mutualIDs are their
// shared neighbors.
func (p *Pipeline) Reason(source, target apptype.Entity, mutualIDs []string) string {
	return p.reasons.Build(source, target, p.labels(mutualIDs), sharedTags(source.Tags, target.Tags))
}

func (p *Pipeline) labels(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if e, ok := p.stores.Registry.Get(id); ok {
			out = append(out, e.DisplayLabel())
		}
	}
	return out
}

// sharedTags returns the tags of a also carried by b, in a's order.
func sharedTags(a, b []string) []string {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(b))
	for _, t := range b {
		set[t] = struct{}{}
	}
	var out []string
	for _, t := range uniqueTags(a) {
		if _, ok := set[t]; ok {
			out = append(out, t)
		}
	}
	return out
}

func uniqueTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
