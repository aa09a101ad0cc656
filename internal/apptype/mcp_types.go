package apptype

import (
	"encoding/json"
	"fmt"
)

// EntityInput is the tool-facing shape of an entity. Properties arrive as a
// plain object and are decoded against the entity type.
type EntityInput struct {
	ID         string         `json:"id" jsonschema:"Unique entity id."`
	Type       string         `json:"type" jsonschema:"One of user, team, project, goal, department, knowledge-asset."`
	Label      string         `json:"label,omitempty" jsonschema:"Display label."`
	Tags       []string       `json:"tags,omitempty" jsonschema:"Attribute tags used for similarity matching."`
	Properties map[string]any `json:"properties,omitempty" jsonschema:"Type-specific properties."`
}

// ToEntity converts the input into a typed Entity.
func (in EntityInput) ToEntity() (Entity, error) {
	t := EntityType(in.Type)
	var props Properties
	if len(in.Properties) > 0 {
		raw, err := json.Marshal(in.Properties)
		if err != nil {
			return Entity{}, fmt.Errorf("encode properties for %q: %w", in.ID, err)
		}
		props, err = DecodeProperties(t, raw)
		if err != nil {
			return Entity{}, err
		}
	}
	return Entity{ID: in.ID, Type: t, Label: in.Label, Tags: in.Tags, Properties: props}, nil
}

// RegisterEntitiesArgs represents the arguments for the register_entities tool
type RegisterEntitiesArgs struct {
	Entities []EntityInput `json:"entities" jsonschema:"Entities to register or replace."`
}

// LinkEntitiesArgs represents the arguments for the link_entities tool
type LinkEntitiesArgs struct {
	Relations []Relation `json:"relations" jsonschema:"Undirected entity pairs to link."`
}

// GenerateSuggestionsArgs represents the arguments for the generate_suggestions tool
type GenerateSuggestionsArgs struct {
	EntityID      string   `json:"entityId" jsonschema:"Source entity to suggest for."`
	MaxResults    int      `json:"maxResults,omitempty" jsonschema:"Maximum number of suggestions (default 10)."`
	Types         []string `json:"types,omitempty" jsonschema:"Restrict suggestions to these entity types."`
	ExcludeIDs    []string `json:"excludeIds,omitempty" jsonschema:"Entity ids that must not be suggested."`
	IncludeTags   bool     `json:"includeTags,omitempty" jsonschema:"Attach candidate tags."`
	IncludeReason bool     `json:"includeReason,omitempty" jsonschema:"Attach a human readable reason."`
}

// Options converts tool arguments to pipeline options.
func (a GenerateSuggestionsArgs) Options() GenerateOptions {
	types := make([]EntityType, 0, len(a.Types))
	for _, t := range a.Types {
		types = append(types, EntityType(t))
	}
	return GenerateOptions{
		MaxResults:    a.MaxResults,
		TypeFilter:    types,
		ExcludeIDs:    a.ExcludeIDs,
		IncludeTags:   a.IncludeTags,
		IncludeReason: a.IncludeReason,
	}
}

// SuggestionsResult is the structured output of generate_suggestions
type SuggestionsResult struct {
	EntityID    string       `json:"entityId"`
	Suggestions []Suggestion `json:"suggestions"`
}

// SubmitFeedbackArgs represents the arguments for the submit_feedback tool
type SubmitFeedbackArgs struct {
	EntityID     string `json:"entityId" jsonschema:"Entity the suggestion was shown to."`
	SuggestionID string `json:"suggestionId" jsonschema:"Suggested entity id the feedback is about."`
	IsHelpful    bool   `json:"isHelpful" jsonschema:"Whether the suggestion was helpful."`
}

// RecordInteractionArgs represents the arguments for the record_interaction tool
type RecordInteractionArgs struct {
	SourceID string `json:"sourceId" jsonschema:"Entity that acted on the suggestion."`
	TargetID string `json:"targetId" jsonschema:"Suggested entity that was opened or clicked."`
}

// Health
type HealthArgs struct{}

type HealthResult struct {
	Name         string `json:"name"`
	Version      string `json:"version"`
	Revision     string `json:"revision"`
	BuildDate    string `json:"buildDate"`
	Entities     int    `json:"entities"`
	Edges        int    `json:"edges"`
	CachedKeys   int    `json:"cachedKeys"`
	RemoteState  string `json:"remoteState"`
	ScoringModel string `json:"scoringModel"`
}
