package apptype

import (
	"encoding/json"
	"fmt"
	"time"
)

// EntityType identifies the kind of organizational entity.
type EntityType string

const (
	EntityUser           EntityType = "user"
	EntityTeam           EntityType = "team"
	EntityProject        EntityType = "project"
	EntityGoal           EntityType = "goal"
	EntityDepartment     EntityType = "department"
	EntityKnowledgeAsset EntityType = "knowledge-asset"
)

// EntityTypes lists every known entity type in declaration order.
var EntityTypes = []EntityType{
	EntityUser, EntityTeam, EntityProject, EntityGoal, EntityDepartment, EntityKnowledgeAsset,
}

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	for _, known := range EntityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Entity is a node in the organizational graph. Entities are owned by the
// registry; the suggestion engine only reads them.
type Entity struct {
	ID         string     `json:"id" validate:"required"`
	Type       EntityType `json:"type" validate:"required,oneof=user team project goal department knowledge-asset"`
	Label      string     `json:"label"`
	Tags       []string   `json:"tags,omitempty"`
	Properties Properties `json:"-"`
}

// DisplayLabel returns the label, falling back to the id.
func (e Entity) DisplayLabel() string {
	if e.Label != "" {
		return e.Label
	}
	return e.ID
}

type entityJSON struct {
	ID         string          `json:"id"`
	Type       EntityType      `json:"type"`
	Label      string          `json:"label"`
	Tags       []string        `json:"tags,omitempty"`
	Properties json.RawMessage `json:"properties,omitempty"`
}

// MarshalJSON encodes the properties union under "properties".
func (e Entity) MarshalJSON() ([]byte, error) {
	out := entityJSON{ID: e.ID, Type: e.Type, Label: e.Label, Tags: e.Tags}
	if e.Properties != nil {
		raw, err := json.Marshal(e.Properties)
		if err != nil {
			return nil, err
		}
		out.Properties = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes "properties" into the struct matching "type".
func (e *Entity) UnmarshalJSON(data []byte) error {
	var in entityJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	props, err := DecodeProperties(in.Type, in.Properties)
	if err != nil {
		return err
	}
	*e = Entity{ID: in.ID, Type: in.Type, Label: in.Label, Tags: in.Tags, Properties: props}
	return nil
}

// Relation is an undirected link between two entities.
type Relation struct {
	A string `json:"a" validate:"required"`
	B string `json:"b" validate:"required,nefield=A"`
}

// Priority is the coarse bucket derived from confidence.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Tier is the discovery tier a candidate was found in. Lower tiers win dedup.
type Tier int

const (
	TierDirect Tier = iota
	TierSecondDegree
	TierSimilarity
)

func (t Tier) String() string {
	switch t {
	case TierDirect:
		return "direct"
	case TierSecondDegree:
		return "second-degree"
	case TierSimilarity:
		return "similarity"
	default:
		return "unknown"
	}
}

// Suggestion is a ranked recommendation returned to callers. Not persisted.
type Suggestion struct {
	ID                string     `json:"id"`
	Type              EntityType `json:"type"`
	Label             string     `json:"label"`
	Confidence        float64    `json:"confidence"`
	Priority          Priority   `json:"priority"`
	Reason            string     `json:"reason,omitempty"`
	Tags              []string   `json:"tags,omitempty"`
	MutualConnections int        `json:"mutualConnections"`
}

// GenerateOptions controls a single suggestion request.
type GenerateOptions struct {
	MaxResults    int          `json:"maxResults" validate:"gte=0"`
	TypeFilter    []EntityType `json:"typeFilter,omitempty" validate:"dive,oneof=user team project goal department knowledge-asset"`
	ExcludeIDs    []string     `json:"excludeIds,omitempty" validate:"dive,required"`
	IncludeTags   bool         `json:"includeTags"`
	IncludeReason bool         `json:"includeReason"`
}

// FeedbackCounts holds the helpful/not-helpful counters for one target.
type FeedbackCounts struct {
	Helpful    int `json:"helpful"`
	NotHelpful int `json:"notHelpful"`
}

// Total returns the number of submissions recorded.
func (c FeedbackCounts) Total() int { return c.Helpful + c.NotHelpful }

// FeedbackEvent is one feedback submission as forwarded to persistent storage.
type FeedbackEvent struct {
	ID           string    `json:"id"`
	EntityID     string    `json:"entityId" validate:"required"`
	SuggestionID string    `json:"suggestionId" validate:"required"`
	IsHelpful    bool      `json:"isHelpful"`
	Timestamp    time.Time `json:"timestamp"`
}

// Interaction records that source acted on a suggested target.
type Interaction struct {
	Source string `json:"source" validate:"required"`
	Target string `json:"target" validate:"required"`
}

// RemoteRequest is the body sent to a remote ranking endpoint.
type RemoteRequest struct {
	EntityID   string       `json:"entityId"`
	EntityType EntityType   `json:"entityType"`
	Types      []EntityType `json:"types"`
	Limit      int          `json:"limit"`
}

// RemoteSuggestion is one element of a remote ranking response.
type RemoteSuggestion struct {
	ID       string         `json:"id"`
	Type     EntityType     `json:"type"`
	Score    *float64       `json:"score"`
	Reason   string         `json:"reason,omitempty"`
	Metadata RemoteMetadata `json:"metadata"`
}

// RemoteMetadata carries optional display data from the remote backend.
type RemoteMetadata struct {
	Name string   `json:"name,omitempty"`
	Tags []string `json:"tags,omitempty"`
}

// Snapshot is the persisted state used to warm a fresh engine.
type Snapshot struct {
	Entities     []Entity
	Relations    []Relation
	Feedback     map[string]FeedbackCounts
	Interactions []Interaction
}

func (s Snapshot) String() string {
	return fmt.Sprintf("snapshot(entities=%d relations=%d feedback=%d interactions=%d)",
		len(s.Entities), len(s.Relations), len(s.Feedback), len(s.Interactions))
}
