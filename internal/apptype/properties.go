package apptype

import (
	"encoding/json"
	"fmt"
	"time"
)

// Properties is the typed per-entity-type attribute set. Exactly one
// implementation exists for each EntityType.
type Properties interface {
	EntityType() EntityType
}

type UserProperties struct {
	Email        string `json:"email,omitempty"`
	Title        string `json:"title,omitempty"`
	DepartmentID string `json:"departmentId,omitempty"`
	Timezone     string `json:"timezone,omitempty"`
}

func (UserProperties) EntityType() EntityType { return EntityUser }

type TeamProperties struct {
	LeadID string `json:"leadId,omitempty"`
	Size   int    `json:"size,omitempty"`
}

func (TeamProperties) EntityType() EntityType { return EntityTeam }

type ProjectProperties struct {
	Status  string     `json:"status,omitempty"`
	OwnerID string     `json:"ownerId,omitempty"`
	DueDate *time.Time `json:"dueDate,omitempty"`
}

func (ProjectProperties) EntityType() EntityType { return EntityProject }

type GoalProperties struct {
	Progress float64 `json:"progress,omitempty"`
	Horizon  string  `json:"horizon,omitempty"`
}

func (GoalProperties) EntityType() EntityType { return EntityGoal }

type DepartmentProperties struct {
	CostCenter string `json:"costCenter,omitempty"`
	HeadID     string `json:"headId,omitempty"`
}

func (DepartmentProperties) EntityType() EntityType { return EntityDepartment }

type KnowledgeAssetProperties struct {
	URL    string `json:"url,omitempty"`
	Format string `json:"format,omitempty"`
}

func (KnowledgeAssetProperties) EntityType() EntityType { return EntityKnowledgeAsset }

// DecodeProperties decodes raw JSON into the properties struct for t.
// Empty input yields nil properties.
func DecodeProperties(t EntityType, raw json.RawMessage) (Properties, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var p Properties
	switch t {
	case EntityUser:
		var v UserProperties
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode user properties: %w", err)
		}
		p = v
	case EntityTeam:
		var v TeamProperties
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode team properties: %w", err)
		}
		p = v
	case EntityProject:
		var v ProjectProperties
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode project properties: %w", err)
		}
		p = v
	case EntityGoal:
		var v GoalProperties
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode goal properties: %w", err)
		}
		p = v
	case EntityDepartment:
		var v DepartmentProperties
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode department properties: %w", err)
		}
		p = v
	case EntityKnowledgeAsset:
		var v KnowledgeAssetProperties
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode knowledge-asset properties: %w", err)
		}
		p = v
	default:
		return nil, fmt.Errorf("unknown entity type %q", t)
	}
	return p, nil
}
