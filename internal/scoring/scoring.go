// Package scoring turns relationship signals into a confidence in [0,1].
package scoring

import (
	"fmt"
	"math"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
)

// Signals bundles every input a scorer reads for one (source, target) pair.
type Signals struct {
	Direct            bool
	SharedConnections int
	Interacted        bool
	FeedbackRatio     float64
	FeedbackTotal     int
	SharedTags        int
}

// Scorer computes a confidence for a candidate. Implementations must be pure.
type Scorer interface {
	Name() string
	Score(sourceID, targetID string, s Signals) float64
}

const (
	baseScore         = 0.2
	directBoost       = 0.5
	mutualStep        = 0.1
	mutualCap         = 0.3
	interactionBoost  = 0.2
	feedbackTrustedN  = 10
	feedbackWeightHi  = 0.3
	feedbackWeightLo  = 0.1
	tagStep           = 0.05
	tagCap            = 0.25
	interactedFactor  = 1.2
	interactedCeiling = 0.95
)

// New returns the scorer registered under name.
func New(name string) (Scorer, error) {
	switch name {
	case "", Composite{}.Name():
		return Composite{}, nil
	case Legacy{}.Name():
		return Legacy{}, nil
	default:
		return nil, fmt.Errorf("unknown scoring strategy %q", name)
	}
}

// Composite blends graph, interaction, feedback and tag signals.
type Composite struct{}

func (Composite) Name() string { return "composite" }

func (Composite) Score(_, _ string, s Signals) float64 {
	score := structural(s)
	if s.Interacted {
		score += interactionBoost
	}
	score += FeedbackAdjustment(s.FeedbackRatio, s.FeedbackTotal)
	score = Clamp(score)
	if s.Interacted {
		score = math.Min(interactedCeiling, score*interactedFactor)
	}
	return score
}

// Legacy scores on graph structure and tags only.
type Legacy struct{}

func (Legacy) Name() string { return "legacy" }

func (Legacy) Score(_, _ string, s Signals) float64 {
	return Clamp(structural(s))
}

func structural(s Signals) float64 {
	score := baseScore
	if s.Direct {
		score += directBoost
	}
	score += math.Min(mutualCap, float64(s.SharedConnections)*mutualStep)
	score += math.Min(tagCap, float64(s.SharedTags)*tagStep)
	return score
}

// FeedbackAdjustment maps a helpful ratio to ±weight, where the weight grows
// once total reaches ten samples. No samples means no adjustment.
func FeedbackAdjustment(ratio float64, total int) float64 {
	if total <= 0 {
		return 0
	}
	weight := feedbackWeightLo
	if total >= feedbackTrustedN {
		weight = feedbackWeightHi
	}
	return (ratio - 0.5) * 2 * weight
}

// Clamp bounds v to [0,1]. NaN becomes 0.
func Clamp(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Dampening returns the multiplier applied to scores found in tier.
func Dampening(t apptype.Tier) float64 {
	switch t {
	case apptype.TierDirect:
		return 1.0
	case apptype.TierSecondDegree:
		return 0.8
	default:
		return 0.6
	}
}

// PriorityFor buckets a confidence: >0.7 high, >0.4 medium, else low.
func PriorityFor(confidence float64) apptype.Priority {
	switch {
	case confidence > 0.7:
		return apptype.PriorityHigh
	case confidence > 0.4:
		return apptype.PriorityMedium
	default:
		return apptype.PriorityLow
	}
}
