package suggest

import (
	"fmt"
	"hash/fnv"
	"math/rand"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
)

// Picker chooses one phrase from options for a (source, target) pair.
type Picker interface {
	Pick(sourceID, targetID string, options []string) string
}

// HashPicker picks by FNV-1a hash of the pair, so the same pair always gets
// the same phrase.
type HashPicker struct{}

func (HashPicker) Pick(sourceID, targetID string, options []string) string {
	if len(options) == 0 {
		return ""
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(sourceID))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(targetID))
	return options[h.Sum32()%uint32(len(options))]
}

// RandomPicker picks uniformly from an injected source.
type RandomPicker struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomPicker returns a picker seeded with seed.
func NewRandomPicker(seed int64) *RandomPicker {
	return &RandomPicker{rnd: rand.New(rand.NewSource(seed))}
}

func (p *RandomPicker) Pick(_, _ string, options []string) string {
	if len(options) == 0 {
		return ""
	}
	p.mu.Lock()
	i := p.rnd.Intn(len(options))
	p.mu.Unlock()
	return options[i]
}

// NewPicker returns the picker for mode ("deterministic" or "random").
func NewPicker(mode string, seed int64) (Picker, error) {
	switch mode {
	case "", "deterministic":
		return HashPicker{}, nil
	case "random":
		return NewRandomPicker(seed), nil
	default:
		return nil, fmt.Errorf("unknown reason mode %q", mode)
	}
}

type typePair struct{ from, to apptype.EntityType }

var typePairPhrases = map[typePair]string{
	{apptype.EntityUser, apptype.EntityUser}:           "Potential collaboration opportunity",
	{apptype.EntityUser, apptype.EntityTeam}:           "Team working in your area",
	{apptype.EntityUser, apptype.EntityProject}:        "Project that could use your expertise",
	{apptype.EntityUser, apptype.EntityGoal}:           "Goal aligned with your work",
	{apptype.EntityUser, apptype.EntityDepartment}:     "Department you work closely with",
	{apptype.EntityUser, apptype.EntityKnowledgeAsset}: "Relevant reading for your work",
	{apptype.EntityTeam, apptype.EntityUser}:           "Potential team contributor",
	{apptype.EntityTeam, apptype.EntityTeam}:           "Team with overlapping focus",
	{apptype.EntityTeam, apptype.EntityProject}:        "Project your team could support",
	{apptype.EntityTeam, apptype.EntityGoal}:           "Goal your team could drive",
	{apptype.EntityProject, apptype.EntityUser}:        "Potential project contributor",
	{apptype.EntityProject, apptype.EntityProject}:     "Related project",
	{apptype.EntityProject, apptype.EntityGoal}:        "Goal this project advances",
	{apptype.EntityGoal, apptype.EntityProject}:        "Project contributing to this goal",
	{apptype.EntityGoal, apptype.EntityGoal}:           "Related goal",
}

var fallbackPhrases = []string{
	"Relevant to your work",
	"Active in your network",
	"Frequently connected in your organization",
	"Might be worth exploring",
}

const maxReasonTags = 2

// ReasonBuilder explains why a candidate was suggested.
type ReasonBuilder struct {
	picker Picker
}

// NewReasonBuilder returns a builder using picker; nil means HashPicker.
func NewReasonBuilder(picker Picker) *ReasonBuilder {
	if picker == nil {
		picker = HashPicker{}
	}
	return &ReasonBuilder{picker: picker}
}

// Build picks, in order: a mutual connection's label, up to two shared tags,
// a phrase for the type pair, then a generic phrase.
func (b *ReasonBuilder) Build(source, target apptype.Entity, mutualLabels, sharedTags []string) string {
	if len(mutualLabels) > 0 {
		return "Connected through " + mutualLabels[0]
	}
	if len(sharedTags) > 0 {
		n := len(sharedTags)
		if n > maxReasonTags {
			n = maxReasonTags
		}
		return "Shared interests: " + strings.Join(sharedTags[:n], ", ")
	}
	if phrase, ok := typePairPhrases[typePair{source.Type, target.Type}]; ok {
		return phrase
	}
	return b.picker.Pick(source.ID, target.ID, fallbackPhrases)
}
