package suggest

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/scoring"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/store"
)

func newStores() Stores {
	return Stores{
		Registry:     store.NewRegistry(),
		Graph:        store.NewGraph(),
		Index:        store.NewAttributeIndex(),
		Interactions: store.NewInteractionLedger(),
		Feedback:     store.NewFeedbackStore(),
	}
}

func put(s Stores, id string, t apptype.EntityType, tags ...string) {
	s.Registry.Put(apptype.Entity{ID: id, Type: t, Label: "Label " + id, Tags: tags})
	s.Index.Index(id, tags)
}

// scenarioStores builds A-B, A-C, B-D with E sharing tag "x" with A.
func scenarioStores() Stores {
	s := newStores()
	put(s, "A", apptype.EntityUser, "x")
	put(s, "B", apptype.EntityUser)
	put(s, "C", apptype.EntityTeam)
	put(s, "D", apptype.EntityProject)
	put(s, "E", apptype.EntityUser, "x")
	s.Graph.AddEdge("A", "B")
	s.Graph.AddEdge("A", "C")
	s.Graph.AddEdge("B", "D")
	return s
}

func ids(list []apptype.Suggestion) []string {
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = s.ID
	}
	return out
}

func byID(list []apptype.Suggestion, id string) apptype.Suggestion {
	for _, s := range list {
		if s.ID == id {
			return s
		}
	}
	return apptype.Suggestion{}
}

func TestGenerateEndToEndScenario(t *testing.T) {
	p := NewPipeline(scenarioStores(), nil, nil)
	got := p.Generate("A", apptype.GenerateOptions{MaxResults: 10})

	require.Equal(t, []string{"B", "C", "D", "E"}, ids(got))
	assert.InDelta(t, 0.7, got[0].Confidence, 1e-9)
	assert.InDelta(t, 0.7, got[1].Confidence, 1e-9)
	assert.GreaterOrEqual(t, got[0].Confidence, 0.7-1e-9)
	// D: base 0.2 + one mutual (B) = 0.3, dampened by 0.8
	assert.InDelta(t, 0.24, got[2].Confidence, 1e-9)
	assert.Equal(t, 1, got[2].MutualConnections)
	// E: base 0.2 + one shared tag = 0.25, dampened by 0.6
	assert.InDelta(t, 0.15, got[3].Confidence, 1e-9)
	assert.Equal(t, apptype.PriorityLow, got[3].Priority)
	assert.NotContains(t, ids(got), "A")
}

func TestGenerateFeedbackReranks(t *testing.T) {
	s := scenarioStores()
	p := NewPipeline(s, nil, nil)
	before := byID(p.Generate("A", apptype.GenerateOptions{MaxResults: 10}), "D")

	for i := 0; i < 8; i++ {
		s.Feedback.Record("D", true)
	}
	for i := 0; i < 2; i++ {
		s.Feedback.Record("D", false)
	}
	after := byID(p.Generate("A", apptype.GenerateOptions{MaxResults: 10}), "D")
	assert.Greater(t, after.Confidence, before.Confidence)
}

func TestGenerateInteractionBoost(t *testing.T) {
	s := scenarioStores()
	p := NewPipeline(s, nil, nil)
	s.Interactions.Record("A", "E")
	got := p.Generate("A", apptype.GenerateOptions{MaxResults: 10})
	// (0.25 + 0.2) * 1.2 = 0.54, then * 0.6
	assert.InDelta(t, 0.324, byID(got, "E").Confidence, 1e-9)
	assert.Equal(t, "E", got[2].ID, "interaction lifts E above D")
}

func TestGenerateUnknownAndIsolated(t *testing.T) {
	s := newStores()
	put(s, "lonely", apptype.EntityUser)
	p := NewPipeline(s, nil, nil)

	got := p.Generate("ghost", apptype.GenerateOptions{MaxResults: 10})
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Empty(t, p.Generate("lonely", apptype.GenerateOptions{MaxResults: 10}))
	assert.Empty(t, scenarioPipeline().Generate("A", apptype.GenerateOptions{MaxResults: 0}))
}

func scenarioPipeline() *Pipeline { return NewPipeline(scenarioStores(), nil, nil) }

func TestGenerateExcludesAndFilters(t *testing.T) {
	p := scenarioPipeline()

	got := p.Generate("A", apptype.GenerateOptions{MaxResults: 10, ExcludeIDs: []string{"B", "E"}})
	assert.Equal(t, []string{"C", "D"}, ids(got), "second degree still walks through an excluded neighbor")

	got = p.Generate("A", apptype.GenerateOptions{MaxResults: 10, TypeFilter: []apptype.EntityType{apptype.EntityUser}})
	assert.Equal(t, []string{"B", "E"}, ids(got))

	got = p.Generate("A", apptype.GenerateOptions{MaxResults: 2})
	assert.Equal(t, []string{"B", "C"}, ids(got))
}

func TestGenerateDedupKeepsEarliestTier(t *testing.T) {
	s := scenarioStores()
	// B also carries tag x, so it is reachable both directly and by similarity.
	put(s, "B", apptype.EntityUser, "x")
	// D also reachable through C, still second degree.
	s.Graph.AddEdge("C", "D")
	p := NewPipeline(s, nil, nil)

	got := p.Generate("A", apptype.GenerateOptions{MaxResults: 10})
	assert.Equal(t, []string{"B", "C", "D", "E"}, ids(got))
	// direct 0.7 + one shared tag 0.05, undampened
	assert.InDelta(t, 0.75, byID(got, "B").Confidence, 1e-9)
	assert.Equal(t, 2, byID(got, "D").MutualConnections)
}

func TestGenerateSkipsSimilarityWhenFull(t *testing.T) {
	p := scenarioPipeline()
	got := p.Generate("A", apptype.GenerateOptions{MaxResults: 3})
	assert.Equal(t, []string{"B", "C", "D"}, ids(got))
}

func TestGenerateTierOrdering(t *testing.T) {
	s := newStores()
	put(s, "src", apptype.EntityUser)
	put(s, "direct", apptype.EntityUser)
	put(s, "hop", apptype.EntityUser)
	put(s, "similar", apptype.EntityUser)
	s.Graph.AddEdge("src", "direct")
	s.Graph.AddEdge("direct", "hop")
	put(s, "src", apptype.EntityUser, "t")
	put(s, "similar", apptype.EntityUser, "t")

	got := NewPipeline(s, scoring.Legacy{}, nil).Generate("src", apptype.GenerateOptions{MaxResults: 10})
	assert.Equal(t, []string{"direct", "hop", "similar"}, ids(got))
}

func TestGenerateReasonsAndTags(t *testing.T) {
	s := scenarioStores()
	p := NewPipeline(s, nil, nil)
	got := p.Generate("A", apptype.GenerateOptions{MaxResults: 10, IncludeReason: true, IncludeTags: true})

	assert.Equal(t, "Connected through Label B", byID(got, "D").Reason)
	assert.Equal(t, "Shared interests: x", byID(got, "E").Reason)
	assert.Equal(t, []string{"x"}, byID(got, "E").Tags)
	assert.Equal(t, "Potential collaboration opportunity", byID(got, "B").Reason)
	assert.Equal(t, "Team working in your area", byID(got, "C").Reason)

	plain := p.Generate("A", apptype.GenerateOptions{MaxResults: 10})
	for _, sg := range plain {
		assert.Empty(t, sg.Reason)
		assert.Empty(t, sg.Tags)
	}
}

func TestGenerateIsIdempotent(t *testing.T) {
	s := newStores()
	put(s, "hub", apptype.EntityUser, "a", "b")
	for i := 0; i < 30; i++ {
		id := fmt.Sprintf("n%02d", i)
		put(s, id, apptype.EntityProject, "a")
		if i%3 == 0 {
			s.Graph.AddEdge("hub", id)
		}
		if i%5 == 0 {
			s.Graph.AddEdge(id, fmt.Sprintf("n%02d", (i+1)%30))
		}
	}
	p := NewPipeline(s, nil, nil)
	opts := apptype.GenerateOptions{MaxResults: 15, IncludeReason: true}
	first := p.Generate("hub", opts)
	second := p.Generate("hub", opts)
	assert.Equal(t, first, second)
	assert.LessOrEqual(t, len(first), 15)
	for _, sg := range first {
		assert.NotEqual(t, "hub", sg.ID)
		assert.GreaterOrEqual(t, sg.Confidence, 0.0)
		assert.LessOrEqual(t, sg.Confidence, 1.0)
		assert.Equal(t, scoring.PriorityFor(sg.Confidence), sg.Priority)
	}
}

func BenchmarkGenerate(b *testing.B) {
	s := newStores()
	for i := 0; i < 2000; i++ {
		id := fmt.Sprintf("e%d", i)
		put(s, id, apptype.EntityTypes[i%len(apptype.EntityTypes)], fmt.Sprintf("t%d", i%40))
		if i > 0 {
			s.Graph.AddEdge(id, fmt.Sprintf("e%d", (i*7+3)%i))
		}
	}
	p := NewPipeline(s, nil, nil)
	opts := apptype.GenerateOptions{MaxResults: 20, IncludeReason: true}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p.Generate(fmt.Sprintf("e%d", i%2000), opts)
	}
}
