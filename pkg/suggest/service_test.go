package suggest

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
)

func TestServiceInMemory(t *testing.T) {
	ctx := context.Background()
	svc, err := NewService(ctx, nil, nil)
	require.NoError(t, err)
	defer svc.Close(ctx)

	require.NoError(t, svc.RegisterEntities(ctx, []Entity{
		{ID: "u1", Type: apptype.EntityUser, Tags: []string{"go"}},
		{ID: "u2", Type: apptype.EntityUser, Tags: []string{"go"}},
		{ID: "g1", Type: apptype.EntityGoal},
	}))
	require.NoError(t, svc.Link(ctx, []Relation{{A: "u1", B: "g1"}}))

	got, err := svc.Suggest(ctx, "u1", GenerateOptions{IncludeReason: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "g1", got[0].ID)
	assert.Equal(t, "u2", got[1].ID)
	assert.Equal(t, "Shared interests: go", got[1].Reason)

	require.NoError(t, svc.SubmitFeedback("u1", "u2", false))
	require.NoError(t, svc.RecordInteraction("u1", "u2"))
	assert.Equal(t, 1, svc.Feedback("u2").NotHelpful)
	assert.Equal(t, 3, svc.Stats().Entities)
}

func TestServiceWithDatabase(t *testing.T) {
	ctx := context.Background()
	cfg := &Config{
		DatabaseURL: "file:" + filepath.Join(t.TempDir(), "svc.db"),
		CacheTTL:    time.Minute,
	}
	svc, err := NewService(ctx, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, svc.RegisterEntities(ctx, []Entity{{ID: "a", Type: apptype.EntityTeam}}))
	require.NoError(t, svc.Close(ctx))

	again, err := NewService(ctx, cfg, nil)
	require.NoError(t, err)
	defer again.Close(ctx)
	assert.Equal(t, 1, again.Stats().Entities)
}

func TestServiceRejectsBadConfig(t *testing.T) {
	_, err := NewService(context.Background(), &Config{ScoringStrategy: "neural"}, nil)
	assert.Error(t, err)
}
