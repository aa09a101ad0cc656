package database

import (
	"context"
	"fmt"
	"testing"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
)

func setupBenchDB(b *testing.B, n int) (*DBManager, func()) {
	b.Helper()
	cfg := NewConfig()
	cfg.URL = "file:benchdb?mode=memory&cache=shared"
	dbm, err := NewDBManager(cfg)
	if err != nil {
		b.Fatalf("NewDBManager: %v", err)
	}

	ctx := context.Background()
	batch := make([]apptype.Entity, 0, 200)
	rels := make([]apptype.Relation, 0, 200)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := dbm.UpsertEntities(ctx, batch); err != nil {
			b.Fatalf("UpsertEntities: %v", err)
		}
		if err := dbm.CreateRelations(ctx, rels); err != nil {
			b.Fatalf("CreateRelations: %v", err)
		}
		batch = batch[:0]
		rels = rels[:0]
	}
	for i := range n {
		id := fmt.Sprintf("e%05d", i)
		batch = append(batch, apptype.Entity{
			ID:   id,
			Type: apptype.EntityTypes[i%len(apptype.EntityTypes)],
			Tags: []string{fmt.Sprintf("t%d", i%25)},
		})
		if i > 0 {
			rels = append(rels, apptype.Relation{A: id, B: fmt.Sprintf("e%05d", (i*31+7)%i)})
		}
		if len(batch) == cap(batch) {
			flush()
		}
	}
	flush()
	return dbm, func() { _ = dbm.Close() }
}

func BenchmarkLoadSnapshot(b *testing.B) {
	dbm, cleanup := setupBenchDB(b, 2000)
	defer cleanup()
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := dbm.LoadSnapshot(ctx); err != nil {
			b.Fatalf("LoadSnapshot: %v", err)
		}
	}
}

func BenchmarkPersistFeedback(b *testing.B) {
	dbm, cleanup := setupBenchDB(b, 10)
	defer cleanup()
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ev := apptype.FeedbackEvent{EntityID: "e00001", SuggestionID: "e00002", IsHelpful: i%2 == 0}
		if err := dbm.PersistFeedback(ctx, ev); err != nil {
			b.Fatalf("PersistFeedback: %v", err)
		}
	}
}
