package database

import (
	"context"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
)

// LoadSnapshot reads everything needed to warm a fresh engine.
func (dm *DBManager) LoadSnapshot(ctx context.Context) (apptype.Snapshot, error) {
	var snap apptype.Snapshot
	var err error
	if snap.Entities, err = dm.LoadEntities(ctx); err != nil {
		return apptype.Snapshot{}, err
	}
	if snap.Relations, err = dm.LoadRelations(ctx); err != nil {
		return apptype.Snapshot{}, err
	}
	if snap.Feedback, err = dm.FeedbackTotals(ctx); err != nil {
		return apptype.Snapshot{}, err
	}
	if snap.Interactions, err = dm.LoadInteractions(ctx); err != nil {
		return apptype.Snapshot{}, err
	}
	return snap, nil
}
