package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/metrics"
)

// PersistFeedback appends one feedback event. Replaying an event id is a no-op.
func (dm *DBManager) PersistFeedback(ctx context.Context, ev apptype.FeedbackEvent) error {
	done := metrics.TimeOp("db_persist_feedback")
	success := false
	defer func() { done(success) }()
	if ev.EntityID == "" || ev.SuggestionID == "" {
		return fmt.Errorf("feedback requires entity and suggestion ids")
	}
	db, err := dm.getDB()
	if err != nil {
		return err
	}
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	stmt, err := dm.getPreparedStmt(ctx, db,
		"INSERT OR IGNORE INTO feedback (id, entity_id, suggestion_id, is_helpful, created_at) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	helpful := 0
	if ev.IsHelpful {
		helpful = 1
	}
	if _, err := stmt.ExecContext(ctx, ev.ID, ev.EntityID, ev.SuggestionID, helpful, ts.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("failed to insert feedback: %w", err)
	}
	success = true
	return nil
}

// FeedbackTotals aggregates the stored events per suggestion target.
func (dm *DBManager) FeedbackTotals(ctx context.Context) (map[string]apptype.FeedbackCounts, error) {
	done := metrics.TimeOp("db_feedback_totals")
	success := false
	defer func() { done(success) }()
	db, err := dm.getDB()
	if err != nil {
		return nil, err
	}
	stmt, err := dm.getPreparedStmt(ctx, db, `SELECT suggestion_id,
            SUM(CASE WHEN is_helpful = 1 THEN 1 ELSE 0 END),
            SUM(CASE WHEN is_helpful = 1 THEN 0 ELSE 1 END)
        FROM feedback GROUP BY suggestion_id`)
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback totals: %w", err)
	}
	defer rows.Close()

	out := make(map[string]apptype.FeedbackCounts)
	for rows.Next() {
		var (
			id      string
			helpful int64
			not     int64
		)
		if err := rows.Scan(&id, &helpful, &not); err != nil {
			return nil, fmt.Errorf("failed to scan feedback totals: %w", err)
		}
		out[id] = apptype.FeedbackCounts{Helpful: int(helpful), NotHelpful: int(not)}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	success = true
	return out, nil
}
