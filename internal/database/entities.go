package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/entity-suggest-go/internal/apptype"
	"github.com/ZanzyTHEbar/entity-suggest-go/internal/metrics"
)

// UpsertEntities inserts or replaces entities and their tags in one transaction.
func (dm *DBManager) UpsertEntities(ctx context.Context, entities []apptype.Entity) error {
	done := metrics.TimeOp("db_upsert_entities")
	success := false
	defer func() { done(success) }()
	if len(entities) == 0 {
		success = true
		return nil
	}
	db, err := dm.getDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, entity := range entities {
		if strings.TrimSpace(entity.ID) == "" {
			return fmt.Errorf("entity id must be a non-empty string")
		}
		if !entity.Type.Valid() {
			return fmt.Errorf("invalid entity type %q for entity %q", entity.Type, entity.ID)
		}
		var props sql.NullString
		if entity.Properties != nil {
			raw, mErr := json.Marshal(entity.Properties)
			if mErr != nil {
				return fmt.Errorf("failed to encode properties for %q: %w", entity.ID, mErr)
			}
			props = sql.NullString{String: string(raw), Valid: true}
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO entities (id, entity_type, label, properties)
            VALUES (?, ?, ?, ?)
            ON CONFLICT(id) DO UPDATE SET
                entity_type = excluded.entity_type,
                label = excluded.label,
                properties = excluded.properties,
                updated_at = CURRENT_TIMESTAMP`,
			entity.ID, string(entity.Type), entity.Label, props); err != nil {
			return fmt.Errorf("failed to upsert entity %q: %w", entity.ID, err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM entity_tags WHERE entity_id = ?", entity.ID); err != nil {
			return fmt.Errorf("failed to clear tags for %q: %w", entity.ID, err)
		}
		for pos, tag := range entity.Tags {
			if tag == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				"INSERT OR IGNORE INTO entity_tags (entity_id, tag, position) VALUES (?, ?, ?)",
				entity.ID, tag, pos); err != nil {
				return fmt.Errorf("failed to insert tag %q for %q: %w", tag, entity.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	success = true
	return nil
}

// LoadEntities returns every stored entity ordered by id, with tags in
// insertion order and properties decoded by type.
func (dm *DBManager) LoadEntities(ctx context.Context) ([]apptype.Entity, error) {
	done := metrics.TimeOp("db_load_entities")
	success := false
	defer func() { done(success) }()
	db, err := dm.getDB()
	if err != nil {
		return nil, err
	}

	tags, err := dm.loadTags(ctx, db)
	if err != nil {
		return nil, err
	}

	stmt, err := dm.getPreparedStmt(ctx, db, "SELECT id, entity_type, label, properties FROM entities ORDER BY id")
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query entities: %w", err)
	}
	defer rows.Close()

	var out []apptype.Entity
	for rows.Next() {
		var (
			id, typ, label string
			props          sql.NullString
		)
		if err := rows.Scan(&id, &typ, &label, &props); err != nil {
			return nil, fmt.Errorf("failed to scan entity: %w", err)
		}
		e := apptype.Entity{ID: id, Type: apptype.EntityType(typ), Label: label, Tags: tags[id]}
		if props.Valid && props.String != "" {
			p, dErr := apptype.DecodeProperties(e.Type, json.RawMessage(props.String))
			if dErr != nil {
				return nil, fmt.Errorf("failed to decode properties for %q: %w", id, dErr)
			}
			e.Properties = p
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	success = true
	return out, nil
}

func (dm *DBManager) loadTags(ctx context.Context, db *sql.DB) (map[string][]string, error) {
	stmt, err := dm.getPreparedStmt(ctx, db, "SELECT entity_id, tag FROM entity_tags ORDER BY entity_id, position")
	if err != nil {
		return nil, err
	}
	rows, err := stmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	tags := make(map[string][]string)
	for rows.Next() {
		var id, tag string
		if err := rows.Scan(&id, &tag); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags[id] = append(tags[id], tag)
	}
	return tags, rows.Err()
}
