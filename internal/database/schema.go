package database

// schema returns the DDL applied on startup. Relations are stored once per
// undirected pair with a < b.
func schema() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS entities (
        id TEXT PRIMARY KEY,
        entity_type TEXT NOT NULL,
        label TEXT NOT NULL DEFAULT '',
        properties TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
    )`,

		`CREATE TABLE IF NOT EXISTS entity_tags (
        entity_id TEXT NOT NULL,
        tag TEXT NOT NULL,
        position INTEGER NOT NULL DEFAULT 0,
        PRIMARY KEY (entity_id, tag),
        FOREIGN KEY (entity_id) REFERENCES entities(id)
    )`,

		`CREATE TABLE IF NOT EXISTS relations (
        a TEXT NOT NULL,
        b TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (a, b)
    )`,

		`CREATE TABLE IF NOT EXISTS feedback (
        id TEXT PRIMARY KEY,
        entity_id TEXT NOT NULL,
        suggestion_id TEXT NOT NULL,
        is_helpful INTEGER NOT NULL,
        created_at TEXT NOT NULL
    )`,

		`CREATE TABLE IF NOT EXISTS interactions (
        source TEXT NOT NULL,
        target TEXT NOT NULL,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        PRIMARY KEY (source, target)
    )`,

		`CREATE INDEX IF NOT EXISTS idx_entity_tags_tag ON entity_tags(tag)`,
		`CREATE INDEX IF NOT EXISTS idx_relations_b ON relations(b)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_suggestion ON feedback(suggestion_id)`,
		`CREATE INDEX IF NOT EXISTS idx_feedback_entity ON feedback(entity_id)`,
	}
}
