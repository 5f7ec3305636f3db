// Package sqlite keeps the batch journal and its event outbox in a SQLite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"graphengine/infrastructure/persistence/schema"
)

// Open opens the journal database with WAL mode and foreign keys enabled and
// migrates it to the latest schema. ":memory:" gives a private in-memory
// database.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Every :memory: connection is its own database.
	conn.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := conn.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setting WAL mode: %w", err)
		}
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	evolution, err := Migrations(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := evolution.Migrate(ctx, evolution.LatestVersion()); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// Migrations returns the journal schema history
func Migrations(db *sql.DB) (*schema.SchemaEvolution, error) {
	evolution := schema.NewSchemaEvolution(db)
	for _, m := range []schema.Migration{
		{
			FromVersion: 0,
			ToVersion:   1,
			Description: "batches and their events",
			Up: schema.Exec(
				`CREATE TABLE batches (
					id            TEXT PRIMARY KEY,
					graph_id      TEXT NOT NULL,
					asset_path    TEXT NOT NULL,
					graph_name    TEXT NOT NULL,
					domain        TEXT NOT NULL,
					operation     TEXT NOT NULL,
					success       INTEGER NOT NULL,
					error_count   INTEGER NOT NULL,
					created_nodes TEXT,
					fingerprint   TEXT NOT NULL,
					request       TEXT,
					applied_at    INTEGER NOT NULL
				)`,
				`CREATE TABLE events (
					id           TEXT PRIMARY KEY,
					batch_id     TEXT NOT NULL REFERENCES batches(id) ON DELETE CASCADE,
					seq          INTEGER NOT NULL,
					aggregate_id TEXT NOT NULL,
					event_type   TEXT NOT NULL,
					payload      TEXT NOT NULL,
					occurred_at  INTEGER NOT NULL
				)`,
			),
			Down: schema.Exec(`DROP TABLE events`, `DROP TABLE batches`),
		},
		{
			FromVersion: 1,
			ToVersion:   2,
			Description: "outbox publish status",
			Up: schema.Exec(
				`ALTER TABLE events ADD COLUMN publish_status TEXT NOT NULL DEFAULT 'pending'`,
				`ALTER TABLE events ADD COLUMN publish_attempts INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE events ADD COLUMN last_error TEXT`,
				`ALTER TABLE events ADD COLUMN published_at INTEGER`,
			),
		},
		{
			FromVersion: 2,
			ToVersion:   3,
			Description: "lookup indexes",
			Up: schema.Exec(
				`CREATE INDEX idx_batches_graph ON batches(graph_id, applied_at)`,
				`CREATE INDEX idx_events_status ON events(publish_status, occurred_at)`,
			),
			Down: schema.Exec(`DROP INDEX idx_events_status`, `DROP INDEX idx_batches_graph`),
		},
	} {
		if err := evolution.RegisterMigration(m); err != nil {
			return nil, err
		}
	}
	return evolution, nil
}
