// Package schema versions the journal database. Migrations are numbered
// steps applied inside a transaction each; the applied versions are kept in
// the schema_versions table.
package schema

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"graphengine/pkg/utils"
)

const versionTable = "schema_versions"

// SchemaVersion represents a specific version of the database schema
type SchemaVersion struct {
	Version        int       `json:"version"`
	Description    string    `json:"description"`
	AppliedAt      time.Time `json:"applied_at"`
	Checksum       string    `json:"checksum"`
	BreakingChange bool      `json:"breaking_change"`
}

// Migration represents a schema migration
type Migration struct {
	FromVersion    int           `json:"from_version"`
	ToVersion      int           `json:"to_version"`
	Description    string        `json:"description"`
	BreakingChange bool          `json:"breaking_change"`
	Up             MigrationFunc `json:"-"`
	Down           MigrationFunc `json:"-"`
}

// MigrationFunc is a function that performs a migration
type MigrationFunc func(ctx context.Context, tx *sql.Tx) error

// Exec returns a MigrationFunc running the statements in order
func Exec(statements ...string) MigrationFunc {
	return func(ctx context.Context, tx *sql.Tx) error {
		for _, stmt := range statements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return err
			}
		}
		return nil
	}
}

func (m Migration) checksum() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%d->%d:%s", m.FromVersion, m.ToVersion, m.Description)))
	return hex.EncodeToString(sum[:8])
}

// SchemaEvolution manages database schema evolution
type SchemaEvolution struct {
	db         *sql.DB
	migrations []Migration
}

// NewSchemaEvolution creates a new schema evolution manager
func NewSchemaEvolution(db *sql.DB) *SchemaEvolution {
	return &SchemaEvolution{db: db}
}

// RegisterMigration registers a new migration
func (s *SchemaEvolution) RegisterMigration(migration Migration) error {
	if migration.ToVersion != migration.FromVersion+1 {
		return fmt.Errorf("invalid migration: %d->%d must advance one version", migration.FromVersion, migration.ToVersion)
	}
	if migration.Up == nil {
		return fmt.Errorf("migration %d->%d has no Up step", migration.FromVersion, migration.ToVersion)
	}
	for _, existing := range s.migrations {
		if existing.ToVersion == migration.ToVersion {
			return fmt.Errorf("migration from %d to %d already exists",
				migration.FromVersion, migration.ToVersion)
		}
	}

	s.migrations = append(s.migrations, migration)
	sort.Slice(s.migrations, func(i, j int) bool { return s.migrations[i].ToVersion < s.migrations[j].ToVersion })
	return nil
}

// LatestVersion is the highest version a registered migration reaches
func (s *SchemaEvolution) LatestVersion() int {
	if len(s.migrations) == 0 {
		return 0
	}
	return s.migrations[len(s.migrations)-1].ToVersion
}

// Migrate moves the database to targetVersion, forwards or backwards
func (s *SchemaEvolution) Migrate(ctx context.Context, targetVersion int) error {
	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS `+versionTable+` (
		version         INTEGER PRIMARY KEY,
		description     TEXT NOT NULL,
		checksum        TEXT NOT NULL,
		breaking_change INTEGER NOT NULL DEFAULT 0,
		applied_at      TEXT NOT NULL
	)`); err != nil {
		return fmt.Errorf("creating %s: %w", versionTable, err)
	}

	current, err := s.GetCurrentVersion(ctx)
	if err != nil {
		return err
	}
	switch {
	case targetVersion == current:
		return nil
	case targetVersion < current:
		return s.rollback(ctx, current, targetVersion)
	default:
		return s.upgrade(ctx, current, targetVersion)
	}
}

// upgrade performs forward migrations
func (s *SchemaEvolution) upgrade(ctx context.Context, current, targetVersion int) error {
	for current < targetVersion {
		migration := s.findMigration(current, current+1)
		if migration == nil {
			return fmt.Errorf("no migration found from version %d to %d", current, current+1)
		}

		err := s.inTx(ctx, func(tx *sql.Tx) error {
			if err := migration.Up(ctx, tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx,
				`INSERT INTO `+versionTable+` (version, description, checksum, breaking_change, applied_at) VALUES (?, ?, ?, ?, ?)`,
				migration.ToVersion, migration.Description, migration.checksum(),
				migration.BreakingChange, utils.NowRFC3339())
			return err
		})
		if err != nil {
			return fmt.Errorf("migration %d->%d failed: %w", migration.FromVersion, migration.ToVersion, err)
		}
		current = migration.ToVersion
	}
	return nil
}

// rollback performs backward migrations
func (s *SchemaEvolution) rollback(ctx context.Context, current, targetVersion int) error {
	for current > targetVersion {
		migration := s.findMigration(current-1, current)
		if migration == nil {
			return fmt.Errorf("no rollback found from version %d to %d", current, current-1)
		}
		if migration.Down == nil {
			return fmt.Errorf("migration %d->%d does not support rollback",
				migration.FromVersion, migration.ToVersion)
		}

		err := s.inTx(ctx, func(tx *sql.Tx) error {
			if err := migration.Down(ctx, tx); err != nil {
				return err
			}
			_, err := tx.ExecContext(ctx, `DELETE FROM `+versionTable+` WHERE version = ?`, migration.ToVersion)
			return err
		})
		if err != nil {
			return fmt.Errorf("rollback %d->%d failed: %w", migration.ToVersion, migration.FromVersion, err)
		}
		current = migration.FromVersion
	}
	return nil
}

func (s *SchemaEvolution) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// findMigration finds a migration between two versions
func (s *SchemaEvolution) findMigration(from, to int) *Migration {
	for i := range s.migrations {
		if s.migrations[i].FromVersion == from && s.migrations[i].ToVersion == to {
			return &s.migrations[i]
		}
	}
	return nil
}

// GetCurrentVersion returns the highest applied version, 0 for a fresh database
func (s *SchemaEvolution) GetCurrentVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	if err := s.db.QueryRowContext(ctx, `SELECT MAX(version) FROM `+versionTable).Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return int(version.Int64), nil
}

// GetHistory returns the applied versions, oldest first
func (s *SchemaEvolution) GetHistory(ctx context.Context) ([]SchemaVersion, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, description, checksum, breaking_change, applied_at FROM `+versionTable+` ORDER BY version`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var history []SchemaVersion
	for rows.Next() {
		var (
			v       SchemaVersion
			applied string
		)
		if err := rows.Scan(&v.Version, &v.Description, &v.Checksum, &v.BreakingChange, &applied); err != nil {
			return nil, err
		}
		v.AppliedAt, _ = utils.ParseRFC3339(applied)
		history = append(history, v)
	}
	return history, rows.Err()
}

// MarshalWithSchema marshals data with schema information
func MarshalWithSchema(data interface{}, schemaVersion int) ([]byte, error) {
	wrapper := struct {
		SchemaVersion int         `json:"_schema_version"`
		Data          interface{} `json:"data"`
	}{
		SchemaVersion: schemaVersion,
		Data:          data,
	}
	return json.Marshal(wrapper)
}

// UnmarshalWithSchema unwraps data written by MarshalWithSchema and returns
// its schema version
func UnmarshalWithSchema(data []byte) (json.RawMessage, int, error) {
	var wrapper struct {
		SchemaVersion int             `json:"_schema_version"`
		Data          json.RawMessage `json:"data"`
	}

	if err := json.Unmarshal(data, &wrapper); err != nil {
		return nil, 0, err
	}

	return wrapper.Data, wrapper.SchemaVersion, nil
}
