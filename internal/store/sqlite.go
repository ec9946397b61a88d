// Package store implements the persistence interfaces on SQLite.
// All timestamps are stored as unix seconds; maps are stored as JSON text.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version. Bump this when adding
// migrations.
const CurrentSchemaVersion = 1

// SQLite implements types.Store on a single SQLite database file.
type SQLite struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at dataDir/ticker.db, puts
// it in WAL mode, and applies pending migrations.
func Open(dataDir string) (*SQLite, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "ticker.db")
	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database handle.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS items (
		  id           TEXT PRIMARY KEY,
		  category     TEXT NOT NULL,
		  title        TEXT NOT NULL,
		  description  TEXT NOT NULL,
		  icon         TEXT NOT NULL DEFAULT 'Info',
		  display_type TEXT NOT NULL DEFAULT 'info',
		  priority     INTEGER NOT NULL,
		  payload_json TEXT,
		  origin       TEXT NOT NULL DEFAULT '',
		  external_id  TEXT NOT NULL DEFAULT '',
		  expires_at   INTEGER,
		  is_active    INTEGER NOT NULL DEFAULT 1,
		  created_at   INTEGER NOT NULL,
		  updated_at   INTEGER NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_items_natural_key
		ON items(origin, external_id)
		WHERE external_id != '';

		CREATE INDEX IF NOT EXISTS idx_items_category_created
		ON items(category, created_at DESC)
		WHERE is_active = 1;

		CREATE TABLE IF NOT EXISTS sources (
		  id              TEXT PRIMARY KEY,
		  category        TEXT NOT NULL,
		  name            TEXT NOT NULL,
		  source_type     TEXT NOT NULL,
		  endpoint        TEXT NOT NULL DEFAULT '',
		  config_json     TEXT,
		  refresh_minutes INTEGER NOT NULL DEFAULT 30,
		  is_enabled      INTEGER NOT NULL DEFAULT 1,
		  last_fetch_at   INTEGER,
		  last_success_at INTEGER,
		  fetch_count     INTEGER NOT NULL DEFAULT 0,
		  error_count     INTEGER NOT NULL DEFAULT 0,
		  last_error      TEXT NOT NULL DEFAULT '',
		  created_at      INTEGER NOT NULL,
		  updated_at      INTEGER NOT NULL,
		  UNIQUE(category, name)
		);

		CREATE TABLE IF NOT EXISTS engagements (
		  id            TEXT PRIMARY KEY,
		  user_id       TEXT NOT NULL,
		  item_id       TEXT NOT NULL,
		  action        TEXT NOT NULL,
		  at            INTEGER NOT NULL,
		  metadata_json TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_engagements_user_item
		ON engagements(user_id, item_id);

		CREATE TABLE IF NOT EXISTS preferences (
		  user_id             TEXT PRIMARY KEY,
		  enabled_categories  TEXT NOT NULL,
		  priority_threshold  INTEGER NOT NULL DEFAULT 5,
		  custom_filters_json TEXT,
		  created_at          INTEGER NOT NULL,
		  updated_at          INTEGER NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1: %w", err)
		}
		if _, err := db.Exec("PRAGMA user_version=1"); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

func marshalMap(m map[string]any) (sql.NullString, error) {
	if len(m) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal json map: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func unmarshalMap(ns sql.NullString) (map[string]any, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil, fmt.Errorf("unmarshal json map: %w", err)
	}
	return m, nil
}

func toNullUnix(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func fromNullUnix(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}
