// Package store is the numeric and relational half of the world state:
// countries, aspect ratings and texts, projects, events and engine
// metadata, all in a single SQLite database.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// DB wraps the SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Open opens (or creates) the database at path and runs migrations.
func Open(path string) (*DB, error) {
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path)
	conn, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// SQLite handles one writer at a time.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Close closes the underlying connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

const schema = `
CREATE TABLE IF NOT EXISTS countries (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	ruler        TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	problems     TEXT NOT NULL DEFAULT '[]',
	needs_review INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL,
	last_active  TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS stats (
	country_id TEXT NOT NULL,
	aspect     TEXT NOT NULL,
	rating     INTEGER NOT NULL,
	PRIMARY KEY (country_id, aspect)
);

CREATE TABLE IF NOT EXISTS aspect_state (
	country_id   TEXT NOT NULL,
	aspect       TEXT NOT NULL,
	description  TEXT NOT NULL DEFAULT '',
	updated_year INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (country_id, aspect)
);

CREATE TABLE IF NOT EXISTS projects (
	id                   TEXT PRIMARY KEY,
	country_id           TEXT NOT NULL,
	name                 TEXT NOT NULL,
	category             TEXT NOT NULL,
	description          TEXT NOT NULL DEFAULT '',
	scale                INTEGER NOT NULL DEFAULT 3,
	start_year           INTEGER NOT NULL,
	duration_years       INTEGER NOT NULL,
	progress             INTEGER NOT NULL DEFAULT 0,
	remaining_years      INTEGER NOT NULL DEFAULT 0,
	completed            INTEGER NOT NULL DEFAULT 0,
	completion_processed INTEGER NOT NULL DEFAULT 0,
	archived             INTEGER NOT NULL DEFAULT 0,
	created_at           TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_projects_country ON projects(country_id, archived);

CREATE TABLE IF NOT EXISTS events (
	id           TEXT PRIMARY KEY,
	country_id   TEXT NOT NULL,
	severity     TEXT NOT NULL,
	title        TEXT NOT NULL,
	description  TEXT NOT NULL,
	consequences TEXT NOT NULL DEFAULT '',
	aspects      TEXT NOT NULL DEFAULT '[]',
	impacts      TEXT NOT NULL DEFAULT '{}',
	year         INTEGER NOT NULL,
	is_global    INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_country ON events(country_id, created_at);

CREATE TABLE IF NOT EXISTS meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

func (db *DB) migrate() error {
	_, err := db.conn.Exec(schema)
	return err
}

// GetMeta returns the metadata value for key, or ErrNotFound.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, `SELECT value FROM meta WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get meta %s: %w", key, err)
	}
	return value, nil
}

// SetMeta upserts a metadata key.
func (db *DB) SetMeta(key, value string) error {
	_, err := db.conn.Exec(
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("set meta %s: %w", key, err)
	}
	return nil
}
