// Package store is the SQLite ledger of pipeline runs, published playlists and
// the cached Spotify user token.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := createTables(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensuring schema: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const createQuery = `
CREATE TABLE IF NOT EXISTS Run (
  id TEXT PRIMARY KEY,
  playlist TEXT NOT NULL,
  started DATETIME NOT NULL,
  finished DATETIME,
  status TEXT NOT NULL,
  tracks INTEGER NOT NULL DEFAULT 0,
  playlists INTEGER NOT NULL DEFAULT 0,
  error TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS PublishedPlaylist (
  remote_id TEXT PRIMARY KEY,
  run TEXT NOT NULL,
  playlist TEXT NOT NULL,
  name TEXT NOT NULL,
  tracks INTEGER NOT NULL,
  energy REAL NOT NULL,
  valence REAL NOT NULL,
  published DATETIME NOT NULL,
  FOREIGN KEY (run) REFERENCES Run(id)
);

CREATE INDEX IF NOT EXISTS PublishedPlaylistName ON PublishedPlaylist (name);

CREATE TABLE IF NOT EXISTS Token (
  name TEXT PRIMARY KEY,
  access_token TEXT NOT NULL,
  token_type TEXT NOT NULL,
  refresh_token TEXT NOT NULL,
  expiry DATETIME
);
`

func createTables(db *sql.DB) error {
	if _, err := db.Exec(createQuery); err != nil {
		return fmt.Errorf("executing create: %w", err)
	}
	return nil
}

// ensureSchema adds columns introduced after a ledger was first created.
func ensureSchema(db *sql.DB) error {
	// Run.skipped_fetch
	if err := addColumnIfNotExists(db, "Run", "skipped_fetch", "INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	return nil
}

func addColumnIfNotExists(db *sql.DB, table, column, typeDef string) error {
	exists, err := columnExists(db, table, column)
	if err != nil {
		return fmt.Errorf("checking column %s.%s: %w", table, column, err)
	}
	if !exists {
		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, typeDef)
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("adding column %s.%s: %w", table, column, err)
		}
	}
	return nil
}

func columnExists(db *sql.DB, tableName string, columnName string) (bool, error) {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", tableName))
	if err != nil {
		return false, err
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name string
		var ctype string
		var notnull int
		var dfltValue any
		var pk int
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			return false, err
		}
		if name == columnName {
			return true, nil
		}
	}
	return false, rows.Err()
}
