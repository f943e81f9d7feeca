package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// SQLiteStore implements RunStore using SQLite (for local use)
type SQLiteStore struct {
	sqlRunStore
}

var _ RunStore = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite run store. ":memory:" is accepted.
func NewSQLiteStore(path string, logger *logrus.Logger) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}
	// a single connection keeps :memory: databases alive across queries
	db.SetMaxOpenConns(1)
	db.Exec("PRAGMA journal_mode = WAL")

	store := &SQLiteStore{sqlRunStore{db: db, logger: logger}}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	logger.WithField("path", path).Debug("Opened SQLite run store")
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS expansion_runs (
		id TEXT PRIMARY KEY,
		seed_id TEXT NOT NULL,
		depth INTEGER NOT NULL,
		status TEXT NOT NULL,
		papers_written INTEGER NOT NULL DEFAULT 0,
		edges_written INTEGER NOT NULL DEFAULT 0,
		pages_fetched INTEGER NOT NULL DEFAULT 0,
		papers_visited INTEGER NOT NULL DEFAULT 0,
		fetch_failures INTEGER NOT NULL DEFAULT 0,
		normalization_failures INTEGER NOT NULL DEFAULT 0,
		store_failures INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT '',
		started_at DATETIME NOT NULL,
		duration_ns INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON expansion_runs(started_at);
	CREATE INDEX IF NOT EXISTS idx_runs_seed ON expansion_runs(seed_id);
	`

	_, err := s.db.Exec(schema)
	return err
}
