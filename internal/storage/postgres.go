package storage

import (
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// PostgresStore implements RunStore using PostgreSQL
type PostgresStore struct {
	sqlRunStore
}

var _ RunStore = (*PostgresStore)(nil)

// NewPostgresStore creates a new PostgreSQL run store
func NewPostgresStore(dsn string, logger *logrus.Logger) (*PostgresStore, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	store := &PostgresStore{sqlRunStore{db: db, logger: logger}}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) initSchema() error {
	statements := []string{`
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
		started_at TIMESTAMPTZ NOT NULL,
		duration_ns BIGINT NOT NULL DEFAULT 0
	)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON expansion_runs(started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_seed ON expansion_runs(seed_id)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
