package storage

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/paperwalk/internal/models"
)

const defaultListLimit = 20

// sqlRunStore holds the queries shared by the SQLite and Postgres stores.
// Positional placeholders are written as ? and rebound per driver.
type sqlRunStore struct {
	db     *sqlx.DB
	logger *logrus.Logger
}

func (s *sqlRunStore) SaveRun(ctx context.Context, run *models.ExpansionRun) error {
	query := `
		INSERT INTO expansion_runs (id, seed_id, depth, status, papers_written,
			edges_written, pages_fetched, papers_visited, fetch_failures,
			normalization_failures, store_failures, error, started_at, duration_ns)
		VALUES (:id, :seed_id, :depth, :status, :papers_written,
			:edges_written, :pages_fetched, :papers_visited, :fetch_failures,
			:normalization_failures, :store_failures, :error, :started_at, :duration_ns)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			papers_written = EXCLUDED.papers_written,
			edges_written = EXCLUDED.edges_written,
			pages_fetched = EXCLUDED.pages_fetched,
			papers_visited = EXCLUDED.papers_visited,
			fetch_failures = EXCLUDED.fetch_failures,
			normalization_failures = EXCLUDED.normalization_failures,
			store_failures = EXCLUDED.store_failures,
			error = EXCLUDED.error,
			duration_ns = EXCLUDED.duration_ns
	`

	if _, err := s.db.NamedExecContext(ctx, query, run); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"run_id": run.ID,
		"seed":   run.SeedID,
		"status": run.Status,
	}).Debug("Saved expansion run")
	return nil
}

func (s *sqlRunStore) GetRun(ctx context.Context, id string) (*models.ExpansionRun, error) {
	var run models.ExpansionRun
	query := s.db.Rebind(`SELECT * FROM expansion_runs WHERE id = ?`)

	if err := s.db.GetContext(ctx, &run, query, id); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get run: %w", err)
	}
	return &run, nil
}

func (s *sqlRunStore) ListRuns(ctx context.Context, limit int) ([]*models.ExpansionRun, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	var runs []*models.ExpansionRun
	query := s.db.Rebind(`SELECT * FROM expansion_runs ORDER BY started_at DESC, id LIMIT ?`)
	if err := s.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Close closes the database connection
func (s *sqlRunStore) Close() error {
	return s.db.Close()
}
