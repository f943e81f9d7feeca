package storage

import (
	"context"
	"errors"

	"github.com/rohankatakam/paperwalk/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("not found")
)

// RunStore keeps the history of expansion runs.
type RunStore interface {
	SaveRun(ctx context.Context, run *models.ExpansionRun) error
	GetRun(ctx context.Context, id string) (*models.ExpansionRun, error)
	// ListRuns returns the most recent runs first.
	ListRuns(ctx context.Context, limit int) ([]*models.ExpansionRun, error)

	// Close connection
	Close() error
}
