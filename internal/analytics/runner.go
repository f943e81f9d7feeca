// Package analytics computes citation centrality (PageRank and ArticleRank)
// over the stored graph and writes the scores back onto Paper nodes.
package analytics

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rohankatakam/paperwalk/internal/errors"
	"github.com/rohankatakam/paperwalk/internal/graph"
	"github.com/rohankatakam/paperwalk/internal/logging"
	"github.com/rohankatakam/paperwalk/internal/models"
)

// ErrEmptyProjection is returned when there is nothing to rank.
var ErrEmptyProjection = errors.AnalyticsUnavailable(nil, "projection is empty: no papers to rank")

// Algorithm names a centrality algorithm.
type Algorithm string

const (
	PageRank    Algorithm = "pageRank"
	ArticleRank Algorithm = "articleRank"
)

// Property is the node property the algorithm's score is written to.
func (a Algorithm) Property() string {
	if a == ArticleRank {
		return graph.PropertyArticleRank
	}
	return graph.PropertyPageRank
}

// Params are the algorithm settings shared by both rankings.
type Params struct {
	MaxIterations int
	DampingFactor float64
}

// Projection describes an in-memory graph projection.
type Projection struct {
	Name          string `json:"name"`
	Nodes         int64  `json:"nodes"`
	Relationships int64  `json:"relationships"`
}

// AlgorithmStats is what one algorithm run reports.
type AlgorithmStats struct {
	Algorithm  Algorithm `json:"algorithm"`
	Nodes      int64     `json:"nodes"`
	Iterations int64     `json:"iterations"`
	Converged  bool      `json:"converged"`
}

// Engine is the analytics backend. GDSEngine is the production one.
type Engine interface {
	Available(ctx context.Context) error
	DropProjection(ctx context.Context, name string) error
	Project(ctx context.Context, name string) (Projection, error)
	Mutate(ctx context.Context, name string, alg Algorithm, params Params) (AlgorithmStats, error)
	WriteProperties(ctx context.Context, name string, properties []string) (int64, error)
}

// ScoreReader reads ranked papers back from the graph.
type ScoreReader interface {
	TopPapers(ctx context.Context, property string, limit int) ([]models.Paper, error)
}

// Config holds runner settings.
type Config struct {
	ProjectionName string
	MaxIterations  int
	DampingFactor  float64
}

// DefaultConfig returns the standard ranking settings.
func DefaultConfig() Config {
	return Config{
		ProjectionName: "papersGraph",
		MaxIterations:  20,
		DampingFactor:  0.85,
	}
}

// CentralityResult summarizes one centrality run.
type CentralityResult struct {
	Projection        Projection       `json:"projection"`
	Algorithms        []AlgorithmStats `json:"algorithms"`
	PropertiesWritten int64            `json:"propertiesWritten"`
	Duration          time.Duration    `json:"duration"`
}

// Runner orchestrates projection, ranking and write-back.
type Runner struct {
	engine  Engine
	reader  ScoreReader
	cfg     Config
	logger  *slog.Logger
	running atomic.Bool
}

// NewRunner creates a runner. reader may be nil when TopPapers is unused.
func NewRunner(engine Engine, reader ScoreReader, cfg Config) *Runner {
	d := DefaultConfig()
	if cfg.ProjectionName == "" {
		cfg.ProjectionName = d.ProjectionName
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = d.MaxIterations
	}
	if cfg.DampingFactor <= 0 || cfg.DampingFactor >= 1 {
		cfg.DampingFactor = d.DampingFactor
	}
	return &Runner{
		engine: engine,
		reader: reader,
		cfg:    cfg,
		logger: logging.Component("analytics"),
	}
}

// RunCentrality projects the citation graph, computes PageRank and
// ArticleRank, and writes both scores in one call. Any failure aborts the
// run; scores are only written once both algorithms succeeded.
func (r *Runner) RunCentrality(ctx context.Context) (*CentralityResult, error) {
	if r.engine == nil {
		return nil, errors.AnalyticsUnavailable(nil, "no analytics engine configured")
	}
	if !r.running.CompareAndSwap(false, true) {
		return nil, errors.AnalyticsUnavailable(nil, "centrality run already in progress")
	}
	defer r.running.Store(false)

	start := time.Now()
	name := r.cfg.ProjectionName
	r.logger.Info("starting centrality run", "projection", name)

	if err := r.engine.Available(ctx); err != nil {
		return nil, errors.AnalyticsUnavailable(err, "analytics engine unreachable")
	}
	if err := r.engine.DropProjection(ctx, name); err != nil {
		return nil, errors.AnalyticsUnavailable(err, "failed to drop stale projection")
	}

	projection, err := r.engine.Project(ctx, name)
	if err != nil {
		return nil, errors.AnalyticsUnavailable(err, "failed to project citation graph")
	}
	// the projection is transient either way
	defer r.dropQuietly(name)

	if projection.Nodes == 0 {
		r.logger.Warn("nothing to rank", "projection", name)
		return nil, ErrEmptyProjection
	}
	r.logger.Info("citation graph projected",
		"nodes", projection.Nodes,
		"relationships", projection.Relationships)

	result := &CentralityResult{Projection: projection}
	params := Params{MaxIterations: r.cfg.MaxIterations, DampingFactor: r.cfg.DampingFactor}

	for _, alg := range []Algorithm{PageRank, ArticleRank} {
		stats, err := r.engine.Mutate(ctx, name, alg, params)
		if err != nil {
			return nil, errors.AnalyticsUnavailable(err, string(alg)+" failed")
		}
		r.logger.Info("algorithm finished",
			"algorithm", alg,
			"iterations", stats.Iterations,
			"converged", stats.Converged)
		result.Algorithms = append(result.Algorithms, stats)
	}

	written, err := r.engine.WriteProperties(ctx, name, []string{PageRank.Property(), ArticleRank.Property()})
	if err != nil {
		return nil, errors.AnalyticsUnavailable(err, "failed to write scores")
	}
	result.PropertiesWritten = written
	result.Duration = time.Since(start)

	r.logger.Info("centrality run complete",
		"properties_written", written,
		"duration_ms", result.Duration.Milliseconds())
	return result, nil
}

func (r *Runner) dropQuietly(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := r.engine.DropProjection(ctx, name); err != nil {
		r.logger.Warn("failed to drop projection", "projection", name, "error", err)
	}
}

// Invalidate drops the projection if present. It is registered as a graph
// wipe hook.
func (r *Runner) Invalidate(ctx context.Context) error {
	if r.engine == nil {
		return nil
	}
	if err := r.engine.DropProjection(ctx, r.cfg.ProjectionName); err != nil {
		return errors.AnalyticsUnavailable(err, "failed to drop projection")
	}
	r.logger.Debug("projection invalidated", "projection", r.cfg.ProjectionName)
	return nil
}

// TopPapers returns the highest scored papers for property.
func (r *Runner) TopPapers(ctx context.Context, property string, limit int) ([]models.Paper, error) {
	if r.reader == nil {
		return nil, errors.AnalyticsUnavailable(nil, "no score reader configured")
	}
	if property == "" {
		property = graph.PropertyPageRank
	}
	if !graph.ValidScoreProperty(property) {
		return nil, errors.ValidationErrorf("unknown score property %q", property)
	}
	return r.reader.TopPapers(ctx, property, limit)
}

// Config returns the effective settings.
func (r *Runner) Config() Config {
	return r.cfg
}
