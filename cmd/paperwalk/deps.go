package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/rohankatakam/paperwalk/internal/analytics"
	"github.com/rohankatakam/paperwalk/internal/cache"
	"github.com/rohankatakam/paperwalk/internal/config"
	"github.com/rohankatakam/paperwalk/internal/crawl"
	"github.com/rohankatakam/paperwalk/internal/graph"
	"github.com/rohankatakam/paperwalk/internal/s2"
	"github.com/rohankatakam/paperwalk/internal/storage"
)

// deps holds every component a command may need. Fields not requested are nil.
type deps struct {
	provider *s2.Client
	store    graph.Store
	neo4j    *graph.Client
	ranker   *analytics.Runner
	runs     storage.RunStore
	crawler  *crawl.Orchestrator

	closers []func(context.Context) error
}

// needs selects what buildDeps opens.
type needs struct {
	graph bool
	runs  bool
}

func buildDeps(ctx context.Context, cfg *config.Config, n needs) (*deps, error) {
	d := &deps{}

	provider, err := buildProvider(cfg, d)
	if err != nil {
		d.close(ctx)
		return nil, err
	}
	d.provider = provider

	if n.graph {
		if err := d.openGraph(ctx, cfg); err != nil {
			d.close(ctx)
			return nil, err
		}
	}

	if n.runs {
		runs, err := storage.Open(cfg.Storage, logger)
		if err != nil {
			// run history is optional
			logger.WithError(err).Warn("Run history unavailable")
		} else if runs != nil {
			d.runs = runs
			d.closers = append(d.closers, func(context.Context) error { return runs.Close() })
		}
	}

	if d.store != nil {
		var recorder crawl.RunRecorder
		if d.runs != nil {
			recorder = d.runs
		}
		d.crawler = crawl.NewOrchestrator(d.provider, d.store, recorder, logger, cfg.Expansion.Concurrency)
	}

	return d, nil
}

func buildProvider(cfg *config.Config, d *deps) (*s2.Client, error) {
	opts := []s2.ClientOption{
		s2.WithBaseURL(cfg.Provider.BaseURL),
		s2.WithRateLimit(cfg.Provider.RateLimit, cfg.Provider.Burst),
		s2.WithRetry(cfg.Provider.MaxAttempts, cfg.Provider.BaseBackoff),
		s2.WithPageSize(cfg.Provider.PageSize),
		s2.WithTimeout(cfg.Provider.Timeout),
	}
	if cfg.Provider.APIKey != "" {
		opts = append(opts, s2.WithAPIKey(cfg.Provider.APIKey))
	} else if key, err := config.NewCredentialManager().GetAPIKey(); err == nil && key != "" {
		opts = append(opts, s2.WithAPIKey(key))
	}

	if cfg.Cache.Enabled {
		c, err := cache.Open(cfg.Cache.Path, cfg.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("open response cache: %w", err)
		}
		if purged, err := c.Purge(); err == nil && purged > 0 {
			logger.WithField("entries", purged).Debug("Purged stale cache entries")
		}
		d.closers = append(d.closers, func(context.Context) error { return c.Close() })
		opts = append(opts, s2.WithCache(c))
	}

	return s2.NewClient(opts...), nil
}

func (d *deps) openGraph(ctx context.Context, cfg *config.Config) error {
	batch := graph.BatchConfig{
		PaperBatchSize: cfg.Graph.PaperBatchSize,
		EdgeBatchSize:  cfg.Graph.EdgeBatchSize,
	}
	analyticsCfg := analytics.Config{
		ProjectionName: cfg.Analytics.ProjectionName,
		MaxIterations:  cfg.Analytics.MaxIterations,
		DampingFactor:  cfg.Analytics.DampingFactor,
	}

	switch strings.ToLower(cfg.Graph.Backend) {
	case "memory":
		mem := graph.NewMemoryStore()
		d.store = mem
		// no GDS behind the memory backend; ranking reports unavailable
		d.ranker = analytics.NewRunner(nil, mem, analyticsCfg)
		mem.OnWipe(d.ranker.Invalidate)
		logger.Warn("Using in-memory graph backend; data is lost on exit")
		return nil

	case "", "neo4j":
		poolSize := cfg.Neo4j.MaxPoolSize
		if poolSize <= 0 {
			poolSize = graph.RecommendedPoolSize(cfg.Expansion.Concurrency)
		}
		client, err := graph.NewClient(ctx, graph.ClientConfig{
			URI:         cfg.Neo4j.URI,
			User:        cfg.Neo4j.User,
			Password:    cfg.Neo4j.Password,
			Database:    cfg.Neo4j.Database,
			MaxPoolSize: poolSize,
		})
		if err != nil {
			return err
		}
		d.neo4j = client

		store := graph.NewNeo4jStore(client, batch)
		d.store = store
		d.closers = append(d.closers, store.Close)
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}

		d.ranker = analytics.NewRunner(analytics.NewGDSEngine(store.Client()), store, analyticsCfg)
		store.OnWipe(d.ranker.Invalidate)
		return nil

	default:
		return fmt.Errorf("unknown graph backend %q (use neo4j or memory)", cfg.Graph.Backend)
	}
}

// close releases everything in reverse open order.
func (d *deps) close(ctx context.Context) {
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](ctx); err != nil {
			logger.WithError(err).Warn("Close failed")
		}
	}
	d.closers = nil
}
