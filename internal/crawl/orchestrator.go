// Package crawl expands the citation graph outward from seed papers.
package crawl

import (
	"context"
	"iter"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/paperwalk/internal/errors"
	"github.com/rohankatakam/paperwalk/internal/graph"
	"github.com/rohankatakam/paperwalk/internal/models"
	"github.com/rohankatakam/paperwalk/internal/s2"
)

// Fetcher is the provider surface the orchestrator needs. *s2.Client
// implements it.
type Fetcher interface {
	FetchPaper(ctx context.Context, paperID string) (*s2.RawPaper, error)
	Citations(ctx context.Context, paperID string, mode s2.PageMode) iter.Seq2[*s2.Page, error]
	References(ctx context.Context, paperID string, mode s2.PageMode) iter.Seq2[*s2.Page, error]
	Search(ctx context.Context, query string, limit int) ([]s2.RawPaper, error)
}

var _ Fetcher = (*s2.Client)(nil)

// RunRecorder persists expansion summaries.
type RunRecorder interface {
	SaveRun(ctx context.Context, run *models.ExpansionRun) error
}

// Result is the summary of one expansion.
type Result = models.ExpansionRun

// Options controls one expansion.
type Options struct {
	// Depth is the number of hops. 0 means 1.
	Depth int
	// Mode selects all pages or just the first page of every listing.
	Mode s2.PageMode
	// EnrichSeed fetches the seed's own metadata before expanding.
	EnrichSeed bool
}

// Orchestrator coordinates fetch, normalize and store.
type Orchestrator struct {
	fetcher     Fetcher
	store       graph.Store
	recorder    RunRecorder
	logger      *logrus.Logger
	concurrency int
}

// NewOrchestrator creates a new expansion orchestrator. recorder may be nil.
func NewOrchestrator(
	fetcher Fetcher,
	store graph.Store,
	recorder RunRecorder,
	logger *logrus.Logger,
	concurrency int,
) *Orchestrator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if concurrency <= 0 {
		concurrency = 4
	}
	return &Orchestrator{
		fetcher:     fetcher,
		store:       store,
		recorder:    recorder,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Expand crawls citations, then references, then recurses into citing
// papers until opts.Depth hops are done. Sub-operation failures are
// counted and skipped; only a blank seed or an unreachable store fail
// the whole call. Writes made before a cancellation stay written.
func (o *Orchestrator) Expand(ctx context.Context, seedID string, opts Options) (*Result, error) {
	seedID = strings.TrimSpace(seedID)
	if seedID == "" {
		return nil, errors.ValidationErrorf("seed paper id is required")
	}
	if opts.Depth <= 0 {
		opts.Depth = 1
	}
	if err := o.store.HealthCheck(ctx); err != nil {
		return nil, errors.DatabaseError(err, "graph store unavailable")
	}

	run := &runState{
		result: Result{
			ID:        uuid.NewString(),
			SeedID:    seedID,
			Depth:     opts.Depth,
			StartedAt: time.Now().UTC(),
		},
		visited: map[string]struct{}{seedID: {}},
	}
	log := o.logger.WithFields(logrus.Fields{
		"run_id": run.result.ID,
		"seed":   seedID,
		"depth":  opts.Depth,
	})
	log.Info("Starting expansion")

	if opts.EnrichSeed {
		o.enrich(ctx, seedID, run, log)
	}

	// level 1: the seed itself
	frontier := o.expandCitations(ctx, seedID, opts, opts.Depth > 1, run, log)
	o.expandReferences(ctx, seedID, opts, run, log)
	run.visit()

	for level := 2; level <= opts.Depth && ctx.Err() == nil; level++ {
		frontier = run.unvisited(frontier)
		if len(frontier) == 0 {
			break
		}
		log.WithFields(logrus.Fields{
			"level":    level,
			"frontier": len(frontier),
		}).Info("Expanding frontier")

		frontier = o.expandLevel(ctx, frontier, level < opts.Depth, opts, run, log)
	}

	result := run.finish(ctx)
	log.WithFields(logrus.Fields{
		"status":         result.Status,
		"papers_written": result.PapersWritten,
		"edges_written":  result.EdgesWritten,
		"pages":          result.PagesFetched,
		"visited":        result.PapersVisited,
		"fetch_failures": result.FetchFailures,
		"norm_failures":  result.NormalizationFailures,
		"store_failures": result.StoreFailures,
		"duration":       result.Duration.String(),
	}).Info("Expansion completed")

	o.record(result, log)
	return result, nil
}

// expandLevel enriches every frontier paper and expands its references,
// plus its citations when another level follows. It returns the citing
// papers found, which form the next frontier.
func (o *Orchestrator) expandLevel(
	ctx context.Context,
	frontier []string,
	collect bool,
	opts Options,
	run *runState,
	log *logrus.Entry,
) []string {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		next []string
	)
	g.SetLimit(o.concurrency)

	for _, id := range frontier {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			o.enrich(ctx, id, run, log)
			o.expandReferences(ctx, id, opts, run, log)
			if collect {
				found := o.expandCitations(ctx, id, opts, true, run, log)
				mu.Lock()
				next = append(next, found...)
				mu.Unlock()
			}
			run.visit()
			return nil
		})
	}
	_ = g.Wait()
	return next
}

// expandCitations writes citing -> id edges and optionally returns the
// citing paper ids.
func (o *Orchestrator) expandCitations(ctx context.Context, id string, opts Options, collect bool, run *runState, log *logrus.Entry) []string {
	return o.expandRelation(ctx, id, o.fetcher.Citations(ctx, id, opts.Mode), models.RelationCites, collect, run, log)
}

// expandReferences writes id -> cited edges.
func (o *Orchestrator) expandReferences(ctx context.Context, id string, opts Options, run *runState, log *logrus.Entry) {
	o.expandRelation(ctx, id, o.fetcher.References(ctx, id, opts.Mode), models.RelationReferences, false, run, log)
}

func (o *Orchestrator) expandRelation(
	ctx context.Context,
	id string,
	pages iter.Seq2[*s2.Page, error],
	relation models.Relation,
	collect bool,
	run *runState,
	log *logrus.Entry,
) []string {
	var found []string
	for page, err := range pages {
		if err != nil {
			log.WithError(err).WithField("paper_id", id).Warn("Page fetch failed")
			run.add(func(r *Result) { r.FetchFailures++ })
			continue
		}

		papers, failed := s2.NormalizeEdges(page, relation)
		if failed > 0 {
			log.WithFields(logrus.Fields{
				"paper_id": id,
				"relation": relation,
				"offset":   page.Offset,
				"failed":   failed,
			}).Warn("Skipped malformed records")
		}
		stats := o.store.UpsertEdges(ctx, id, papers, relation)

		run.add(func(r *Result) {
			r.PagesFetched++
			r.NormalizationFailures += failed
			r.StoreFailures += stats.Failed
			r.EdgesWritten += stats.Succeeded
			r.PapersWritten += stats.Created
		})

		if collect {
			for _, p := range papers {
				found = append(found, p.PaperID)
			}
		}
		if ctx.Err() != nil {
			break
		}
	}
	return found
}

// enrich fetches a paper's own metadata and writes it. A paper first seen
// as a stub is filled in here.
func (o *Orchestrator) enrich(ctx context.Context, id string, run *runState, log *logrus.Entry) {
	raw, err := o.fetcher.FetchPaper(ctx, id)
	if err != nil {
		log.WithError(err).WithField("paper_id", id).Warn("Paper fetch failed")
		run.add(func(r *Result) { r.FetchFailures++ })
		return
	}
	paper, err := s2.Normalize(raw)
	if err != nil {
		log.WithError(err).WithField("paper_id", id).Warn("Paper normalization failed")
		run.add(func(r *Result) { r.NormalizationFailures++ })
		return
	}
	stats := o.store.UpsertPapers(ctx, []models.Paper{paper})
	if stats.Failed > 0 {
		log.WithField("paper_id", id).Warn("Paper write failed")
	}
	run.add(func(r *Result) {
		r.StoreFailures += stats.Failed
		r.PapersWritten += stats.Created
	})
}

func (o *Orchestrator) record(result *Result, log *logrus.Entry) {
	if o.recorder == nil {
		return
	}
	// the caller's context may already be cancelled
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.recorder.SaveRun(ctx, result); err != nil {
		log.WithError(err).Warn("Failed to record expansion run")
	}
}

// Ingest fetches one paper and stores it.
func (o *Orchestrator) Ingest(ctx context.Context, paperID string) (*models.Paper, error) {
	paperID = strings.TrimSpace(paperID)
	if paperID == "" {
		return nil, errors.ValidationErrorf("paper id is required")
	}

	raw, err := o.fetcher.FetchPaper(ctx, paperID)
	if err != nil {
		return nil, err
	}
	paper, err := s2.Normalize(raw)
	if err != nil {
		return nil, err
	}
	if err := o.store.UpsertPaper(ctx, paper); err != nil {
		return nil, err
	}

	o.logger.WithField("paper_id", paper.PaperID).Info("Paper ingested")
	return &paper, nil
}

// SearchResult is what a search returned and how storing it went.
type SearchResult struct {
	Papers                []models.Paper   `json:"papers"`
	Stored                graph.WriteStats `json:"stored"`
	NormalizationFailures int              `json:"normalizationFailures"`
}

// Search runs a provider search and stores every result.
func (o *Orchestrator) Search(ctx context.Context, query string, limit int) (*SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.ValidationErrorf("search query is required")
	}

	raws, err := o.fetcher.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{Papers: make([]models.Paper, 0, len(raws))}
	for i := range raws {
		paper, err := s2.Normalize(&raws[i])
		if err != nil {
			result.NormalizationFailures++
			continue
		}
		result.Papers = append(result.Papers, paper)
	}
	result.Stored = o.store.UpsertPapers(ctx, result.Papers)

	o.logger.WithFields(logrus.Fields{
		"query":   query,
		"results": len(result.Papers),
		"stored":  result.Stored.Succeeded,
		"failed":  result.Stored.Failed + result.NormalizationFailures,
	}).Info("Search completed")
	return result, nil
}
