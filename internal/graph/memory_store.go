package graph

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/rohankatakam/paperwalk/internal/errors"
	"github.com/rohankatakam/paperwalk/internal/logging"
	"github.com/rohankatakam/paperwalk/internal/models"
)

// MemoryStore keeps the graph in process memory. It has the same write
// semantics as Neo4jStore and backs tests and the "memory" backend.
type MemoryStore struct {
	mu     sync.RWMutex
	papers map[string]models.Paper
	stubs  map[string]struct{}
	edges  map[models.Edge]struct{}
	hooks  []WipeHook
	logger *slog.Logger
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		papers: make(map[string]models.Paper),
		stubs:  make(map[string]struct{}),
		edges:  make(map[models.Edge]struct{}),
		logger: logging.Component("memory_store"),
	}
}

func (m *MemoryStore) EnsureSchema(context.Context) error { return nil }

func (m *MemoryStore) UpsertPaper(ctx context.Context, paper models.Paper) error {
	_, err := m.upsertPaper(ctx, paper)
	return err
}

func (m *MemoryStore) upsertPaper(ctx context.Context, paper models.Paper) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.StoreWriteFailure(err, "upsert paper")
	}
	if strings.TrimSpace(paper.PaperID) == "" {
		return false, errors.ValidationErrorf("paper id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mergePaper(paper), nil
}

// mergePaper reports whether the paper was created or a stub filled.
// Requires m.mu held.
func (m *MemoryStore) mergePaper(paper models.Paper) bool {
	if _, ok := m.papers[paper.PaperID]; ok {
		if _, stub := m.stubs[paper.PaperID]; !stub {
			return false
		}
		delete(m.stubs, paper.PaperID)
	}
	paper.PageRank, paper.ArticleRank = nil, nil
	m.papers[paper.PaperID] = paper
	return true
}

func (m *MemoryStore) UpsertPapers(ctx context.Context, papers []models.Paper) WriteStats {
	var stats WriteStats
	for _, p := range papers {
		created, err := m.upsertPaper(ctx, p)
		if err != nil {
			stats.Failed++
			continue
		}
		stats.Succeeded++
		if created {
			stats.Created++
		}
	}
	return stats
}

func (m *MemoryStore) UpsertEdge(ctx context.Context, sourceID string, target models.Paper, kind models.Relation) error {
	_, err := m.upsertEdge(ctx, sourceID, target, kind)
	return err
}

func (m *MemoryStore) upsertEdge(ctx context.Context, sourceID string, target models.Paper, kind models.Relation) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, errors.StoreWriteFailure(err, "upsert edge")
	}
	if err := validateEdge(sourceID, kind); err != nil {
		return false, err
	}
	if strings.TrimSpace(target.PaperID) == "" {
		return false, errors.ValidationErrorf("target paper id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.papers[sourceID]; !ok {
		m.papers[sourceID] = models.Paper{PaperID: sourceID}
		m.stubs[sourceID] = struct{}{}
	}
	created := m.mergePaper(target)

	edge := models.Edge{Source: target.PaperID, Target: sourceID}
	if kind == models.RelationReferences {
		edge = models.Edge{Source: sourceID, Target: target.PaperID}
	}
	m.edges[edge] = struct{}{}
	return created, nil
}

func (m *MemoryStore) UpsertEdges(ctx context.Context, sourceID string, targets []models.Paper, kind models.Relation) WriteStats {
	var stats WriteStats
	for _, t := range targets {
		created, err := m.upsertEdge(ctx, sourceID, t, kind)
		if err != nil {
			stats.Failed++
			continue
		}
		stats.Succeeded++
		if created {
			stats.Created++
		}
	}
	return stats
}

func (m *MemoryStore) WipeAll(ctx context.Context) error {
	m.mu.Lock()
	n := len(m.papers)
	m.papers = make(map[string]models.Paper)
	m.stubs = make(map[string]struct{})
	m.edges = make(map[models.Edge]struct{})
	hooks := append([]WipeHook(nil), m.hooks...)
	m.mu.Unlock()

	m.logger.Info("graph wiped", "nodes_deleted", n)
	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			m.logger.Warn("wipe hook failed", "error", err)
		}
	}
	return nil
}

func (m *MemoryStore) OnWipe(hook WipeHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, hook)
}

func (m *MemoryStore) GetPaper(_ context.Context, paperID string) (*models.Paper, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.papers[paperID]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (m *MemoryStore) TopPapers(_ context.Context, property string, limit int) ([]models.Paper, error) {
	if !ValidScoreProperty(property) {
		return nil, errors.ValidationErrorf("unknown score property %q", property)
	}
	if limit <= 0 {
		limit = 10
	}

	m.mu.RLock()
	var ranked []models.Paper
	for _, p := range m.papers {
		if scoreOf(p, property) != nil {
			ranked = append(ranked, p)
		}
	}
	m.mu.RUnlock()

	slices.SortFunc(ranked, func(a, b models.Paper) int {
		if c := cmp.Compare(*scoreOf(b, property), *scoreOf(a, property)); c != 0 {
			return c
		}
		return cmp.Compare(a.PaperID, b.PaperID)
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}

func scoreOf(p models.Paper, property string) *float64 {
	if property == PropertyPageRank {
		return p.PageRank
	}
	return p.ArticleRank
}

func (m *MemoryStore) Stats(context.Context) (GraphStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := GraphStats{
		Papers: len(m.papers),
		Stubs:  len(m.stubs),
		Edges:  len(m.edges),
	}
	for _, p := range m.papers {
		if p.PageRank != nil {
			stats.Ranked++
		}
	}
	return stats, nil
}

// Edges returns all CITES edges ordered by source then target.
func (m *MemoryStore) Edges() []models.Edge {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Edge, 0, len(m.edges))
	for e := range m.edges {
		out = append(out, e)
	}
	slices.SortFunc(out, func(a, b models.Edge) int {
		if c := cmp.Compare(a.Source, b.Source); c != 0 {
			return c
		}
		return cmp.Compare(a.Target, b.Target)
	})
	return out
}

func (m *MemoryStore) HealthCheck(context.Context) error { return nil }

func (m *MemoryStore) Close(context.Context) error { return nil }
