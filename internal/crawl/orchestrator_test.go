package crawl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/paperwalk/internal/errors"
	"github.com/rohankatakam/paperwalk/internal/graph"
	"github.com/rohankatakam/paperwalk/internal/models"
	"github.com/rohankatakam/paperwalk/internal/s2"
)

func raw(id string) *s2.RawPaper {
	title := "Paper " + id
	return &s2.RawPaper{PaperID: &id, Title: &title}
}

// malformed decodes a record whose citationCount has the wrong type.
func malformed(t *testing.T, id string) *s2.RawPaper {
	t.Helper()
	var p s2.RawPaper
	require.NoError(t, json.Unmarshal([]byte(`{"paperId":"`+id+`","citationCount":"n/a"}`), &p))
	return &p
}

// fakeFetcher serves a fixed citation graph in pages of pageSize.
type fakeFetcher struct {
	papers     map[string]*s2.RawPaper
	citations  map[string][]*s2.RawPaper
	references map[string][]*s2.RawPaper
	failPages  map[string]bool // "citations:ID" or "references:ID"
	pageSize   int
	afterPage  func()

	mu      sync.Mutex
	fetched []string
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		papers:     make(map[string]*s2.RawPaper),
		citations:  make(map[string][]*s2.RawPaper),
		references: make(map[string][]*s2.RawPaper),
		failPages:  make(map[string]bool),
		pageSize:   2,
	}
}

// cites records that citing cites cited on both listings.
func (f *fakeFetcher) cites(citing, cited string) {
	f.citations[cited] = append(f.citations[cited], raw(citing))
	f.references[citing] = append(f.references[citing], raw(cited))
}

func (f *fakeFetcher) FetchPaper(ctx context.Context, id string) (*s2.RawPaper, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.ProviderUnavailable(err, "cancelled")
	}
	f.mu.Lock()
	f.fetched = append(f.fetched, id)
	f.mu.Unlock()

	if p, ok := f.papers[id]; ok {
		return p, nil
	}
	return raw(id), nil
}

func (f *fakeFetcher) Citations(ctx context.Context, id string, mode s2.PageMode) iter.Seq2[*s2.Page, error] {
	return f.pages(ctx, "citations:"+id, f.citations[id], true, mode)
}

func (f *fakeFetcher) References(ctx context.Context, id string, mode s2.PageMode) iter.Seq2[*s2.Page, error] {
	return f.pages(ctx, "references:"+id, f.references[id], false, mode)
}

func (f *fakeFetcher) pages(ctx context.Context, key string, records []*s2.RawPaper, citing bool, mode s2.PageMode) iter.Seq2[*s2.Page, error] {
	return func(yield func(*s2.Page, error) bool) {
		if f.failPages[key] {
			yield(nil, fmt.Errorf("%s: %w", key, errors.ProviderRejected(500, "boom")))
			return
		}
		for offset := 0; offset < len(records); offset += f.pageSize {
			if ctx.Err() != nil {
				return
			}
			page := &s2.Page{Offset: offset}
			for _, r := range records[offset:min(offset+f.pageSize, len(records))] {
				if citing {
					page.Data = append(page.Data, s2.EdgeRecord{CitingPaper: r})
				} else {
					page.Data = append(page.Data, s2.EdgeRecord{CitedPaper: r})
				}
			}
			if !yield(page, nil) {
				return
			}
			if f.afterPage != nil {
				f.afterPage()
			}
			if mode == s2.FirstPageOnly {
				return
			}
		}
	}
}

func (f *fakeFetcher) Search(_ context.Context, query string, limit int) ([]s2.RawPaper, error) {
	out := []s2.RawPaper{*raw("S1"), *raw("S2"), {}}
	return out[:min(limit, len(out))], nil
}

type memoryRecorder struct {
	runs []*models.ExpansionRun
}

func (m *memoryRecorder) SaveRun(_ context.Context, run *models.ExpansionRun) error {
	m.runs = append(m.runs, run)
	return nil
}

type downStore struct {
	*graph.MemoryStore
}

func (downStore) HealthCheck(context.Context) error { return assert.AnError }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestOrchestrator(f Fetcher, store graph.Store, rec RunRecorder) *Orchestrator {
	return NewOrchestrator(f, store, rec, quietLogger(), 2)
}

func TestExpand_EndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.cites("P2", "P1")
	f.cites("P1", "P3")

	store := graph.NewMemoryStore()
	rec := &memoryRecorder{}
	o := newTestOrchestrator(f, store, rec)

	result, err := o.Expand(ctx, "P1", Options{Depth: 1, EnrichSeed: true})
	require.NoError(t, err)

	assert.Equal(t, []models.Edge{
		{Source: "P1", Target: "P3"},
		{Source: "P2", Target: "P1"},
	}, store.Edges())

	assert.Equal(t, models.RunStatusSuccess, result.Status)
	assert.Equal(t, 2, result.EdgesWritten)
	assert.Equal(t, 3, result.PapersWritten)
	assert.Equal(t, 2, result.PagesFetched)
	assert.Equal(t, 1, result.PapersVisited)
	assert.NotEmpty(t, result.ID)

	seed, err := store.GetPaper(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, "Paper P1", seed.Title)
	graphStats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Zero(t, graphStats.Stubs)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, result.ID, rec.runs[0].ID)
}

func TestExpand_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.cites("P2", "P1")
	f.cites("P1", "P3")

	store := graph.NewMemoryStore()
	o := newTestOrchestrator(f, store, nil)

	first, err := o.Expand(ctx, "P1", Options{EnrichSeed: true})
	require.NoError(t, err)
	assert.Equal(t, 3, first.PapersWritten)

	again, err := o.Expand(ctx, "P1", Options{EnrichSeed: true})
	require.NoError(t, err)
	assert.Equal(t, 0, again.PapersWritten)
	assert.Equal(t, 2, again.EdgesWritten)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Papers)
	assert.Equal(t, 2, stats.Edges)
}

func TestExpand_StubFillCountsAsWritten(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.cites("P2", "P1")

	store := graph.NewMemoryStore()
	o := newTestOrchestrator(f, store, nil)

	// without enrichment the seed stays a stub and is not counted
	result, err := o.Expand(ctx, "P1", Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, result.PapersWritten)

	result, err = o.Expand(ctx, "P1", Options{EnrichSeed: true})
	require.NoError(t, err)
	assert.Equal(t, 1, result.PapersWritten)
}

func TestExpand_PaginatesAllPages(t *testing.T) {
	f := newFakeFetcher()
	for i := range 5 {
		f.cites(fmt.Sprintf("C%d", i), "S")
	}
	store := graph.NewMemoryStore()
	o := newTestOrchestrator(f, store, nil)

	result, err := o.Expand(context.Background(), "S", Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, result.PagesFetched)
	assert.Equal(t, 5, result.EdgesWritten)

	// first page only
	store2 := graph.NewMemoryStore()
	o2 := newTestOrchestrator(f, store2, nil)
	result, err = o2.Expand(context.Background(), "S", Options{Mode: s2.FirstPageOnly})
	require.NoError(t, err)
	assert.Equal(t, 1, result.PagesFetched)
	assert.Len(t, store2.Edges(), 2)
}

func TestExpand_PartialFailureIsContained(t *testing.T) {
	f := newFakeFetcher()
	f.pageSize = 10
	f.citations["S"] = []*s2.RawPaper{raw("A"), raw("B"), {}, raw("C"), raw("D")}
	f.failPages["references:S"] = true

	store := graph.NewMemoryStore()
	o := newTestOrchestrator(f, store, nil)

	result, err := o.Expand(context.Background(), "S", Options{})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusPartial, result.Status)
	assert.Equal(t, 4, result.EdgesWritten)
	assert.Equal(t, 1, result.NormalizationFailures)
	assert.Equal(t, 1, result.FetchFailures)
	assert.Len(t, store.Edges(), 4)
}

func TestExpand_WrongTypedRecordIsSkipped(t *testing.T) {
	f := newFakeFetcher()
	f.pageSize = 10
	f.citations["S"] = []*s2.RawPaper{raw("A"), raw("B"), malformed(t, "BAD"), raw("C"), raw("D")}

	store := graph.NewMemoryStore()
	o := newTestOrchestrator(f, store, nil)

	result, err := o.Expand(context.Background(), "S", Options{})
	require.NoError(t, err)

	assert.Equal(t, 4, result.EdgesWritten)
	assert.Equal(t, 1, result.NormalizationFailures)
	assert.Zero(t, result.FetchFailures)
	assert.Len(t, store.Edges(), 4)

	got, err := store.GetPaper(context.Background(), "BAD")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestExpand_DepthTwo(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	f.cites("P2", "P1") // P2 is on the first frontier
	f.cites("P2", "P4") // found through P2's references
	f.cites("P5", "P2") // only reachable with depth 3
	f.cites("P1", "P3")

	store := graph.NewMemoryStore()
	o := newTestOrchestrator(f, store, nil)

	result, err := o.Expand(ctx, "P1", Options{Depth: 2})
	require.NoError(t, err)

	assert.Equal(t, []models.Edge{
		{Source: "P1", Target: "P3"},
		{Source: "P2", Target: "P1"},
		{Source: "P2", Target: "P4"},
	}, store.Edges())
	assert.Equal(t, 2, result.PapersVisited)
	assert.Contains(t, f.fetched, "P2")
	assert.NotContains(t, f.fetched, "P1", "seed is not enriched unless asked")

	result, err = o.Expand(ctx, "P1", Options{Depth: 3})
	require.NoError(t, err)
	assert.Contains(t, store.Edges(), models.Edge{Source: "P5", Target: "P2"})
	assert.Equal(t, 3, result.PapersVisited)
}

func TestExpand_DepthSkipsVisitedPapers(t *testing.T) {
	f := newFakeFetcher()
	f.cites("A", "S")
	f.cites("B", "S")
	f.cites("S", "A") // cycle back to the seed

	store := graph.NewMemoryStore()
	o := newTestOrchestrator(f, store, nil)

	result, err := o.Expand(context.Background(), "S", Options{Depth: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, result.PapersVisited)
	assert.Equal(t, models.RunStatusSuccess, result.Status)
}

func TestExpand_Cancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f := newFakeFetcher()
	for i := range 6 {
		f.cites(fmt.Sprintf("C%d", i), "S")
	}
	f.cites("S", "R")
	f.afterPage = cancel

	store := graph.NewMemoryStore()
	rec := &memoryRecorder{}
	o := newTestOrchestrator(f, store, rec)

	result, err := o.Expand(ctx, "S", Options{Depth: 2})
	require.NoError(t, err)

	assert.Equal(t, models.RunStatusCancelled, result.Status)
	assert.Equal(t, 1, result.PagesFetched)
	// the page written before cancelling stays written
	assert.Len(t, store.Edges(), 2)
	require.Len(t, rec.runs, 1)
	assert.Equal(t, models.RunStatusCancelled, rec.runs[0].Status)
}

func TestExpand_HardErrors(t *testing.T) {
	f := newFakeFetcher()

	o := newTestOrchestrator(f, graph.NewMemoryStore(), nil)
	_, err := o.Expand(context.Background(), "  ", Options{})
	assert.Equal(t, errors.ErrorTypeValidation, errors.GetType(err))

	down := newTestOrchestrator(f, downStore{graph.NewMemoryStore()}, nil)
	_, err = down.Expand(context.Background(), "S", Options{})
	assert.Equal(t, errors.ErrorTypeDatabase, errors.GetType(err))
}

func TestIngest(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	year := 2017
	p := raw("X")
	p.Year = &year
	f.papers["X"] = p
	f.papers["BAD"] = &s2.RawPaper{}

	store := graph.NewMemoryStore()
	o := newTestOrchestrator(f, store, nil)

	got, err := o.Ingest(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, 2017, got.Year)

	stored, err := store.GetPaper(ctx, "X")
	require.NoError(t, err)
	assert.Equal(t, "Paper X", stored.Title)

	_, err = o.Ingest(ctx, "BAD")
	assert.Equal(t, errors.ErrorTypeNormalization, errors.GetType(err))

	_, err = o.Ingest(ctx, "")
	assert.Equal(t, errors.ErrorTypeValidation, errors.GetType(err))
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	o := newTestOrchestrator(newFakeFetcher(), store, nil)

	result, err := o.Search(ctx, "graph neural networks", 10)
	require.NoError(t, err)
	assert.Len(t, result.Papers, 2)
	assert.Equal(t, 1, result.NormalizationFailures)
	assert.Equal(t, graph.WriteStats{Succeeded: 2, Created: 2}, result.Stored)

	stats, _ := store.Stats(ctx)
	assert.Equal(t, 2, stats.Papers)

	_, err = o.Search(ctx, " ", 10)
	assert.Equal(t, errors.ErrorTypeValidation, errors.GetType(err))
}
