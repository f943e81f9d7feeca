package analytics

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/paperwalk/internal/errors"
	"github.com/rohankatakam/paperwalk/internal/graph"
	"github.com/rohankatakam/paperwalk/internal/models"
)

// fakeEngine keeps one projection and records the call sequence.
type fakeEngine struct {
	nodes      int64
	projected  bool
	calls      []string
	written    []string
	failOn     string
	available  error
	lastParams Params
}

func (f *fakeEngine) fail(op string) error {
	f.calls = append(f.calls, op)
	if f.failOn == op {
		return assert.AnError
	}
	return nil
}

func (f *fakeEngine) Available(context.Context) error {
	f.calls = append(f.calls, "available")
	return f.available
}

func (f *fakeEngine) DropProjection(context.Context, string) error {
	if err := f.fail("drop"); err != nil {
		return err
	}
	f.projected = false
	return nil
}

func (f *fakeEngine) Project(_ context.Context, name string) (Projection, error) {
	if err := f.fail("project"); err != nil {
		return Projection{}, err
	}
	f.projected = f.nodes > 0
	return Projection{Name: name, Nodes: f.nodes, Relationships: f.nodes - 1}, nil
}

func (f *fakeEngine) Mutate(_ context.Context, _ string, alg Algorithm, params Params) (AlgorithmStats, error) {
	if err := f.fail(string(alg)); err != nil {
		return AlgorithmStats{}, err
	}
	f.lastParams = params
	return AlgorithmStats{Algorithm: alg, Nodes: f.nodes, Iterations: int64(params.MaxIterations)}, nil
}

func (f *fakeEngine) WriteProperties(_ context.Context, _ string, properties []string) (int64, error) {
	if err := f.fail("write"); err != nil {
		return 0, err
	}
	f.written = properties
	return f.nodes * int64(len(properties)), nil
}

func TestRunCentrality(t *testing.T) {
	engine := &fakeEngine{nodes: 3}
	runner := NewRunner(engine, nil, Config{})

	result, err := runner.RunCentrality(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.Projection.Nodes)
	assert.Equal(t, int64(6), result.PropertiesWritten)
	assert.Equal(t, []string{graph.PropertyPageRank, graph.PropertyArticleRank}, engine.written)
	assert.Equal(t, Params{MaxIterations: 20, DampingFactor: 0.85}, engine.lastParams)
	assert.Equal(t,
		[]string{"available", "drop", "project", "pageRank", "articleRank", "write", "drop"},
		engine.calls)
	assert.False(t, engine.projected, "projection should be dropped after the run")
}

func TestRunCentrality_EmptyProjection(t *testing.T) {
	engine := &fakeEngine{nodes: 0}
	runner := NewRunner(engine, nil, DefaultConfig())

	_, err := runner.RunCentrality(context.Background())
	require.ErrorIs(t, err, ErrEmptyProjection)
	assert.Equal(t, errors.ErrorTypeAnalyticsUnavailable, errors.GetType(err))
	assert.Nil(t, engine.written)
}

func TestRunCentrality_FailsFastWithoutWriting(t *testing.T) {
	for _, op := range []string{"project", "pageRank", "articleRank", "write"} {
		t.Run(op, func(t *testing.T) {
			engine := &fakeEngine{nodes: 2, failOn: op}
			runner := NewRunner(engine, nil, DefaultConfig())

			_, err := runner.RunCentrality(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrAnalyticsUnavailable)
			if op != "write" {
				assert.NotContains(t, engine.calls, "write")
			}
		})
	}
}

func TestRunCentrality_EngineUnreachable(t *testing.T) {
	engine := &fakeEngine{nodes: 2, available: assert.AnError}
	runner := NewRunner(engine, nil, DefaultConfig())

	_, err := runner.RunCentrality(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAnalyticsUnavailable)
	assert.Equal(t, []string{"available"}, engine.calls)
}

func TestRunCentrality_NoEngine(t *testing.T) {
	runner := NewRunner(nil, nil, DefaultConfig())
	_, err := runner.RunCentrality(context.Background())
	assert.ErrorIs(t, err, errors.ErrAnalyticsUnavailable)
}

func TestInvalidate(t *testing.T) {
	engine := &fakeEngine{nodes: 2, projected: true}
	runner := NewRunner(engine, nil, DefaultConfig())

	require.NoError(t, runner.Invalidate(context.Background()))
	assert.False(t, engine.projected)

	engine.failOn = "drop"
	assert.Error(t, runner.Invalidate(context.Background()))
}

func TestWipeThenRunReportsEmptyProjection(t *testing.T) {
	ctx := context.Background()
	store := graph.NewMemoryStore()
	engine := &fakeEngine{nodes: 2}
	runner := NewRunner(engine, store, DefaultConfig())
	store.OnWipe(runner.Invalidate)

	store.UpsertEdges(ctx, "S", []models.Paper{{PaperID: "A"}}, models.RelationCites)
	require.NoError(t, store.WipeAll(ctx))
	assert.Contains(t, engine.calls, "drop")

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	engine.nodes = int64(stats.Papers)

	_, err = runner.RunCentrality(ctx)
	assert.ErrorIs(t, err, ErrEmptyProjection)
}

// fakeReader returns one paper per property and records the last request.
type fakeReader struct {
	property string
	limit    int
}

func (f *fakeReader) TopPapers(_ context.Context, property string, limit int) ([]models.Paper, error) {
	f.property, f.limit = property, limit
	return []models.Paper{{PaperID: property}}, nil
}

func TestTopPapers(t *testing.T) {
	ctx := context.Background()
	reader := &fakeReader{}
	runner := NewRunner(&fakeEngine{}, reader, DefaultConfig())

	top, err := runner.TopPapers(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, graph.PropertyPageRank, reader.property)
	assert.Equal(t, 10, reader.limit)

	_, err = runner.TopPapers(ctx, graph.PropertyArticleRank, 3)
	require.NoError(t, err)
	assert.Equal(t, graph.PropertyArticleRank, reader.property)

	_, err = runner.TopPapers(ctx, "citationCount", 10)
	assert.Equal(t, errors.ErrorTypeValidation, errors.GetType(err))
	assert.Equal(t, graph.PropertyArticleRank, reader.property)

	_, err = NewRunner(&fakeEngine{}, nil, DefaultConfig()).TopPapers(ctx, "", 10)
	assert.Equal(t, errors.ErrorTypeAnalyticsUnavailable, errors.GetType(err))
}

func TestNewRunnerDefaults(t *testing.T) {
	runner := NewRunner(nil, nil, Config{DampingFactor: 1.5})
	assert.Equal(t, DefaultConfig(), runner.Config())
}
