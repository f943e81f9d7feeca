package graph

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/paperwalk/internal/models"
)

// newTestStore connects to the Neo4j named by NEO4J_URI. The database is
// wiped before and after the test, so never point it at real data.
func newTestStore(t *testing.T) *Neo4jStore {
	t.Helper()
	uri := os.Getenv("NEO4J_URI")
	if uri == "" || testing.Short() {
		t.Skip("NEO4J_URI not set; skipping Neo4j integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := NewClient(ctx, ClientConfig{
		URI:      uri,
		User:     envOr("NEO4J_USER", "neo4j"),
		Password: os.Getenv("NEO4J_PASSWORD"),
		Database: envOr("NEO4J_DATABASE", "neo4j"),
	})
	require.NoError(t, err)

	store := NewNeo4jStore(client, BatchConfig{PaperBatchSize: 2, EdgeBatchSize: 2})
	require.NoError(t, store.EnsureSchema(ctx))
	require.NoError(t, store.WipeAll(ctx))

	t.Cleanup(func() {
		_ = store.WipeAll(context.Background())
		_ = store.Close(context.Background())
	})
	return store
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func TestNeo4jStore_Idempotence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	targets := []models.Paper{paper("A", "a"), paper("B", "b"), paper("C", "c")}
	stats := store.UpsertEdges(ctx, "S", targets, models.RelationCites)
	assert.Equal(t, WriteStats{Succeeded: 3, Created: 3}, stats)

	again := store.UpsertEdges(ctx, "S", targets, models.RelationCites)
	assert.Equal(t, WriteStats{Succeeded: 3}, again)

	graphStats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, graphStats.Papers)
	assert.Equal(t, 1, graphStats.Stubs)
	assert.Equal(t, 3, graphStats.Edges)
}

func TestNeo4jStore_FirstWriterWinsAndStubFill(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertEdge(ctx, "S", paper("R", "first"), models.RelationReferences))
	require.NoError(t, store.UpsertPaper(ctx, paper("R", "second")))
	require.NoError(t, store.UpsertPaper(ctx, paper("S", "seed")))

	r, err := store.GetPaper(ctx, "R")
	require.NoError(t, err)
	assert.Equal(t, "first", r.Title)

	s, err := store.GetPaper(ctx, "S")
	require.NoError(t, err)
	assert.Equal(t, "seed", s.Title)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Stubs)
}

func TestNeo4jStore_PartialFailure(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	targets := []models.Paper{paper("A", "a"), {}, paper("B", "b"), paper("C", "c"), paper("D", "d")}
	stats := store.UpsertEdges(ctx, "S", targets, models.RelationReferences)
	assert.Equal(t, WriteStats{Succeeded: 4, Failed: 1, Created: 4}, stats)
}

func TestNeo4jStore_WipeAll(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	called := false
	store.OnWipe(func(context.Context) error {
		called = true
		return nil
	})

	store.UpsertEdges(ctx, "S", []models.Paper{paper("A", "a")}, models.RelationCites)
	require.NoError(t, store.WipeAll(ctx))
	assert.True(t, called)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, GraphStats{}, stats)

	got, err := store.GetPaper(ctx, "A")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestGetConfigForOperation(t *testing.T) {
	cfg := GetConfigForOperation(OpEdgeUpsert)
	assert.Equal(t, 2*time.Minute, cfg.Timeout)
	assert.Equal(t, OpEdgeUpsert, cfg.Metadata["operation"])

	unknown := GetConfigForOperation("mystery")
	assert.Equal(t, 60*time.Second, unknown.Timeout)
	assert.Equal(t, "unknown", unknown.Metadata["type"])

	tagged := cfg.WithCustomMetadata("seed", "S")
	assert.Equal(t, "S", tagged.Metadata["seed"])
	assert.NotContains(t, cfg.Metadata, "seed")
	assert.Len(t, cfg.AsNeo4jConfig(), 2)
}
