package graph

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rohankatakam/paperwalk/internal/errors"
	"github.com/rohankatakam/paperwalk/internal/models"
)

// Neo4jStore is the Neo4j implementation of Store.
type Neo4jStore struct {
	client *Client
	batch  BatchConfig
	logger *slog.Logger

	mu    sync.Mutex
	hooks []WipeHook
}

var _ Store = (*Neo4jStore)(nil)

// NewNeo4jStore creates a store over an connected client.
func NewNeo4jStore(client *Client, batch BatchConfig) *Neo4jStore {
	return &Neo4jStore{
		client: client,
		batch:  batch.withDefaults(),
		logger: client.logger.With("component", "neo4j_store"),
	}
}

// Client returns the underlying client (used by the GDS engine).
func (s *Neo4jStore) Client() *Client {
	return s.client
}

func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.client.ExecuteWrite(ctx, OpSchema, cypherPaperConstraint, nil); err != nil {
		return errors.DatabaseError(err, "failed to create paperId constraint")
	}
	s.logger.Info("paper schema ensured")
	return nil
}

func (s *Neo4jStore) UpsertPaper(ctx context.Context, paper models.Paper) error {
	_, err := s.writePaper(ctx, paper)
	return err
}

func (s *Neo4jStore) writePaper(ctx context.Context, paper models.Paper) (int, error) {
	if strings.TrimSpace(paper.PaperID) == "" {
		return 0, errors.ValidationErrorf("paper id is required")
	}
	records, err := s.client.ExecuteWrite(ctx, OpPaperUpsert, cypherUpsertPapers,
		map[string]any{"papers": paperPropsList([]models.Paper{paper})})
	if err != nil {
		return 0, errors.StoreWriteFailure(err, "upsert paper").WithContext("paper_id", paper.PaperID)
	}
	return createdCount(records), nil
}

// UpsertPapers writes each batch in one transaction. A failed batch is
// retried record by record so a bad record only loses itself.
func (s *Neo4jStore) UpsertPapers(ctx context.Context, papers []models.Paper) WriteStats {
	valid, invalid := partitionValid(papers)
	stats := WriteStats{Failed: invalid}

	for _, batch := range chunk(valid, s.batch.PaperBatchSize) {
		records, err := s.client.ExecuteWrite(ctx, OpPaperUpsert, cypherUpsertPapers,
			map[string]any{"papers": paperPropsList(batch)})
		if err == nil {
			stats.Succeeded += len(batch)
			stats.Created += createdCount(records)
			continue
		}
		if ctx.Err() != nil {
			stats.Failed += len(batch)
			continue
		}

		s.logger.Warn("paper batch failed, isolating records", "size", len(batch), "error", err)
		for _, p := range batch {
			created, err := s.writePaper(ctx, p)
			if err != nil {
				s.logger.Warn("paper upsert failed", "paper_id", p.PaperID, "error", err)
				stats.Failed++
				continue
			}
			stats.Succeeded++
			stats.Created += created
		}
	}
	return stats
}

func (s *Neo4jStore) UpsertEdge(ctx context.Context, sourceID string, target models.Paper, kind models.Relation) error {
	if err := validateEdge(sourceID, kind); err != nil {
		return err
	}
	if strings.TrimSpace(target.PaperID) == "" {
		return errors.ValidationErrorf("target paper id is required")
	}
	_, err := s.writeEdges(ctx, sourceID, []models.Paper{target}, kind)
	return err
}

// UpsertEdges follows the UpsertPapers batch policy.
func (s *Neo4jStore) UpsertEdges(ctx context.Context, sourceID string, targets []models.Paper, kind models.Relation) WriteStats {
	if err := validateEdge(sourceID, kind); err != nil {
		s.logger.Warn("edge batch rejected", "source_id", sourceID, "error", err)
		return WriteStats{Failed: len(targets)}
	}

	valid, invalid := partitionValid(targets)
	stats := WriteStats{Failed: invalid}

	for _, batch := range chunk(valid, s.batch.EdgeBatchSize) {
		created, err := s.writeEdges(ctx, sourceID, batch, kind)
		if err == nil {
			stats.Succeeded += len(batch)
			stats.Created += created
			continue
		}
		if ctx.Err() != nil || len(batch) == 1 {
			stats.Failed += len(batch)
			continue
		}

		s.logger.Warn("edge batch failed, isolating records",
			"source_id", sourceID, "kind", string(kind), "size", len(batch), "error", err)
		for _, p := range batch {
			created, err := s.writeEdges(ctx, sourceID, []models.Paper{p}, kind)
			if err != nil {
				s.logger.Warn("edge upsert failed", "source_id", sourceID, "target_id", p.PaperID, "error", err)
				stats.Failed++
				continue
			}
			stats.Succeeded++
			stats.Created += created
		}
	}
	return stats
}

// writeEdges returns how many target papers were created or filled.
func (s *Neo4jStore) writeEdges(ctx context.Context, sourceID string, targets []models.Paper, kind models.Relation) (int, error) {
	query := cypherUpsertCitations
	if kind == models.RelationReferences {
		query = cypherUpsertReferences
	}
	records, err := s.client.ExecuteWrite(ctx, OpEdgeUpsert, query, map[string]any{
		"sourceId": sourceID,
		"papers":   paperPropsList(targets),
	})
	if err != nil {
		return 0, errors.StoreWriteFailure(err, "upsert edges").
			WithContext("source_id", sourceID).
			WithContext("kind", string(kind))
	}
	return createdCount(records), nil
}

func createdCount(records []map[string]any) int {
	if len(records) == 0 {
		return 0
	}
	return asInt(records[0]["created"])
}

func validateEdge(sourceID string, kind models.Relation) error {
	if strings.TrimSpace(sourceID) == "" {
		return errors.ValidationErrorf("source paper id is required")
	}
	if !kind.Valid() {
		return errors.ValidationErrorf("unknown relation %q", kind)
	}
	return nil
}

// WipeAll deletes in batches so a large graph does not need one huge
// transaction, then runs the wipe hooks.
func (s *Neo4jStore) WipeAll(ctx context.Context) error {
	total := int64(0)
	for {
		records, err := s.client.ExecuteWrite(ctx, OpWipe, cypherWipeBatch,
			map[string]any{"limit": int64(s.batch.WipeBatchSize)})
		if err != nil {
			return errors.StoreWriteFailure(err, "wipe graph")
		}
		deleted := int64(0)
		if len(records) > 0 {
			deleted, _ = records[0]["deleted"].(int64)
		}
		total += deleted
		if deleted == 0 {
			break
		}
	}
	s.logger.Info("graph wiped", "nodes_deleted", total)

	s.runHooks(ctx)
	return nil
}

func (s *Neo4jStore) OnWipe(hook WipeHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

func (s *Neo4jStore) runHooks(ctx context.Context) {
	s.mu.Lock()
	hooks := append([]WipeHook(nil), s.hooks...)
	s.mu.Unlock()

	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			s.logger.Warn("wipe hook failed", "error", err)
		}
	}
}

func (s *Neo4jStore) GetPaper(ctx context.Context, paperID string) (*models.Paper, error) {
	records, err := s.client.ExecuteRead(ctx, OpReadQuery, cypherGetPaper,
		map[string]any{"paperId": paperID})
	if err != nil {
		return nil, errors.DatabaseError(err, "get paper")
	}
	if len(records) == 0 {
		return nil, nil
	}
	props, _ := records[0]["props"].(map[string]any)
	p := paperFromProps(props)
	return &p, nil
}

func (s *Neo4jStore) TopPapers(ctx context.Context, property string, limit int) ([]models.Paper, error) {
	if !ValidScoreProperty(property) {
		return nil, errors.ValidationErrorf("unknown score property %q", property)
	}
	if limit <= 0 {
		limit = 10
	}
	records, err := s.client.ExecuteRead(ctx, OpReadQuery, cypherTopPapers,
		map[string]any{"property": property, "limit": int64(limit)})
	if err != nil {
		return nil, errors.DatabaseError(err, "top papers")
	}

	papers := make([]models.Paper, 0, len(records))
	for _, r := range records {
		props, _ := r["props"].(map[string]any)
		papers = append(papers, paperFromProps(props))
	}
	return papers, nil
}

func (s *Neo4jStore) Stats(ctx context.Context) (GraphStats, error) {
	var stats GraphStats

	records, err := s.client.ExecuteRead(ctx, OpReadQuery, cypherPaperStats, nil)
	if err != nil {
		return stats, errors.DatabaseError(err, "paper stats")
	}
	if len(records) > 0 {
		stats.Papers = asInt(records[0]["papers"])
		stats.Stubs = asInt(records[0]["stubs"])
		stats.Ranked = asInt(records[0]["ranked"])
	}

	records, err = s.client.ExecuteRead(ctx, OpReadQuery, cypherEdgeStats, nil)
	if err != nil {
		return stats, errors.DatabaseError(err, "edge stats")
	}
	if len(records) > 0 {
		stats.Edges = asInt(records[0]["edges"])
	}
	return stats, nil
}

func (s *Neo4jStore) HealthCheck(ctx context.Context) error {
	if err := s.client.HealthCheck(ctx); err != nil {
		return errors.DatabaseError(err, "graph store unreachable")
	}
	return nil
}

func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

func (s *Neo4jStore) String() string {
	return fmt.Sprintf("neo4j(%s)", s.client.Database())
}
