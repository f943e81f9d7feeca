package analytics

import (
	"context"
	"fmt"

	"github.com/rohankatakam/paperwalk/internal/graph"
)

// GDS procedure calls. The projection covers every Paper node and every
// CITES relationship in its natural direction.
const (
	cypherGDSVersion = `RETURN gds.version() AS version`

	cypherCountPapers = `MATCH (p:Paper) RETURN count(p) AS papers`

	cypherProjectionExists = `
		CALL gds.graph.exists($name) YIELD exists
		RETURN exists`

	cypherDropProjection = `
		CALL gds.graph.drop($name, false) YIELD graphName
		RETURN graphName`

	cypherProject = `
		CALL gds.graph.project($name, 'Paper', 'CITES')
		YIELD nodeCount, relationshipCount
		RETURN nodeCount, relationshipCount`

	cypherPageRankMutate = `
		CALL gds.pageRank.mutate($name, {
			maxIterations: $iterations,
			dampingFactor: $damping,
			mutateProperty: $property
		})
		YIELD nodePropertiesWritten, ranIterations, didConverge
		RETURN nodePropertiesWritten, ranIterations, didConverge`

	cypherArticleRankMutate = `
		CALL gds.articleRank.mutate($name, {
			maxIterations: $iterations,
			dampingFactor: $damping,
			mutateProperty: $property
		})
		YIELD nodePropertiesWritten, ranIterations, didConverge
		RETURN nodePropertiesWritten, ranIterations, didConverge`

	cypherWriteProperties = `
		CALL gds.graph.nodeProperties.write($name, $properties)
		YIELD propertiesWritten
		RETURN propertiesWritten`
)

// GDSEngine runs centrality through the Neo4j Graph Data Science plugin.
type GDSEngine struct {
	client *graph.Client
}

var _ Engine = (*GDSEngine)(nil)

// NewGDSEngine creates an engine on an existing Neo4j client.
func NewGDSEngine(client *graph.Client) *GDSEngine {
	return &GDSEngine{client: client}
}

func (e *GDSEngine) Available(ctx context.Context) error {
	records, err := e.client.ExecuteRead(ctx, graph.OpReadQuery, cypherGDSVersion, nil)
	if err != nil {
		return fmt.Errorf("graph data science plugin not available: %w", err)
	}
	if len(records) == 0 {
		return fmt.Errorf("graph data science plugin returned no version")
	}
	return nil
}

func (e *GDSEngine) DropProjection(ctx context.Context, name string) error {
	records, err := e.client.ExecuteRead(ctx, graph.OpGDSProjection, cypherProjectionExists,
		map[string]any{"name": name})
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	if exists, _ := records[0]["exists"].(bool); !exists {
		return nil
	}
	_, err = e.client.ExecuteWrite(ctx, graph.OpGDSProjection, cypherDropProjection,
		map[string]any{"name": name})
	return err
}

// Project builds the in-memory projection. An empty graph is reported as
// zero nodes without projecting, since GDS rejects a label with no nodes.
func (e *GDSEngine) Project(ctx context.Context, name string) (Projection, error) {
	records, err := e.client.ExecuteRead(ctx, graph.OpReadQuery, cypherCountPapers, nil)
	if err != nil {
		return Projection{}, err
	}
	if len(records) == 0 || toInt64(records[0]["papers"]) == 0 {
		return Projection{Name: name}, nil
	}

	records, err = e.client.ExecuteWrite(ctx, graph.OpGDSProjection, cypherProject,
		map[string]any{"name": name})
	if err != nil {
		return Projection{}, err
	}
	if len(records) == 0 {
		return Projection{}, fmt.Errorf("projection %s returned no summary", name)
	}
	return Projection{
		Name:          name,
		Nodes:         toInt64(records[0]["nodeCount"]),
		Relationships: toInt64(records[0]["relationshipCount"]),
	}, nil
}

func (e *GDSEngine) Mutate(ctx context.Context, name string, alg Algorithm, params Params) (AlgorithmStats, error) {
	query := cypherPageRankMutate
	if alg == ArticleRank {
		query = cypherArticleRankMutate
	}

	records, err := e.client.ExecuteWrite(ctx, graph.OpGDSAlgorithm, query, map[string]any{
		"name":       name,
		"iterations": int64(params.MaxIterations),
		"damping":    params.DampingFactor,
		"property":   alg.Property(),
	})
	if err != nil {
		return AlgorithmStats{}, err
	}
	if len(records) == 0 {
		return AlgorithmStats{}, fmt.Errorf("%s returned no summary", alg)
	}

	converged, _ := records[0]["didConverge"].(bool)
	return AlgorithmStats{
		Algorithm:  alg,
		Nodes:      toInt64(records[0]["nodePropertiesWritten"]),
		Iterations: toInt64(records[0]["ranIterations"]),
		Converged:  converged,
	}, nil
}

func (e *GDSEngine) WriteProperties(ctx context.Context, name string, properties []string) (int64, error) {
	records, err := e.client.ExecuteWrite(ctx, graph.OpGDSAlgorithm, cypherWriteProperties, map[string]any{
		"name":       name,
		"properties": properties,
	})
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}
	return toInt64(records[0]["propertiesWritten"]), nil
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}
