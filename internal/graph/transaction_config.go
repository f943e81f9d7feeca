package graph

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// TransactionConfig defines timeout and metadata for transactions.
// Metadata shows up in Neo4j's query.log and helps categorize slow queries.
type TransactionConfig struct {
	Timeout  time.Duration
	Metadata map[string]any
}

// Operation names used with GetConfigForOperation.
const (
	OpPaperUpsert   = "paper_upsert"
	OpEdgeUpsert    = "edge_upsert"
	OpWipe          = "wipe"
	OpSchema        = "schema"
	OpReadQuery     = "read_query"
	OpGDSProjection = "gds_projection"
	OpGDSAlgorithm  = "gds_algorithm"
	OpHealthCheck   = "health_check"
)

// DefaultTransactionConfigs returns the config per operation type
func DefaultTransactionConfigs() map[string]TransactionConfig {
	return map[string]TransactionConfig{
		OpPaperUpsert: {
			Timeout:  60 * time.Second,
			Metadata: map[string]any{"operation": OpPaperUpsert, "type": "write"},
		},
		OpEdgeUpsert: {
			Timeout:  2 * time.Minute, // edge batches also merge target papers
			Metadata: map[string]any{"operation": OpEdgeUpsert, "type": "write"},
		},
		OpWipe: {
			Timeout:  5 * time.Minute,
			Metadata: map[string]any{"operation": OpWipe, "type": "write"},
		},
		OpSchema: {
			Timeout:  5 * time.Minute,
			Metadata: map[string]any{"operation": OpSchema, "type": "schema"},
		},
		OpReadQuery: {
			Timeout:  30 * time.Second,
			Metadata: map[string]any{"operation": OpReadQuery, "type": "read"},
		},
		OpGDSProjection: {
			Timeout:  5 * time.Minute,
			Metadata: map[string]any{"operation": OpGDSProjection, "type": "analytics"},
		},
		OpGDSAlgorithm: {
			Timeout:  15 * time.Minute,
			Metadata: map[string]any{"operation": OpGDSAlgorithm, "type": "analytics"},
		},
		OpHealthCheck: {
			Timeout:  5 * time.Second,
			Metadata: map[string]any{"operation": OpHealthCheck, "type": "read"},
		},
	}
}

// AsNeo4jConfig converts to Neo4j transaction config functions
// for ExecuteRead/ExecuteWrite.
func (tc TransactionConfig) AsNeo4jConfig() []func(*neo4j.TransactionConfig) {
	var configs []func(*neo4j.TransactionConfig)
	if tc.Timeout > 0 {
		configs = append(configs, neo4j.WithTxTimeout(tc.Timeout))
	}
	if len(tc.Metadata) > 0 {
		configs = append(configs, neo4j.WithTxMetadata(tc.Metadata))
	}
	return configs
}

// GetConfigForOperation retrieves the transaction config for an operation,
// falling back to a 60s config for unknown names.
func GetConfigForOperation(operation string) TransactionConfig {
	if config, ok := DefaultTransactionConfigs()[operation]; ok {
		return config
	}
	return TransactionConfig{
		Timeout: 60 * time.Second,
		Metadata: map[string]any{
			"operation": operation,
			"type":      "unknown",
		},
	}
}

// WithCustomMetadata returns a copy with one more metadata entry
func (tc TransactionConfig) WithCustomMetadata(key string, value any) TransactionConfig {
	out := TransactionConfig{
		Timeout:  tc.Timeout,
		Metadata: make(map[string]any, len(tc.Metadata)+1),
	}
	for k, v := range tc.Metadata {
		out.Metadata[k] = v
	}
	out.Metadata[key] = value
	return out
}
