package graph

import (
	"context"
	"strings"

	"github.com/rohankatakam/paperwalk/internal/models"
)

// Store is the graph persistence surface used by the crawler and the API.
// Implementations: Neo4jStore (production) and MemoryStore.
//
// Paper writes are create-if-absent on paperId: the first full write wins
// and later writes never overwrite set fields. The one exception is a stub
// (a node created only as the source side of an edge), which the first full
// write fills in.
type Store interface {
	// EnsureSchema creates the paperId uniqueness constraint.
	EnsureSchema(ctx context.Context) error

	// UpsertPaper creates the paper node if absent.
	UpsertPaper(ctx context.Context, paper models.Paper) error

	// UpsertPapers applies UpsertPaper to every record, batched.
	UpsertPapers(ctx context.Context, papers []models.Paper) WriteStats

	// UpsertEdge ensures source (stub if absent), target (create-if-absent)
	// and the CITES edge between them. RelationCites writes target->source,
	// RelationReferences writes source->target.
	UpsertEdge(ctx context.Context, sourceID string, target models.Paper, kind models.Relation) error

	// UpsertEdges applies UpsertEdge to every target, batched.
	UpsertEdges(ctx context.Context, sourceID string, targets []models.Paper, kind models.Relation) WriteStats

	// WipeAll deletes every node and edge, then runs the wipe hooks.
	WipeAll(ctx context.Context) error

	// OnWipe registers a hook to run after every successful wipe.
	OnWipe(hook WipeHook)

	GetPaper(ctx context.Context, paperID string) (*models.Paper, error)
	TopPapers(ctx context.Context, property string, limit int) ([]models.Paper, error)
	Stats(ctx context.Context) (GraphStats, error)
	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WipeHook runs after WipeAll removed all data. Hook errors are logged.
type WipeHook func(ctx context.Context) error

// WriteStats reports the outcome of a bulk write. Created counts the
// succeeded records whose paper data landed: a new node or a filled stub.
// Rewriting a paper that is already stored succeeds without creating.
type WriteStats struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Created   int `json:"created"`
}

// Add accumulates other into s.
func (s *WriteStats) Add(other WriteStats) {
	s.Succeeded += other.Succeeded
	s.Failed += other.Failed
	s.Created += other.Created
}

// GraphStats summarizes graph contents.
type GraphStats struct {
	Papers int `json:"papers"`
	Stubs  int `json:"stubs"`
	Edges  int `json:"edges"`
	Ranked int `json:"ranked"`
}

// Score properties written by centrality analytics.
const (
	PropertyPageRank    = "pagerank"
	PropertyArticleRank = "articlerank"
)

// ValidScoreProperty reports whether p names a score property.
func ValidScoreProperty(p string) bool {
	return p == PropertyPageRank || p == PropertyArticleRank
}

// partitionValid splits papers into writable records and a count of records
// without an id.
func partitionValid(papers []models.Paper) (valid []models.Paper, invalid int) {
	valid = make([]models.Paper, 0, len(papers))
	for _, p := range papers {
		if strings.TrimSpace(p.PaperID) == "" {
			invalid++
			continue
		}
		valid = append(valid, p)
	}
	return valid, invalid
}

// chunk splits items into consecutive slices of at most size elements.
func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = len(items)
	}
	var out [][]T
	for size > 0 && len(items) > 0 {
		n := min(size, len(items))
		out = append(out, items[:n])
		items = items[n:]
	}
	return out
}
