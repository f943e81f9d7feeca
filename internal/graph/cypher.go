package graph

import (
	"github.com/rohankatakam/paperwalk/internal/models"
)

// Node property names. The graph viewer reads these directly.
const (
	propPaperID        = "paperId"
	propTitle          = "title"
	propFirstAuthor    = "firstAuthor"
	propFirstAuthorID  = "firstAuthorId"
	propLastAuthor     = "lastAuthor"
	propLastAuthorID   = "lastAuthorId"
	propAbstract       = "abstract"
	propCitationCount  = "citationCount"
	propReferenceCount = "referenceCount"
	propArXiv          = "ArXiv"
	propYear           = "year"
	propStub           = "stub"
)

const cypherPaperConstraint = `
	CREATE CONSTRAINT paper_id_unique IF NOT EXISTS
	FOR (p:Paper) REQUIRE p.paperId IS UNIQUE`

// Create-if-absent; a stub is filled in once and loses the stub flag.
// created counts rows that found no node or a stub.
const cypherUpsertPapers = `
	UNWIND $papers AS props
	OPTIONAL MATCH (e:Paper {paperId: props.paperId})
	WITH props, e IS NULL OR e.stub = true AS fresh
	MERGE (p:Paper {paperId: props.paperId})
	ON CREATE SET p += props
	WITH p, props, fresh
	FOREACH (_ IN CASE WHEN p.stub = true THEN [1] ELSE [] END |
		SET p += props
		REMOVE p.stub)
	RETURN count(p) AS written, sum(CASE WHEN fresh THEN 1 ELSE 0 END) AS created`

// citing papers -> source
const cypherUpsertCitations = `
	MERGE (s:Paper {paperId: $sourceId})
	ON CREATE SET s.stub = true
	WITH s
	UNWIND $papers AS props
	OPTIONAL MATCH (e:Paper {paperId: props.paperId})
	WITH s, props, e IS NULL OR e.stub = true AS fresh
	MERGE (o:Paper {paperId: props.paperId})
	ON CREATE SET o += props
	WITH s, o, props, fresh
	FOREACH (_ IN CASE WHEN o.stub = true THEN [1] ELSE [] END |
		SET o += props
		REMOVE o.stub)
	MERGE (o)-[:CITES]->(s)
	RETURN count(o) AS written, sum(CASE WHEN fresh THEN 1 ELSE 0 END) AS created`

// source -> referenced papers
const cypherUpsertReferences = `
	MERGE (s:Paper {paperId: $sourceId})
	ON CREATE SET s.stub = true
	WITH s
	UNWIND $papers AS props
	OPTIONAL MATCH (e:Paper {paperId: props.paperId})
	WITH s, props, e IS NULL OR e.stub = true AS fresh
	MERGE (o:Paper {paperId: props.paperId})
	ON CREATE SET o += props
	WITH s, o, props, fresh
	FOREACH (_ IN CASE WHEN o.stub = true THEN [1] ELSE [] END |
		SET o += props
		REMOVE o.stub)
	MERGE (s)-[:CITES]->(o)
	RETURN count(o) AS written, sum(CASE WHEN fresh THEN 1 ELSE 0 END) AS created`

const cypherWipeBatch = `
	MATCH (n)
	WITH n LIMIT $limit
	DETACH DELETE n
	RETURN count(*) AS deleted`

const cypherGetPaper = `
	MATCH (p:Paper {paperId: $paperId})
	RETURN properties(p) AS props`

const cypherTopPapers = `
	MATCH (p:Paper)
	WHERE p[$property] IS NOT NULL
	RETURN properties(p) AS props
	ORDER BY p[$property] DESC, p.paperId
	LIMIT $limit`

const cypherPaperStats = `
	MATCH (p:Paper)
	RETURN count(p) AS papers,
		count(CASE WHEN p.stub = true THEN 1 END) AS stubs,
		count(p.pagerank) AS ranked`

const cypherEdgeStats = `
	MATCH (:Paper)-[r:CITES]->(:Paper)
	RETURN count(r) AS edges`

// paperProps builds the property map written on create. Empty optional
// fields become null so the node simply lacks them.
func paperProps(p models.Paper) map[string]any {
	return map[string]any{
		propPaperID:        p.PaperID,
		propTitle:          nullIfEmpty(p.Title),
		propFirstAuthor:    nullIfEmpty(p.FirstAuthor),
		propFirstAuthorID:  nullIfEmpty(p.FirstAuthorID),
		propLastAuthor:     nullIfEmpty(p.LastAuthor),
		propLastAuthorID:   nullIfEmpty(p.LastAuthorID),
		propAbstract:       nullIfEmpty(p.Abstract),
		propCitationCount:  int64(p.CitationCount),
		propReferenceCount: int64(p.ReferenceCount),
		propArXiv:          nullIfEmpty(p.ArXivID),
		propYear:           nullIfZero(p.Year),
	}
}

func paperPropsList(papers []models.Paper) []any {
	out := make([]any, len(papers))
	for i, p := range papers {
		out[i] = paperProps(p)
	}
	return out
}

// paperFromProps maps node properties back to a Paper.
func paperFromProps(props map[string]any) models.Paper {
	p := models.Paper{
		PaperID:        asString(props[propPaperID]),
		Title:          asString(props[propTitle]),
		FirstAuthor:    asString(props[propFirstAuthor]),
		FirstAuthorID:  asString(props[propFirstAuthorID]),
		LastAuthor:     asString(props[propLastAuthor]),
		LastAuthorID:   asString(props[propLastAuthorID]),
		Abstract:       asString(props[propAbstract]),
		CitationCount:  asInt(props[propCitationCount]),
		ReferenceCount: asInt(props[propReferenceCount]),
		ArXivID:        asString(props[propArXiv]),
		Year:           asInt(props[propYear]),
	}
	if v, ok := asFloat(props[PropertyPageRank]); ok {
		p.PageRank = &v
	}
	if v, ok := asFloat(props[PropertyArticleRank]); ok {
		p.ArticleRank = &v
	}
	return p
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIfZero(n int) any {
	if n == 0 {
		return nil
	}
	return int64(n)
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
