package models

import (
	"time"
)

// Paper is the canonical paper node. PaperID is the provider's stable id.
type Paper struct {
	PaperID        string `json:"paperId" db:"paper_id"`
	Title          string `json:"title"`
	FirstAuthor    string `json:"firstAuthor,omitempty"`
	FirstAuthorID  string `json:"firstAuthorId,omitempty"`
	LastAuthor     string `json:"lastAuthor,omitempty"`
	LastAuthorID   string `json:"lastAuthorId,omitempty"`
	Abstract       string `json:"abstract,omitempty"`
	CitationCount  int    `json:"citationCount"`
	ReferenceCount int    `json:"referenceCount"`
	ArXivID        string `json:"arxivId,omitempty"`
	Year           int    `json:"year,omitempty"`

	// Centrality scores, present only when read back from the graph.
	PageRank    *float64 `json:"pagerank,omitempty"`
	ArticleRank *float64 `json:"articlerank,omitempty"`
}

// Relation says which side of an edge page the seed is on.
type Relation string

const (
	// RelationCites: listed papers cite the seed (citing -> seed)
	RelationCites Relation = "CITES"
	// RelationReferences: the seed cites the listed papers (seed -> cited)
	RelationReferences Relation = "REFERENCES"
)

// Valid reports whether r is a known relation
func (r Relation) Valid() bool {
	return r == RelationCites || r == RelationReferences
}

// Edge is a directed citation: Source cites Target.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// RunStatus is the outcome of an expansion run
type RunStatus string

const (
	RunStatusSuccess   RunStatus = "success"
	RunStatusPartial   RunStatus = "partial"
	RunStatusCancelled RunStatus = "cancelled"
	RunStatusFailed    RunStatus = "failed"
)

// ExpansionRun is the persisted summary of one expansion
type ExpansionRun struct {
	ID                    string        `json:"runId" db:"id"`
	SeedID                string        `json:"seedId" db:"seed_id"`
	Depth                 int           `json:"depth" db:"depth"`
	Status                RunStatus     `json:"status" db:"status"`
	PapersWritten         int           `json:"papersWritten" db:"papers_written"`
	EdgesWritten          int           `json:"edgesWritten" db:"edges_written"`
	PagesFetched          int           `json:"pagesFetched" db:"pages_fetched"`
	PapersVisited         int           `json:"papersVisited" db:"papers_visited"`
	FetchFailures         int           `json:"fetchFailures" db:"fetch_failures"`
	NormalizationFailures int           `json:"normalizationFailures" db:"normalization_failures"`
	StoreFailures         int           `json:"storeFailures" db:"store_failures"`
	Error                 string        `json:"error,omitempty" db:"error"`
	StartedAt             time.Time     `json:"startedAt" db:"started_at"`
	Duration              time.Duration `json:"duration" db:"duration_ns"`
}

// Failed reports whether any sub-operation was counted as a failure
func (r *ExpansionRun) Failed() bool {
	return r.FetchFailures+r.NormalizationFailures+r.StoreFailures > 0
}
