package s2

import "encoding/json"

// RawAuthor is an author entry as the Graph API returns it.
type RawAuthor struct {
	AuthorID *string `json:"authorId"`
	Name     *string `json:"name"`
}

// RawPaper is a paper record as the Graph API returns it. Every field the
// provider may omit or null out is a pointer (or a nil-able map/slice).
type RawPaper struct {
	PaperID        *string        `json:"paperId"`
	Title          *string        `json:"title"`
	Abstract       *string        `json:"abstract"`
	Authors        []RawAuthor    `json:"authors"`
	CitationCount  *int           `json:"citationCount"`
	ReferenceCount *int           `json:"referenceCount"`
	ExternalIDs    map[string]any `json:"externalIds"`
	Year           *int           `json:"year"`

	decodeErr error
}

// UnmarshalJSON never fails: a field of the wrong type marks the record as
// malformed and Normalize rejects it, so the rest of the page survives.
func (p *RawPaper) UnmarshalJSON(data []byte) error {
	type plain RawPaper
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		v.decodeErr = err
	}
	*p = RawPaper(v)
	return nil
}

// EdgeRecord is one entry of a citations or references page. Citation
// pages fill CitingPaper, reference pages fill CitedPaper.
type EdgeRecord struct {
	CitingPaper *RawPaper `json:"citingPaper,omitempty"`
	CitedPaper  *RawPaper `json:"citedPaper,omitempty"`

	decodeErr error
}

// UnmarshalJSON keeps a record that is not an object on the page so it is
// counted as a normalization failure.
func (r *EdgeRecord) UnmarshalJSON(data []byte) error {
	type plain EdgeRecord
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		v.decodeErr = err
	}
	*r = EdgeRecord(v)
	return nil
}

// Page is one page of edge records. Raw keeps the provider payload verbatim.
type Page struct {
	Offset int             `json:"offset"`
	Next   *int            `json:"next,omitempty"`
	Data   []EdgeRecord    `json:"data"`
	Raw    json.RawMessage `json:"-"`
}

type searchResponse struct {
	Total  int        `json:"total"`
	Offset int        `json:"offset"`
	Next   *int       `json:"next,omitempty"`
	Data   []RawPaper `json:"data"`
}

type edgeKind string

const (
	citationsKind  edgeKind = "citations"
	referencesKind edgeKind = "references"
)

// PageMode selects how much of a paginated listing is walked.
type PageMode int

const (
	// AllPages walks until an empty page.
	AllPages PageMode = iota
	// FirstPageOnly yields at most one page.
	FirstPageOnly
)

// Cache stores raw provider payloads keyed by request.
type Cache interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
}
