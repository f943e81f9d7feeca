package s2

import (
	"fmt"
	"strings"

	"github.com/rohankatakam/paperwalk/internal/errors"
	"github.com/rohankatakam/paperwalk/internal/models"
)

// Normalize maps a raw provider record to a Paper. It is pure and total:
// absent counts become 0 and absent authors leave the author fields empty.
// A missing paperId or a field of the wrong type is an error.
func Normalize(raw *RawPaper) (models.Paper, error) {
	if raw == nil {
		return models.Paper{}, errors.NormalizationFailure("record is null")
	}
	if raw.decodeErr != nil {
		return models.Paper{}, errors.Wrap(raw.decodeErr, errors.ErrorTypeNormalization, errors.SeverityLow,
			"malformed record").WithContext("paper_id", deref(raw.PaperID))
	}
	id := strings.TrimSpace(deref(raw.PaperID))
	if id == "" {
		return models.Paper{}, errors.NormalizationFailure("record has no paperId").
			WithContext("title", deref(raw.Title))
	}

	paper := models.Paper{
		PaperID:        id,
		Title:          deref(raw.Title),
		Abstract:       deref(raw.Abstract),
		CitationCount:  derefInt(raw.CitationCount),
		ReferenceCount: derefInt(raw.ReferenceCount),
		Year:           derefInt(raw.Year),
		ArXivID:        externalID(raw.ExternalIDs, "ArXiv"),
	}

	if n := len(raw.Authors); n > 0 {
		first, last := raw.Authors[0], raw.Authors[n-1]
		paper.FirstAuthor = deref(first.Name)
		paper.FirstAuthorID = deref(first.AuthorID)
		paper.LastAuthor = deref(last.Name)
		paper.LastAuthorID = deref(last.AuthorID)
	}

	return paper, nil
}

// NormalizeEdges maps the far-side paper of every record on a page. Records
// that fail normalization are counted, not returned.
func NormalizeEdges(page *Page, relation models.Relation) (papers []models.Paper, failed int) {
	if page == nil {
		return nil, 0
	}
	papers = make([]models.Paper, 0, len(page.Data))
	for _, rec := range page.Data {
		if rec.decodeErr != nil {
			failed++
			continue
		}
		raw := rec.CitedPaper
		if relation == models.RelationCites {
			raw = rec.CitingPaper
		}
		p, err := Normalize(raw)
		if err != nil {
			failed++
			continue
		}
		papers = append(papers, p)
	}
	return papers, failed
}

func externalID(ids map[string]any, key string) string {
	v, ok := ids[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt(n *int) int {
	if n == nil {
		return 0
	}
	return *n
}
