package graph

import "github.com/rohankatakam/paperwalk/internal/errors"

// setScore records a centrality score on an existing paper.
func (m *MemoryStore) setScore(paperID, property string, score float64) error {
	if !ValidScoreProperty(property) {
		return errors.ValidationErrorf("unknown score property %q", property)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.papers[paperID]
	if !ok {
		return errors.ValidationErrorf("paper %s not found", paperID)
	}
	if property == PropertyPageRank {
		p.PageRank = &score
	} else {
		p.ArticleRank = &score
	}
	m.papers[paperID] = p
	return nil
}

// isStub reports whether paperID exists only as an edge endpoint.
func (m *MemoryStore) isStub(paperID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.stubs[paperID]
	return ok
}
