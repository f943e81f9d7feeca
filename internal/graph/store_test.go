package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rohankatakam/paperwalk/internal/models"
)

func TestChunk(t *testing.T) {
	tests := []struct {
		name  string
		items []int
		size  int
		want  [][]int
	}{
		{"empty", nil, 3, nil},
		{"exact", []int{1, 2, 3, 4}, 2, [][]int{{1, 2}, {3, 4}}},
		{"remainder", []int{1, 2, 3}, 2, [][]int{{1, 2}, {3}}},
		{"size zero means one chunk", []int{1, 2, 3}, 0, [][]int{{1, 2, 3}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, chunk(tt.items, tt.size))
		})
	}
}

func TestPartitionValid(t *testing.T) {
	valid, invalid := partitionValid([]models.Paper{
		{PaperID: "A"}, {PaperID: "  "}, {}, {PaperID: "B"},
	})
	assert.Equal(t, 2, invalid)
	assert.Equal(t, []models.Paper{{PaperID: "A"}, {PaperID: "B"}}, valid)
}

func TestWriteStatsAdd(t *testing.T) {
	s := WriteStats{Succeeded: 1, Created: 1}
	s.Add(WriteStats{Succeeded: 2, Failed: 3, Created: 2})
	assert.Equal(t, WriteStats{Succeeded: 3, Failed: 3, Created: 3}, s)
}

func TestPaperPropsRoundTrip(t *testing.T) {
	p := models.Paper{
		PaperID:        "abc",
		Title:          "Deep Residual Learning",
		FirstAuthor:    "Kaiming He",
		FirstAuthorID:  "1",
		LastAuthor:     "Jian Sun",
		LastAuthorID:   "4",
		CitationCount:  100,
		ReferenceCount: 40,
		ArXivID:        "1512.03385",
		Year:           2015,
	}

	props := paperProps(p)
	assert.Nil(t, props[propAbstract])
	assert.Equal(t, int64(2015), props[propYear])
	assert.Equal(t, "1512.03385", props[propArXiv])

	// the driver hands back int64 for integers
	props[PropertyPageRank] = 0.42
	got := paperFromProps(props)
	assert.Equal(t, p.Title, got.Title)
	assert.Equal(t, p.Year, got.Year)
	assert.Equal(t, p.CitationCount, got.CitationCount)
	if assert.NotNil(t, got.PageRank) {
		assert.InDelta(t, 0.42, *got.PageRank, 1e-9)
	}
	assert.Nil(t, got.ArticleRank)
}

func TestPaperPropsDropsZeroYear(t *testing.T) {
	props := paperProps(models.Paper{PaperID: "x"})
	assert.Nil(t, props[propYear])
	assert.Equal(t, int64(0), props[propCitationCount])
}

func TestValidScoreProperty(t *testing.T) {
	assert.True(t, ValidScoreProperty(PropertyPageRank))
	assert.True(t, ValidScoreProperty(PropertyArticleRank))
	assert.False(t, ValidScoreProperty("paperId"))
}

func TestBatchConfigDefaults(t *testing.T) {
	cfg := BatchConfig{PaperBatchSize: 50}.withDefaults()
	assert.Equal(t, 50, cfg.PaperBatchSize)
	assert.Equal(t, DefaultBatchConfig().EdgeBatchSize, cfg.EdgeBatchSize)
	assert.Equal(t, DefaultBatchConfig().WipeBatchSize, cfg.WipeBatchSize)
}

func TestRecommendedPoolSize(t *testing.T) {
	assert.Equal(t, 18, RecommendedPoolSize(4))
	assert.Equal(t, 100, RecommendedPoolSize(80))
}
