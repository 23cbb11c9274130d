package domain

import (
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEntityType(t *testing.T) {
	tests := []struct {
		in      string
		want    EntityType
		wantErr bool
	}{
		{"product", EntityProduct, false},
		{"Products", EntityProduct, false},
		{"doc_chunk", EntityChunk, false},
		{" chunk ", EntityChunk, false},
		{"faq", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseEntityType(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidArgument))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilters_MatchProduct(t *testing.T) {
	shoe := &Product{ID: 1, Category: "Footwear", Brand: "Peak", StockQuantity: 0}

	assert.True(t, Filters{}.MatchProduct(shoe))
	assert.True(t, Filters{Category: "Footwear"}.MatchProduct(shoe))
	assert.False(t, Filters{Category: "Bags"}.MatchProduct(shoe))
	assert.False(t, Filters{Brand: "Other"}.MatchProduct(shoe))
	assert.False(t, Filters{InStockOnly: true}.MatchProduct(shoe))
	assert.True(t, Filters{DocumentID: "ignored"}.MatchProduct(shoe))
}

func TestFilters_MatchChunk(t *testing.T) {
	c := &DocumentChunk{DocumentID: "about"}

	assert.True(t, Filters{}.MatchChunk(c))
	assert.True(t, Filters{DocumentID: "about", Category: "ignored"}.MatchChunk(c))
	assert.False(t, Filters{DocumentID: "faq"}.MatchChunk(c))
}

func TestRankBefore(t *testing.T) {
	p1 := ScoredEntity{Type: EntityProduct, Product: &Product{ID: 1}, Score: 0.5}
	p2 := ScoredEntity{Type: EntityProduct, Product: &Product{ID: 2}, Score: 0.5}
	p3 := ScoredEntity{Type: EntityProduct, Product: &Product{ID: 3}, Score: 0.9}
	c0 := ScoredEntity{Type: EntityChunk, Chunk: &DocumentChunk{DocumentID: "a", ChunkIndex: 0}, Score: 0.5}
	c1 := ScoredEntity{Type: EntityChunk, Chunk: &DocumentChunk{DocumentID: "a", ChunkIndex: 1}, Score: 0.5}
	b0 := ScoredEntity{Type: EntityChunk, Chunk: &DocumentChunk{DocumentID: "b", ChunkIndex: 0}, Score: 0.5}

	items := []ScoredEntity{b0, c1, p2, c0, p1, p3}
	sort.SliceStable(items, func(i, j int) bool { return RankBefore(items[i], items[j]) })

	keys := make([]string, len(items))
	for i := range items {
		keys[i] = items[i].Key()
	}
	assert.Equal(t, []string{
		"product:3", "product:1", "product:2",
		"doc_chunk:a#0", "doc_chunk:a#1", "doc_chunk:b#0",
	}, keys)
}

func TestReconcileReport_Remaining(t *testing.T) {
	r := ReconcileReport{
		StaleProducts: []int64{4, 5},
		StaleChunks:   []ChunkRef{{DocumentID: "d", ChunkIndex: 0}},
	}
	assert.Equal(t, 3, r.Remaining())
	assert.Equal(t, 0, QueryResult{}.Len())
}

func TestSortRanked_Limit(t *testing.T) {
	items := []ScoredEntity{
		{Type: EntityProduct, Product: &Product{ID: 1}, Score: 0.1},
		{Type: EntityProduct, Product: &Product{ID: 2}, Score: 0.3},
		{Type: EntityProduct, Product: &Product{ID: 3}, Score: 0.2},
	}

	got := SortRanked(items, 2)

	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].Product.ID)
	assert.Equal(t, int64(3), got[1].Product.ID)
	assert.Len(t, SortRanked(nil, 3), 0)
}
