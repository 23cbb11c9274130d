package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/shopbot/internal/core/domain"
)

func sampleResult() domain.QueryResult {
	return domain.QueryResult{
		Query: "running shoes",
		Items: []domain.ScoredEntity{
			{
				Type:    domain.EntityProduct,
				Product: &domain.Product{ID: 4, Name: "Trail Runner", SerializedText: "name: Trail Runner | price: 89.90"},
				Score:   0.91,
			},
			{
				Type:  domain.EntityChunk,
				Chunk: &domain.DocumentChunk{DocumentID: "faq", DocumentTitle: "FAQ", ChunkIndex: 2, Text: "Shoes can be\nreturned   within 30 days."},
				Score: 0.74,
			},
		},
	}
}

func TestSearchCmd_Table(t *testing.T) {
	env := newTestEnv(t)
	env.retriever.result = sampleResult()

	out, err := run(t, "search", "running", "shoes", "--category", "Footwear", "--in-stock", "-k", "3")
	require.NoError(t, err)

	assert.Equal(t, "running shoes", env.retriever.query)
	assert.Equal(t, 3, env.retriever.opts.KPerType)
	assert.Equal(t, "Footwear", env.retriever.opts.Filters.Category)
	assert.True(t, env.retriever.opts.Filters.InStockOnly)

	assert.Contains(t, out, "[1]")
	assert.Contains(t, out, "Trail Runner")
	assert.Contains(t, out, "FAQ #2")
	assert.Contains(t, out, "Shoes can be returned within 30 days.")
}

func TestSearchCmd_JSON(t *testing.T) {
	env := newTestEnv(t)
	env.retriever.result = sampleResult()

	out, err := run(t, "search", "shoes", "--json", "--type", "product,doc_chunk")
	require.NoError(t, err)
	assert.Equal(t, []domain.EntityType{domain.EntityProduct, domain.EntityChunk}, env.retriever.opts.Types)

	var hits []searchHit
	require.NoError(t, json.Unmarshal([]byte(out), &hits))
	require.Len(t, hits, 2)
	assert.Equal(t, "product:4", hits[0].Key)
	assert.Equal(t, "doc_chunk:faq#2", hits[1].Key)
	assert.InDelta(t, 0.91, hits[0].Score, 1e-9)
}

func TestSearchCmd_NoResults(t *testing.T) {
	newTestEnv(t)

	out, err := run(t, "search", "unicorns")
	require.NoError(t, err)
	assert.Contains(t, out, "No results found.")
}

func TestSearchCmd_UnknownType(t *testing.T) {
	newTestEnv(t)

	_, err := run(t, "search", "shoes", "--type", "review")
	assert.Error(t, err)
}

func TestSearchCmd_RetrieverError(t *testing.T) {
	env := newTestEnv(t)
	env.retriever.err = errBoom

	_, err := run(t, "search", "shoes")
	assert.ErrorIs(t, err, errBoom)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "a b c", snippet("a\n b\t\tc", 10))
	assert.Equal(t, "abc...", snippet("abcdef", 3))
	assert.Equal(t, "", snippet("   ", 5))
	assert.Equal(t, "ပြေး...", snippet("ပြေးဖိနပ်", 4))
}
