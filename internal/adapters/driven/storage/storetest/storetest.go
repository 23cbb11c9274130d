// Package storetest is the behavioural suite every driven.VectorStore
// backend runs from its own tests.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
)

// Dimensions is the vector size the suite opens stores with.
const Dimensions = 3

// OpenFunc returns an empty store of the given dimension. The suite closes it.
type OpenFunc func(t *testing.T, dimensions int) driven.VectorStore

// Run executes the full suite against stores produced by open.
func Run(t *testing.T, open OpenFunc) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s driven.VectorStore)
	}{
		{"ProductCRUD", testProductCRUD},
		{"UpsertIsIdempotent", testUpsertIdempotent},
		{"DimensionMismatch", testDimensionMismatch},
		{"SearchEmpty", testSearchEmpty},
		{"SearchInvalidK", testSearchInvalidK},
		{"SearchFewerThanK", testSearchFewerThanK},
		{"SearchRanking", testSearchRanking},
		{"SearchTieBreak", testSearchTieBreak},
		{"SearchSkipsUnembedded", testSearchSkipsUnembedded},
		{"SearchFilters", testSearchFilters},
		{"ChunkLifecycle", testChunkLifecycle},
		{"ReplaceRejectsGaps", testReplaceRejectsGaps},
		{"StaleListing", testStaleListing},
		{"SetProductEmbedding", testSetProductEmbedding},
		{"SetChunkEmbedding", testSetChunkEmbedding},
		{"Stats", testStats},
		{"ConcurrentUpserts", testConcurrentUpserts},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := open(t, Dimensions)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

// Product returns a fresh embedded product.
func Product(id int64, vec ...float32) domain.Product {
	p := domain.Product{
		ID:            id,
		Name:          fmt.Sprintf("Product %d", id),
		Category:      "General",
		Brand:         "Acme",
		Price:         9.5,
		StockQuantity: 3,
		Embedding:     vec,
		State:         domain.EmbeddingFresh,
	}
	p.SerializedText = p.BuildSerializedText()
	return p
}

// Chunk returns an embedded chunk.
func Chunk(doc string, index int, vec ...float32) domain.DocumentChunk {
	return domain.DocumentChunk{
		DocumentID:         doc,
		DocumentTitle:      "Title " + doc,
		ChunkIndex:         index,
		Text:               fmt.Sprintf("chunk %d of %s", index, doc),
		ContextualizedText: fmt.Sprintf("Document: %s\n\nchunk %d", doc, index),
		TokenCount:         4,
		Embedding:          vec,
	}
}

func testProductCRUD(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	assert.Equal(t, Dimensions, s.Dimensions())

	_, err := s.GetProduct(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	p := Product(1, 1, 0, 0)
	p.NameAlt = "Alt"
	p.DescriptionAlt = "Alt description"
	require.NoError(t, s.UpsertProduct(ctx, p))

	got, err := s.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, "Alt", got.NameAlt)
	assert.Equal(t, p.SerializedText, got.SerializedText)
	assert.Equal(t, p.Price, got.Price)
	assert.Equal(t, domain.EmbeddingFresh, got.State)
	assert.InDeltaSlice(t, []float32{1, 0, 0}, got.Embedding, 1e-6)

	require.NoError(t, s.DeleteProduct(ctx, 1))
	require.NoError(t, s.DeleteProduct(ctx, 1))
	_, err = s.GetProduct(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func testUpsertIdempotent(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	p := Product(5, 0, 1, 0)

	require.NoError(t, s.UpsertProduct(ctx, p))
	require.NoError(t, s.UpsertProduct(ctx, p))
	p.Price = 12
	require.NoError(t, s.UpsertProduct(ctx, p))

	all, err := s.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 12.0, all[0].Price)
}

func testDimensionMismatch(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()

	err := s.UpsertProduct(ctx, Product(1, 1, 0))
	var mismatch *domain.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, Dimensions, mismatch.Expected)
	assert.Equal(t, 2, mismatch.Got)

	err = s.UpsertChunk(ctx, Chunk("d", 0, 1, 0, 0, 0))
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = s.SimilaritySearch(ctx, []float32{1}, 1, domain.EntityProduct, domain.Filters{})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	all, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "rejected rows must not be stored")
}

func testSearchEmpty(t *testing.T, s driven.VectorStore) {
	for _, et := range domain.AllEntityTypes() {
		hits, err := s.SimilaritySearch(context.Background(), []float32{1, 0, 0}, 3, et, domain.Filters{})
		require.NoError(t, err)
		assert.Empty(t, hits)
	}
}

func testSearchInvalidK(t *testing.T, s driven.VectorStore) {
	_, err := s.SimilaritySearch(context.Background(), []float32{1, 0, 0}, 0, domain.EntityProduct, domain.Filters{})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func testSearchFewerThanK(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	require.NoError(t, s.UpsertProduct(ctx, Product(1, 1, 0, 0)))
	require.NoError(t, s.UpsertProduct(ctx, Product(2, 0, 1, 0)))

	hits, err := s.SimilaritySearch(ctx, []float32{1, 0, 0}, 10, domain.EntityProduct, domain.Filters{})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func testSearchRanking(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	require.NoError(t, s.UpsertProduct(ctx, Product(1, 0, 1, 0)))
	require.NoError(t, s.UpsertProduct(ctx, Product(2, 1, 0, 0)))
	require.NoError(t, s.UpsertProduct(ctx, Product(3, 1, 1, 0)))
	require.NoError(t, s.UpsertProduct(ctx, Product(4, -1, 0, 0)))

	hits, err := s.SimilaritySearch(ctx, []float32{1, 0.2, 0}, 3, domain.EntityProduct, domain.Filters{})
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, int64(2), hits[0].Product.ID)
	assert.Equal(t, int64(3), hits[1].Product.ID)
	assert.Equal(t, int64(1), hits[2].Product.ID)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
	assert.InDelta(t, 0.9806, hits[0].Score, 1e-3)
	assert.Equal(t, domain.EntityProduct, hits[0].Type)
}

func testSearchTieBreak(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	require.NoError(t, s.UpsertProduct(ctx, Product(7, 0, 0, 1)))
	require.NoError(t, s.UpsertProduct(ctx, Product(3, 0, 0, 1)))
	require.NoError(t, s.UpsertChunk(ctx, Chunk("b", 0, 0, 0, 1)))
	require.NoError(t, s.UpsertChunk(ctx, Chunk("a", 1, 0, 0, 1)))

	hits, err := s.SimilaritySearch(ctx, []float32{0, 0, 1}, 2, domain.EntityProduct, domain.Filters{})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(3), hits[0].Product.ID)
	assert.Equal(t, int64(7), hits[1].Product.ID)

	chunks, err := s.SimilaritySearch(ctx, []float32{0, 0, 1}, 2, domain.EntityChunk, domain.Filters{})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "a", chunks[0].Chunk.DocumentID)
	assert.Equal(t, "b", chunks[1].Chunk.DocumentID)
}

func testSearchSkipsUnembedded(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	pending := Product(1)
	pending.State = domain.EmbeddingStale
	require.NoError(t, s.UpsertProduct(ctx, pending))
	require.NoError(t, s.UpsertProduct(ctx, Product(2, 1, 0, 0)))
	require.NoError(t, s.UpsertChunk(ctx, Chunk("d", 0)))

	hits, err := s.SimilaritySearch(ctx, []float32{1, 0, 0}, 5, domain.EntityProduct, domain.Filters{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].Product.ID)

	chunks, err := s.SimilaritySearch(ctx, []float32{1, 0, 0}, 5, domain.EntityChunk, domain.Filters{})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func testSearchFilters(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	shoe := Product(1, 1, 0, 0)
	shoe.Category = "Footwear"
	soldOut := Product(2, 1, 0.1, 0)
	soldOut.Category = "Footwear"
	soldOut.StockQuantity = 0
	hat := Product(3, 1, 0, 0.1)
	hat.Category = "Hats"
	hat.Brand = "Other"
	for _, p := range []domain.Product{shoe, soldOut, hat} {
		require.NoError(t, s.UpsertProduct(ctx, p))
	}
	require.NoError(t, s.UpsertChunk(ctx, Chunk("faq", 0, 1, 0, 0)))
	require.NoError(t, s.UpsertChunk(ctx, Chunk("terms", 0, 1, 0, 0)))

	query := []float32{1, 0, 0}
	hits, err := s.SimilaritySearch(ctx, query, 5, domain.EntityProduct, domain.Filters{Category: "Footwear"})
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = s.SimilaritySearch(ctx, query, 5, domain.EntityProduct,
		domain.Filters{Category: "Footwear", InStockOnly: true})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(1), hits[0].Product.ID)

	hits, err = s.SimilaritySearch(ctx, query, 5, domain.EntityProduct, domain.Filters{Brand: "Other"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(3), hits[0].Product.ID)

	chunks, err := s.SimilaritySearch(ctx, query, 5, domain.EntityChunk, domain.Filters{DocumentID: "terms"})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "terms", chunks[0].Chunk.DocumentID)
}

func testChunkLifecycle(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	first := []domain.DocumentChunk{Chunk("doc", 0, 1, 0, 0), Chunk("doc", 1, 0, 1, 0), Chunk("doc", 2, 0, 0, 1)}
	require.NoError(t, s.ReplaceDocumentChunks(ctx, "doc", first))
	require.NoError(t, s.UpsertChunk(ctx, Chunk("other", 0, 1, 1, 1)))

	got, err := s.ListDocumentChunks(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, c := range got {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, first[i].Text, c.Text)
		assert.Equal(t, first[i].ContextualizedText, c.ContextualizedText)
	}

	second := []domain.DocumentChunk{Chunk("doc", 0, 0, 1, 1)}
	require.NoError(t, s.ReplaceDocumentChunks(ctx, "doc", second))
	got, err = s.ListDocumentChunks(ctx, "doc")
	require.NoError(t, err)
	require.Len(t, got, 1)

	hits, err := s.SimilaritySearch(ctx, []float32{0, 0, 1}, 5, domain.EntityChunk, domain.Filters{DocumentID: "doc"})
	require.NoError(t, err)
	require.Len(t, hits, 1, "replaced chunks must not be searchable")

	require.NoError(t, s.DeleteDocumentChunks(ctx, "doc"))
	got, err = s.ListDocumentChunks(ctx, "doc")
	require.NoError(t, err)
	assert.Empty(t, got)

	other, err := s.ListDocumentChunks(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func testReplaceRejectsGaps(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	require.NoError(t, s.ReplaceDocumentChunks(ctx, "doc", []domain.DocumentChunk{Chunk("doc", 0)}))

	err := s.ReplaceDocumentChunks(ctx, "doc", []domain.DocumentChunk{Chunk("doc", 0), Chunk("doc", 2)})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	got, err := s.ListDocumentChunks(ctx, "doc")
	require.NoError(t, err)
	assert.Len(t, got, 1, "failed replace must leave the old set")
}

func testStaleListing(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	fresh := Product(1, 1, 0, 0)
	edited := Product(2, 0, 1, 0)
	edited.State = domain.EmbeddingStale
	missing := Product(3)
	for _, p := range []domain.Product{fresh, edited, missing} {
		require.NoError(t, s.UpsertProduct(ctx, p))
	}
	require.NoError(t, s.UpsertChunk(ctx, Chunk("d", 0, 1, 0, 0)))
	require.NoError(t, s.UpsertChunk(ctx, Chunk("d", 1)))

	stale, err := s.ListStaleProducts(ctx)
	require.NoError(t, err)
	require.Len(t, stale, 2)
	assert.Equal(t, int64(2), stale[0].ID)
	assert.Equal(t, int64(3), stale[1].ID)

	// An edited product keeps serving its previous embedding until re-embedded.
	hits, err := s.SimilaritySearch(ctx, []float32{0, 1, 0}, 1, domain.EntityProduct, domain.Filters{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(2), hits[0].Product.ID)

	chunks, err := s.ListStaleChunks(ctx)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 1, chunks[0].ChunkIndex)
}

func testSetProductEmbedding(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	p := Product(1)
	p.State = domain.EmbeddingStale
	require.NoError(t, s.UpsertProduct(ctx, p))

	ok, err := s.SetProductEmbedding(ctx, 1, "some older text", []float32{1, 0, 0})
	require.NoError(t, err)
	assert.False(t, ok, "text mismatch must not write")

	ok, err = s.SetProductEmbedding(ctx, 99, p.SerializedText, []float32{1, 0, 0})
	require.NoError(t, err)
	assert.False(t, ok, "missing row must not be created")
	_, err = s.GetProduct(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = s.SetProductEmbedding(ctx, 1, p.SerializedText, []float32{1, 0})
	var dimErr *domain.DimensionMismatchError
	assert.ErrorAs(t, err, &dimErr)

	ok, err = s.SetProductEmbedding(ctx, 1, p.SerializedText, []float32{1, 0, 0})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingFresh, got.State)
	assert.Equal(t, []float32{1, 0, 0}, got.Embedding)
	assert.Equal(t, p.Price, got.Price)
	assert.Equal(t, p.StockQuantity, got.StockQuantity)

	hits, err := s.SimilaritySearch(ctx, []float32{1, 0, 0}, 1, domain.EntityProduct, domain.Filters{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(1), hits[0].Product.ID)
}

func testSetChunkEmbedding(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	c := Chunk("d", 0)
	require.NoError(t, s.ReplaceDocumentChunks(ctx, "d", []domain.DocumentChunk{c}))

	ok, err := s.SetChunkEmbedding(ctx, domain.ChunkRef{DocumentID: "d", ChunkIndex: 1}, c.ContextualizedText, []float32{1, 0, 0})
	require.NoError(t, err)
	assert.False(t, ok, "missing row must not be created")

	ok, err = s.SetChunkEmbedding(ctx, c.Ref(), "replaced text", []float32{1, 0, 0})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.SetChunkEmbedding(ctx, c.Ref(), c.ContextualizedText, []float32{0, 1, 0})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.ListDocumentChunks(ctx, "d")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []float32{0, 1, 0}, got[0].Embedding)
	assert.Equal(t, c.Text, got[0].Text)

	stale, err := s.ListStaleChunks(ctx)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

func testStats(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	require.NoError(t, s.UpsertProduct(ctx, Product(1, 1, 0, 0)))
	require.NoError(t, s.UpsertProduct(ctx, Product(2)))
	require.NoError(t, s.UpsertChunk(ctx, Chunk("a", 0, 1, 0, 0)))
	require.NoError(t, s.UpsertChunk(ctx, Chunk("a", 1)))
	require.NoError(t, s.UpsertChunk(ctx, Chunk("b", 0, 1, 0, 0)))

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.StoreStats{
		Products:      2,
		StaleProducts: 1,
		Chunks:        3,
		StaleChunks:   1,
		Documents:     2,
	}, stats)
}

func testConcurrentUpserts(t *testing.T, s driven.VectorStore) {
	ctx := context.Background()
	const n = 40

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			errs <- s.UpsertProduct(ctx, Product(id, float32(id), 1, 0))
		}(int64(i))
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	all, err := s.ListProducts(ctx)
	require.NoError(t, err)
	assert.Len(t, all, n)
}
