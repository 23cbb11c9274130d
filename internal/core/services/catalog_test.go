package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/shopbot/internal/core/domain"
)

func TestSaveProducts_NewProductsAreStale(t *testing.T) {
	store := newTestStore(t)
	svc := NewCatalogService(store)

	stale, err := svc.SaveProducts(context.Background(), []domain.Product{
		{ID: 1, Name: "Trail  Runner", Price: 89.9, StockQuantity: 3},
		{ID: 2, Name: "Cap", Price: 10},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, stale)

	p, err := store.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "id: 1 | name: Trail Runner | price: 89.90 | stock_quantity: 3", p.SerializedText)
	assert.True(t, p.Stale())
	assert.False(t, p.UpdatedAt.IsZero())
}

func TestSaveProducts_UnchangedTextKeepsEmbedding(t *testing.T) {
	store := newTestStore(t)
	original := domain.Product{ID: 1, Name: "Trail shoe", Price: 90, StockQuantity: 3}
	seedProduct(t, store, original)
	svc := NewCatalogService(store)

	// Whitespace-only edits serialise identically.
	edited := original
	edited.Name = "  Trail   shoe "
	stale, err := svc.SaveProducts(context.Background(), []domain.Product{edited})
	require.NoError(t, err)
	assert.Zero(t, stale)

	p, err := store.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, domain.EmbeddingFresh, p.State)
	assert.Equal(t, keywordVector(p.SerializedText), p.Embedding)
}

func TestSaveProducts_ChangedFieldMarksStale(t *testing.T) {
	store := newTestStore(t)
	original := domain.Product{ID: 1, Name: "Trail shoe", Price: 90, StockQuantity: 3}
	seedProduct(t, store, original)
	svc := NewCatalogService(store)

	edited := original
	edited.StockQuantity = 0
	stale, err := svc.SaveProducts(context.Background(), []domain.Product{edited})
	require.NoError(t, err)
	assert.Equal(t, 1, stale)

	p, err := store.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, p.Stale())
	assert.Empty(t, p.Embedding)
	assert.Contains(t, p.SerializedText, "stock_quantity: 0")

	staleRows, err := store.ListStaleProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, staleRows, 1)
	assert.Equal(t, int64(1), staleRows[0].ID)
}

func TestSaveProducts_ValidationWritesNothing(t *testing.T) {
	store := newTestStore(t)
	svc := NewCatalogService(store)

	_, err := svc.SaveProducts(context.Background(), []domain.Product{
		{ID: 1, Name: "Good"},
		{ID: 2, Name: ""},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	products, err := store.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestDeleteProduct(t *testing.T) {
	store := newTestStore(t)
	seedProduct(t, store, domain.Product{ID: 1, Name: "Trail shoe"})
	svc := NewCatalogService(store)

	require.NoError(t, svc.DeleteProduct(context.Background(), 1))

	_, err := store.GetProduct(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	hits, err := store.SimilaritySearch(context.Background(), keywordVector("shoe"), 5, domain.EntityProduct, domain.Filters{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestListAndGetProducts(t *testing.T) {
	store := newTestStore(t)
	svc := NewCatalogService(store)

	_, err := svc.SaveProducts(context.Background(), []domain.Product{
		{ID: 7, Name: "Umbrella", Price: 12},
		{ID: 3, Name: "Rain boot", Price: 40, StockQuantity: 2},
	})
	require.NoError(t, err)

	all, err := svc.ListProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, int64(3), all[0].ID)
	assert.Equal(t, int64(7), all[1].ID)

	p, err := svc.GetProduct(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Umbrella", p.Name)

	_, err = svc.GetProduct(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
