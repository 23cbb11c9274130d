package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
	"github.com/custodia-labs/shopbot/internal/core/ports/driving"
	"github.com/custodia-labs/shopbot/internal/logger"
)

// Ensure CatalogService implements the interface.
var _ driving.CatalogService = (*CatalogService)(nil)

// CatalogService is the only product write path. It keeps serialized text
// and embedding state in step so reconciliation can find stale rows.
type CatalogService struct {
	store driven.VectorStore
	now   func() time.Time
}

// NewCatalogService creates a new catalog service.
func NewCatalogService(store driven.VectorStore) *CatalogService {
	return &CatalogService{store: store, now: time.Now}
}

// SaveProducts validates every product before writing any, recomputes the
// serialized text and keeps a stored embedding only when that text is
// unchanged. It returns how many products are now stale.
func (s *CatalogService) SaveProducts(ctx context.Context, products []domain.Product) (int, error) {
	for i := range products {
		if err := products[i].Validate(); err != nil {
			return 0, err
		}
	}

	stale := 0
	for i := range products {
		p := products[i]
		p.SerializedText = p.BuildSerializedText()
		p.Embedding = nil
		p.State = domain.EmbeddingStale
		p.UpdatedAt = s.now()

		existing, err := s.store.GetProduct(ctx, p.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return stale, fmt.Errorf("loading product %d: %w", p.ID, err)
		case existing.SerializedText == p.SerializedText && !existing.Stale():
			p.Embedding = existing.Embedding
			p.State = domain.EmbeddingFresh
			p.UpdatedAt = existing.UpdatedAt
		}

		if p.State == domain.EmbeddingStale {
			stale++
		}
		if err := s.store.UpsertProduct(ctx, p); err != nil {
			return stale, fmt.Errorf("saving product %d: %w", p.ID, err)
		}
	}

	logger.Info("Saved %d products, %d need embedding", len(products), stale)
	return stale, nil
}

// DeleteProduct hard-deletes a product and its vector.
func (s *CatalogService) DeleteProduct(ctx context.Context, id int64) error {
	if err := s.store.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("deleting product %d: %w", id, err)
	}
	return nil
}

// GetProduct returns one product or domain.ErrNotFound.
func (s *CatalogService) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	return s.store.GetProduct(ctx, id)
}

// ListProducts returns the catalog ordered by ID.
func (s *CatalogService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.store.ListProducts(ctx)
}
