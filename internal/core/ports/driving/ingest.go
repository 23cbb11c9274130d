package driving

import (
	"context"

	"github.com/custodia-labs/shopbot/internal/core/domain"
)

// CatalogService owns the product write path. Every write recomputes the
// serialized text and marks the embedding stale when that text changed.
type CatalogService interface {
	// SaveProducts validates and upserts products. It returns how many
	// became stale.
	SaveProducts(ctx context.Context, products []domain.Product) (int, error)

	// DeleteProduct hard-deletes a product and its vector.
	DeleteProduct(ctx context.Context, id int64) error

	// GetProduct returns one product or domain.ErrNotFound.
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)

	// ListProducts returns the catalog ordered by ID.
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

// IngestService chunks documents and keeps embeddings in step with text.
type IngestService interface {
	// IngestDocument replaces the document's chunk set and embeds it.
	IngestDocument(ctx context.Context, doc domain.SourceDocument) (domain.ReconcileReport, error)

	// DeleteDocument removes every chunk of a document.
	DeleteDocument(ctx context.Context, documentID string) error

	// Reconcile embeds every stale product and chunk.
	Reconcile(ctx context.Context) (domain.ReconcileReport, error)

	// Status summarises the store contents.
	Status(ctx context.Context) (domain.StoreStats, error)
}
