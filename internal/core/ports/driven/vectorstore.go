package driven

import (
	"context"

	"github.com/custodia-labs/shopbot/internal/core/domain"
)

// VectorStore persists products and document chunks together with their
// embeddings and answers nearest-neighbour queries.
//
// Contract shared by every backend:
//   - Upserts insert or overwrite by primary key and are atomic per entity.
//     Concurrent upserts of distinct keys are safe; same-key upserts are
//     last-write-wins.
//   - A non-empty embedding whose length differs from Dimensions() fails
//     with *domain.DimensionMismatchError.
//   - Rows without an embedding are stored but never returned by search.
type VectorStore interface {
	// Dimensions returns the configured vector size D.
	Dimensions() int

	// UpsertProduct inserts or overwrites a product by ID.
	UpsertProduct(ctx context.Context, p domain.Product) error

	// GetProduct returns a product or domain.ErrNotFound.
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)

	// DeleteProduct removes a product and its vector. Missing IDs are ignored.
	DeleteProduct(ctx context.Context, id int64) error

	// ListProducts returns all products ordered by ID.
	ListProducts(ctx context.Context) ([]domain.Product, error)

	// UpsertChunk inserts or overwrites a chunk by (DocumentID, ChunkIndex).
	UpsertChunk(ctx context.Context, c domain.DocumentChunk) error

	// ReplaceDocumentChunks atomically deletes every chunk of documentID and
	// inserts chunks, which must belong to that document and carry
	// contiguous zero-based indices.
	ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []domain.DocumentChunk) error

	// ListDocumentChunks returns a document's chunks in index order.
	ListDocumentChunks(ctx context.Context, documentID string) ([]domain.DocumentChunk, error)

	// DeleteDocumentChunks removes every chunk of a document.
	DeleteDocumentChunks(ctx context.Context, documentID string) error

	// SimilaritySearch returns at most k entities of entityType ranked by
	// exact cosine similarity, highest first, ties broken by lowest primary
	// key. k < 1 fails with domain.ErrInvalidArgument. Fewer matching rows
	// than k, including none, is not an error.
	SimilaritySearch(
		ctx context.Context,
		query []float32,
		k int,
		entityType domain.EntityType,
		filters domain.Filters,
	) ([]domain.ScoredEntity, error)

	// ListStaleProducts returns exactly the products whose embedding does
	// not reflect their serialized text, ordered by ID.
	ListStaleProducts(ctx context.Context) ([]domain.Product, error)

	// ListStaleChunks returns chunks without an embedding in primary key order.
	ListStaleChunks(ctx context.Context) ([]domain.DocumentChunk, error)

	// SetProductEmbedding stores vec as the fresh embedding of product id,
	// touching no other column, but only while the row's serialized text
	// still equals serializedText. It reports whether a row was updated.
	SetProductEmbedding(ctx context.Context, id int64, serializedText string, vec []float32) (bool, error)

	// SetChunkEmbedding stores vec on the chunk at ref, but only while the
	// row's contextualized text still equals contextualizedText. It reports
	// whether a row was updated.
	SetChunkEmbedding(ctx context.Context, ref domain.ChunkRef, contextualizedText string, vec []float32) (bool, error)

	// Stats summarises the store contents.
	Stats(ctx context.Context) (domain.StoreStats, error)

	// Close releases resources.
	Close() error
}
