// Package memory provides in-memory implementations of the driven ports.
// They back tests, the "memory" store driver and one-off CLI runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
	"github.com/custodia-labs/shopbot/internal/core/vecmath"
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// oversample widens index candidate lists so filtering still leaves k hits.
const oversample = 4

// IndexFactory creates one approximate index per entity type.
type IndexFactory func(dimensions int) (driven.VectorIndex, error)

// VectorStore keeps products and chunks in maps and searches them by exact
// cosine scan, or by re-scoring candidates from an optional VectorIndex.
type VectorStore struct {
	mu         sync.RWMutex
	dimensions int
	products   map[int64]domain.Product
	chunks     map[domain.ChunkRef]domain.DocumentChunk
	closed     bool

	productIndex driven.VectorIndex
	chunkIndex   driven.VectorIndex
	chunkKeys    map[string]domain.ChunkRef
}

// Option configures a VectorStore.
type Option func(*VectorStore) error

// WithIndex enables approximate candidate search using indexes from factory.
func WithIndex(factory IndexFactory) Option {
	return func(s *VectorStore) error {
		var err error
		if s.productIndex, err = factory(s.dimensions); err != nil {
			return fmt.Errorf("product index: %w", err)
		}
		if s.chunkIndex, err = factory(s.dimensions); err != nil {
			return fmt.Errorf("chunk index: %w", err)
		}
		return nil
	}
}

// NewVectorStore creates an empty store for vectors of the given dimension.
func NewVectorStore(dimensions int, opts ...Option) (*VectorStore, error) {
	if dimensions <= 0 {
		return nil, &domain.ConfigError{Field: "embedding.dimensions", Reason: "must be positive"}
	}
	s := &VectorStore{
		dimensions: dimensions,
		products:   make(map[int64]domain.Product),
		chunks:     make(map[domain.ChunkRef]domain.DocumentChunk),
		chunkKeys:  make(map[string]domain.ChunkRef),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Dimensions returns the configured vector size.
func (s *VectorStore) Dimensions() int {
	return s.dimensions
}

// UpsertProduct inserts or overwrites a product by ID.
func (s *VectorStore) UpsertProduct(ctx context.Context, p domain.Product) error {
	if err := s.checkEmbedding(p.Embedding, fmt.Sprintf("product %d", p.ID)); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStoreClosed
	}

	p = cloneProduct(p)
	if p.State == "" {
		p.State = domain.EmbeddingStale
	}
	key := productKey(p.ID)
	if s.productIndex != nil {
		if err := s.syncIndex(ctx, s.productIndex, key, p.Embedding); err != nil {
			return err
		}
	}
	s.products[p.ID] = p
	return nil
}

// GetProduct returns a copy of the product or domain.ErrNotFound.
func (s *VectorStore) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, domain.ErrStoreClosed
	}
	p, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	p = cloneProduct(p)
	return &p, nil
}

// DeleteProduct removes a product. Missing IDs are ignored.
func (s *VectorStore) DeleteProduct(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	if s.productIndex != nil {
		if err := s.productIndex.Delete(ctx, productKey(id)); err != nil {
			return err
		}
	}
	delete(s.products, id)
	return nil
}

// ListProducts returns all products ordered by ID.
func (s *VectorStore) ListProducts(_ context.Context) ([]domain.Product, error) {
	return s.listProducts(func(*domain.Product) bool { return true })
}

// ListStaleProducts returns products that need re-embedding, ordered by ID.
func (s *VectorStore) ListStaleProducts(_ context.Context) ([]domain.Product, error) {
	return s.listProducts(func(p *domain.Product) bool { return p.Stale() })
}

func (s *VectorStore) listProducts(keep func(*domain.Product) bool) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, domain.ErrStoreClosed
	}
	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if keep(&p) {
			out = append(out, cloneProduct(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpsertChunk inserts or overwrites a chunk by (DocumentID, ChunkIndex).
func (s *VectorStore) UpsertChunk(ctx context.Context, c domain.DocumentChunk) error {
	if err := s.checkEmbedding(c.Embedding, "chunk "+c.Key()); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	return s.putChunk(ctx, c)
}

// putChunk stores c; the caller holds the write lock.
func (s *VectorStore) putChunk(ctx context.Context, c domain.DocumentChunk) error {
	c = cloneChunk(c)
	ref := c.Ref()
	if s.chunkIndex != nil {
		key := ref.String()
		if err := s.syncIndex(ctx, s.chunkIndex, key, c.Embedding); err != nil {
			return err
		}
		s.chunkKeys[key] = ref
	}
	s.chunks[ref] = c
	return nil
}

// ReplaceDocumentChunks swaps a document's chunk set in one critical section.
func (s *VectorStore) ReplaceDocumentChunks(ctx context.Context, documentID string, chunks []domain.DocumentChunk) error {
	for i := range chunks {
		if chunks[i].DocumentID != documentID || chunks[i].ChunkIndex != i {
			return fmt.Errorf("%w: chunk %s out of place in document %s",
				domain.ErrInvalidArgument, chunks[i].Key(), documentID)
		}
		if err := s.checkEmbedding(chunks[i].Embedding, "chunk "+chunks[i].Key()); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	if err := s.deleteChunks(ctx, documentID); err != nil {
		return err
	}
	for _, c := range chunks {
		if err := s.putChunk(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// ListDocumentChunks returns a document's chunks in index order.
func (s *VectorStore) ListDocumentChunks(_ context.Context, documentID string) ([]domain.DocumentChunk, error) {
	return s.listChunks(func(c *domain.DocumentChunk) bool { return c.DocumentID == documentID })
}

// ListStaleChunks returns chunks without an embedding in primary key order.
func (s *VectorStore) ListStaleChunks(_ context.Context) ([]domain.DocumentChunk, error) {
	return s.listChunks(func(c *domain.DocumentChunk) bool { return c.Stale() })
}

func (s *VectorStore) listChunks(keep func(*domain.DocumentChunk) bool) ([]domain.DocumentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, domain.ErrStoreClosed
	}
	var out []domain.DocumentChunk
	for _, c := range s.chunks {
		if keep(&c) {
			out = append(out, cloneChunk(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].ChunkIndex < out[j].ChunkIndex
	})
	return out, nil
}

// DeleteDocumentChunks removes every chunk of a document.
func (s *VectorStore) DeleteDocumentChunks(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	return s.deleteChunks(ctx, documentID)
}

// deleteChunks removes a document's chunks; the caller holds the write lock.
func (s *VectorStore) deleteChunks(ctx context.Context, documentID string) error {
	for ref := range s.chunks {
		if ref.DocumentID != documentID {
			continue
		}
		if s.chunkIndex != nil {
			key := ref.String()
			if err := s.chunkIndex.Delete(ctx, key); err != nil {
				return err
			}
			delete(s.chunkKeys, key)
		}
		delete(s.chunks, ref)
	}
	return nil
}

// SimilaritySearch ranks entities of one type by cosine similarity.
func (s *VectorStore) SimilaritySearch(
	ctx context.Context,
	query []float32,
	k int,
	entityType domain.EntityType,
	filters domain.Filters,
) ([]domain.ScoredEntity, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", domain.ErrInvalidArgument, k)
	}
	if !entityType.IsValid() {
		return nil, fmt.Errorf("%w: unknown entity type %q", domain.ErrInvalidArgument, entityType)
	}
	if err := domain.CheckDimensions(query, s.dimensions, "query"); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, domain.ErrStoreClosed
	}

	index := s.productIndex
	if entityType == domain.EntityChunk {
		index = s.chunkIndex
	}
	if index != nil {
		hits, err := s.indexSearch(ctx, index, query, k, entityType, filters)
		if err != nil {
			return nil, err
		}
		// Fewer than k means filters or approximation dropped rows; scan instead.
		if len(hits) == k {
			return hits, nil
		}
	}
	return s.scan(query, k, entityType, filters), nil
}

// scan scores every embedded row; the caller holds the read lock.
func (s *VectorStore) scan(query []float32, k int, entityType domain.EntityType, filters domain.Filters) []domain.ScoredEntity {
	var items []domain.ScoredEntity
	if entityType == domain.EntityProduct {
		for _, p := range s.products {
			if len(p.Embedding) == 0 || !filters.MatchProduct(&p) {
				continue
			}
			p := cloneProduct(p)
			items = append(items, domain.ScoredEntity{
				Type:    domain.EntityProduct,
				Product: &p,
				Score:   vecmath.Cosine(query, p.Embedding),
			})
		}
	} else {
		for _, c := range s.chunks {
			if len(c.Embedding) == 0 || !filters.MatchChunk(&c) {
				continue
			}
			c := cloneChunk(c)
			items = append(items, domain.ScoredEntity{
				Type:  domain.EntityChunk,
				Chunk: &c,
				Score: vecmath.Cosine(query, c.Embedding),
			})
		}
	}
	return domain.SortRanked(items, k)
}

// indexSearch re-scores index candidates exactly; the caller holds the read lock.
func (s *VectorStore) indexSearch(
	ctx context.Context,
	index driven.VectorIndex,
	query []float32,
	k int,
	entityType domain.EntityType,
	filters domain.Filters,
) ([]domain.ScoredEntity, error) {
	hits, err := index.Search(ctx, query, k*oversample)
	if err != nil {
		return nil, fmt.Errorf("index search: %w", err)
	}

	items := make([]domain.ScoredEntity, 0, len(hits))
	for _, hit := range hits {
		switch entityType {
		case domain.EntityProduct:
			id, err := strconv.ParseInt(hit.Key, 10, 64)
			if err != nil {
				continue
			}
			p, ok := s.products[id]
			if !ok || len(p.Embedding) == 0 || !filters.MatchProduct(&p) {
				continue
			}
			p = cloneProduct(p)
			items = append(items, domain.ScoredEntity{
				Type: domain.EntityProduct, Product: &p, Score: vecmath.Cosine(query, p.Embedding),
			})
		case domain.EntityChunk:
			ref, ok := s.chunkKeys[hit.Key]
			if !ok {
				continue
			}
			c, ok := s.chunks[ref]
			if !ok || len(c.Embedding) == 0 || !filters.MatchChunk(&c) {
				continue
			}
			c = cloneChunk(c)
			items = append(items, domain.ScoredEntity{
				Type: domain.EntityChunk, Chunk: &c, Score: vecmath.Cosine(query, c.Embedding),
			})
		}
	}
	return domain.SortRanked(items, k), nil
}

// SetProductEmbedding marks the product fresh with vec if its serialized
// text is still serializedText.
func (s *VectorStore) SetProductEmbedding(ctx context.Context, id int64, serializedText string, vec []float32) (bool, error) {
	if err := domain.CheckDimensions(vec, s.dimensions, fmt.Sprintf("product %d", id)); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, domain.ErrStoreClosed
	}
	p, ok := s.products[id]
	if !ok || p.SerializedText != serializedText {
		return false, nil
	}
	if s.productIndex != nil {
		if err := s.productIndex.Add(ctx, productKey(id), vec); err != nil {
			return false, err
		}
	}
	p.Embedding = append([]float32(nil), vec...)
	p.State = domain.EmbeddingFresh
	s.products[id] = p
	return true, nil
}

// SetChunkEmbedding stores vec on the chunk if its contextualized text is
// still contextualizedText.
func (s *VectorStore) SetChunkEmbedding(
	ctx context.Context,
	ref domain.ChunkRef,
	contextualizedText string,
	vec []float32,
) (bool, error) {
	if err := domain.CheckDimensions(vec, s.dimensions, "chunk "+ref.String()); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, domain.ErrStoreClosed
	}
	c, ok := s.chunks[ref]
	if !ok || c.ContextualizedText != contextualizedText {
		return false, nil
	}
	c.Embedding = vec
	return true, s.putChunk(ctx, c)
}

// Stats summarises the store contents.
func (s *VectorStore) Stats(_ context.Context) (domain.StoreStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.StoreStats{}, domain.ErrStoreClosed
	}

	stats := domain.StoreStats{Products: len(s.products), Chunks: len(s.chunks)}
	for _, p := range s.products {
		if p.Stale() {
			stats.StaleProducts++
		}
	}
	docs := make(map[string]struct{})
	for ref, c := range s.chunks {
		docs[ref.DocumentID] = struct{}{}
		if c.Stale() {
			stats.StaleChunks++
		}
	}
	stats.Documents = len(docs)
	return stats, nil
}

// Close releases the indexes. Further calls fail with domain.ErrStoreClosed.
func (s *VectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	for _, idx := range []driven.VectorIndex{s.productIndex, s.chunkIndex} {
		if idx != nil {
			_ = idx.Close()
		}
	}
	return nil
}

func (s *VectorStore) checkEmbedding(vec []float32, subject string) error {
	if len(vec) == 0 {
		return nil
	}
	return domain.CheckDimensions(vec, s.dimensions, subject)
}

// syncIndex mirrors an embedding into the index, removing stale entries.
func (s *VectorStore) syncIndex(ctx context.Context, idx driven.VectorIndex, key string, vec []float32) error {
	if len(vec) == 0 {
		return idx.Delete(ctx, key)
	}
	return idx.Add(ctx, key, vec)
}

func productKey(id int64) string {
	return strconv.FormatInt(id, 10)
}

func cloneProduct(p domain.Product) domain.Product {
	if p.Embedding != nil {
		p.Embedding = append([]float32(nil), p.Embedding...)
	}
	return p
}

func cloneChunk(c domain.DocumentChunk) domain.DocumentChunk {
	if c.Embedding != nil {
		c.Embedding = append([]float32(nil), c.Embedding...)
	}
	return c
}
