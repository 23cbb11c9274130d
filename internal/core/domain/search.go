package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// EntityType names a searchable entity table.
type EntityType string

// Searchable entity types.
const (
	// EntityProduct is a catalog product.
	EntityProduct EntityType = "product"

	// EntityChunk is a document chunk.
	EntityChunk EntityType = "doc_chunk"
)

// IsValid returns true if the entity type is recognised.
func (t EntityType) IsValid() bool {
	return t == EntityProduct || t == EntityChunk
}

// String returns the string representation.
func (t EntityType) String() string {
	return string(t)
}

// rank orders entity types when scores tie exactly.
func (t EntityType) rank() int {
	if t == EntityProduct {
		return 0
	}
	return 1
}

// AllEntityTypes returns every searchable entity type.
func AllEntityTypes() []EntityType {
	return []EntityType{EntityProduct, EntityChunk}
}

// ParseEntityType accepts the canonical names plus "chunk" and "products".
func ParseEntityType(s string) (EntityType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "product", "products":
		return EntityProduct, nil
	case "doc_chunk", "chunk", "chunks", "document":
		return EntityChunk, nil
	default:
		return "", fmt.Errorf("%w: unknown entity type %q", ErrInvalidArgument, s)
	}
}

// Filters restricts a similarity search with simple equality predicates.
// Zero values mean "no restriction". Filters that do not apply to an
// entity type are ignored for it.
type Filters struct {
	// Category matches Product.Category exactly.
	Category string

	// Brand matches Product.Brand exactly.
	Brand string

	// InStockOnly keeps products with stock > 0.
	InStockOnly bool

	// DocumentID matches DocumentChunk.DocumentID exactly.
	DocumentID string
}

// MatchProduct reports whether p passes the product filters.
func (f Filters) MatchProduct(p *Product) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.Brand != "" && p.Brand != f.Brand {
		return false
	}
	if f.InStockOnly && !p.InStock() {
		return false
	}
	return true
}

// MatchChunk reports whether c passes the chunk filters.
func (f Filters) MatchChunk(c *DocumentChunk) bool {
	return f.DocumentID == "" || c.DocumentID == f.DocumentID
}

// ScoredEntity is one ranked retrieval hit. Exactly one of Product or
// Chunk is set, matching Type.
type ScoredEntity struct {
	Type    EntityType
	Product *Product
	Chunk   *DocumentChunk

	// Score is the exact cosine similarity to the query vector.
	Score float64
}

// Key returns a display key such as "product:42" or "doc_chunk:doc#3".
func (e ScoredEntity) Key() string {
	switch {
	case e.Product != nil:
		return fmt.Sprintf("%s:%d", EntityProduct, e.Product.ID)
	case e.Chunk != nil:
		return fmt.Sprintf("%s:%s", EntityChunk, e.Chunk.Key())
	default:
		return string(e.Type)
	}
}

// RankBefore reports whether a ranks ahead of b: higher score first, then
// products before chunks, then lowest primary key.
func RankBefore(a, b ScoredEntity) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Type != b.Type {
		return a.Type.rank() < b.Type.rank()
	}
	return KeyLess(a, b)
}

// KeyLess orders two entities of the same type by primary key.
func KeyLess(a, b ScoredEntity) bool {
	switch {
	case a.Product != nil && b.Product != nil:
		return a.Product.ID < b.Product.ID
	case a.Chunk != nil && b.Chunk != nil:
		if a.Chunk.DocumentID != b.Chunk.DocumentID {
			return a.Chunk.DocumentID < b.Chunk.DocumentID
		}
		return a.Chunk.ChunkIndex < b.Chunk.ChunkIndex
	default:
		return false
	}
}

// SortRanked orders items best first using RankBefore and truncates the
// slice to at most limit entries when limit > 0.
func SortRanked(items []ScoredEntity, limit int) []ScoredEntity {
	sort.SliceStable(items, func(i, j int) bool { return RankBefore(items[i], items[j]) })
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

// QueryResult is the ranked output of one retrieval call. It lives for the
// duration of one chat turn and is never persisted.
type QueryResult struct {
	// Query is the text that was embedded.
	Query string

	// Items are ordered best first.
	Items []ScoredEntity
}

// Len returns the number of hits.
func (r QueryResult) Len() int {
	return len(r.Items)
}

// RetrieveOptions configures a retrieval call.
type RetrieveOptions struct {
	// KPerType is the number of hits requested from each entity type.
	KPerType int

	// Types lists the entity types to search. Empty means all.
	Types []EntityType

	// Filters restrict each per-type search.
	Filters Filters
}

// StoreStats summarises vector store contents.
type StoreStats struct {
	Products      int `json:"products"`
	StaleProducts int `json:"stale_products"`
	Chunks        int `json:"chunks"`
	StaleChunks   int `json:"stale_chunks"`
	Documents     int `json:"documents"`
}

// ReconcileReport describes one reconciliation pass.
type ReconcileReport struct {
	// ProductsEmbedded and ChunksEmbedded count rows made fresh by the pass.
	ProductsEmbedded int `json:"products_embedded"`
	ChunksEmbedded   int `json:"chunks_embedded"`

	// StaleProducts and StaleChunks list rows still stale afterwards.
	StaleProducts []int64    `json:"stale_products,omitempty"`
	StaleChunks   []ChunkRef `json:"stale_chunks,omitempty"`

	// Duration is the wall time of the pass.
	Duration time.Duration `json:"duration"`
}

// Remaining returns the number of rows still stale.
func (r *ReconcileReport) Remaining() int {
	return len(r.StaleProducts) + len(r.StaleChunks)
}
