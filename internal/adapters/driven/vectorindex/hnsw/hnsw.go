package hnsw

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"sync"

	"github.com/coder/hnsw"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
	"github.com/custodia-labs/shopbot/internal/core/vecmath"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Default graph parameters.
const (
	DefaultM        = 16
	DefaultEfSearch = 64
)

// ErrClosed is returned by every operation after Close.
var ErrClosed = errors.New("hnsw: index is closed")

// Index guards a coder/hnsw graph keyed by entity key. The graph panics on
// dimension mismatches, so every vector is checked before it gets there.
type Index struct {
	mu        sync.Mutex
	dimension int
	efSearch  int
	graph     *hnsw.Graph[string]
	closed    bool
}

// Option configures an Index.
type Option func(*Index)

// WithM sets the maximum neighbour count per node.
func WithM(m int) Option {
	return func(idx *Index) {
		if m >= 2 {
			idx.graph.M = m
		}
	}
}

// WithEfSearch sets the minimum candidate list size used while querying.
func WithEfSearch(ef int) Option {
	return func(idx *Index) {
		if ef > 0 {
			idx.efSearch = ef
		}
	}
}

// WithSeed makes level assignment reproducible.
func WithSeed(seed int64) Option {
	return func(idx *Index) {
		idx.graph.Rng = rand.New(rand.NewSource(seed))
	}
}

// New creates an empty index for vectors of the given dimension.
func New(dimension int, opts ...Option) (*Index, error) {
	if dimension <= 0 {
		return nil, &domain.ConfigError{Field: "embedding.dimensions", Reason: "must be positive"}
	}
	g := hnsw.NewGraph[string]()
	g.Distance = hnsw.CosineDistance
	g.M = DefaultM

	idx := &Index{dimension: dimension, efSearch: DefaultEfSearch, graph: g}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// Add inserts or replaces the vector stored under key.
func (idx *Index) Add(_ context.Context, key string, embedding []float32) error {
	if err := domain.CheckDimensions(embedding, idx.dimension, "index key "+key); err != nil {
		return err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return ErrClosed
	}
	idx.graph.Delete(key)
	idx.graph.Add(hnsw.MakeNode(key, append([]float32(nil), embedding...)))
	return nil
}

// Delete removes a vector from the index. Unknown keys are ignored.
func (idx *Index) Delete(_ context.Context, key string) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return ErrClosed
	}
	idx.graph.Delete(key)
	return nil
}

// Search returns up to k neighbours of query, most similar first. The
// similarity is recomputed exactly for each candidate.
func (idx *Index) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	if err := domain.CheckDimensions(query, idx.dimension, "query"); err != nil {
		return nil, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return nil, ErrClosed
	}
	if k <= 0 || idx.graph.Len() == 0 {
		return nil, nil
	}

	idx.graph.EfSearch = max(idx.efSearch, k)
	nodes := idx.graph.Search(query, k)

	hits := make([]driven.VectorHit, len(nodes))
	for i, n := range nodes {
		hits[i] = driven.VectorHit{Key: n.Key, Similarity: vecmath.Cosine(query, n.Value)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Similarity > hits[j].Similarity })
	return hits, nil
}

// Len returns the number of indexed vectors.
func (idx *Index) Len() int {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.closed {
		return 0
	}
	return idx.graph.Len()
}

// Close drops the graph. Further calls fail with ErrClosed.
func (idx *Index) Close() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.closed = true
	idx.graph = nil
	return nil
}
