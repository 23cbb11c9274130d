package driven

import "context"

// VectorIndex provides approximate nearest-neighbour candidates.
// In-process stores consult it instead of a full scan and re-score the
// candidates with exact cosine similarity.
type VectorIndex interface {
	// Add inserts or replaces the vector stored under key.
	Add(ctx context.Context, key string, embedding []float32) error

	// Delete removes a vector from the index.
	Delete(ctx context.Context, key string) error

	// Search finds approximately the k nearest neighbours to the query vector.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Len returns the number of indexed vectors.
	Len() int

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// Key is the matched entry.
	Key string

	// Similarity is the cosine similarity score.
	Similarity float64
}
