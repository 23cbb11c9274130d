package driven

import "context"

// EmbeddingService generates vector embeddings for semantic search.
// Implementations wrap an external model (Ollama, OpenAI-compatible APIs).
//
// Every vector returned has exactly Dimensions() elements; an adapter that
// receives anything else fails with a *domain.DimensionMismatchError.
// Failures wrap domain.ErrEmbeddingService, and additionally
// domain.ErrTimeout when the context deadline expired.
type EmbeddingService interface {
	// Embed generates a vector embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts.
	// The result has the same length and order as texts so it can be zipped
	// back onto the source entities; identical texts are embedded separately.
	// On failure no partial result is returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size D.
	Dimensions() int

	// ModelName returns the name of the embedding model being used.
	ModelName() string

	// Ping validates the service is reachable without running inference.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
