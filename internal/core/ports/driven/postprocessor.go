package driven

import (
	"context"

	"github.com/custodia-labs/shopbot/internal/core/domain"
)

// PostProcessor is one stage of document chunking. The first stage (the
// chunker) receives nil chunks and creates them; later stages such as the
// contextualizer rewrite the chunks they are given.
type PostProcessor interface {
	Name() string
	Process(ctx context.Context, doc *domain.SourceDocument, chunks []domain.DocumentChunk) ([]domain.DocumentChunk, error)
}

// PostProcessorPipeline turns a document into embeddable chunks.
type PostProcessorPipeline interface {
	Process(ctx context.Context, doc *domain.SourceDocument) ([]domain.DocumentChunk, error)
}
