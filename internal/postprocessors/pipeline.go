// Package postprocessors turns source documents into embeddable chunks.
package postprocessors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
	"github.com/custodia-labs/shopbot/internal/logger"
)

var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline runs processors in order. The first stage creates the chunks
// and later stages rewrite them.
type Pipeline struct {
	processors []driven.PostProcessor
}

// NewPipeline creates a pipeline of processors.
func NewPipeline(processors ...driven.PostProcessor) *Pipeline {
	return &Pipeline{processors: processors}
}

// Add appends a stage.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.processors = append(p.processors, processor)
}

// Len returns the number of stages.
func (p *Pipeline) Len() int {
	return len(p.processors)
}

// Process chunks doc. The output must be owned by doc and indexed
// 0..n-1 with no gaps, since re-ingestion replaces chunks by index.
func (p *Pipeline) Process(ctx context.Context, doc *domain.SourceDocument) ([]domain.DocumentChunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", domain.ErrInvalidArgument)
	}

	var chunks []domain.DocumentChunk
	for _, stage := range p.processors {
		out, err := stage.Process(ctx, doc, chunks)
		if err != nil {
			return nil, fmt.Errorf("processor %s: %w", stage.Name(), err)
		}
		logger.Debug("pipeline: %s produced %d chunks for %s", stage.Name(), len(out), doc.ID)
		chunks = out
	}

	if err := checkChunks(doc.ID, chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

func checkChunks(docID string, chunks []domain.DocumentChunk) error {
	for i, c := range chunks {
		switch {
		case c.DocumentID != docID:
			return fmt.Errorf("chunk %d belongs to %q, not %q", i, c.DocumentID, docID)
		case c.ChunkIndex != i:
			return fmt.Errorf("chunk %d of %s has index %d", i, docID, c.ChunkIndex)
		}
	}
	return nil
}
