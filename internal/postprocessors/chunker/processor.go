// Package chunker provides a token-based text chunking processor.
package chunker

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/tokenizer"
)

// DefaultChunkSize is the default number of tokens each chunk owns.
const DefaultChunkSize = 100

// DefaultChunkOverlap is the default number of tokens repeated from the
// previous chunk.
const DefaultChunkOverlap = 20

// Processor splits document content into token-bounded chunks.
// It implements the PostProcessor interface.
//
// Chunk i owns tokens [i*size, (i+1)*size) and its text is prefixed with
// the last overlap tokens of chunk i-1. Text boundaries sit on token
// starts, so the own parts of all chunks concatenate to the document.
type Processor struct {
	chunkSize int
	overlap   int
	now       func() time.Time
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the number of tokens each chunk owns.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		p.chunkSize = size
	}
}

// WithOverlap sets the number of tokens repeated from the previous chunk.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		p.overlap = overlap
	}
}

// New creates a chunker. It fails with a *domain.ConfigError unless
// chunk size > overlap >= 0.
func New(opts ...Option) (*Processor, error) {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		now:       time.Now,
	}

	for _, opt := range opts {
		opt(p)
	}

	cfg := domain.ChunkerSettings{ChunkSize: p.chunkSize, Overlap: p.overlap}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return p, nil
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document content into chunks with contiguous
// zero-based indices. Input chunks are ignored. A document without tokens
// produces no chunks.
func (p *Processor) Process(
	ctx context.Context, doc *domain.SourceDocument, _ []domain.DocumentChunk,
) ([]domain.DocumentChunk, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: document is nil", domain.ErrInvalidArgument)
	}

	content := doc.Content
	tokens := tokenizer.Tokenize(content)
	n := len(tokens)
	if n == 0 {
		return nil, nil
	}

	// boundary maps a token position to the byte offset where that token's
	// chunk text begins; the ends of the document are pinned so leading and
	// trailing whitespace is not lost.
	boundary := func(j int) int {
		switch {
		case j <= 0:
			return 0
		case j >= n:
			return len(content)
		default:
			return tokens[j].Start
		}
	}

	created := p.now().UTC()
	chunks := make([]domain.DocumentChunk, 0, n/p.chunkSize+1)

	for index, start := 0, 0; start < n; index, start = index+1, start+p.chunkSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+p.chunkSize, n)
		textStart := max(start-p.overlap, 0)
		from, own, to := boundary(textStart), boundary(start), boundary(end)

		chunks = append(chunks, domain.DocumentChunk{
			DocumentID:    doc.ID,
			DocumentTitle: doc.Title,
			ChunkIndex:    index,
			Text:          content[from:to],
			OverlapBytes:  own - from,
			TokenCount:    end - textStart,
			CreatedAt:     created,
		})
	}

	return chunks, nil
}
