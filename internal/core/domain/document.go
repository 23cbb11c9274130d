package domain

import (
	"fmt"
	"time"
)

// SourceDocument is a document handed to the chunking pipeline.
type SourceDocument struct {
	// ID is the stable identifier; chunks reference it.
	ID string

	// Title is used in the contextualization header.
	Title string

	// URI records where the content came from.
	URI string

	// Content is the full document text.
	Content string
}

// DocumentChunk is a contiguous span of a larger document.
// Chunks are immutable after creation; re-chunking replaces the full set.
type DocumentChunk struct {
	// DocumentID is the parent SourceDocument ID.
	DocumentID string

	// DocumentTitle is copied from the parent for display.
	DocumentTitle string

	// ChunkIndex is the zero-based position in document order.
	// (DocumentID, ChunkIndex) is the primary key.
	ChunkIndex int

	// Text is the raw chunk text, including the overlap prefix.
	Text string

	// OverlapBytes is the length of the prefix of Text repeated from the
	// previous chunk. Text[OverlapBytes:] is the chunk's own content.
	OverlapBytes int

	// ContextualizedText is the header-enriched text that gets embedded.
	ContextualizedText string

	// TokenCount is the token count of Text.
	TokenCount int

	// ContextualizedTokenCount is the token count of ContextualizedText.
	ContextualizedTokenCount int

	// Embedding is computed over ContextualizedText. Nil until embedded.
	Embedding []float32

	// CreatedAt is when the chunk was produced.
	CreatedAt time.Time
}

// Key returns the display form of the primary key.
func (c *DocumentChunk) Key() string {
	return fmt.Sprintf("%s#%d", c.DocumentID, c.ChunkIndex)
}

// Stale reports whether the chunk still needs an embedding.
func (c *DocumentChunk) Stale() bool {
	return len(c.Embedding) == 0
}

// OwnText returns the chunk text without the overlap prefix.
func (c *DocumentChunk) OwnText() string {
	if c.OverlapBytes <= 0 || c.OverlapBytes > len(c.Text) {
		return c.Text
	}
	return c.Text[c.OverlapBytes:]
}

// ChunkRef identifies a chunk without its payload.
type ChunkRef struct {
	DocumentID string `json:"document_id"`
	ChunkIndex int    `json:"chunk_index"`
}

// String returns "document#index".
func (r ChunkRef) String() string {
	return fmt.Sprintf("%s#%d", r.DocumentID, r.ChunkIndex)
}

// Ref returns the chunk's primary key.
func (c *DocumentChunk) Ref() ChunkRef {
	return ChunkRef{DocumentID: c.DocumentID, ChunkIndex: c.ChunkIndex}
}

// RawDocument is file content before normalisation.
type RawDocument struct {
	URI      string
	MIMEType string
	Content  []byte
	// Title, when set, wins over a title derived from the content.
	Title string
}
