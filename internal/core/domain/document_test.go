package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDocumentChunk_Key(t *testing.T) {
	c := DocumentChunk{DocumentID: "faq", ChunkIndex: 3}

	assert.Equal(t, "faq#3", c.Key())
	assert.Equal(t, ChunkRef{DocumentID: "faq", ChunkIndex: 3}, c.Ref())
	assert.Equal(t, "faq#3", c.Ref().String())
}

func TestDocumentChunk_Stale(t *testing.T) {
	c := DocumentChunk{DocumentID: "faq"}
	assert.True(t, c.Stale())

	c.Embedding = []float32{}
	assert.True(t, c.Stale(), "an empty vector is not an embedding")

	c.Embedding = []float32{0.1}
	assert.False(t, c.Stale())
}

func TestDocumentChunk_OwnText(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		overlap int
		want    string
	}{
		{"no overlap", "hello world", 0, "hello world"},
		{"with overlap", "world. Next part", 7, "Next part"},
		{"overlap covers everything", "abc", 3, ""},
		{"overlap beyond text", "abc", 10, "abc"},
		{"negative overlap", "abc", -1, "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DocumentChunk{Text: tt.text, OverlapBytes: tt.overlap}
			assert.Equal(t, tt.want, c.OwnText())
		})
	}
}
