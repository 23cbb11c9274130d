package chunker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/tokenizer"
)

func words(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("w%d", i)
	}
	return strings.Join(parts, " ")
}

func mustNew(t *testing.T, opts ...Option) *Processor {
	t.Helper()
	p, err := New(opts...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return p
}

func TestNew(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		p := mustNew(t)
		if p.chunkSize != DefaultChunkSize {
			t.Errorf("expected chunkSize %d, got %d", DefaultChunkSize, p.chunkSize)
		}
		if p.overlap != DefaultChunkOverlap {
			t.Errorf("expected overlap %d, got %d", DefaultChunkOverlap, p.overlap)
		}
	})

	t.Run("custom values", func(t *testing.T) {
		p := mustNew(t, WithChunkSize(500), WithOverlap(0))
		if p.chunkSize != 500 || p.overlap != 0 {
			t.Errorf("expected 500/0, got %d/%d", p.chunkSize, p.overlap)
		}
	})

	invalid := []struct {
		name string
		opts []Option
	}{
		{"overlap equals size", []Option{WithChunkSize(10), WithOverlap(10)}},
		{"overlap exceeds size", []Option{WithChunkSize(100), WithOverlap(150)}},
		{"negative overlap", []Option{WithOverlap(-1)}},
		{"zero size", []Option{WithChunkSize(0), WithOverlap(0)}},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts...)
			if !errors.Is(err, domain.ErrConfiguration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestProcessor_Name(t *testing.T) {
	if name := mustNew(t).Name(); name != "chunker" {
		t.Errorf("expected name 'chunker', got '%s'", name)
	}
}

func TestProcessor_Process_EmptyContent(t *testing.T) {
	p := mustNew(t)

	for _, content := range []string{"", "   \n\t"} {
		chunks, err := p.Process(context.Background(), &domain.SourceDocument{ID: "d", Content: content}, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(chunks) != 0 {
			t.Errorf("expected 0 chunks for %q, got %d", content, len(chunks))
		}
	}
}

func TestProcessor_Process_NilDocument(t *testing.T) {
	_, err := mustNew(t).Process(context.Background(), nil, nil)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

func TestProcessor_Process_SmallContent(t *testing.T) {
	p := mustNew(t, WithChunkSize(100), WithOverlap(20))
	doc := &domain.SourceDocument{ID: "test-doc", Title: "About", Content: "This is a small piece of content."}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk for small content, got %d", len(chunks))
	}

	c := chunks[0]
	if c.DocumentID != doc.ID || c.DocumentTitle != "About" {
		t.Errorf("expected document fields copied, got %q/%q", c.DocumentID, c.DocumentTitle)
	}
	if c.Text != doc.Content {
		t.Errorf("expected content to match document content")
	}
	if c.ChunkIndex != 0 || c.OverlapBytes != 0 {
		t.Errorf("expected index 0 without overlap, got %d/%d", c.ChunkIndex, c.OverlapBytes)
	}
	if c.TokenCount != 8 {
		t.Errorf("expected 8 tokens, got %d", c.TokenCount)
	}
}

// 250 tokens, size 100, overlap 20: three chunks owning 100/100/50 tokens,
// each later chunk opening with its predecessor's last 20 tokens.
func TestProcessor_Process_SizeAndOverlapScenario(t *testing.T) {
	p := mustNew(t, WithChunkSize(100), WithOverlap(20))
	doc := &domain.SourceDocument{ID: "doc", Content: words(250)}

	chunks, err := p.Process(context.Background(), doc, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}

	wantOwn := []int{100, 100, 50}
	for i, c := range chunks {
		if own := tokenizer.Count(c.OwnText()); own != wantOwn[i] {
			t.Errorf("chunk %d: expected %d own tokens, got %d", i, wantOwn[i], own)
		}
		if got := tokenizer.Count(c.Text); got != c.TokenCount {
			t.Errorf("chunk %d: TokenCount %d disagrees with text (%d)", i, c.TokenCount, got)
		}
	}

	for i := 1; i < len(chunks); i++ {
		prev := tokenizer.Tokenize(chunks[i-1].Text)
		cur := tokenizer.Tokenize(chunks[i].Text)
		for j := 0; j < 20; j++ {
			if cur[j].Text != prev[len(prev)-20+j].Text {
				t.Fatalf("chunk %d token %d: expected %q, got %q", i, j, prev[len(prev)-20+j].Text, cur[j].Text)
			}
		}
	}
}

func TestProcessor_Process_Reconstructs(t *testing.T) {
	docs := []string{
		words(250),
		"  leading space, trailing space  ",
		"# Shop\n\nWe open at 9am.\n\n## Returns\nReturns within 30 days!  Keep the receipt.\n",
		"ဆိုင် ဖွင့်ချိန် နံနက် ၉ နာရီ။ Delivery in Yangon.",
		strings.Repeat("word, ", 97),
	}

	configs := [][2]int{{100, 20}, {7, 3}, {1, 0}, {5, 4}}

	for _, content := range docs {
		for _, cfg := range configs {
			p := mustNew(t, WithChunkSize(cfg[0]), WithOverlap(cfg[1]))
			chunks, err := p.Process(context.Background(), &domain.SourceDocument{ID: "d", Content: content}, nil)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var sb strings.Builder
			for i, c := range chunks {
				if c.ChunkIndex != i {
					t.Errorf("expected index %d, got %d", i, c.ChunkIndex)
				}
				sb.WriteString(c.OwnText())
			}
			if sb.String() != content {
				t.Errorf("size %d overlap %d: reconstruction mismatch\nwant %q\ngot  %q", cfg[0], cfg[1], content, sb.String())
			}
		}
	}
}

func TestProcessor_Process_ExactChunkSize(t *testing.T) {
	p := mustNew(t, WithChunkSize(50), WithOverlap(0))

	chunks, err := p.Process(context.Background(), &domain.SourceDocument{ID: "d", Content: words(100)}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) != 2 {
		t.Errorf("expected 2 chunks, got %d", len(chunks))
	}
}

func TestProcessor_Process_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := mustNew(t).Process(ctx, &domain.SourceDocument{ID: "d", Content: "a b c"}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
