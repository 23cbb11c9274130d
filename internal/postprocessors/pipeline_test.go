package postprocessors

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/custodia-labs/shopbot/internal/core/domain"
)

// mockProcessor is a test processor that returns predefined chunks.
type mockProcessor struct {
	name   string
	chunks []domain.DocumentChunk
	err    error
}

func (m *mockProcessor) Name() string {
	return m.name
}

func (m *mockProcessor) Process(
	_ context.Context, _ *domain.SourceDocument, chunks []domain.DocumentChunk,
) ([]domain.DocumentChunk, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.chunks != nil {
		return m.chunks, nil
	}
	return chunks, nil
}

func TestNewPipeline(t *testing.T) {
	p := NewPipeline()
	if p.Len() != 0 {
		t.Errorf("expected 0 processors, got %d", p.Len())
	}
	p.Add(&mockProcessor{name: "test"})
	if p.Len() != 1 {
		t.Errorf("expected 1 processor, got %d", p.Len())
	}
}

func TestPipeline_Process_NilDocument(t *testing.T) {
	_, err := NewPipeline().Process(context.Background(), nil)
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected invalid argument, got %v", err)
	}
}

func TestPipeline_Process_ProcessorError(t *testing.T) {
	boom := errors.New("boom")
	p := NewPipeline(&mockProcessor{name: "broken", err: boom})

	_, err := p.Process(context.Background(), &domain.SourceDocument{ID: "d"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if !strings.Contains(err.Error(), "processor broken") {
		t.Errorf("expected processor name in error, got %v", err)
	}
}

func TestPipeline_Process_RejectsGaps(t *testing.T) {
	p := NewPipeline(&mockProcessor{name: "gappy", chunks: []domain.DocumentChunk{
		{DocumentID: "d", ChunkIndex: 0},
		{DocumentID: "d", ChunkIndex: 2},
	}})

	if _, err := p.Process(context.Background(), &domain.SourceDocument{ID: "d"}); err == nil {
		t.Error("expected error for non-contiguous indices")
	}
}

func TestPipeline_Process_RejectsForeignChunks(t *testing.T) {
	p := NewPipeline(&mockProcessor{name: "foreign", chunks: []domain.DocumentChunk{
		{DocumentID: "other", ChunkIndex: 0},
	}})

	if _, err := p.Process(context.Background(), &domain.SourceDocument{ID: "d"}); err == nil {
		t.Error("expected error for chunk of another document")
	}
}

func TestNewDefaultPipeline(t *testing.T) {
	p, err := NewDefaultPipeline(domain.ChunkerSettings{ChunkSize: 5, Overlap: 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Len() != 2 {
		t.Fatalf("expected 2 processors, got %d", p.Len())
	}

	doc := &domain.SourceDocument{ID: "faq", Title: "FAQ", Content: "# Hours\nWe open daily from nine until six."}
	chunks, err := p.Process(context.Background(), doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(chunks))
	}
	for _, c := range chunks {
		if !strings.HasPrefix(c.ContextualizedText, "Document: FAQ\nSection: Hours\n\n") {
			t.Errorf("missing header: %q", c.ContextualizedText)
		}
		if !strings.HasSuffix(c.ContextualizedText, c.Text) {
			t.Errorf("contextualized text must end with raw text")
		}
	}
}

func TestNewDefaultPipeline_InvalidSettings(t *testing.T) {
	_, err := NewDefaultPipeline(domain.ChunkerSettings{ChunkSize: 10, Overlap: 10})
	if !errors.Is(err, domain.ErrConfiguration) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
