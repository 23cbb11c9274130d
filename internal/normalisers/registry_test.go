package normalisers

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/normalisers/docx"
	"github.com/custodia-labs/shopbot/internal/normalisers/plaintext"
)

// stubNormaliser records calls and echoes a fixed title.
type stubNormaliser struct {
	types    []string
	priority int
	title    string
	calls    int
}

func (s *stubNormaliser) SupportedMIMETypes() []string { return s.types }
func (s *stubNormaliser) Priority() int                { return s.priority }
func (s *stubNormaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.SourceDocument, error) {
	s.calls++
	return &domain.SourceDocument{ID: raw.URI, Title: s.title}, nil
}

func TestDetectMIMEType(t *testing.T) {
	tests := map[string]string{
		"guide.md":       "text/markdown",
		"GUIDE.MARKDOWN": "text/markdown",
		"page.htm":       "text/html",
		"terms.docx":     docx.MIMEType,
		"notes.txt":      "text/plain",
		"noext":          "text/plain",
		"data.yml":       "text/yaml",
	}
	for path, want := range tests {
		assert.Equal(t, want, DetectMIMEType(path), path)
	}
}

func TestRegistry_PriorityWins(t *testing.T) {
	low := &stubNormaliser{types: []string{"text/markdown"}, priority: 10, title: "low"}
	high := &stubNormaliser{types: []string{"text/markdown"}, priority: 60, title: "high"}

	r := NewRegistry(nil)
	r.Register(low)
	r.Register(high)

	doc, err := r.Normalise(context.Background(), &domain.RawDocument{URI: "a.md", MIMEType: "text/markdown"})
	require.NoError(t, err)
	assert.Equal(t, "high", doc.Title)
	assert.Equal(t, 0, low.calls)
}

func TestRegistry_FallbackForUnknownType(t *testing.T) {
	fallback := &stubNormaliser{priority: 1, title: "fallback"}
	r := NewRegistry(fallback)
	r.Register(&stubNormaliser{types: []string{"text/html"}, priority: 50})

	doc, err := r.Normalise(context.Background(), &domain.RawDocument{URI: "x.bin", MIMEType: "application/octet-stream"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", doc.Title)
	assert.Equal(t, 1, fallback.calls)
}

func TestRegistry_NoNormaliser(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Normalise(context.Background(), &domain.RawDocument{MIMEType: "text/plain"})
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = r.Normalise(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestRegistry_SupportedMIMETypes(t *testing.T) {
	types := NewDefaultRegistry().SupportedMIMETypes()

	assert.Contains(t, types, "text/markdown")
	assert.Contains(t, types, "text/html")
	assert.Contains(t, types, docx.MIMEType)
	assert.Contains(t, types, "text/plain")
	assert.IsIncreasing(t, types)
}

func TestRegistry_NormaliseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "returns.md")
	require.NoError(t, os.WriteFile(path, []byte("# Returns\n\nThirty days, no questions asked.\n"), 0o600))

	r := NewDefaultRegistry()

	doc, err := r.NormaliseFile(context.Background(), path, "")
	require.NoError(t, err)
	assert.Equal(t, "Returns", doc.Title)
	assert.Equal(t, path, doc.URI)
	assert.Equal(t, plaintext.DocumentID(path), doc.ID)
	assert.Contains(t, doc.Content, "# Returns")

	doc, err = r.NormaliseFile(context.Background(), path, "Return Policy")
	require.NoError(t, err)
	assert.Equal(t, "Return Policy", doc.Title)
}

func TestRegistry_NormaliseFileMissing(t *testing.T) {
	_, err := NewDefaultRegistry().NormaliseFile(context.Background(), filepath.Join(t.TempDir(), "nope.md"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestIsSupportedFile(t *testing.T) {
	assert.True(t, IsSupportedFile("faq.md"))
	assert.True(t, IsSupportedFile("/docs/Shipping.HTML"))
	assert.True(t, IsSupportedFile("catalog.yaml"))
	assert.False(t, IsSupportedFile("photo.png"))
	assert.False(t, IsSupportedFile("Makefile"))
}

func TestFileDocumentID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "faq.md")

	id, err := FileDocumentID(path)
	require.NoError(t, err)
	assert.Equal(t, plaintext.DocumentID(path), id)
}
