package normalisers

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
	"github.com/custodia-labs/shopbot/internal/normalisers/docx"
	"github.com/custodia-labs/shopbot/internal/normalisers/html"
	"github.com/custodia-labs/shopbot/internal/normalisers/markdown"
	"github.com/custodia-labs/shopbot/internal/normalisers/plaintext"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

// extensionTypes covers extensions the platform MIME table often lacks.
var extensionTypes = map[string]string{
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".txt":      "text/plain",
	".html":     "text/html",
	".htm":      "text/html",
	".xhtml":    "application/xhtml+xml",
	".docx":     docx.MIMEType,
	".csv":      "text/csv",
	".json":     "application/json",
	".yaml":     "text/yaml",
	".yml":      "text/yaml",
	".toml":     "text/toml",
}

// DetectMIMEType guesses a file's MIME type from its extension.
// Unknown extensions report text/plain.
func DetectMIMEType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if t, ok := extensionTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		if base, _, err := mime.ParseMediaType(t); err == nil {
			return base
		}
		return t
	}
	return "text/plain"
}

// Registry holds normalisers ordered by priority. Documents whose MIME
// type no normaliser claims go to the fallback.
type Registry struct {
	mu          sync.RWMutex
	normalisers []driven.Normaliser
	fallback    driven.Normaliser
}

// NewRegistry creates an empty registry using fallback for unknown types.
func NewRegistry(fallback driven.Normaliser) *Registry {
	return &Registry{fallback: fallback}
}

// NewDefaultRegistry registers every built-in normaliser with the
// plaintext normaliser as fallback.
func NewDefaultRegistry() *Registry {
	text := plaintext.New()
	r := NewRegistry(text)
	r.Register(markdown.New())
	r.Register(html.New())
	r.Register(docx.New())
	r.Register(text)
	return r
}

// Register adds a normaliser. Higher priorities are tried first.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.normalisers = append(r.normalisers, n)
	sort.SliceStable(r.normalisers, func(i, j int) bool {
		return r.normalisers[i].Priority() > r.normalisers[j].Priority()
	})
}

// SupportedMIMETypes returns all registered MIME types, sorted.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var types []string
	for _, n := range r.normalisers {
		for _, t := range n.SupportedMIMETypes() {
			if !seen[t] {
				seen[t] = true
				types = append(types, t)
			}
		}
	}
	sort.Strings(types)
	return types
}

// lookup returns the highest priority normaliser for mimeType.
func (r *Registry) lookup(mimeType string) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, n := range r.normalisers {
		for _, t := range n.SupportedMIMETypes() {
			if strings.EqualFold(t, mimeType) {
				return n
			}
		}
	}
	return r.fallback
}

// Normalise transforms raw with the best matching normaliser.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.SourceDocument, error) {
	if raw == nil {
		return nil, domain.ErrInvalidArgument
	}

	n := r.lookup(raw.MIMEType)
	if n == nil {
		return nil, fmt.Errorf("%w: no normaliser for %q", domain.ErrInvalidArgument, raw.MIMEType)
	}
	return n.Normalise(ctx, raw)
}

// NormaliseFile reads path and normalises it. A non-empty title
// overrides the one derived from the content.
func (r *Registry) NormaliseFile(ctx context.Context, path, title string) (*domain.SourceDocument, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", path, err)
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return r.Normalise(ctx, &domain.RawDocument{
		URI:      abs,
		MIMEType: DetectMIMEType(abs),
		Content:  content,
		Title:    title,
	})
}

// IsSupportedFile reports whether path has an extension with a known
// document type. Directory walks ingest only these files.
func IsSupportedFile(path string) bool {
	_, ok := extensionTypes[strings.ToLower(filepath.Ext(path))]
	return ok
}

// FileDocumentID returns the document id NormaliseFile assigns to path.
func FileDocumentID(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", path, err)
	}
	return plaintext.DocumentID(abs), nil
}
