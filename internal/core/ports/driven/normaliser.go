package driven

import (
	"context"

	"github.com/custodia-labs/shopbot/internal/core/domain"
)

// Normaliser converts one family of file formats to plain document text.
// Headings survive as "#" lines so chunk contextualization can build
// section paths from them.
type Normaliser interface {
	SupportedMIMETypes() []string

	// Priority breaks ties when two normalisers claim a MIME type.
	// Format-specific normalisers use 50-89, the plain text fallback 1-9.
	Priority() int

	Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.SourceDocument, error)
}

// NormaliserRegistry dispatches a raw document to the best normaliser for
// its MIME type, falling back to plain text.
type NormaliserRegistry interface {
	Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.SourceDocument, error)
	Register(normaliser Normaliser)
	SupportedMIMETypes() []string
}
