package plaintext

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
)

var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser passes text through unchanged apart from line endings. The
// registry falls back to it for any type without a dedicated normaliser.
type Normaliser struct{}

// New creates a plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes lists the text formats ingested verbatim. Structured
// formats such as JSON and CSV are embedded as written.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{
		"text/plain",
		"text/csv",
		"text/yaml",
		"text/toml",
		"application/json",
		"application/xml",
	}
}

// Priority marks this as the fallback.
func (n *Normaliser) Priority() int {
	return 5
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Normalise strips a UTF-8 byte order mark, applies Fold and trims
// surrounding blank space. Content that is not valid UTF-8 or
// contains NUL bytes is rejected as binary.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.SourceDocument, error) {
	if raw == nil {
		return nil, domain.ErrInvalidArgument
	}

	content := bytes.TrimPrefix(raw.Content, utf8BOM)
	if bytes.IndexByte(content, 0) >= 0 || !utf8.Valid(content) {
		return nil, fmt.Errorf("%w: %s is not a text file", domain.ErrInvalidArgument, raw.URI)
	}

	title := raw.Title
	if title == "" {
		title = TitleFromURI(raw.URI)
	}

	return &domain.SourceDocument{
		ID:      DocumentID(raw.URI),
		Title:   title,
		URI:     raw.URI,
		Content: strings.TrimSpace(Fold(string(content))),
	}, nil
}

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// Fold rewrites CRLF and CR line endings as LF and composes the text to
// Unicode NFC, so "e" plus a combining accent matches a precomposed "é"
// in keyword search.
func Fold(s string) string {
	return norm.NFC.String(lineEndings.Replace(s))
}

// DocumentID is a name-based UUID of uri. Ingesting the same file again
// yields the same id and so replaces the earlier chunks.
func DocumentID(uri string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(uri)).String()
}

// TitleFromURI turns a file name such as "size_guide.txt" into
// "size guide".
func TitleFromURI(uri string) string {
	name := filepath.Base(uri)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.NewReplacer("_", " ", "-", " ").Replace(name)
}
