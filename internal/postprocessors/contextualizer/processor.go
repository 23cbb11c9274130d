// Package contextualizer prepends a short header to each chunk so that a
// chunk stays retrievable without its neighbours. The header names the
// document and the Markdown section the chunk starts in.
package contextualizer

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/tokenizer"
)

var headingPattern = regexp.MustCompile(`(?m)^(#{1,6})[ \t]+(.+?)[ \t#]*$`)

// heading is a Markdown heading with the byte offset of its line.
type heading struct {
	offset int
	path   string
}

// Processor fills ContextualizedText and ContextualizedTokenCount.
// It implements the PostProcessor interface.
type Processor struct {
	headings bool
}

// Option configures the contextualizer.
type Option func(*Processor)

// WithHeadings toggles the "Section:" line.
func WithHeadings(enabled bool) Option {
	return func(p *Processor) {
		p.headings = enabled
	}
}

// New creates a contextualizer.
func New(opts ...Option) *Processor {
	p := &Processor{headings: true}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "contextualizer"
}

// Process enriches chunks in place. It is a pure text transform.
func (p *Processor) Process(
	_ context.Context, doc *domain.SourceDocument, chunks []domain.DocumentChunk,
) ([]domain.DocumentChunk, error) {
	var sections []heading
	if p.headings && doc != nil {
		sections = headingPaths(doc.Content)
	}

	// Own texts concatenate to the document, so a running sum gives each
	// chunk's starting offset.
	offset := 0
	for i := range chunks {
		c := &chunks[i]
		header := Header(c.DocumentTitle, sectionAt(sections, offset))
		c.ContextualizedText = header + c.Text
		c.ContextualizedTokenCount = tokenizer.Count(c.ContextualizedText)
		offset += len(c.OwnText())
	}

	return chunks, nil
}

// Header renders the contextualization header. It is empty when both
// title and section are empty.
func Header(title, section string) string {
	var lines []string
	if t := strings.TrimSpace(title); t != "" {
		lines = append(lines, "Document: "+t)
	}
	if section != "" {
		lines = append(lines, "Section: "+section)
	}
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n\n"
}

// headingPaths returns every heading with its full path, e.g.
// "Shipping > Yangon", in document order.
func headingPaths(content string) []heading {
	var out []heading
	var stack []string
	for _, m := range headingPattern.FindAllStringSubmatchIndex(content, -1) {
		level := m[3] - m[2]
		title := strings.TrimSpace(content[m[4]:m[5]])
		if len(stack) >= level {
			stack = stack[:level-1]
		}
		for len(stack) < level-1 {
			stack = append(stack, "")
		}
		stack = append(stack, title)

		parts := make([]string, 0, len(stack))
		for _, s := range stack {
			if s != "" {
				parts = append(parts, s)
			}
		}
		out = append(out, heading{offset: m[0], path: strings.Join(parts, " > ")})
	}
	return out
}

// sectionAt returns the path of the last heading at or before offset.
func sectionAt(sections []heading, offset int) string {
	path := ""
	for _, h := range sections {
		if h.offset > offset {
			break
		}
		path = h.path
	}
	return path
}
