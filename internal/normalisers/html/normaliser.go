package html

import (
	"context"
	"fmt"
	"strings"

	xhtml "golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
	"github.com/custodia-labs/shopbot/internal/normalisers/plaintext"
)

var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles HTML and XHTML pages.
type Normaliser struct{}

// New creates an HTML normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority ranks above the plain text fallback.
func (n *Normaliser) Priority() int {
	return 50
}

// Normalise extracts the readable text of a page. Heading elements become
// "#" lines so section paths survive into the chunk headers.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.SourceDocument, error) {
	if raw == nil {
		return nil, domain.ErrInvalidArgument
	}

	root, err := xhtml.Parse(strings.NewReader(string(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", domain.ErrInvalidArgument, raw.URI, err)
	}

	title := raw.Title
	if title == "" {
		title = pageTitle(root)
	}
	if title == "" {
		title = plaintext.TitleFromURI(raw.URI)
	}

	return &domain.SourceDocument{
		ID:      plaintext.DocumentID(raw.URI),
		Title:   title,
		URI:     raw.URI,
		Content: render(root),
	}, nil
}

// stripHTML renders an HTML fragment as text.
func stripHTML(content string) string {
	root, err := xhtml.Parse(strings.NewReader(content))
	if err != nil {
		return ""
	}
	return render(root)
}

// pageTitle returns the trimmed text of the first <title> element.
func pageTitle(n *xhtml.Node) string {
	if n.Type == xhtml.ElementNode && n.DataAtom == atom.Title {
		return collapse(textOf(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := pageTitle(c); t != "" {
			return t
		}
	}
	return ""
}

// skipped elements contribute no text.
var skipped = map[atom.Atom]bool{
	atom.Head: true, atom.Script: true, atom.Style: true, atom.Noscript: true,
	atom.Svg: true, atom.Template: true, atom.Iframe: true,
}

// blocks start and end a line.
var blocks = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Li: true, atom.Ul: true, atom.Ol: true,
	atom.Tr: true, atom.Table: true, atom.Blockquote: true, atom.Pre: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
	atom.Main: true, atom.Nav: true, atom.Aside: true, atom.Dl: true, atom.Dt: true,
	atom.Dd: true, atom.Figure: true, atom.Figcaption: true, atom.Form: true,
}

var headingLevels = map[atom.Atom]int{
	atom.H1: 1, atom.H2: 2, atom.H3: 3, atom.H4: 4, atom.H5: 5, atom.H6: 6,
}

// textWriter accumulates the current line and the finished ones.
type textWriter struct {
	lines []string
	cur   strings.Builder
}

func (w *textWriter) endLine() {
	if line := collapse(w.cur.String()); line != "" {
		w.lines = append(w.lines, line)
	}
	w.cur.Reset()
}

func (w *textWriter) walk(n *xhtml.Node, pre bool) {
	switch n.Type {
	case xhtml.TextNode:
		if !pre {
			w.cur.WriteString(n.Data)
			return
		}
		parts := strings.Split(n.Data, "\n")
		for i, part := range parts {
			w.cur.WriteString(part)
			if i < len(parts)-1 {
				w.endLine()
			}
		}
		return
	case xhtml.ElementNode:
		if skipped[n.DataAtom] {
			return
		}
		if level, ok := headingLevels[n.DataAtom]; ok {
			w.endLine()
			if text := collapse(textOf(n)); text != "" {
				w.lines = append(w.lines, strings.Repeat("#", level)+" "+text)
			}
			return
		}
		switch n.DataAtom {
		case atom.Br, atom.Hr:
			w.endLine()
			return
		case atom.Td, atom.Th:
			w.cur.WriteByte(' ')
		}
	case xhtml.CommentNode, xhtml.DoctypeNode:
		return
	}

	block := n.Type == xhtml.ElementNode && blocks[n.DataAtom]
	if block {
		w.endLine()
	}
	inPre := pre || n.DataAtom == atom.Pre
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.walk(c, inPre)
	}
	if block {
		w.endLine()
	}
}

func render(root *xhtml.Node) string {
	w := &textWriter{}
	w.walk(root, false)
	w.endLine()
	return strings.Join(w.lines, "\n")
}

// textOf concatenates every text node under n.
func textOf(n *xhtml.Node) string {
	var b strings.Builder
	var visit func(*xhtml.Node)
	visit = func(n *xhtml.Node) {
		if n.Type == xhtml.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			visit(c)
		}
	}
	visit(n)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
