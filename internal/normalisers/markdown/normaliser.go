package markdown

import (
	"context"
	"regexp"
	"strings"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
	"github.com/custodia-labs/shopbot/internal/normalisers/plaintext"
)

var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser reduces Markdown to plain prose while keeping ATX heading
// lines, which the chunker turns into section paths.
type Normaliser struct{}

func New() *Normaliser {
	return &Normaliser{}
}

func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/markdown", "text/x-markdown"}
}

// Priority ranks above the plain text fallback.
func (n *Normaliser) Priority() int {
	return 50
}

func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.SourceDocument, error) {
	if raw == nil {
		return nil, domain.ErrInvalidArgument
	}

	source := plaintext.Fold(string(raw.Content))
	title := raw.Title
	if title == "" {
		title = firstHeading(source)
	}
	if title == "" {
		title = plaintext.TitleFromURI(raw.URI)
	}

	return &domain.SourceDocument{
		ID:      plaintext.DocumentID(raw.URI),
		Title:   title,
		URI:     raw.URI,
		Content: stripMarkdown(source),
	}, nil
}

var (
	h1Line     = regexp.MustCompile(`^#[ \t]+(.+?)[ \t#]*$`)
	ruleLine   = regexp.MustCompile(`^[ \t]*([-*_])([ \t]*([-*_])){2,}[ \t]*$`)
	listMarker = regexp.MustCompile(`^[ \t]*(?:[-*+]|\d+\.)[ \t]+`)

	inline = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{regexp.MustCompile(`!\[[^\]]*\]\([^)]+\)`), ""},
		{regexp.MustCompile(`\[([^\]]+)\]\([^)]+\)`), "$1"},
		{regexp.MustCompile("`([^`]+)`"), "$1"},
		{regexp.MustCompile(`(\*\*|__|\*)([^*\n]+?)(\*\*|__|\*)`), "$2"},
	}
)

// firstHeading returns the text of the first level one heading outside a
// code fence.
func firstHeading(source string) string {
	fenced := false
	for line := range strings.Lines(source) {
		line = strings.TrimRight(line, "\n")
		if strings.HasPrefix(line, "```") {
			fenced = !fenced
			continue
		}
		if m := h1Line.FindStringSubmatch(line); m != nil && !fenced {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// stripMarkdown walks the document line by line. Fence markers and
// horizontal rules are dropped, fenced lines are copied verbatim and
// everything else loses block markers and inline formatting. Runs of
// blank lines collapse to one.
func stripMarkdown(source string) string {
	var (
		out    []string
		fenced bool
	)
	for _, line := range strings.Split(source, "\n") {
		switch {
		case strings.HasPrefix(strings.TrimSpace(line), "```"):
			fenced = !fenced
			continue
		case fenced:
		case ruleLine.MatchString(line):
			line = ""
		default:
			if quoted, ok := strings.CutPrefix(line, ">"); ok {
				line = strings.TrimPrefix(quoted, " ")
			}
			line = listMarker.ReplaceAllString(line, "")
			for _, r := range inline {
				line = r.re.ReplaceAllString(line, r.repl)
			}
		}
		if line == "" && (len(out) == 0 || out[len(out)-1] == "") {
			continue
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
