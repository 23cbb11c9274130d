package docx

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
	"github.com/custodia-labs/shopbot/internal/normalisers/plaintext"
)

// MIMEType is the content type of Word documents.
const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

const (
	documentPart = "word/document.xml"
	corePart     = "docProps/core.xml"
)

var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser reads the body text of Word documents.
type Normaliser struct{}

func New() *Normaliser {
	return &Normaliser{}
}

func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{MIMEType}
}

func (n *Normaliser) Priority() int {
	return 50
}

// Normalise emits one line per paragraph. Paragraphs styled Title or
// HeadingN become "#" lines and table rows are joined with " | ".
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.SourceDocument, error) {
	if raw == nil {
		return nil, domain.ErrInvalidArgument
	}

	archive, err := zip.NewReader(bytes.NewReader(raw.Content), int64(len(raw.Content)))
	if err != nil {
		return nil, fmt.Errorf("%w: %s is not a docx archive: %v", domain.ErrInvalidArgument, raw.URI, err)
	}

	var text string
	part, err := archive.Open(documentPart)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("%w: reading %s: %v", domain.ErrInvalidArgument, documentPart, err)
	default:
		text, err = bodyText(part)
		_ = part.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidArgument, raw.URI, err)
		}
	}

	title := raw.Title
	if title == "" {
		title = coreTitle(archive)
	}
	if title == "" {
		title = plaintext.TitleFromURI(raw.URI)
	}

	return &domain.SourceDocument{
		ID:      plaintext.DocumentID(raw.URI),
		Title:   title,
		URI:     raw.URI,
		Content: plaintext.Fold(text),
	}, nil
}

// headingLevel maps paragraph styles like "Heading2" or "Title" to a level.
func headingLevel(style string) int {
	if strings.EqualFold(style, "Title") {
		return 1
	}
	rest, ok := strings.CutPrefix(strings.ToLower(style), "heading")
	if !ok {
		return 0
	}
	level, err := strconv.Atoi(rest)
	if err != nil || level < 1 || level > 6 {
		return 0
	}
	return level
}

// bodyWriter accumulates output while bodyText streams the document part.
type bodyWriter struct {
	lines []string
	para  strings.Builder
	style string
	cells []string
	inRow bool
}

func (w *bodyWriter) endParagraph() {
	line := strings.TrimSpace(w.para.String())
	w.para.Reset()
	style := w.style
	w.style = ""

	if w.inRow {
		if n := len(w.cells); n > 0 && line != "" {
			w.cells[n-1] = strings.TrimSpace(w.cells[n-1] + " " + line)
		}
		return
	}
	if level := headingLevel(style); level > 0 && line != "" {
		line = strings.Repeat("#", level) + " " + line
	}
	w.lines = append(w.lines, line)
}

func (w *bodyWriter) endRow() {
	w.inRow = false
	if row := strings.Join(w.cells, " | "); strings.Trim(row, " |") != "" {
		w.lines = append(w.lines, row)
	}
	w.cells = w.cells[:0]
}

// bodyText streams WordprocessingML and returns its text. Elements are
// matched by local name so the namespace prefix does not matter.
func bodyText(r io.Reader) (string, error) {
	var (
		w      bodyWriter
		inText bool
	)
	dec := xml.NewDecoder(r)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				w.para.WriteByte('\t')
			case "br", "cr":
				w.para.WriteByte(' ')
			case "pStyle":
				for _, a := range t.Attr {
					if a.Name.Local == "val" {
						w.style = a.Value
					}
				}
			case "tr":
				w.inRow = true
			case "tc":
				w.cells = append(w.cells, "")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				w.endParagraph()
			case "tr":
				w.endRow()
			}
		case xml.CharData:
			if inText {
				w.para.Write(t)
			}
		}
	}
	return strings.TrimSpace(strings.Join(w.lines, "\n")), nil
}

// coreTitle returns dc:title from the package properties, if any.
func coreTitle(archive *zip.Reader) string {
	data, err := fs.ReadFile(archive, corePart)
	if err != nil {
		return ""
	}
	var core struct {
		Title string `xml:"title"`
	}
	if err := xml.Unmarshal(data, &core); err != nil {
		return ""
	}
	return strings.TrimSpace(core.Title)
}
