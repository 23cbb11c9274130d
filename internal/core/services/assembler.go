package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driving"
	"github.com/custodia-labs/shopbot/internal/tokenizer"
)

// Ensure ContextAssembler implements the interface.
var _ driving.ContextAssembler = (*ContextAssembler)(nil)

// entrySeparator joins entries. It holds no tokens, so the block's token
// count is the sum of its entries' counts.
const entrySeparator = "\n\n"

// ContextAssembler renders ranked hits into a token-bounded context block.
type ContextAssembler struct{}

// NewContextAssembler creates a new context assembler.
func NewContextAssembler() *ContextAssembler {
	return &ContextAssembler{}
}

// Assemble adds entries in rank order until the next one would overflow
// tokenBudget. When the top entry alone is too large it is truncated to
// exactly tokenBudget tokens instead of returning an empty block.
func (a *ContextAssembler) Assemble(result domain.QueryResult, tokenBudget int) string {
	if tokenBudget <= 0 || len(result.Items) == 0 {
		return ""
	}

	entries := make([]string, 0, len(result.Items))
	used := 0
	for i, item := range result.Items {
		entry := FormatEntry(i+1, item)
		n := tokenizer.Count(entry)
		if used+n > tokenBudget {
			if len(entries) == 0 {
				entries = append(entries, tokenizer.Truncate(entry, tokenBudget))
			}
			break
		}
		entries = append(entries, entry)
		used += n
	}
	return strings.Join(entries, entrySeparator)
}

// FormatEntry renders one ranked hit with its 1-based position.
// Products use the structured summary; chunks use their raw text.
func FormatEntry(pos int, item domain.ScoredEntity) string {
	switch {
	case item.Product != nil:
		return formatProduct(pos, item.Product)
	case item.Chunk != nil:
		return formatChunk(pos, item.Chunk)
	default:
		return ""
	}
}

func formatProduct(pos int, p *domain.Product) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%d. **%s**", pos, strings.TrimSpace(p.Name))
	if alt := strings.TrimSpace(p.NameAlt); alt != "" {
		fmt.Fprintf(&b, " (%s)", alt)
	}

	var origin []string
	if p.Category != "" {
		origin = append(origin, "Category: "+p.Category)
	}
	if p.Brand != "" {
		origin = append(origin, "Brand: "+p.Brand)
	}
	if len(origin) > 0 {
		b.WriteString("\n- " + strings.Join(origin, ", "))
	}

	fmt.Fprintf(&b, "\n- Price: $%s, Stock: %s", strconv.FormatFloat(p.Price, 'f', 2, 64), stockLabel(p))

	if d := strings.TrimSpace(p.Description); d != "" {
		b.WriteString("\n- Description: " + d)
	}
	if d := strings.TrimSpace(p.DescriptionAlt); d != "" {
		b.WriteString("\n- Description (alt): " + d)
	}
	return b.String()
}

// stockLabel hides exact quantities from the model.
func stockLabel(p *domain.Product) string {
	if p.InStock() {
		return "in stock"
	}
	return "out of stock"
}

func formatChunk(pos int, c *domain.DocumentChunk) string {
	title := c.DocumentTitle
	if title == "" {
		title = c.DocumentID
	}
	return fmt.Sprintf("%d. [%s] %s", pos, title, strings.TrimSpace(c.Text))
}
