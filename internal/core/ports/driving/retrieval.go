package driving

import (
	"context"

	"github.com/custodia-labs/shopbot/internal/core/domain"
)

// Retriever embeds a query once and merges per-type similarity searches
// into one ranked result.
type Retriever interface {
	// Retrieve returns at most KPerType hits per requested type, merged and
	// sorted by score descending. An empty corpus yields an empty result.
	Retrieve(ctx context.Context, query string, opts domain.RetrieveOptions) (domain.QueryResult, error)
}

// ContextAssembler renders retrieval hits into a bounded context block.
type ContextAssembler interface {
	// Assemble returns a block of at most tokenBudget tokens. It returns ""
	// only when result is empty or tokenBudget <= 0.
	Assemble(result domain.QueryResult, tokenBudget int) string
}
