package mcp

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/services"
)

// AskInput is the input schema for the ask tool.
type AskInput struct {
	Question string `json:"question" jsonschema:"the customer question to answer"`
}

// AskOutput is the output schema for the ask tool.
type AskOutput struct {
	Answer string `json:"answer"`

	// Degraded is set when Answer is a fallback message because a
	// backing service failed.
	Degraded bool `json:"degraded,omitempty"`
}

// RetrieveInput is the input schema for the retrieve tool.
type RetrieveInput struct {
	Query       string   `json:"query" jsonschema:"text to search the catalog and documents for"`
	KPerType    int      `json:"k_per_type,omitempty" jsonschema:"hits per entity type (default from settings)"`
	Types       []string `json:"types,omitempty" jsonschema:"entity types to search: product, doc_chunk"`
	Category    string   `json:"category,omitempty" jsonschema:"only products in this category"`
	Brand       string   `json:"brand,omitempty" jsonschema:"only products of this brand"`
	InStockOnly bool     `json:"in_stock_only,omitempty" jsonschema:"only products with stock"`
}

// RetrieveOutput is the output schema for the retrieve tool.
type RetrieveOutput struct {
	Results []RetrieveResultOutput `json:"results"`
	Count   int                    `json:"count"`
}

// RetrieveResultOutput is one ranked hit.
type RetrieveResultOutput struct {
	Type  string  `json:"type"`
	Key   string  `json:"key"`
	Score float64 `json:"score"`
	Title string  `json:"title"`
	Text  string  `json:"text"`

	// InStock is set for products only. Exact quantities are not exposed.
	InStock *bool `json:"in_stock,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "ask",
		Description: "Answer a shopper's question from the product catalog and store documents",
	}, s.handleAsk)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve",
		Description: "Return the catalog products and document passages most similar to a query",
	}, s.handleRetrieve)
}

// handleAsk runs one chat turn. Service failures become the same fallback
// message the other front ends show.
func (s *Server) handleAsk(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AskInput,
) (*mcp.CallToolResult, AskOutput, error) {
	answer, err := s.ports.Chat.Respond(ctx, input.Question)
	if err != nil {
		return nil, AskOutput{Answer: services.FallbackReply(err), Degraded: true}, nil
	}
	return nil, AskOutput{Answer: answer}, nil
}

// handleRetrieve runs retrieval without generation.
func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	opts := domain.RetrieveOptions{
		KPerType: input.KPerType,
		Filters: domain.Filters{
			Category:    input.Category,
			Brand:       input.Brand,
			InStockOnly: input.InStockOnly,
		},
	}
	for _, name := range input.Types {
		t, err := domain.ParseEntityType(name)
		if err != nil {
			return nil, RetrieveOutput{}, err
		}
		opts.Types = append(opts.Types, t)
	}

	result, err := s.ports.Retriever.Retrieve(ctx, input.Query, opts)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	output := RetrieveOutput{
		Results: make([]RetrieveResultOutput, len(result.Items)),
		Count:   len(result.Items),
	}
	for i, item := range result.Items {
		output.Results[i] = toResultOutput(i+1, item)
	}

	return nil, output, nil
}

// toResultOutput renders products the way the chat context does, with a
// stock label instead of the serialized catalog row.
func toResultOutput(pos int, item domain.ScoredEntity) RetrieveResultOutput {
	out := RetrieveResultOutput{
		Type:  item.Type.String(),
		Key:   item.Key(),
		Score: item.Score,
	}
	switch {
	case item.Product != nil:
		inStock := item.Product.InStock()
		out.Title = item.Product.Name
		out.Text = services.FormatEntry(pos, item)
		out.InStock = &inStock
	case item.Chunk != nil:
		out.Title = item.Chunk.DocumentTitle
		out.Text = item.Chunk.Text
	}
	return out
}
