package mcp

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/services"
)

func TestServer_handleAsk(t *testing.T) {
	ctx := context.Background()

	t.Run("returns the answer", func(t *testing.T) {
		chat := &mockChatService{reply: "The Trail Runner is in stock."}
		ports := requiredPorts()
		ports.Chat = chat
		server, err := NewServer(ports)
		require.NoError(t, err)

		_, output, err := server.handleAsk(ctx, nil, AskInput{Question: "do you have trail shoes?"})

		require.NoError(t, err)
		assert.Equal(t, "The Trail Runner is in stock.", output.Answer)
		assert.False(t, output.Degraded)
		assert.Equal(t, []string{"do you have trail shoes?"}, chat.questions)
	})

	t.Run("service failure becomes fallback reply", func(t *testing.T) {
		ports := requiredPorts()
		ports.Chat = &mockChatService{err: fmt.Errorf("generate: %w", domain.ErrTimeout)}
		server, err := NewServer(ports)
		require.NoError(t, err)

		_, output, err := server.handleAsk(ctx, nil, AskInput{Question: "hi"})

		require.NoError(t, err)
		assert.Equal(t, services.ReplyTimeout, output.Answer)
		assert.True(t, output.Degraded)
	})
}

func TestServer_handleRetrieve(t *testing.T) {
	ctx := context.Background()

	t.Run("maps ranked hits", func(t *testing.T) {
		retriever := &mockRetriever{result: domain.QueryResult{Items: []domain.ScoredEntity{
			{
				Type:    domain.EntityProduct,
				Product: &domain.Product{
					ID:             4,
					Name:           "Rain boot",
					Price:          49,
					StockQuantity:  17,
					SerializedText: "id: 4 | name: Rain boot | price: 49.00 | stock_quantity: 17",
				},
				Score:   0.91,
			},
			{
				Type:  domain.EntityChunk,
				Chunk: &domain.DocumentChunk{DocumentID: "faq", DocumentTitle: "FAQ", ChunkIndex: 2, Text: "Returns within 30 days."},
				Score: 0.73,
			},
		}}}
		ports := requiredPorts()
		ports.Retriever = retriever
		server, err := NewServer(ports)
		require.NoError(t, err)

		input := RetrieveInput{Query: "boots", KPerType: 2, Types: []string{"product", "chunk"}, InStockOnly: true}
		_, output, err := server.handleRetrieve(ctx, nil, input)

		require.NoError(t, err)
		require.Equal(t, 2, output.Count)
		product := output.Results[0]
		assert.Equal(t, "product", product.Type)
		assert.Equal(t, "product:4", product.Key)
		assert.InDelta(t, 0.91, product.Score, 1e-9)
		assert.Equal(t, "Rain boot", product.Title)
		assert.Contains(t, product.Text, "Stock: in stock")
		assert.NotContains(t, product.Text, "17", "exact stock quantity must not leak")
		require.NotNil(t, product.InStock)
		assert.True(t, *product.InStock)
		assert.Nil(t, output.Results[1].InStock)
		assert.Equal(t, "doc_chunk:faq#2", output.Results[1].Key)
		assert.Equal(t, "FAQ", output.Results[1].Title)

		assert.Equal(t, 2, retriever.opts.KPerType)
		assert.Equal(t, []domain.EntityType{domain.EntityProduct, domain.EntityChunk}, retriever.opts.Types)
		assert.True(t, retriever.opts.Filters.InStockOnly)
	})

	t.Run("unknown type is rejected", func(t *testing.T) {
		server, err := NewServer(requiredPorts())
		require.NoError(t, err)

		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Query: "x", Types: []string{"orders"}})
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("returns error on retrieval failure", func(t *testing.T) {
		ports := requiredPorts()
		ports.Retriever = &mockRetriever{err: errors.New("embedding down")}
		server, err := NewServer(ports)
		require.NoError(t, err)

		_, _, err = server.handleRetrieve(ctx, nil, RetrieveInput{Query: "x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "embedding down")
	})
}
