package mcp

import (
	"github.com/custodia-labs/shopbot/internal/core/ports/driving"
)

// Ports aggregates the driving ports the MCP server calls.
type Ports struct {
	// Chat answers the ask tool.
	Chat driving.ChatService

	// Retriever backs the retrieve tool.
	Retriever driving.Retriever

	// Catalog backs the product resource. Optional.
	Catalog driving.CatalogService

	// Ingest backs the status resource. Optional.
	Ingest driving.IngestService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Chat == nil {
		return ErrMissingChatService
	}
	if p.Retriever == nil {
		return ErrMissingRetriever
	}
	return nil
}
