// Package mcp exposes the shop assistant as Model Context Protocol tools so
// other AI clients can ask questions and run retrieval against the catalog.
package mcp

import "errors"

// ErrMissingChatService is returned when the chat service is not provided.
var ErrMissingChatService = errors.New("mcp: chat service is required")

// ErrMissingRetriever is returned when the retriever is not provided.
var ErrMissingRetriever = errors.New("mcp: retriever is required")
