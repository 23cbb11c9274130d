package postprocessors

import (
	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
	"github.com/custodia-labs/shopbot/internal/postprocessors/chunker"
	"github.com/custodia-labs/shopbot/internal/postprocessors/contextualizer"
)

// RegisterDefaults registers all built-in processors with the registry.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
	r.Register("contextualizer", buildContextualizer)
}

// NewDefaultPipeline builds the chunker + contextualizer pipeline for the
// given chunk settings.
func NewDefaultPipeline(settings domain.ChunkerSettings) (*Pipeline, error) {
	r := NewRegistry()
	RegisterDefaults(r)
	return r.BuildPipeline(domain.PipelineConfigFor(settings))
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Tokens owned by each chunk (default: 100)
//   - overlap (int): Tokens repeated from the previous chunk (default: 20)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	if size, ok := getIntFromConfig(cfg, "chunk_size"); ok {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if overlap, ok := getIntFromConfig(cfg, "overlap"); ok {
		opts = append(opts, chunker.WithOverlap(overlap))
	}

	return chunker.New(opts...)
}

// buildContextualizer creates a contextualizer from generic config.
// Supported config keys:
//   - headings (bool): Include the Markdown section path (default: true)
func buildContextualizer(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []contextualizer.Option
	if v, ok := cfg["headings"].(bool); ok {
		opts = append(opts, contextualizer.WithHeadings(v))
	}
	return contextualizer.New(opts...), nil
}

// getIntFromConfig extracts an int from a generic config map.
// Handles int, int64, and float64 types that may come from TOML/JSON parsing.
func getIntFromConfig(cfg map[string]any, key string) (int, bool) {
	val, ok := cfg[key]
	if !ok {
		return 0, false
	}

	switch v := val.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}
