package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
	"github.com/custodia-labs/shopbot/internal/core/ports/driving"
	"github.com/custodia-labs/shopbot/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.Retriever = (*RetrievalService)(nil)

// defaultKPerType applies when neither the call nor the settings set one.
const defaultKPerType = 3

// RetrievalService embeds the query once and merges one similarity search
// per entity type into a single ranked list.
type RetrievalService struct {
	embedder driven.EmbeddingService
	store    driven.VectorStore
	defaults domain.RetrievalSettings
}

// NewRetrievalService creates a new retrieval service. defaults supplies
// KPerType and Types when a call leaves them unset.
func NewRetrievalService(
	embedder driven.EmbeddingService,
	store driven.VectorStore,
	defaults domain.RetrievalSettings,
) *RetrievalService {
	return &RetrievalService{
		embedder: embedder,
		store:    store,
		defaults: defaults,
	}
}

// Retrieve returns the merged hits for query. A blank query returns an
// empty result without calling the embedding service.
func (s *RetrievalService) Retrieve(
	ctx context.Context, query string, opts domain.RetrieveOptions,
) (domain.QueryResult, error) {
	logger.Section("Retrieval")
	logger.Debug("Query: %q", query)

	query = strings.TrimSpace(query)
	result := domain.QueryResult{Query: query, Items: []domain.ScoredEntity{}}
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return result, nil
	}

	if s.embedder == nil {
		return result, domain.ErrEmbeddingUnavailable
	}

	k := s.kPerType(opts)
	types, err := s.entityTypes(opts)
	if err != nil {
		return result, err
	}
	logger.Debug("k per type: %d, types: %v, filters: %+v", k, types, opts.Filters)

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		logger.Warn("Query embedding failed: %v", err)
		return result, fmt.Errorf("embedding query: %w", err)
	}

	for _, t := range types {
		hits, err := s.store.SimilaritySearch(ctx, vec, k, t, opts.Filters)
		if err != nil {
			return result, fmt.Errorf("searching %s: %w", t, err)
		}
		logger.Debug("%s: %d hits", t, len(hits))
		result.Items = append(result.Items, hits...)
	}

	result.Items = domain.SortRanked(result.Items, 0)
	return result, nil
}

func (s *RetrievalService) kPerType(opts domain.RetrieveOptions) int {
	switch {
	case opts.KPerType > 0:
		return opts.KPerType
	case s.defaults.KPerType > 0:
		return s.defaults.KPerType
	default:
		return defaultKPerType
	}
}

// entityTypes resolves the requested types, dropping duplicates.
func (s *RetrievalService) entityTypes(opts domain.RetrieveOptions) ([]domain.EntityType, error) {
	requested := opts.Types
	if len(requested) == 0 {
		requested = s.defaults.Types
	}
	if len(requested) == 0 {
		requested = domain.AllEntityTypes()
	}

	seen := make(map[domain.EntityType]bool, len(requested))
	types := make([]domain.EntityType, 0, len(requested))
	for _, t := range requested {
		if !t.IsValid() {
			return nil, fmt.Errorf("%w: unknown entity type %q", domain.ErrInvalidArgument, t)
		}
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	return types, nil
}
