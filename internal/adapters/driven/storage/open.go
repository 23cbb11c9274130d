// Package storage selects and opens the configured vector store backend.
package storage

import (
	"context"
	"fmt"

	"github.com/custodia-labs/shopbot/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/shopbot/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/shopbot/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/shopbot/internal/adapters/driven/vectorindex/hnsw"
	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
)

// Open returns the store named by settings.Driver, sized to dimensions.
// The caller owns the returned store and must Close it.
func Open(ctx context.Context, settings domain.StoreSettings, dimensions int) (driven.VectorStore, error) {
	switch settings.Driver {
	case domain.StoreMemory:
		var opts []memory.Option
		if settings.Index == domain.IndexHNSW {
			opts = append(opts, memory.WithIndex(HNSWFactory(settings.HNSW)))
		}
		store, err := memory.NewVectorStore(dimensions, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil

	case domain.StoreSQLite, "":
		store, err := sqlite.NewStore(settings.DataDir, dimensions)
		if err != nil {
			return nil, err
		}
		return store, nil

	case domain.StorePostgres:
		var opts []postgres.Option
		if settings.Index == domain.IndexHNSW {
			opts = append(opts, postgres.WithHNSW(settings.HNSW))
		}
		store, err := postgres.NewStore(ctx, settings.DSN, dimensions, opts...)
		if err != nil {
			return nil, err
		}
		return store, nil

	default:
		return nil, &domain.ConfigError{
			Field:  "store.driver",
			Reason: fmt.Sprintf("unknown driver %q", settings.Driver),
		}
	}
}

// HNSWFactory builds in-process graph indexes tuned by settings.
// Zero fields keep the index defaults. EfConstruction only applies to the
// postgres index; the in-process graph has no such knob.
func HNSWFactory(settings domain.HNSWSettings) memory.IndexFactory {
	return func(dimensions int) (driven.VectorIndex, error) {
		var opts []hnsw.Option
		if settings.M > 0 {
			opts = append(opts, hnsw.WithM(settings.M))
		}
		if settings.EfSearch > 0 {
			opts = append(opts, hnsw.WithEfSearch(settings.EfSearch))
		}
		return hnsw.New(dimensions, opts...)
	}
}
