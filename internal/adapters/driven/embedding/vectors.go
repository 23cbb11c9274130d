// Package embedding holds helpers shared by the embedding provider adapters
// in its subpackages.
package embedding

import (
	"context"
	"fmt"

	"github.com/custodia-labs/shopbot/internal/core/domain"
)

// Narrow converts a decoded JSON vector to float32 and checks its length.
func Narrow(raw []float64, want int, model string) ([]float32, error) {
	vec := make([]float32, len(raw))
	for i, v := range raw {
		vec[i] = float32(v)
	}
	if err := domain.CheckDimensions(vec, want, model); err != nil {
		return nil, err
	}
	return vec, nil
}

// CountMismatch reports a provider that answered with the wrong number of
// vectors.
func CountMismatch(provider string, got, want int) error {
	return fmt.Errorf("%w: %s: got %d embeddings for %d inputs",
		domain.ErrEmbeddingService, provider, got, want)
}

// One embeds a single text through a batch call.
func One(ctx context.Context, batch func(context.Context, []string) ([][]float32, error), text string) ([]float32, error) {
	vecs, err := batch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}
