package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/shopbot/internal/core/domain"
)

func TestNarrow(t *testing.T) {
	vec, err := Narrow([]float64{0.25, -1}, 2, "m")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.25, -1}, vec)

	_, err = Narrow([]float64{1}, 2, "m")
	var mismatch *domain.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 2, mismatch.Expected)
	assert.Equal(t, 1, mismatch.Got)
}

func TestCountMismatch(t *testing.T) {
	err := CountMismatch("ollama", 1, 3)
	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
	assert.Contains(t, err.Error(), "got 1 embeddings for 3 inputs")
}

func TestOne(t *testing.T) {
	batch := func(_ context.Context, texts []string) ([][]float32, error) {
		assert.Equal(t, []string{"hi"}, texts)
		return [][]float32{{1, 2}}, nil
	}
	vec, err := One(context.Background(), batch, "hi")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)

	boom := errors.New("boom")
	_, err = One(context.Background(), func(context.Context, []string) ([][]float32, error) {
		return nil, boom
	}, "hi")
	assert.ErrorIs(t, err, boom)
}
