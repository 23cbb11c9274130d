package hnsw

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/vecmath"
)

func randomVectors(n, dim int, seed int64) [][]float32 {
	r := rand.New(rand.NewSource(seed))
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(r.NormFloat64())
		}
		out[i] = v
	}
	return out
}

func TestNew_InvalidDimension(t *testing.T) {
	_, err := New(0)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestIndex_AddSearch(t *testing.T) {
	ctx := context.Background()
	idx, err := New(3, WithSeed(7))
	require.NoError(t, err)

	require.NoError(t, idx.Add(ctx, "x", []float32{1, 0, 0}))
	require.NoError(t, idx.Add(ctx, "y", []float32{0, 1, 0}))
	require.NoError(t, idx.Add(ctx, "xy", []float32{1, 1, 0}))

	hits, err := idx.Search(ctx, []float32{1, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "x", hits[0].Key)
	assert.Equal(t, "xy", hits[1].Key)
	assert.InDelta(t, vecmath.Cosine([]float32{1, 0.1, 0}, []float32{1, 0, 0}), hits[0].Similarity, 1e-9)
}

func TestIndex_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx, err := New(3)
	require.NoError(t, err)

	err = idx.Add(ctx, "bad", []float32{1, 2})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = idx.Search(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestIndex_ReplaceAndDelete(t *testing.T) {
	ctx := context.Background()
	idx, err := New(2)
	require.NoError(t, err)

	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0}))
	require.NoError(t, idx.Add(ctx, "b", []float32{0, 1}))
	require.NoError(t, idx.Add(ctx, "a", []float32{0, 1}))
	assert.Equal(t, 2, idx.Len())

	hits, err := idx.Search(ctx, []float32{1, 0}, 5)
	require.NoError(t, err)
	for _, h := range hits {
		assert.Less(t, h.Similarity, 0.5, "replaced vector must not be returned")
	}

	require.NoError(t, idx.Delete(ctx, "a"))
	require.NoError(t, idx.Delete(ctx, "missing"))
	assert.Equal(t, 1, idx.Len())

	hits, err = idx.Search(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "b", hits[0].Key)
}

func TestIndex_EmptyAndZeroK(t *testing.T) {
	ctx := context.Background()
	idx, err := New(2)
	require.NoError(t, err)

	hits, err := idx.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, idx.Add(ctx, "a", []float32{1, 0}))
	hits, err = idx.Search(ctx, []float32{1, 0}, 0)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestIndex_Recall(t *testing.T) {
	ctx := context.Background()
	const n, dim, k = 600, 16, 10

	vectors := randomVectors(n, dim, 42)
	idx, err := New(dim, WithSeed(1))
	require.NoError(t, err)
	for i, v := range vectors {
		require.NoError(t, idx.Add(ctx, fmt.Sprint(i), v))
	}

	queries := randomVectors(20, dim, 99)
	found, total := 0, 0
	for _, q := range queries {
		type scored struct {
			key string
			sim float64
		}
		exact := make([]scored, n)
		for i, v := range vectors {
			exact[i] = scored{fmt.Sprint(i), vecmath.Cosine(q, v)}
		}
		sort.Slice(exact, func(i, j int) bool { return exact[i].sim > exact[j].sim })

		want := make(map[string]bool, k)
		for _, s := range exact[:k] {
			want[s.key] = true
		}

		hits, err := idx.Search(ctx, q, k)
		require.NoError(t, err)
		for _, h := range hits {
			if want[h.Key] {
				found++
			}
		}
		total += k
	}

	recall := float64(found) / float64(total)
	assert.GreaterOrEqual(t, recall, 0.85, "recall@%d too low", k)
}

func TestIndex_DeleteMost(t *testing.T) {
	ctx := context.Background()
	idx, err := New(4, WithSeed(3))
	require.NoError(t, err)

	vectors := randomVectors(200, 4, 5)
	for i, v := range vectors {
		require.NoError(t, idx.Add(ctx, fmt.Sprint(i), v))
	}
	for i := 0; i < 150; i++ {
		require.NoError(t, idx.Delete(ctx, fmt.Sprint(i)))
	}
	assert.Equal(t, 50, idx.Len())

	hits, err := idx.Search(ctx, vectors[199], 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "199", hits[0].Key)

	hits, err = idx.Search(ctx, vectors[0], 50)
	require.NoError(t, err)
	for _, h := range hits {
		var n int
		_, err := fmt.Sscan(h.Key, &n)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 150, "deleted key %s returned", h.Key)
	}
}

func TestIndex_Closed(t *testing.T) {
	ctx := context.Background()
	idx, err := New(2)
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	assert.ErrorIs(t, idx.Add(ctx, "a", []float32{1, 0}), ErrClosed)
	assert.ErrorIs(t, idx.Delete(ctx, "a"), ErrClosed)
	_, err = idx.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Zero(t, idx.Len())
}
