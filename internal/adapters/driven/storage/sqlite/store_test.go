package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/shopbot/internal/adapters/driven/storage/storetest"
	"github.com/custodia-labs/shopbot/internal/core/domain"
	"github.com/custodia-labs/shopbot/internal/core/ports/driven"
)

// setupTestStore creates a SQLite store in a temporary directory.
func setupTestStore(t *testing.T, dims int) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), dims)
	require.NoError(t, err)
	require.NotNil(t, store)
	return store
}

func TestStore_Contract(t *testing.T) {
	storetest.Run(t, func(t *testing.T, dims int) driven.VectorStore {
		return setupTestStore(t, dims)
	})
}

func TestNewStore_RecordsMigrations(t *testing.T) {
	store := setupTestStore(t, 3)
	defer store.Close()

	var versions []int
	require.NoError(t, store.db.Select(&versions, "SELECT version FROM schema_migrations ORDER BY version"))
	assert.Equal(t, []int{1}, versions)
}

func TestNewStore_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := NewStore(dir, 3)
	require.NoError(t, err)
	require.NoError(t, store.UpsertProduct(ctx, storetest.Product(1, 1, 0, 0)))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir, 3)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetProduct(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0, 0}, got.Embedding)
}

func TestNewStore_RejectsDimensionChange(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore(dir, 3)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	_, err = NewStore(dir, 4)
	var mismatch *domain.DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 3, mismatch.Expected)
	assert.Equal(t, 4, mismatch.Got)
}

func TestNewStore_InvalidDimensions(t *testing.T) {
	_, err := NewStore(t.TempDir(), 0)
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

func TestVectorBlob(t *testing.T) {
	in := vectorBlob{1.5, -2, 0.25}
	raw, err := in.Value()
	require.NoError(t, err)
	assert.Len(t, raw, 12)

	var out vectorBlob
	require.NoError(t, out.Scan(raw))
	assert.Equal(t, in, out)

	require.NoError(t, out.Scan(nil))
	assert.Nil(t, out)

	assert.Error(t, out.Scan([]byte{1, 2, 3}))
	assert.Error(t, out.Scan("text"))

	empty, err := vectorBlob(nil).Value()
	require.NoError(t, err)
	assert.Nil(t, empty)
}
