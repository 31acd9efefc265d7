package ledgerstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger", "chain.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, loaded, "missing file loads as empty chain")

	payload := []byte(`[{"cycle_id":"cycle_1"}]`)
	require.NoError(t, store.Store(ctx, payload))

	loaded, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, payload, loaded)
}

func TestFileStore_OverwriteReplacesWholeChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chain.json")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Store(ctx, []byte("first")))
	require.NoError(t, store.Store(ctx, []byte("second and longer")))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("second and longer"), loaded)
}

func TestNewFileStore_RequiresPath(t *testing.T) {
	_, err := NewFileStore("")
	require.Error(t, err)
}
