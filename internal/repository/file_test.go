package repository_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sillogic-labs/sillogic/internal/repository"
)

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := repository.NewFileStore(filepath.Join(t.TempDir(), "state", "snapshot.json"))
	defer store.Close()

	data, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, data, "missing snapshot loads as absent, not as an error")

	require.NoError(t, store.Save(ctx, []byte(`{"sessions":[]}`)))
	data, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"sessions":[]}`), data)

	require.NoError(t, store.Save(ctx, []byte(`{"sessions":["v2"]}`)))
	data, err = store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"sessions":["v2"]}`), data)
}

func TestFileStoreClear(t *testing.T) {
	ctx := context.Background()
	store := repository.NewFileStore(filepath.Join(t.TempDir(), "snapshot.json"))

	require.NoError(t, store.Clear(ctx), "clearing an absent snapshot is fine")

	require.NoError(t, store.Save(ctx, []byte("payload")))
	require.NoError(t, store.Clear(ctx))

	data, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestMemoryStoreIsolation(t *testing.T) {
	ctx := context.Background()
	store := repository.NewMemoryStore()

	payload := []byte("original")
	require.NoError(t, store.Save(ctx, payload))
	payload[0] = 'X'

	data, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), data, "the store keeps its own copy")

	data[0] = 'Y'
	again, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), again)
}
