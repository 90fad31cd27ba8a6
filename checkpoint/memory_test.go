package checkpoint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	defer store.Close(ctx)

	require.NoError(t, store.Save(ctx, "tree_000.json", []byte("payload")))
	data, err := store.Load(ctx, "tree_000.json")

	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestMemoryStoreLoadMissing(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Load(context.Background(), "tree_042.json")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, "tree_000.json", []byte("payload")))

	require.NoError(t, store.Delete(ctx, "tree_000.json"))

	_, err := store.Load(ctx, "tree_000.json")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, store.Delete(ctx, "tree_000.json"), "Deleting an absent key should not be an error")
}

func TestMemoryStoreIsolatesPayloads(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	payload := []byte("abc")
	require.NoError(t, store.Save(ctx, "tree_000.json", payload))

	payload[0] = 'x'
	loaded, err := store.Load(ctx, "tree_000.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), loaded, "Mutating the saved slice should not reach the store")

	loaded[0] = 'y'
	again, err := store.Load(ctx, "tree_000.json")
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), again, "Mutating a loaded slice should not reach the store")
}

func TestRecordingMemoryStoreHistory(t *testing.T) {
	ctx := context.Background()
	store := NewRecordingMemoryStore()

	require.NoError(t, store.Save(ctx, "tree_000.json", []byte("one")))
	require.NoError(t, store.Save(ctx, "tree_000.json", []byte("two")))
	require.NoError(t, store.Save(ctx, "tree_001.json", []byte("other")))

	history := store.History("tree_000.json")
	require.Len(t, history, 2, "Every save should be recorded in order")
	assert.Equal(t, []byte("one"), history[0])
	assert.Equal(t, []byte("two"), history[1])

	history[0][0] = 'x'
	assert.Equal(t, []byte("one"), store.History("tree_000.json")[0], "History should hand out copies")

	assert.Empty(t, store.History("tree_042.json"))
}

func TestMemoryStoreHonorsCancelledContext(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, store.Save(ctx, "tree_000.json", []byte("payload")), context.Canceled)
	_, err := store.Load(ctx, "tree_000.json")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Delete(ctx, "tree_000.json"), context.Canceled)
}
