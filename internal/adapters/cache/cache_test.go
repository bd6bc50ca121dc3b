package cache_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urbangroup/botflow/internal/adapters/cache"
	"github.com/urbangroup/botflow/internal/adapters/memory"
	"github.com/urbangroup/botflow/pkg/ports"
	"github.com/urbangroup/botflow/pkg/script"
)

// countingStore counts Get calls against the backing store.
type countingStore struct {
	ports.ScriptStore
	mu   sync.Mutex
	gets int
}

func (c *countingStore) Get(ctx context.Context, id string) (*script.Script, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.ScriptStore.Get(ctx, id)
}

func TestCachedScriptStore_Contract(t *testing.T) {
	ports.RunScriptStoreContract(t, cache.NewScriptStore(memory.NewScriptStore()))
}

func TestCachedScriptStore_ReadThrough(t *testing.T) {
	backing := &countingStore{ScriptStore: memory.NewScriptStore()}
	store := cache.NewScriptStore(backing)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &script.Script{ID: "M10010", Name: "Troubleshoot"}))

	for i := 0; i < 5; i++ {
		_, err := store.Get(ctx, "M10010")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, backing.gets, "repeated reads should be served from cache")
}

func TestCachedScriptStore_PutInvalidates(t *testing.T) {
	backing := &countingStore{ScriptStore: memory.NewScriptStore()}
	store := cache.NewScriptStore(backing)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &script.Script{ID: "M10010", Name: "v1"}))
	_, err := store.Get(ctx, "M10010")
	require.NoError(t, err)

	require.NoError(t, store.Put(ctx, &script.Script{ID: "M10010", Name: "v2"}))
	got, err := store.Get(ctx, "M10010")
	require.NoError(t, err)
	assert.Equal(t, "v2", got.Name)
}

func TestCachedScriptStore_DeleteInvalidates(t *testing.T) {
	store := cache.NewScriptStore(memory.NewScriptStore())
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, &script.Script{ID: "M10010"}))
	_, err := store.Get(ctx, "M10010")
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "M10010"))
	_, err = store.Get(ctx, "M10010")
	assert.ErrorIs(t, err, script.ErrScriptNotFound)
}
