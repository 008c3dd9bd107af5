package libkvstore_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	libkv "github.com/contenox/chatstate/libkvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupValkey(t *testing.T) libkv.KVExecutor {
	t.Helper()
	if testing.Short() {
		t.Skip("requires docker")
	}
	ctx := context.Background()
	addr, _, cleanup, err := libkv.SetupLocalInstance(ctx)
	require.NoError(t, err)
	t.Cleanup(cleanup)

	manager, err := libkv.NewManager(libkv.Config{KVAddr: addr}, 10*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	kv, err := manager.Executor(ctx)
	require.NoError(t, err)
	return kv
}

func TestSystem_ValkeyCRUD(t *testing.T) {
	kv := setupValkey(t)
	ctx := context.Background()

	key := "SWR_USE_FETCH_MESSAGES:s1:t1:session"
	value := json.RawMessage(`[{"id":"m1"}]`)

	require.NoError(t, kv.Set(ctx, key, value))

	got, err := kv.Get(ctx, key)
	require.NoError(t, err)
	assert.JSONEq(t, string(value), string(got))

	exists, err := kv.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, kv.Delete(ctx, key))

	_, err = kv.Get(ctx, key)
	assert.ErrorIs(t, err, libkv.ErrNotFound)

	exists, err = kv.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSystem_ValkeyTTL(t *testing.T) {
	kv := setupValkey(t)
	ctx := context.Background()

	require.NoError(t, kv.SetWithTTL(ctx, "ttlkey", json.RawMessage(`"v"`), time.Second))
	time.Sleep(1500 * time.Millisecond)

	_, err := kv.Get(ctx, "ttlkey")
	assert.ErrorIs(t, err, libkv.ErrNotFound)
}
