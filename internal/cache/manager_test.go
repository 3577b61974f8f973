package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	manager, err := NewManager(Config{Addr: mr.Addr()}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func TestNewManager_Unreachable(t *testing.T) {
	_, err := NewManager(Config{Addr: "127.0.0.1:1"}, nil)
	assert.Error(t, err)
}

func TestManager_SetNXAndGet(t *testing.T) {
	_, m := setupTestRedis(t)
	ctx := context.Background()

	ok, err := m.SetNX(ctx, "k", []byte("v1"), 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = m.SetNX(ctx, "k", []byte("v2"), 0)
	require.NoError(t, err)
	assert.False(t, ok)

	val, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v1", string(val))

	exists, err := m.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestManager_GetMiss(t *testing.T) {
	_, m := setupTestRedis(t)

	_, err := m.Get(context.Background(), "missing")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_Keys(t *testing.T) {
	_, m := setupTestRedis(t)
	ctx := context.Background()

	for _, k := range []string{"col:a", "col:b", "other"} {
		_, err := m.SetNX(ctx, k, []byte("x"), 0)
		require.NoError(t, err)
	}

	keys, err := m.Keys(ctx, "col:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"col:a", "col:b"}, keys)
}

func TestManager_Lock(t *testing.T) {
	mr, m := setupTestRedis(t)
	ctx := context.Background()

	token, ok, err := m.TryLock(ctx, "lock:x", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = m.TryLock(ctx, "lock:x", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.ErrorIs(t, m.Unlock(ctx, "lock:x", "wrong"), ErrLockNotHeld)
	require.NoError(t, m.Unlock(ctx, "lock:x", token))
	assert.False(t, mr.Exists("lock:x"))
}

func TestManager_LockExpires(t *testing.T) {
	mr, m := setupTestRedis(t)
	ctx := context.Background()

	_, ok, err := m.TryLock(ctx, "lock:y", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	mr.FastForward(2 * time.Second)

	_, ok, err = m.TryLock(ctx, "lock:y", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestManager_Extend(t *testing.T) {
	mr, m := setupTestRedis(t)
	ctx := context.Background()

	token, ok, err := m.TryLock(ctx, "lock:z", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, m.Extend(ctx, "lock:z", token, time.Minute))
	mr.FastForward(30 * time.Second)
	assert.True(t, mr.Exists("lock:z"))

	assert.ErrorIs(t, m.Extend(ctx, "lock:z", "other", time.Minute), ErrLockNotHeld)
}

func TestManager_Closed(t *testing.T) {
	_, m := setupTestRedis(t)
	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	_, err := m.Get(context.Background(), "k")
	assert.Error(t, err)
	assert.Error(t, m.Ping(context.Background()))
}
