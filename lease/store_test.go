package lease_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/orderlock/lease"
	"github.com/ceyewan/orderlock/testkit"
)

func newTestStore(t *testing.T) (lease.Store, *miniredis.Miniredis) {
	t.Helper()
	conn, mr := testkit.NewMiniredisConnector(t)

	store, err := lease.NewStore(conn, &lease.Config{KeyPrefix: "test:"}, lease.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)

	return store, mr
}

func TestStoreAcquire(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	alice := &lease.Holder{UserID: 1, SessionID: "sess-a"}
	bob := &lease.Holder{UserID: 2, SessionID: "sess-b"}

	won, err := store.Acquire(ctx, "lease:customer:100", alice, time.Minute)
	require.NoError(t, err)
	assert.True(t, won, "first acquire should win")

	won, err = store.Acquire(ctx, "lease:customer:100", bob, time.Minute)
	require.NoError(t, err)
	assert.False(t, won, "second acquire on held key should lose")

	// 不同的键互不影响
	won, err = store.Acquire(ctx, "lease:customer:101", bob, time.Minute)
	require.NoError(t, err)
	assert.True(t, won)
}

func TestStoreAcquireAfterExpiry(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	alice := &lease.Holder{UserID: 1, SessionID: "sess-a"}
	bob := &lease.Holder{UserID: 2, SessionID: "sess-b"}

	won, err := store.Acquire(ctx, "lease:customer:100", alice, time.Minute)
	require.NoError(t, err)
	require.True(t, won)

	mr.FastForward(2 * time.Minute)

	won, err = store.Acquire(ctx, "lease:customer:100", bob, time.Minute)
	require.NoError(t, err)
	assert.True(t, won, "key should be free after TTL expiry")
}

func TestStoreRelease(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	alice := &lease.Holder{UserID: 1, SessionID: "sess-a"}
	bob := &lease.Holder{UserID: 2, SessionID: "sess-b"}

	won, err := store.Acquire(ctx, "lease:customer:100", alice, time.Minute)
	require.NoError(t, err)
	require.True(t, won)

	// 非持有者释放是 no-op，键仍被 alice 持有
	require.NoError(t, store.Release(ctx, "lease:customer:100", bob))
	holder, err := store.Get(ctx, "lease:customer:100")
	require.NoError(t, err)
	require.NotNil(t, holder)
	assert.Equal(t, int64(1), holder.UserID)

	// 持有者释放后键消失
	require.NoError(t, store.Release(ctx, "lease:customer:100", alice))
	holder, err = store.Get(ctx, "lease:customer:100")
	require.NoError(t, err)
	assert.Nil(t, holder)

	// 重复释放仍是 no-op
	require.NoError(t, store.Release(ctx, "lease:customer:100", alice))
}

func TestStoreRefresh(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	alice := &lease.Holder{UserID: 1, SessionID: "sess-a"}
	bob := &lease.Holder{UserID: 2, SessionID: "sess-b"}

	won, err := store.Acquire(ctx, "lease:customer:100", alice, time.Minute)
	require.NoError(t, err)
	require.True(t, won)

	// 非持有者刷新失败
	ok, err := store.Refresh(ctx, "lease:customer:100", bob, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	// 持有者刷新成功，TTL 被重置
	ok, err = store.Refresh(ctx, "lease:customer:100", alice, time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(30 * time.Minute)
	holder, err := store.Get(ctx, "lease:customer:100")
	require.NoError(t, err)
	require.NotNil(t, holder, "key should survive beyond original TTL after refresh")
	assert.Equal(t, "sess-a", holder.SessionID)

	// 键过期后刷新失败
	mr.FastForward(time.Hour)
	ok, err = store.Refresh(ctx, "lease:customer:100", alice, time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreGetMissingKey(t *testing.T) {
	store, _ := newTestStore(t)

	holder, err := store.Get(context.Background(), "lease:customer:999")
	require.NoError(t, err)
	assert.Nil(t, holder)
}

func TestStoreForceSet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	alice := &lease.Holder{UserID: 1, SessionID: "sess-a"}
	bob := &lease.Holder{UserID: 2, SessionID: "sess-b"}

	won, err := store.Acquire(ctx, "lease:customer:100", alice, time.Minute)
	require.NoError(t, err)
	require.True(t, won)

	// ForceSet 无条件覆盖现有持有者
	require.NoError(t, store.ForceSet(ctx, "lease:customer:100", bob, time.Minute))

	holder, err := store.Get(ctx, "lease:customer:100")
	require.NoError(t, err)
	require.NotNil(t, holder)
	assert.Equal(t, int64(2), holder.UserID)
	assert.Equal(t, "sess-b", holder.SessionID)
}
