package lease_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/orderlock/lease"
	"github.com/ceyewan/orderlock/testkit"
	"github.com/ceyewan/orderlock/xerrors"
)

// stubChecker 只认预先注册的订单
type stubChecker struct {
	orders map[string]bool
}

func newStubChecker(orderType lease.OrderType, ids ...int64) *stubChecker {
	c := &stubChecker{orders: make(map[string]bool)}
	for _, id := range ids {
		c.orders[fmt.Sprintf("%s:%d", orderType, id)] = true
	}
	return c
}

func (c *stubChecker) Exists(ctx context.Context, orderType lease.OrderType, orderID int64) (bool, error) {
	return c.orders[fmt.Sprintf("%s:%d", orderType, orderID)], nil
}

// stubResolver 固定用户名表，未命中时回退为数字 ID
type stubResolver struct {
	names map[int64]string
}

func (r *stubResolver) ResolveDisplayName(ctx context.Context, userID int64) string {
	if name, ok := r.names[userID]; ok {
		return name
	}
	return fmt.Sprintf("%d", userID)
}

// recordingNotifier 记录收到的事件
type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Notify(ctx context.Context, event string, payload any) {
	n.events = append(n.events, event)
}

// failingRepo 包装真实持久层，让 Upsert 固定失败，用于验证补偿路径
type failingRepo struct {
	lease.Repository
}

func (r *failingRepo) Upsert(ctx context.Context, l *lease.Lease) error {
	return lease.ErrStoreUnavailable
}

type coordinatorEnv struct {
	coordinator lease.Coordinator
	store       lease.Store
	repo        lease.Repository
	mr          *miniredis.Miniredis
	notifier    *recordingNotifier
}

func newCoordinatorEnv(t *testing.T, checker lease.OrderChecker) *coordinatorEnv {
	t.Helper()

	conn, mr := testkit.NewMiniredisConnector(t)
	cfg := &lease.Config{TTL: 300 * time.Second, KeyPrefix: "test:"}

	store, err := lease.NewStore(conn, cfg, lease.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)

	database := testkit.NewSQLiteDatabase(t, &lease.Lease{})
	repo, err := lease.NewRepository(database)
	require.NoError(t, err)

	notifier := &recordingNotifier{}
	resolver := &stubResolver{names: map[int64]string{1: "Alice", 2: "Bob"}}

	coordinator, err := lease.NewCoordinator(store, repo, checker, cfg,
		lease.WithLogger(testkit.NewLogger()),
		lease.WithNotifier(notifier),
		lease.WithNameResolver(resolver))
	require.NoError(t, err)

	return &coordinatorEnv{
		coordinator: coordinator,
		store:       store,
		repo:        repo,
		mr:          mr,
		notifier:    notifier,
	}
}

func TestCoordinatorAcquire(t *testing.T) {
	env := newCoordinatorEnv(t, newStubChecker(lease.OrderTypeCustomer, 100))
	ctx := context.Background()

	before := time.Now()
	got, err := env.coordinator.Acquire(ctx, 1, lease.OrderTypeCustomer, 100, "sess-a")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, lease.OrderTypeCustomer, got.OrderType)
	assert.Equal(t, int64(100), got.OrderID)
	assert.Equal(t, int64(1), got.HolderUserID)
	assert.Equal(t, "sess-a", got.HolderSessionID)
	assert.Equal(t, "Alice", got.HolderDisplayName)
	assert.NotEmpty(t, got.ID)

	// 过期点落在 now+TTL 附近
	assert.True(t, got.ExpiresAt.After(before.Add(299*time.Second)))
	assert.True(t, got.ExpiresAt.Before(before.Add(301*time.Second)))

	// 快路径与持久层都已落盘
	holder, err := env.store.Get(ctx, "lease:customer:100")
	require.NoError(t, err)
	require.NotNil(t, holder)
	assert.Equal(t, int64(1), holder.UserID)

	row, err := env.repo.FindActive(ctx, lease.OrderTypeCustomer, 100, time.Now())
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, got.ID, row.ID)

	assert.Equal(t, []string{lease.EventLockAcquired}, env.notifier.events)
}

func TestCoordinatorAcquireOrderNotFound(t *testing.T) {
	env := newCoordinatorEnv(t, newStubChecker(lease.OrderTypeCustomer, 100))
	ctx := context.Background()

	_, err := env.coordinator.Acquire(ctx, 1, lease.OrderTypeCustomer, 999, "sess-a")
	require.Error(t, err)
	assert.ErrorIs(t, err, lease.ErrOrderNotFound)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)

	// 订单类型不匹配同样视为不存在
	_, err = env.coordinator.Acquire(ctx, 1, lease.OrderTypeInternal, 100, "sess-a")
	assert.ErrorIs(t, err, lease.ErrOrderNotFound)
}

func TestCoordinatorAcquireConflict(t *testing.T) {
	env := newCoordinatorEnv(t, newStubChecker(lease.OrderTypeCustomer, 100))
	ctx := context.Background()

	_, err := env.coordinator.Acquire(ctx, 1, lease.OrderTypeCustomer, 100, "sess-a")
	require.NoError(t, err)

	_, err = env.coordinator.Acquire(ctx, 2, lease.OrderTypeCustomer, 100, "sess-b")
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrConflict)

	var conflict *lease.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(1), conflict.HolderUserID)
	assert.Equal(t, "sess-a", conflict.HolderSessionID)
	assert.Equal(t, "Alice", conflict.HolderDisplayName)

	// 持有者重复获取同样是冲突
	_, err = env.coordinator.Acquire(ctx, 1, lease.OrderTypeCustomer, 100, "sess-a2")
	assert.ErrorIs(t, err, xerrors.ErrConflict)
}

func TestCoordinatorReleaseAndReacquire(t *testing.T) {
	env := newCoordinatorEnv(t, newStubChecker(lease.OrderTypeCustomer, 100))
	ctx := context.Background()

	_, err := env.coordinator.Acquire(ctx, 1, lease.OrderTypeCustomer, 100, "sess-a")
	require.NoError(t, err)

	// 非持有者释放返回 NotFound，锁仍在
	err = env.coordinator.Release(ctx, 2, 100)
	assert.ErrorIs(t, err, lease.ErrLeaseNotFound)
	_, err = env.coordinator.Acquire(ctx, 2, lease.OrderTypeCustomer, 100, "sess-b")
	assert.ErrorIs(t, err, xerrors.ErrConflict)

	// 持有者释放成功
	require.NoError(t, env.coordinator.Release(ctx, 1, 100))
	assert.Contains(t, env.notifier.events, lease.EventLockReleased)

	// 重复释放返回 NotFound
	err = env.coordinator.Release(ctx, 1, 100)
	assert.ErrorIs(t, err, lease.ErrLeaseNotFound)

	// 释放后他人可立即获取
	got, err := env.coordinator.Acquire(ctx, 2, lease.OrderTypeCustomer, 100, "sess-b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.HolderUserID)
}

func TestCoordinatorRenew(t *testing.T) {
	env := newCoordinatorEnv(t, newStubChecker(lease.OrderTypeCustomer, 100))
	ctx := context.Background()

	acquired, err := env.coordinator.Acquire(ctx, 1, lease.OrderTypeCustomer, 100, "sess-a")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	renewed, err := env.coordinator.Renew(ctx, 1, 100)
	require.NoError(t, err)
	require.NotNil(t, renewed)

	// 新过期点从续约时刻起算，严格晚于旧值
	assert.True(t, renewed.ExpiresAt.After(acquired.ExpiresAt))
	assert.Equal(t, acquired.ID, renewed.ID)
	assert.Equal(t, "Alice", renewed.HolderDisplayName)

	// 持久层同步更新
	row, err := env.repo.FindByOrder(ctx, lease.OrderTypeCustomer, 100)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.WithinDuration(t, renewed.ExpiresAt, row.ExpiresAt, time.Second)

	// 非持有者续约返回 NotFound
	_, err = env.coordinator.Renew(ctx, 2, 100)
	assert.ErrorIs(t, err, lease.ErrLeaseNotFound)

	// 释放后续约返回 NotFound
	require.NoError(t, env.coordinator.Release(ctx, 1, 100))
	_, err = env.coordinator.Renew(ctx, 1, 100)
	assert.ErrorIs(t, err, lease.ErrLeaseNotFound)
}

func TestCoordinatorRenewRebuildsLostFastPath(t *testing.T) {
	env := newCoordinatorEnv(t, newStubChecker(lease.OrderTypeCustomer, 100))
	ctx := context.Background()

	_, err := env.coordinator.Acquire(ctx, 1, lease.OrderTypeCustomer, 100, "sess-a")
	require.NoError(t, err)

	// 模拟 Redis 重启丢键
	env.mr.FlushAll()

	renewed, err := env.coordinator.Renew(ctx, 1, 100)
	require.NoError(t, err)
	require.NotNil(t, renewed)

	// 快路径键被重建
	holder, err := env.store.Get(ctx, "lease:customer:100")
	require.NoError(t, err)
	require.NotNil(t, holder)
	assert.Equal(t, int64(1), holder.UserID)
}

func TestCoordinatorRenewExpiredLease(t *testing.T) {
	env := newCoordinatorEnv(t, newStubChecker(lease.OrderTypeCustomer, 100))
	ctx := context.Background()

	// 过期未清理的行：对读路径已是未锁定状态
	expired := &lease.Lease{
		ID:              uuid.NewString(),
		OrderType:       lease.OrderTypeCustomer,
		OrderID:         100,
		HolderUserID:    1,
		HolderSessionID: "sess-a",
		AcquiredAt:      time.Now().Add(-time.Hour),
		ExpiresAt:       time.Now().Add(-30 * time.Minute),
		LastActivityAt:  time.Now().Add(-time.Hour),
	}
	require.NoError(t, env.repo.Upsert(ctx, expired))

	status, err := env.coordinator.Status(ctx, lease.OrderTypeCustomer, 100)
	require.NoError(t, err)
	require.Nil(t, status)

	// 过期租约不能通过续约复活
	_, err = env.coordinator.Renew(ctx, 1, 100)
	assert.ErrorIs(t, err, lease.ErrLeaseNotFound)

	// 订单对新的获取者开放
	got, err := env.coordinator.Acquire(ctx, 2, lease.OrderTypeCustomer, 100, "sess-b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.HolderUserID)
}

func TestCoordinatorRenewDoesNotClobberNewHolder(t *testing.T) {
	env := newCoordinatorEnv(t, newStubChecker(lease.OrderTypeCustomer, 100))
	ctx := context.Background()

	_, err := env.coordinator.Acquire(ctx, 1, lease.OrderTypeCustomer, 100, "sess-a")
	require.NoError(t, err)

	// Redis 重启丢键后，另一个进程通过 SET NX 赢得了键
	env.mr.FlushAll()
	bob := &lease.Holder{UserID: 2, SessionID: "sess-b"}
	won, err := env.store.Acquire(ctx, "lease:customer:100", bob, 300*time.Second)
	require.NoError(t, err)
	require.True(t, won)

	// 原持有者的续约不得覆盖新持有者的仲裁结果
	_, err = env.coordinator.Renew(ctx, 1, 100)
	assert.ErrorIs(t, err, lease.ErrLeaseNotFound)

	holder, err := env.store.Get(ctx, "lease:customer:100")
	require.NoError(t, err)
	require.NotNil(t, holder)
	assert.Equal(t, int64(2), holder.UserID, "fast-path key must keep the arbitration winner")
}

func TestCoordinatorStatus(t *testing.T) {
	env := newCoordinatorEnv(t, newStubChecker(lease.OrderTypeCustomer, 100, 101, 102))
	ctx := context.Background()

	// 未锁定返回 (nil, nil)
	got, err := env.coordinator.Status(ctx, lease.OrderTypeCustomer, 100)
	require.NoError(t, err)
	assert.Nil(t, got)

	// 订单不存在返回 NotFound
	_, err = env.coordinator.Status(ctx, lease.OrderTypeCustomer, 999)
	assert.ErrorIs(t, err, lease.ErrOrderNotFound)

	// 锁定后返回完整租约
	_, err = env.coordinator.Acquire(ctx, 1, lease.OrderTypeCustomer, 101, "sess-a")
	require.NoError(t, err)
	got, err = env.coordinator.Status(ctx, lease.OrderTypeCustomer, 101)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.HolderUserID)
	assert.Equal(t, "Alice", got.HolderDisplayName)

	// 行已过期视为未锁定
	expired := &lease.Lease{
		ID:              uuid.NewString(),
		OrderType:       lease.OrderTypeCustomer,
		OrderID:         102,
		HolderUserID:    1,
		HolderSessionID: "sess-old",
		AcquiredAt:      time.Now().Add(-time.Hour),
		ExpiresAt:       time.Now().Add(-30 * time.Minute),
		LastActivityAt:  time.Now().Add(-time.Hour),
	}
	require.NoError(t, env.repo.Upsert(ctx, expired))

	got, err = env.coordinator.Status(ctx, lease.OrderTypeCustomer, 102)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestCoordinatorCleanup(t *testing.T) {
	env := newCoordinatorEnv(t, newStubChecker(lease.OrderTypeCustomer, 100))
	ctx := context.Background()

	_, err := env.coordinator.Acquire(ctx, 1, lease.OrderTypeCustomer, 100, "sess-a")
	require.NoError(t, err)

	expired := &lease.Lease{
		ID:              uuid.NewString(),
		OrderType:       lease.OrderTypeCustomer,
		OrderID:         200,
		HolderUserID:    2,
		HolderSessionID: "sess-old",
		AcquiredAt:      time.Now().Add(-time.Hour),
		ExpiresAt:       time.Now().Add(-30 * time.Minute),
		LastActivityAt:  time.Now().Add(-time.Hour),
	}
	require.NoError(t, env.repo.Upsert(ctx, expired))

	removed, err := env.coordinator.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	// 未过期的租约不受影响
	row, err := env.repo.FindActive(ctx, lease.OrderTypeCustomer, 100, time.Now())
	require.NoError(t, err)
	assert.NotNil(t, row)
}

func TestCoordinatorFastPathDivergence(t *testing.T) {
	env := newCoordinatorEnv(t, newStubChecker(lease.OrderTypeCustomer, 100))
	ctx := context.Background()

	_, err := env.coordinator.Acquire(ctx, 1, lease.OrderTypeCustomer, 100, "sess-a")
	require.NoError(t, err)

	// Redis 重启丢键，持久行仍是权威持有者
	env.mr.FlushAll()

	_, err = env.coordinator.Acquire(ctx, 2, lease.OrderTypeCustomer, 100, "sess-b")
	require.Error(t, err)

	var conflict *lease.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(1), conflict.HolderUserID, "conflict should report the durable holder")
	assert.Equal(t, "Alice", conflict.HolderDisplayName)

	// 快路径键按持久行重建，后续仲裁恢复正常
	holder, err := env.store.Get(ctx, "lease:customer:100")
	require.NoError(t, err)
	require.NotNil(t, holder)
	assert.Equal(t, int64(1), holder.UserID)
}

func TestCoordinatorCompensatesOnDurableWriteFailure(t *testing.T) {
	conn, _ := testkit.NewMiniredisConnector(t)
	cfg := &lease.Config{TTL: 300 * time.Second, KeyPrefix: "test:"}

	store, err := lease.NewStore(conn, cfg, lease.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)

	database := testkit.NewSQLiteDatabase(t, &lease.Lease{})
	repo, err := lease.NewRepository(database)
	require.NoError(t, err)

	coordinator, err := lease.NewCoordinator(store, &failingRepo{Repository: repo},
		newStubChecker(lease.OrderTypeCustomer, 100), cfg,
		lease.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)

	ctx := context.Background()
	_, err = coordinator.Acquire(ctx, 1, lease.OrderTypeCustomer, 100, "sess-a")
	require.Error(t, err)
	assert.True(t, errors.Is(err, xerrors.ErrUnavailable))

	// 持久写失败后快路径键被补偿删除，订单不会卡死
	holder, err := store.Get(ctx, "lease:customer:100")
	require.NoError(t, err)
	assert.Nil(t, holder, "fast-path key should be compensated away")
}
