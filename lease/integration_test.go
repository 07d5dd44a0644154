package lease_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/orderlock/db"
	"github.com/ceyewan/orderlock/lease"
	"github.com/ceyewan/orderlock/testkit"
	"github.com/ceyewan/orderlock/xerrors"
)

// TestCoordinatorIntegration 在真实 Redis 与 MySQL 容器上验证完整的锁生命周期。
// 需要 ORDERLOCK_TEST_INTEGRATION=1 与可用的 Docker 环境。
func TestCoordinatorIntegration(t *testing.T) {
	testkit.SkipUnlessIntegration(t)

	ctx := context.Background()

	redisConn := testkit.NewRedisContainerConnector(t)
	mysqlConn := testkit.NewMySQLConnector(t)

	database, err := db.New(&db.Config{Driver: "mysql"},
		db.WithMySQLConnector(mysqlConn),
		db.WithLogger(testkit.NewLogger()),
		db.WithSilentMode())
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(&lease.Lease{}))

	cfg := &lease.Config{TTL: 300 * time.Second, KeyPrefix: "itest:"}

	store, err := lease.NewStore(redisConn, cfg, lease.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)
	repo, err := lease.NewRepository(database)
	require.NoError(t, err)

	coordinator, err := lease.NewCoordinator(store, repo,
		newStubChecker(lease.OrderTypeCustomer, 100), cfg,
		lease.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)

	// 获取
	acquired, err := coordinator.Acquire(ctx, 1, lease.OrderTypeCustomer, 100, "sess-a")
	require.NoError(t, err)
	require.NotNil(t, acquired)

	// 他人冲突
	_, err = coordinator.Acquire(ctx, 2, lease.OrderTypeCustomer, 100, "sess-b")
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrConflict)

	var conflict *lease.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(1), conflict.HolderUserID)

	// 状态与续约
	status, err := coordinator.Status(ctx, lease.OrderTypeCustomer, 100)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, acquired.ID, status.ID)

	time.Sleep(10 * time.Millisecond)
	renewed, err := coordinator.Renew(ctx, 1, 100)
	require.NoError(t, err)
	assert.True(t, renewed.ExpiresAt.After(acquired.ExpiresAt))

	// 释放后他人可获取
	require.NoError(t, coordinator.Release(ctx, 1, 100))
	reacquired, err := coordinator.Acquire(ctx, 2, lease.OrderTypeCustomer, 100, "sess-b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), reacquired.HolderUserID)

	// 清理过期行
	removed, err := coordinator.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}
