package lease_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/orderlock/lease"
	"github.com/ceyewan/orderlock/testkit"
)

func newTestRepository(t *testing.T) lease.Repository {
	t.Helper()
	database := testkit.NewSQLiteDatabase(t, &lease.Lease{})

	repo, err := lease.NewRepository(database)
	require.NoError(t, err)
	return repo
}

func newLeaseRow(orderType lease.OrderType, orderID, userID int64, expiresAt time.Time) *lease.Lease {
	now := time.Now()
	return &lease.Lease{
		ID:              uuid.NewString(),
		OrderType:       orderType,
		OrderID:         orderID,
		HolderUserID:    userID,
		HolderSessionID: "sess-" + uuid.NewString()[:8],
		AcquiredAt:      now,
		ExpiresAt:       expiresAt,
		LastActivityAt:  now,
	}
}

func TestRepositoryUpsertReplacesOldRow(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	old := newLeaseRow(lease.OrderTypeCustomer, 100, 1, time.Now().Add(-time.Minute))
	require.NoError(t, repo.Upsert(ctx, old))

	fresh := newLeaseRow(lease.OrderTypeCustomer, 100, 2, time.Now().Add(5*time.Minute))
	require.NoError(t, repo.Upsert(ctx, fresh))

	// 同一 (order_type, order_id) 只剩新行
	got, err := repo.FindByOrder(ctx, lease.OrderTypeCustomer, 100)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, fresh.ID, got.ID)
	assert.Equal(t, int64(2), got.HolderUserID)

	// 旧行确实被删除
	gone, err := repo.FindHeldBy(ctx, 100, 1)
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestRepositoryUpsertKeepsOtherOrderTypes(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	customer := newLeaseRow(lease.OrderTypeCustomer, 100, 1, time.Now().Add(5*time.Minute))
	internal := newLeaseRow(lease.OrderTypeInternal, 100, 2, time.Now().Add(5*time.Minute))
	require.NoError(t, repo.Upsert(ctx, customer))
	require.NoError(t, repo.Upsert(ctx, internal))

	// 相同 order_id 但类型不同的行互不影响
	got, err := repo.FindByOrder(ctx, lease.OrderTypeCustomer, 100)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, customer.ID, got.ID)
}

func TestRepositoryFindActive(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()

	row := newLeaseRow(lease.OrderTypeCustomer, 100, 1, now.Add(5*time.Minute))
	require.NoError(t, repo.Upsert(ctx, row))

	got, err := repo.FindActive(ctx, lease.OrderTypeCustomer, 100, now)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, row.ID, got.ID)

	// expires_at == now 视为已过期
	got, err = repo.FindActive(ctx, lease.OrderTypeCustomer, 100, row.ExpiresAt)
	require.NoError(t, err)
	assert.Nil(t, got)

	// 不存在的订单返回 (nil, nil)
	got, err = repo.FindActive(ctx, lease.OrderTypeCustomer, 999, now)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepositoryFindByOrderIgnoresExpiry(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	row := newLeaseRow(lease.OrderTypeInternal, 200, 1, time.Now().Add(-time.Hour))
	require.NoError(t, repo.Upsert(ctx, row))

	got, err := repo.FindByOrder(ctx, lease.OrderTypeInternal, 200)
	require.NoError(t, err)
	require.NotNil(t, got, "expired row should still be returned")
	assert.Equal(t, row.ID, got.ID)
}

func TestRepositoryFindHeldBy(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	row := newLeaseRow(lease.OrderTypeCustomer, 100, 7, time.Now().Add(5*time.Minute))
	require.NoError(t, repo.Upsert(ctx, row))

	got, err := repo.FindHeldBy(ctx, 100, 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, row.ID, got.ID)

	// 其他用户不持有该订单
	got, err = repo.FindHeldBy(ctx, 100, 8)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRepositoryRenew(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	row := newLeaseRow(lease.OrderTypeCustomer, 100, 1, time.Now().Add(time.Minute))
	require.NoError(t, repo.Upsert(ctx, row))

	newExpiry := time.Now().Add(10 * time.Minute)
	newActivity := time.Now()
	require.NoError(t, repo.Renew(ctx, row.ID, newExpiry, newActivity))

	got, err := repo.FindByOrder(ctx, lease.OrderTypeCustomer, 100)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.WithinDuration(t, newExpiry, got.ExpiresAt, time.Second)
	assert.WithinDuration(t, newActivity, got.LastActivityAt, time.Second)
}

func TestRepositoryDelete(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	row := newLeaseRow(lease.OrderTypeCustomer, 100, 1, time.Now().Add(time.Minute))
	require.NoError(t, repo.Upsert(ctx, row))

	require.NoError(t, repo.Delete(ctx, row.ID))

	got, err := repo.FindByOrder(ctx, lease.OrderTypeCustomer, 100)
	require.NoError(t, err)
	assert.Nil(t, got)

	// 删除不存在的行不报错
	require.NoError(t, repo.Delete(ctx, uuid.NewString()))
}

func TestRepositoryDeleteExpired(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()
	now := time.Now()

	expired1 := newLeaseRow(lease.OrderTypeCustomer, 100, 1, now.Add(-time.Hour))
	expired2 := newLeaseRow(lease.OrderTypeInternal, 101, 2, now.Add(-time.Minute))
	active := newLeaseRow(lease.OrderTypeCustomer, 102, 3, now.Add(5*time.Minute))
	require.NoError(t, repo.Upsert(ctx, expired1))
	require.NoError(t, repo.Upsert(ctx, expired2))
	require.NoError(t, repo.Upsert(ctx, active))

	deleted, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	// 未过期的行保留
	got, err := repo.FindByOrder(ctx, lease.OrderTypeCustomer, 102)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, active.ID, got.ID)

	// 再次清理无事可做
	deleted, err = repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Zero(t, deleted)
}
