package order_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ceyewan/orderlock/lease"
	"github.com/ceyewan/orderlock/order"
	"github.com/ceyewan/orderlock/testkit"
	"github.com/ceyewan/orderlock/xerrors"
)

func TestCheckerExists(t *testing.T) {
	database := testkit.NewSQLiteDatabase(t, &order.CustomerOrder{}, &order.InternalOrder{})
	ctx := context.Background()

	require.NoError(t, database.DB(ctx).Create(&order.CustomerOrder{ID: 100}).Error)
	require.NoError(t, database.DB(ctx).Create(&order.InternalOrder{ID: 200}).Error)

	checker, err := order.NewChecker(database, order.WithLogger(testkit.NewLogger()))
	require.NoError(t, err)

	exists, err := checker.Exists(ctx, lease.OrderTypeCustomer, 100)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = checker.Exists(ctx, lease.OrderTypeInternal, 200)
	require.NoError(t, err)
	assert.True(t, exists)

	// 类型决定查询目标表：customer 订单在 internal 表中不存在
	exists, err = checker.Exists(ctx, lease.OrderTypeInternal, 100)
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = checker.Exists(ctx, lease.OrderTypeCustomer, 999)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCheckerInvalidOrderType(t *testing.T) {
	database := testkit.NewSQLiteDatabase(t, &order.CustomerOrder{})

	checker, err := order.NewChecker(database)
	require.NoError(t, err)

	_, err = checker.Exists(context.Background(), lease.OrderType("bogus"), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}

func TestNewCheckerRequiresDatabase(t *testing.T) {
	_, err := order.NewChecker(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, xerrors.ErrInvalidInput)
}
