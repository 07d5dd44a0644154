// Package order 提供订单存在性检查。
//
// 协调器在任何锁操作前都要确认目标订单存在；
// 订单类型判别器决定查询 customer_orders 还是 internal_orders。
package order

import (
	"context"
	"time"

	"github.com/ceyewan/orderlock/clog"
	"github.com/ceyewan/orderlock/db"
	"github.com/ceyewan/orderlock/lease"
	"github.com/ceyewan/orderlock/xerrors"
)

// CustomerOrder 客户订单表的最小映射，仅用于存在性检查
type CustomerOrder struct {
	ID        int64     `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName 指定 GORM 表名
func (CustomerOrder) TableName() string {
	return "customer_orders"
}

// InternalOrder 内部订单表的最小映射
type InternalOrder struct {
	ID        int64     `gorm:"primaryKey"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName 指定 GORM 表名
func (InternalOrder) TableName() string {
	return "internal_orders"
}

// Checker 实现 lease.OrderChecker
type Checker struct {
	database db.DB
	logger   clog.Logger
}

// Option 配置选项
type Option func(*Checker)

// WithLogger 注入日志记录器
func WithLogger(l clog.Logger) Option {
	return func(c *Checker) {
		if l != nil {
			c.logger = l.WithNamespace("order")
		}
	}
}

// NewChecker 创建订单存在性检查器
func NewChecker(database db.DB, opts ...Option) (*Checker, error) {
	if database == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "order: database is nil")
	}

	c := &Checker{
		database: database,
		logger:   clog.Discard(),
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Exists 检查订单是否存在
func (c *Checker) Exists(ctx context.Context, orderType lease.OrderType, orderID int64) (bool, error) {
	var model any
	switch orderType {
	case lease.OrderTypeCustomer:
		model = &CustomerOrder{}
	case lease.OrderTypeInternal:
		model = &InternalOrder{}
	default:
		return false, xerrors.Wrapf(xerrors.ErrInvalidInput, "order: invalid order type %q", orderType)
	}

	var count int64
	err := c.database.DB(ctx).Model(model).Where("id = ?", orderID).Count(&count).Error
	if err != nil {
		return false, xerrors.Wrapf(xerrors.ErrUnavailable, "order: existence check failed: %v", err)
	}
	return count > 0, nil
}
