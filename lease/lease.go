// Package lease 实现订单锁协调器的核心逻辑。
//
// 一个租约 (Lease) 表示某个用户在一段 TTL 内对某个订单的独占编辑权。
// 租约同时存在于两个存储中：
//   - Redis 快路径：SET NX 作为唯一的互斥仲裁点
//   - MySQL 持久层：权威的租约记录，用于冲突报告和过期清理
//
// 锁是建议性的 (advisory)：它只对走协调器的调用方生效，
// 不阻止绕过协调器的写入。
package lease

import (
	"fmt"
	"time"

	"github.com/ceyewan/orderlock/xerrors"
)

// OrderType 订单类型判别器，决定订单存在性检查的目标表
type OrderType string

const (
	OrderTypeCustomer OrderType = "customer"
	OrderTypeInternal OrderType = "internal"
)

// ParseOrderType 解析并校验订单类型
func ParseOrderType(s string) (OrderType, error) {
	switch OrderType(s) {
	case OrderTypeCustomer:
		return OrderTypeCustomer, nil
	case OrderTypeInternal:
		return OrderTypeInternal, nil
	default:
		return "", xerrors.Wrapf(xerrors.ErrInvalidInput, "invalid order type: %q", s)
	}
}

// Valid 判断订单类型是否合法
func (t OrderType) Valid() bool {
	return t == OrderTypeCustomer || t == OrderTypeInternal
}

// Lease 租约记录，对应持久层的一行
type Lease struct {
	ID                string    `gorm:"primaryKey;size:36" json:"id"`
	OrderType         OrderType `gorm:"size:16;index:idx_order_locks_order,priority:1" json:"order_type"`
	OrderID           int64     `gorm:"index:idx_order_locks_order,priority:2;index:idx_order_locks_holder,priority:2" json:"order_id"`
	HolderUserID      int64     `gorm:"index:idx_order_locks_holder,priority:1" json:"holder_user_id"`
	HolderSessionID   string    `gorm:"size:128" json:"holder_session_id"`
	HolderDisplayName string    `gorm:"-" json:"holder_display_name,omitempty"`
	AcquiredAt        time.Time `json:"acquired_at"`
	ExpiresAt         time.Time `gorm:"index" json:"expires_at"`
	LastActivityAt    time.Time `json:"last_activity_at"`
}

// TableName 指定 GORM 表名
func (Lease) TableName() string {
	return "order_locks"
}

// Active 判断租约在 now 时刻是否有效。
// 判定为严格早于：expires_at == now 视为已过期。
func (l *Lease) Active(now time.Time) bool {
	return now.Before(l.ExpiresAt)
}

// Holder 快路径键的值，标识当前持有者
type Holder struct {
	UserID    int64  `json:"user_id"`
	SessionID string `json:"session_id"`
}

// storeKey 构造快路径键：lease:{order_type}:{order_id}
func storeKey(orderType OrderType, orderID int64) string {
	return fmt.Sprintf("lease:%s:%d", orderType, orderID)
}
