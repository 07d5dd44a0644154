package lease

import (
	"fmt"

	"github.com/ceyewan/orderlock/xerrors"
)

var (
	// ErrOrderNotFound 目标订单不存在
	ErrOrderNotFound = xerrors.Wrap(xerrors.ErrNotFound, "lease: order not found")

	// ErrLeaseNotFound 调用方名下没有该订单的租约
	ErrLeaseNotFound = xerrors.Wrap(xerrors.ErrNotFound, "lease: lease not found")

	// ErrStoreUnavailable 存储暂时不可用，调用方可重试
	ErrStoreUnavailable = xerrors.Wrap(xerrors.ErrUnavailable, "lease: store unavailable")
)

// xerrorsNil 构造依赖缺失错误
func xerrorsNil(name string) error {
	return xerrors.Wrapf(xerrors.ErrInvalidInput, "lease: %s is nil", name)
}

// ConflictError 订单已被他人锁定，携带当前持有者信息用于冲突报告
type ConflictError struct {
	OrderType         OrderType
	OrderID           int64
	HolderUserID      int64
	HolderSessionID   string
	HolderDisplayName string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("lease: order %s/%d is locked by user %d", e.OrderType, e.OrderID, e.HolderUserID)
}

// Unwrap 使 errors.Is(err, xerrors.ErrConflict) 成立
func (e *ConflictError) Unwrap() error {
	return xerrors.ErrConflict
}
