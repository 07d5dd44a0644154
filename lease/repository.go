package lease

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/ceyewan/orderlock/db"
	"github.com/ceyewan/orderlock/xerrors"
)

// Repository 租约的持久层。
//
// 持久行是权威的租约记录：冲突报告、释放/续约的归属判断、
// 过期清理都以它为准。查询方法在记录不存在时返回 (nil, nil)。
//
// 不变式：每个 (order_type, order_id) 至多一条未过期的行。
// 该不变式由快路径的 SET NX 门保证，持久层没有唯一约束兜底。
type Repository interface {
	// Upsert 写入租约行。同一 (order_type, order_id) 的旧行会被替换
	Upsert(ctx context.Context, lease *Lease) error

	// FindActive 返回未过期的行 (expires_at > now)
	FindActive(ctx context.Context, orderType OrderType, orderID int64, now time.Time) (*Lease, error)

	// FindByOrder 返回该订单的行，无论是否过期
	FindByOrder(ctx context.Context, orderType OrderType, orderID int64) (*Lease, error)

	// FindHeldBy 按租约身份 (order_id, holder_user_id) 查找
	FindHeldBy(ctx context.Context, orderID, holderUserID int64) (*Lease, error)

	// Renew 更新过期时间与最后活跃时间
	Renew(ctx context.Context, id string, expiresAt, lastActivityAt time.Time) error

	// Delete 删除指定行
	Delete(ctx context.Context, id string) error

	// DeleteExpired 删除所有 expires_at <= now 的行，返回删除数量
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type gormRepository struct {
	database db.DB
}

// NewRepository 创建 GORM 持久层
func NewRepository(database db.DB) (Repository, error) {
	if database == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "lease: database is nil")
	}
	return &gormRepository{database: database}, nil
}

func (r *gormRepository) Upsert(ctx context.Context, lease *Lease) error {
	err := r.database.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
		// 同一订单的旧行（必然已过期，门保证）先清掉再写入
		if err := tx.Where("order_type = ? AND order_id = ?", lease.OrderType, lease.OrderID).
			Delete(&Lease{}).Error; err != nil {
			return err
		}
		return tx.Create(lease).Error
	})
	if err != nil {
		return xerrors.Wrapf(ErrStoreUnavailable, "upsert lease: %v", err)
	}
	return nil
}

func (r *gormRepository) FindActive(ctx context.Context, orderType OrderType, orderID int64, now time.Time) (*Lease, error) {
	lease := &Lease{}
	err := r.database.DB(ctx).
		Where("order_type = ? AND order_id = ? AND expires_at > ?", orderType, orderID, now).
		First(lease).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, xerrors.Wrapf(ErrStoreUnavailable, "find active lease: %v", err)
	}
	return lease, nil
}

func (r *gormRepository) FindByOrder(ctx context.Context, orderType OrderType, orderID int64) (*Lease, error) {
	lease := &Lease{}
	err := r.database.DB(ctx).
		Where("order_type = ? AND order_id = ?", orderType, orderID).
		First(lease).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, xerrors.Wrapf(ErrStoreUnavailable, "find lease by order: %v", err)
	}
	return lease, nil
}

func (r *gormRepository) FindHeldBy(ctx context.Context, orderID, holderUserID int64) (*Lease, error) {
	lease := &Lease{}
	err := r.database.DB(ctx).
		Where("order_id = ? AND holder_user_id = ?", orderID, holderUserID).
		First(lease).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, xerrors.Wrapf(ErrStoreUnavailable, "find lease by holder: %v", err)
	}
	return lease, nil
}

func (r *gormRepository) Renew(ctx context.Context, id string, expiresAt, lastActivityAt time.Time) error {
	err := r.database.DB(ctx).
		Model(&Lease{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"expires_at":       expiresAt,
			"last_activity_at": lastActivityAt,
		}).Error
	if err != nil {
		return xerrors.Wrapf(ErrStoreUnavailable, "renew lease %s: %v", id, err)
	}
	return nil
}

func (r *gormRepository) Delete(ctx context.Context, id string) error {
	err := r.database.DB(ctx).Where("id = ?", id).Delete(&Lease{}).Error
	if err != nil {
		return xerrors.Wrapf(ErrStoreUnavailable, "delete lease %s: %v", id, err)
	}
	return nil
}

func (r *gormRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result := r.database.DB(ctx).Where("expires_at <= ?", now).Delete(&Lease{})
	if result.Error != nil {
		return 0, xerrors.Wrapf(ErrStoreUnavailable, "delete expired leases: %v", result.Error)
	}
	return result.RowsAffected, nil
}
