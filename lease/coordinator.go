package lease

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/orderlock/clog"
	"github.com/ceyewan/orderlock/metrics"
)

// 事件名称，通过 Notifier 对外广播
const (
	EventLockAcquired = "lock_acquired"
	EventLockReleased = "lock_released"
)

// OrderChecker 订单存在性检查
type OrderChecker interface {
	Exists(ctx context.Context, orderType OrderType, orderID int64) (bool, error)
}

// NameResolver 将持有者用户 ID 解析为显示名，用于冲突报告。
// 解析失败时实现方应回退为原始 ID，绝不因此让调用失败。
type NameResolver interface {
	ResolveDisplayName(ctx context.Context, userID int64) string
}

// Notifier 锁事件通知。fire-and-forget，不得阻塞协调器调用
type Notifier interface {
	Notify(ctx context.Context, event string, payload any)
}

// noopNotifier 默认通知器，丢弃所有事件
type noopNotifier struct{}

func (noopNotifier) Notify(ctx context.Context, event string, payload any) {}

// rawIDResolver 默认解析器，直接返回数字 ID 的十进制形式
type rawIDResolver struct{}

func (rawIDResolver) ResolveDisplayName(ctx context.Context, userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// LockEvent 锁事件载荷
type LockEvent struct {
	OrderType OrderType `json:"order_type"`
	OrderID   int64     `json:"order_id"`
	UserID    int64     `json:"user_id"`
	SessionID string    `json:"session_id"`
}

// Coordinator 订单锁协调器。
//
// 每个 (order_type, order_id) 的状态机：
//
//	Unlocked --acquire--> Held --renew--> Held(更晚的过期点)
//	Held --release|到期--> Unlocked
//
// 双写顺序固定：先 Redis 快路径（仲裁），后持久行。
// 持久写失败时尽力撤销快路径键作为补偿，TTL 是最终兜底。
type Coordinator interface {
	// Acquire 为 holder 获取订单锁，成功返回完整租约。
	// 订单不存在返回 NotFound；已被他人锁定返回 *ConflictError
	Acquire(ctx context.Context, holderID int64, orderType OrderType, orderID int64, sessionID string) (*Lease, error)

	// Release 释放调用方自己持有的锁。
	// 租约身份是 (holder_user_id, order_id)：锁不存在、已被清理、
	// 或由他人持有时一律返回 NotFound
	Release(ctx context.Context, holderID, orderID int64) error

	// Renew 将调用方持有的锁延长一个完整 TTL（从续约时刻起算）。
	// 已过期的租约不能复活，与锁不存在一样返回 NotFound
	Renew(ctx context.Context, holderID, orderID int64) (*Lease, error)

	// Status 查询订单当前锁状态。未锁定返回 (nil, nil)
	Status(ctx context.Context, orderType OrderType, orderID int64) (*Lease, error)

	// Cleanup 删除已过期的持久行，返回删除数量。不触碰快路径
	Cleanup(ctx context.Context) (int64, error)
}

type coordinator struct {
	store    Store
	repo     Repository
	orders   OrderChecker
	resolver NameResolver
	notifier Notifier
	logger   clog.Logger
	ttl      time.Duration

	opsTotal   metrics.Counter
	opDuration metrics.Histogram
}

// NewCoordinator 创建协调器
func NewCoordinator(store Store, repo Repository, orders OrderChecker, cfg *Config, opts ...Option) (Coordinator, error) {
	if store == nil {
		return nil, xerrorsNil("store")
	}
	if repo == nil {
		return nil, xerrorsNil("repository")
	}
	if orders == nil {
		return nil, xerrorsNil("order checker")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := &options{}
	for _, o := range opts {
		o(opt)
	}
	opt.applyDefaults()

	c := &coordinator{
		store:    store,
		repo:     repo,
		orders:   orders,
		resolver: opt.resolver,
		notifier: opt.notifier,
		logger:   opt.logger,
		ttl:      cfg.TTL,
	}

	var err error
	c.opsTotal, err = opt.meter.Counter("lease_operations_total", "Total number of lease operations")
	if err != nil {
		return nil, err
	}
	c.opDuration, err = opt.meter.Histogram("lease_operation_duration_seconds",
		"Lease operation duration in seconds", metrics.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return c, nil
}

func (c *coordinator) Acquire(ctx context.Context, holderID int64, orderType OrderType, orderID int64, sessionID string) (*Lease, error) {
	start := time.Now()

	exists, err := c.orders.Exists(ctx, orderType, orderID)
	if err != nil {
		c.observe(ctx, "acquire", "error", start)
		return nil, err
	}
	if !exists {
		c.observe(ctx, "acquire", "not_found", start)
		return nil, ErrOrderNotFound
	}

	now := time.Now()
	holder := &Holder{UserID: holderID, SessionID: sessionID}
	key := storeKey(orderType, orderID)

	won, err := c.store.Acquire(ctx, key, holder, c.ttl)
	if err != nil {
		c.observe(ctx, "acquire", "error", start)
		return nil, err
	}

	if !won {
		c.observe(ctx, "acquire", "conflict", start)
		return nil, c.buildConflict(ctx, orderType, orderID, now)
	}

	// 赢得快路径后核对持久层：Redis 重启会丢键，
	// 此时未过期的持久行仍是权威持有者
	row, err := c.repo.FindActive(ctx, orderType, orderID, now)
	if err != nil {
		c.compensate(ctx, key, holder)
		c.observe(ctx, "acquire", "error", start)
		return nil, err
	}
	if row != nil && row.HolderUserID != holderID {
		c.compensate(ctx, key, holder)
		// 按剩余有效期重建快路径键，恢复两个存储的一致性
		remaining := row.ExpiresAt.Sub(now)
		if remaining > 0 {
			rowHolder := &Holder{UserID: row.HolderUserID, SessionID: row.HolderSessionID}
			if err := c.store.ForceSet(ctx, key, rowHolder, remaining); err != nil {
				c.logger.WarnContext(ctx, "failed to repopulate fast path",
					clog.String("key", key), clog.Error(err))
			}
		}
		c.observe(ctx, "acquire", "conflict", start)
		return nil, c.conflictFromRow(ctx, row)
	}

	lease := &Lease{
		ID:              uuid.NewString(),
		OrderType:       orderType,
		OrderID:         orderID,
		HolderUserID:    holderID,
		HolderSessionID: sessionID,
		AcquiredAt:      now,
		ExpiresAt:       now.Add(c.ttl),
		LastActivityAt:  now,
	}

	if err := c.repo.Upsert(ctx, lease); err != nil {
		// 补偿：撤销刚写入的快路径键。补偿失败只记日志，
		// 键会随 TTL 自然消失
		c.compensate(ctx, key, holder)
		c.observe(ctx, "acquire", "error", start)
		return nil, err
	}

	lease.HolderDisplayName = c.resolver.ResolveDisplayName(ctx, holderID)

	c.notifier.Notify(ctx, EventLockAcquired, &LockEvent{
		OrderType: orderType,
		OrderID:   orderID,
		UserID:    holderID,
		SessionID: sessionID,
	})

	c.logger.InfoContext(ctx, "lock acquired",
		clog.String("order_type", string(orderType)),
		clog.Int64("order_id", orderID),
		clog.Int64("holder_user_id", holderID))
	c.observe(ctx, "acquire", "success", start)

	return lease, nil
}

func (c *coordinator) Release(ctx context.Context, holderID, orderID int64) error {
	start := time.Now()

	row, err := c.repo.FindHeldBy(ctx, orderID, holderID)
	if err != nil {
		c.observe(ctx, "release", "error", start)
		return err
	}
	if row == nil {
		c.observe(ctx, "release", "not_found", start)
		return ErrLeaseNotFound
	}

	if err := c.repo.Delete(ctx, row.ID); err != nil {
		c.observe(ctx, "release", "error", start)
		return err
	}

	key := storeKey(row.OrderType, orderID)
	holder := &Holder{UserID: row.HolderUserID, SessionID: row.HolderSessionID}
	if err := c.store.Release(ctx, key, holder); err != nil {
		// 持久行已删，快路径键最迟随 TTL 消失
		c.logger.WarnContext(ctx, "fast-path release failed",
			clog.String("key", key), clog.Error(err))
	}

	c.notifier.Notify(ctx, EventLockReleased, &LockEvent{
		OrderType: row.OrderType,
		OrderID:   orderID,
		UserID:    holderID,
		SessionID: row.HolderSessionID,
	})

	c.logger.InfoContext(ctx, "lock released",
		clog.String("order_type", string(row.OrderType)),
		clog.Int64("order_id", orderID),
		clog.Int64("holder_user_id", holderID))
	c.observe(ctx, "release", "success", start)

	return nil
}

func (c *coordinator) Renew(ctx context.Context, holderID, orderID int64) (*Lease, error) {
	start := time.Now()

	row, err := c.repo.FindHeldBy(ctx, orderID, holderID)
	if err != nil {
		c.observe(ctx, "renew", "error", start)
		return nil, err
	}
	if row == nil {
		c.observe(ctx, "renew", "not_found", start)
		return nil, ErrLeaseNotFound
	}

	// 已过期的租约等同于未锁定，不能通过续约复活：
	// 订单此刻对任何获取者开放，过期行只等清理
	now := time.Now()
	if !row.Active(now) {
		c.observe(ctx, "renew", "not_found", start)
		return nil, ErrLeaseNotFound
	}

	// 新的过期点从续约时刻起算，而不是在旧值上累加
	expiresAt := now.Add(c.ttl)
	key := storeKey(row.OrderType, orderID)
	holder := &Holder{UserID: row.HolderUserID, SessionID: row.HolderSessionID}

	refreshed, err := c.store.Refresh(ctx, key, holder, c.ttl)
	if err != nil {
		c.observe(ctx, "renew", "error", start)
		return nil, err
	}
	if !refreshed {
		// 键丢失（Redis 重启）时以 SET NX 重建，保持仲裁语义：
		// 键已被他人占用说明租约已丢失，绝不覆盖新持有者
		won, err := c.store.Acquire(ctx, key, holder, c.ttl)
		if err != nil {
			c.observe(ctx, "renew", "error", start)
			return nil, err
		}
		if !won {
			c.observe(ctx, "renew", "not_found", start)
			return nil, ErrLeaseNotFound
		}
	}

	if err := c.repo.Renew(ctx, row.ID, expiresAt, now); err != nil {
		c.observe(ctx, "renew", "error", start)
		return nil, err
	}

	row.ExpiresAt = expiresAt
	row.LastActivityAt = now
	row.HolderDisplayName = c.resolver.ResolveDisplayName(ctx, holderID)

	c.logger.DebugContext(ctx, "lock renewed",
		clog.Int64("order_id", orderID),
		clog.Int64("holder_user_id", holderID),
		clog.Time("expires_at", expiresAt))
	c.observe(ctx, "renew", "success", start)

	return row, nil
}

func (c *coordinator) Status(ctx context.Context, orderType OrderType, orderID int64) (*Lease, error) {
	start := time.Now()

	exists, err := c.orders.Exists(ctx, orderType, orderID)
	if err != nil {
		c.observe(ctx, "status", "error", start)
		return nil, err
	}
	if !exists {
		c.observe(ctx, "status", "not_found", start)
		return nil, ErrOrderNotFound
	}

	row, err := c.repo.FindActive(ctx, orderType, orderID, time.Now())
	if err != nil {
		c.observe(ctx, "status", "error", start)
		return nil, err
	}
	if row == nil {
		c.observe(ctx, "status", "unlocked", start)
		return nil, nil
	}

	row.HolderDisplayName = c.resolver.ResolveDisplayName(ctx, row.HolderUserID)
	c.observe(ctx, "status", "locked", start)
	return row, nil
}

func (c *coordinator) Cleanup(ctx context.Context) (int64, error) {
	start := time.Now()

	removed, err := c.repo.DeleteExpired(ctx, time.Now())
	if err != nil {
		c.observe(ctx, "cleanup", "error", start)
		return 0, err
	}

	if removed > 0 {
		c.logger.InfoContext(ctx, "expired leases removed", clog.Int64("count", removed))
	}
	c.observe(ctx, "cleanup", "success", start)
	return removed, nil
}

// buildConflict 构造冲突错误。优先用持久行报告持有者，
// 行缺失或已过期时回退到快路径的键值
func (c *coordinator) buildConflict(ctx context.Context, orderType OrderType, orderID int64, now time.Time) error {
	row, err := c.repo.FindByOrder(ctx, orderType, orderID)
	if err == nil && row != nil && row.Active(now) {
		return c.conflictFromRow(ctx, row)
	}

	holder, err := c.store.Get(ctx, storeKey(orderType, orderID))
	if err == nil && holder != nil {
		return &ConflictError{
			OrderType:         orderType,
			OrderID:           orderID,
			HolderUserID:      holder.UserID,
			HolderSessionID:   holder.SessionID,
			HolderDisplayName: c.resolver.ResolveDisplayName(ctx, holder.UserID),
		}
	}

	// 两边都查不到持有者：键在仲裁和查询之间过期了
	return &ConflictError{OrderType: orderType, OrderID: orderID}
}

func (c *coordinator) conflictFromRow(ctx context.Context, row *Lease) error {
	return &ConflictError{
		OrderType:         row.OrderType,
		OrderID:           row.OrderID,
		HolderUserID:      row.HolderUserID,
		HolderSessionID:   row.HolderSessionID,
		HolderDisplayName: c.resolver.ResolveDisplayName(ctx, row.HolderUserID),
	}
}

// compensate 尽力撤销快路径键
func (c *coordinator) compensate(ctx context.Context, key string, holder *Holder) {
	if err := c.store.Release(ctx, key, holder); err != nil {
		c.logger.WarnContext(ctx, "compensating fast-path release failed",
			clog.String("key", key), clog.Error(err))
	}
}

func (c *coordinator) observe(ctx context.Context, op, outcome string, start time.Time) {
	labels := []metrics.Label{
		metrics.L("operation", op),
		metrics.L("outcome", outcome),
	}
	c.opsTotal.Inc(ctx, labels...)
	c.opDuration.Record(ctx, time.Since(start).Seconds(), labels...)
}
