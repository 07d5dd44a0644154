// Package identity 将用户 ID 解析为显示名，用于锁冲突报告。
//
// 解析结果经过进程内 otter 缓存（写入过期策略），
// 查询失败或用户缺失时回退为原始 ID 的十进制形式：
// 冲突报告是尽力而为的，绝不因解析失败让锁操作失败。
package identity

import (
	"context"
	"strconv"
	"time"

	"github.com/maypok86/otter/v2"

	"github.com/ceyewan/orderlock/clog"
	"github.com/ceyewan/orderlock/db"
	"github.com/ceyewan/orderlock/xerrors"
)

// User 用户表的最小映射
type User struct {
	ID       int64  `gorm:"primaryKey"`
	Username string `gorm:"size:64"`
}

// TableName 指定 GORM 表名
func (User) TableName() string {
	return "users"
}

// Config 解析器配置
type Config struct {
	// CacheSize 缓存最大条目数 (默认: 4096)
	CacheSize int `mapstructure:"cache_size"`

	// CacheTTL 缓存条目有效期 (默认: 5m)
	// 写入过期策略：从写入开始计算，读取不重置
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

func (c *Config) setDefaults() {
	if c.CacheSize <= 0 {
		c.CacheSize = 4096
	}
	if c.CacheTTL <= 0 {
		c.CacheTTL = 5 * time.Minute
	}
}

// Resolver 实现 lease.NameResolver
type Resolver struct {
	database db.DB
	cache    *otter.Cache[int64, string]
	logger   clog.Logger
}

// Option 配置选项
type Option func(*Resolver)

// WithLogger 注入日志记录器
func WithLogger(l clog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l.WithNamespace("identity")
		}
	}
}

// NewResolver 创建显示名解析器
func NewResolver(database db.DB, cfg *Config, opts ...Option) (*Resolver, error) {
	if database == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "identity: database is nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()

	cache, err := otter.New(&otter.Options[int64, string]{
		MaximumSize:      cfg.CacheSize,
		ExpiryCalculator: otter.ExpiryWriting[int64, string](cfg.CacheTTL),
	})
	if err != nil {
		return nil, xerrors.Wrap(err, "identity: failed to build cache")
	}

	r := &Resolver{
		database: database,
		cache:    cache,
		logger:   clog.Discard(),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// ResolveDisplayName 解析用户显示名。
// 缓存未命中时查询用户表；任何失败都回退为原始 ID
func (r *Resolver) ResolveDisplayName(ctx context.Context, userID int64) string {
	if name, ok := r.cache.GetIfPresent(userID); ok {
		return name
	}

	fallback := strconv.FormatInt(userID, 10)

	user := &User{}
	err := r.database.DB(ctx).Where("id = ?", userID).First(user).Error
	if err != nil || user.Username == "" {
		if err != nil {
			r.logger.DebugContext(ctx, "display name lookup failed",
				clog.Int64("user_id", userID), clog.Error(err))
		}
		return fallback
	}

	r.cache.Set(userID, user.Username)
	return user.Username
}

// Invalidate 失效某个用户的缓存条目
func (r *Resolver) Invalidate(userID int64) {
	r.cache.Invalidate(userID)
}
