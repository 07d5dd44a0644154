package lease

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ceyewan/orderlock/clog"
	"github.com/ceyewan/orderlock/connector"
	"github.com/ceyewan/orderlock/xerrors"
)

// Store 租约的 Redis 快路径后端。
//
// SET NX 是跨进程互斥的唯一仲裁点：持久层不做唯一约束，
// 并发获取由这里的原子写入裁决。键值为 JSON 编码的 Holder。
type Store interface {
	// Acquire 原子地尝试占用键 (SET NX PX)。返回是否赢得键
	Acquire(ctx context.Context, key string, holder *Holder, ttl time.Duration) (bool, error)

	// Release 释放键。仅当键值与 holder 匹配时删除，否则为 no-op
	Release(ctx context.Context, key string, holder *Holder) error

	// Refresh 刷新键的 TTL。仅当键值与 holder 匹配时生效，返回是否成功
	Refresh(ctx context.Context, key string, holder *Holder, ttl time.Duration) (bool, error)

	// Get 返回当前持有者，键不存在时返回 (nil, nil)
	Get(ctx context.Context, key string) (*Holder, error)

	// ForceSet 无条件写入键 (SET PX)。
	// 仅用于持久行为权威时重建快路径（Redis 重启后的分歧修复）
	ForceSet(ctx context.Context, key string, holder *Holder, ttl time.Duration) error
}

// 比较持有者后删除，防止误删他人的键
const releaseScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	else
		return 0
	end
`

// 比较持有者后刷新 TTL
const refreshScript = `
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("PEXPIRE", KEYS[1], ARGV[2])
	else
		return 0
	end
`

type redisStore struct {
	client *redis.Client
	prefix string
	logger clog.Logger
}

// NewStore 创建 Redis 快路径存储
func NewStore(conn connector.RedisConnector, cfg *Config, opts ...Option) (Store, error) {
	if conn == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "lease: redis connector is nil")
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

	return &redisStore{
		client: conn.GetClient(),
		prefix: cfg.KeyPrefix,
		logger: opt.logger,
	}, nil
}

func (s *redisStore) Acquire(ctx context.Context, key string, holder *Holder, ttl time.Duration) (bool, error) {
	value, err := json.Marshal(holder)
	if err != nil {
		return false, xerrors.Wrap(err, "failed to encode holder")
	}

	won, err := s.client.SetNX(ctx, s.prefix+key, value, ttl).Result()
	if err != nil {
		return false, xerrors.Wrapf(ErrStoreUnavailable, "acquire %s: %v", key, err)
	}
	return won, nil
}

func (s *redisStore) Release(ctx context.Context, key string, holder *Holder) error {
	value, err := json.Marshal(holder)
	if err != nil {
		return xerrors.Wrap(err, "failed to encode holder")
	}

	result, err := s.client.Eval(ctx, releaseScript, []string{s.prefix + key}, value).Result()
	if err != nil {
		return xerrors.Wrapf(ErrStoreUnavailable, "release %s: %v", key, err)
	}

	if result.(int64) == 0 {
		// 键已过期或被他人持有，释放退化为 no-op
		s.logger.Debug("fast-path release was a no-op", clog.String("key", key))
	}
	return nil
}

func (s *redisStore) Refresh(ctx context.Context, key string, holder *Holder, ttl time.Duration) (bool, error) {
	value, err := json.Marshal(holder)
	if err != nil {
		return false, xerrors.Wrap(err, "failed to encode holder")
	}

	result, err := s.client.Eval(ctx, refreshScript, []string{s.prefix + key}, value, ttl.Milliseconds()).Result()
	if err != nil {
		return false, xerrors.Wrapf(ErrStoreUnavailable, "refresh %s: %v", key, err)
	}
	return result.(int64) == 1, nil
}

func (s *redisStore) Get(ctx context.Context, key string) (*Holder, error) {
	raw, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, xerrors.Wrapf(ErrStoreUnavailable, "get %s: %v", key, err)
	}

	holder := &Holder{}
	if err := json.Unmarshal(raw, holder); err != nil {
		return nil, xerrors.Wrapf(err, "failed to decode holder for key %s", key)
	}
	return holder, nil
}

func (s *redisStore) ForceSet(ctx context.Context, key string, holder *Holder, ttl time.Duration) error {
	value, err := json.Marshal(holder)
	if err != nil {
		return xerrors.Wrap(err, "failed to encode holder")
	}

	if err := s.client.Set(ctx, s.prefix+key, value, ttl).Err(); err != nil {
		return xerrors.Wrapf(ErrStoreUnavailable, "force set %s: %v", key, err)
	}
	return nil
}
