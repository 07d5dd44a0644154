package lease

import (
	"time"

	"github.com/ceyewan/orderlock/xerrors"
)

// Config 租约组件配置
type Config struct {
	// TTL 租约有效期 (默认: 300s)
	// 获取与续约都使用该值；续约从续约时刻重新计算
	TTL time.Duration `mapstructure:"ttl"`

	// KeyPrefix 快路径键前缀 (默认: "orderlock:")
	KeyPrefix string `mapstructure:"key_prefix"`

	// CleanupInterval 后台清理过期持久行的间隔 (默认: 60s)
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// setDefaults 设置默认值
func (c *Config) setDefaults() {
	if c.TTL == 0 {
		c.TTL = 300 * time.Second
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "orderlock:"
	}
	if c.CleanupInterval == 0 {
		c.CleanupInterval = 60 * time.Second
	}
}

// validate 验证配置
func (c *Config) validate() error {
	c.setDefaults()
	if c.TTL < time.Second {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "lease ttl too short: %s", c.TTL)
	}
	if c.CleanupInterval < time.Second {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "cleanup interval too short: %s", c.CleanupInterval)
	}
	return nil
}
