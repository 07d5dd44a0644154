package db

import "github.com/ceyewan/orderlock/xerrors"

// Config DB 组件配置
type Config struct {
	// Driver 指定数据库驱动类型: "mysql" 或 "sqlite"
	// 默认值: "mysql"
	Driver string `json:"driver" yaml:"driver" mapstructure:"driver"`

	// EnableTracing 是否注册 OpenTelemetry 插件，为每条 SQL 生成 span
	EnableTracing bool `json:"enable_tracing" yaml:"enable_tracing" mapstructure:"enable_tracing"`

	// SlowThresholdMS 慢查询告警阈值，单位毫秒 (默认: 200)
	SlowThresholdMS int `json:"slow_threshold_ms" yaml:"slow_threshold_ms" mapstructure:"slow_threshold_ms"`
}

// setDefaults 设置配置的默认值（内部使用）
func (c *Config) setDefaults() {
	if c.Driver == "" {
		c.Driver = "mysql"
	}
	if c.SlowThresholdMS <= 0 {
		c.SlowThresholdMS = 200
	}
}

// validate 验证配置的有效性（内部使用）
func (c *Config) validate() error {
	if c.Driver != "mysql" && c.Driver != "sqlite" {
		return xerrors.Wrapf(xerrors.ErrInvalidInput, "unsupported driver: %s (must be 'mysql' or 'sqlite')", c.Driver)
	}
	return nil
}
