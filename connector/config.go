package connector

import (
	"fmt"
	"time"
)

// RedisConfig Redis 连接配置
type RedisConfig struct {
	// 基础配置（可选，有默认值）
	Name string `mapstructure:"name"` // 连接器名称 (默认: "default")

	// 核心配置
	Addr     string `mapstructure:"addr"`     // [必填] 连接地址，如 "127.0.0.1:6379"
	Password string `mapstructure:"password"` // [可选] 认证密码
	DB       int    `mapstructure:"db"`       // [可选] 数据库编号 (默认: 0)

	// 高级配置（可选，有默认值）
	PoolSize     int           `mapstructure:"pool_size"`      // 连接池大小 (默认: 10)
	MinIdleConns int           `mapstructure:"min_idle_conns"` // 最小空闲连接数 (默认: 5)
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`   // 连接超时 (默认: 5s)
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`   // 读取超时 (默认: 3s)
	WriteTimeout time.Duration `mapstructure:"write_timeout"`  // 写入超时 (默认: 3s)
}

// setDefaults 设置默认值
func (c *RedisConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns < 0 {
		c.MinIdleConns = 5
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 5 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 3 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 3 * time.Second
	}
}

// validate 验证配置
func (c *RedisConfig) validate() error {
	c.setDefaults()
	if c.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if c.DB < 0 {
		return fmt.Errorf("redis db must not be negative")
	}
	return nil
}

// MySQLConfig MySQL 连接配置
type MySQLConfig struct {
	// 基础配置（可选，有默认值）
	Name string `mapstructure:"name"` // 连接器名称 (默认: "default")

	// 核心配置
	DSN      string `mapstructure:"dsn"`      // 完整 DSN (可选，若提供则忽略 Host/Port 等)
	Host     string `mapstructure:"host"`     // [必填] 主机地址
	Port     int    `mapstructure:"port"`     // 端口 (默认: 3306)
	Username string `mapstructure:"username"` // [必填] 用户名
	Password string `mapstructure:"password"` // [必填] 密码
	Database string `mapstructure:"database"` // [必填] 数据库名

	// 高级配置（可选，有默认值）
	Charset         string        `mapstructure:"charset"`           // 字符集 (默认: "utf8mb4")
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`    // 最大空闲连接数 (默认: 10)
	MaxOpenConns    int           `mapstructure:"max_open_conns"`    // 最大打开连接数 (默认: 100)
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"` // 连接最大生命周期 (默认: 1h)
}

// setDefaults 设置默认值
func (c *MySQLConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Port == 0 {
		c.Port = 3306
	}
	if c.Charset == "" {
		c.Charset = "utf8mb4"
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 10
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 100
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
}

// validate 验证配置
func (c *MySQLConfig) validate() error {
	c.setDefaults()
	if c.DSN != "" {
		return nil
	}
	if c.Host == "" {
		return fmt.Errorf("mysql host is required")
	}
	if c.Port <= 0 {
		return fmt.Errorf("mysql port must be positive")
	}
	if c.Username == "" {
		return fmt.Errorf("mysql username is required")
	}
	if c.Database == "" {
		return fmt.Errorf("mysql database is required")
	}
	return nil
}

// SQLiteConfig SQLite 连接配置
type SQLiteConfig struct {
	Name string `mapstructure:"name"` // 连接器名称 (默认: "default")
	Path string `mapstructure:"path"` // [必填] 数据库路径或 "file::memory:?cache=shared"
}

// validate 验证配置
func (c *SQLiteConfig) validate() error {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Path == "" {
		return fmt.Errorf("sqlite path is required")
	}
	return nil
}

// NATSConfig NATS 连接配置
type NATSConfig struct {
	// 基础配置（可选，有默认值）
	Name string `mapstructure:"name"` // 连接器名称 (默认: "default")

	// 核心配置
	URL      string `mapstructure:"url"`      // [必填] 连接地址，如 "nats://127.0.0.1:4222"
	Username string `mapstructure:"username"` // [可选] 用户名
	Password string `mapstructure:"password"` // [可选] 密码
	Token    string `mapstructure:"token"`    // [可选] 令牌

	// 高级配置（可选，有默认值）
	Timeout       time.Duration `mapstructure:"timeout"`        // 连接超时 (默认: 5s)
	MaxReconnects int           `mapstructure:"max_reconnects"` // 最大重连次数 (默认: 60)
	ReconnectWait time.Duration `mapstructure:"reconnect_wait"` // 重连等待时间 (默认: 2s)
}

// setDefaults 设置默认值
func (c *NATSConfig) setDefaults() {
	if c.Name == "" {
		c.Name = "default"
	}
	if c.Timeout == 0 {
		c.Timeout = 5 * time.Second
	}
	if c.MaxReconnects == 0 {
		c.MaxReconnects = 60
	}
	if c.ReconnectWait == 0 {
		c.ReconnectWait = 2 * time.Second
	}
}

// validate 验证配置
func (c *NATSConfig) validate() error {
	c.setDefaults()
	if c.URL == "" {
		return fmt.Errorf("nats url is required")
	}
	return nil
}
