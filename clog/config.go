package clog

import (
	"fmt"
	"strings"
)

// Config 日志配置结构，定义日志的基本行为
//
// 支持的配置项：
//
//	Level: 日志级别 (debug|info|warn|error|fatal)
//	Format: 输出格式 (json|console)
//	Output: 输出目标 (stdout|stderr|文件路径)
//	AddSource: 是否显示调用位置信息
type Config struct {
	Level     string `json:"level" yaml:"level" mapstructure:"level"`
	Format    string `json:"format" yaml:"format" mapstructure:"format"`
	Output    string `json:"output" yaml:"output" mapstructure:"output"`
	AddSource bool   `json:"add_source" yaml:"add_source" mapstructure:"add_source"`
}

// NewDevDefaultConfig 返回适合本地开发的默认配置
func NewDevDefaultConfig(service string) *Config {
	_ = service
	return &Config{
		Level:  "debug",
		Format: "console",
		Output: "stdout",
	}
}

// NewProdDefaultConfig 返回适合生产环境的默认配置
func NewProdDefaultConfig() *Config {
	return &Config{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}
}

// validate 验证配置的有效性（内部使用）
func (c *Config) validate() error {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "console"
	}
	if c.Output == "" {
		c.Output = "stdout"
	}

	if _, err := ParseLevel(c.Level); err != nil {
		return err
	}
	format := strings.ToLower(c.Format)
	if format != "json" && format != "console" {
		return fmt.Errorf("invalid format: %s, must be json or console", c.Format)
	}
	// Output 可以是 stdout, stderr 或文件路径，不做严格校验
	return nil
}
