// Package testkit 提供测试共用的依赖构造函数。
//
// 单元测试使用 miniredis 和 SQLite 内存库，完全不依赖外部环境；
// 集成测试基于 testcontainers，通过 ORDERLOCK_TEST_INTEGRATION=1 启用。
package testkit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ceyewan/orderlock/clog"
	"github.com/ceyewan/orderlock/metrics"
)

// Kit 包含通用的测试依赖
type Kit struct {
	Ctx    context.Context
	Logger clog.Logger
	Meter  metrics.Meter
}

// NewKit 返回一个包含默认依赖的测试工具包
func NewKit(t *testing.T) *Kit {
	return &Kit{
		Ctx:    context.Background(),
		Logger: NewLogger(),
		Meter:  metrics.Discard(),
	}
}

// NewLogger 返回一个用于测试的 logger
// 输出到开发环境格式，适合本地调试
func NewLogger() clog.Logger {
	logger, err := clog.New(clog.NewDevDefaultConfig("orderlock-test"))
	if err != nil {
		return clog.Discard()
	}
	return logger
}

// NewContext 返回一个带有超时的测试上下文
func NewContext(t *testing.T, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// NewID 返回一个唯一的测试 ID (UUID v4 前 8 位)
// 用于生成唯一的 Key 或表名后缀，避免测试间数据冲突
func NewID() string {
	return uuid.New().String()[0:8]
}

// SkipUnlessIntegration 跳过未启用集成环境的测试
func SkipUnlessIntegration(t *testing.T) {
	if os.Getenv("ORDERLOCK_TEST_INTEGRATION") != "1" {
		t.Skip("integration tests disabled, set ORDERLOCK_TEST_INTEGRATION=1 to enable")
	}
}
