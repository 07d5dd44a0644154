package testkit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	rediscontainer "github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/ceyewan/orderlock/connector"
)

// NewMiniredis 启动一个进程内 Redis，生命周期由 t.Cleanup 管理
func NewMiniredis(t *testing.T) *miniredis.Miniredis {
	return miniredis.RunT(t)
}

// NewMiniredisConnector 获取连接到 miniredis 的 Redis 连接器
// 适合单元测试：无外部依赖，支持 FastForward 操纵键 TTL
func NewMiniredisConnector(t *testing.T) (connector.RedisConnector, *miniredis.Miniredis) {
	mr := NewMiniredis(t)

	cfg := &connector.RedisConfig{
		Name: "test-miniredis",
		Addr: mr.Addr(),
	}
	conn, err := connector.NewRedis(cfg, connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create redis connector")

	err = conn.Connect(context.Background())
	require.NoError(t, err, "failed to connect to miniredis")

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn, mr
}

// NewRedisContainerConfig 使用 testcontainers 创建 Redis 容器并返回配置
// 生命周期由 t.Cleanup 管理
func NewRedisContainerConfig(t *testing.T) *connector.RedisConfig {
	ctx := context.Background()

	container, err := rediscontainer.Run(ctx, "redis:7")
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "failed to start Redis container")

	endpoint, err := container.Endpoint(ctx, "")
	require.NoError(t, err)

	return &connector.RedisConfig{
		Name:        "testcontainer-redis",
		Addr:        endpoint,
		DialTimeout: 5 * time.Second,
	}
}

// NewRedisContainerConnector 获取基于 testcontainers 的 Redis 连接器
// 生命周期由 t.Cleanup 管理
func NewRedisContainerConnector(t *testing.T) connector.RedisConnector {
	cfg := NewRedisContainerConfig(t)

	conn, err := connector.NewRedis(cfg, connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create redis connector")

	err = conn.Connect(context.Background())
	require.NoError(t, err, "failed to connect to redis")

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

// FlushRedis 清空 Redis 数据库（慎用！）
func FlushRedis(t *testing.T, client *redis.Client) {
	if err := client.FlushDB(context.Background()).Err(); err != nil {
		t.Fatalf("failed to flush redis: %v", err)
	}
}
