package testkit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ceyewan/orderlock/connector"
	"github.com/ceyewan/orderlock/db"
)

// NewSQLiteConfig 返回 SQLite 测试配置
// 每个测试使用独立的临时文件库，避免 cache=shared 内存库在并行测试间串数据
func NewSQLiteConfig(t *testing.T) *connector.SQLiteConfig {
	return &connector.SQLiteConfig{
		Path: t.TempDir() + "/test.db",
	}
}

// NewSQLiteConnector 获取 SQLite 连接器
// 生命周期由 t.Cleanup 管理
func NewSQLiteConnector(t *testing.T) connector.SQLiteConnector {
	cfg := NewSQLiteConfig(t)
	conn, err := connector.NewSQLite(cfg, connector.WithLogger(NewLogger()))
	require.NoError(t, err, "failed to create sqlite connector")

	err = conn.Connect(context.Background())
	require.NoError(t, err, "failed to connect to sqlite")

	t.Cleanup(func() {
		_ = conn.Close()
	})

	return conn
}

// NewSQLiteGorm 获取原生 GORM DB 实例
func NewSQLiteGorm(t *testing.T) *gorm.DB {
	return NewSQLiteConnector(t).GetClient()
}

// NewSQLiteDatabase 获取 db 组件实例，并迁移给定模型
func NewSQLiteDatabase(t *testing.T, models ...any) db.DB {
	conn := NewSQLiteConnector(t)

	database, err := db.New(&db.Config{Driver: "sqlite"},
		db.WithSQLiteConnector(conn),
		db.WithLogger(NewLogger()),
		db.WithSilentMode(),
	)
	require.NoError(t, err, "failed to create db component")

	if len(models) > 0 {
		require.NoError(t, database.AutoMigrate(models...), "failed to migrate test models")
	}

	return database
}
