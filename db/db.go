// Package db 提供了基于 GORM 的数据库组件。
//
// db 组件在 MySQL/SQLite 连接器的基础上提供了：
// - GORM ORM 功能封装
// - 事务管理支持
// - SQL 日志接入 clog，慢查询告警
// - OpenTelemetry 插件接入（基于 otelgorm）
//
// ## 基本使用
//
//	mysqlConn, _ := connector.NewMySQL(&cfg.MySQL, connector.WithLogger(logger))
//	defer mysqlConn.Close()
//	mysqlConn.Connect(ctx)
//
//	database, _ := db.New(&db.Config{Driver: "mysql"},
//		db.WithMySQLConnector(mysqlConn),
//		db.WithLogger(logger))
//
//	// 使用 GORM 进行数据库操作
//	gormDB := database.DB(ctx)
//	var leases []Lease
//	gormDB.Where("expires_at > ?", time.Now()).Find(&leases)
//
//	// 事务操作
//	err := database.Transaction(ctx, func(ctx context.Context, tx *gorm.DB) error {
//		return tx.Create(&lease).Error
//	})
//
// ## 设计原则
//
// - **借用模型**：db 组件借用连接器的连接，不负责连接的生命周期
// - **显式依赖**：通过构造函数显式注入连接器和选项
package db

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/gorm"

	"github.com/ceyewan/orderlock/xerrors"
)

// database 是 DB 接口的实现
type database struct {
	client *gorm.DB
}

// DB 定义了数据库组件的核心能力
type DB interface {
	// DB 获取底层的 *gorm.DB 实例
	// 绝大多数业务查询直接使用此方法返回的对象
	DB(ctx context.Context) *gorm.DB

	// Transaction 执行事务操作
	// fn 中的 tx 对象仅在当前事务范围内有效
	Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error

	// AutoMigrate 同步给定模型的表结构
	AutoMigrate(models ...any) error

	// Close 关闭组件
	Close() error
}

// New 创建数据库组件实例
//
// 根据 cfg.Driver 选择注入的连接器：
//   - "mysql": 需要 db.WithMySQLConnector
//   - "sqlite": 需要 db.WithSQLiteConnector
func New(cfg *Config, opts ...Option) (DB, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, xerrors.Wrapf(ErrInvalidConfig, "%v", err)
	}

	opt := options{}
	for _, o := range opts {
		o(&opt)
	}

	var gormDB *gorm.DB
	switch cfg.Driver {
	case "mysql":
		if opt.mysqlConnector == nil {
			return nil, ErrMySQLConnectorRequired
		}
		gormDB = opt.mysqlConnector.GetClient()
	case "sqlite":
		if opt.sqliteConnector == nil {
			return nil, ErrSQLiteConnectorRequired
		}
		gormDB = opt.sqliteConnector.GetClient()
	}

	if gormDB == nil {
		return nil, xerrors.Wrap(ErrInvalidConfig, "connector has no client, call Connect first")
	}

	if opt.logger != nil {
		threshold := time.Duration(cfg.SlowThresholdMS) * time.Millisecond
		gormDB.Logger = newGormLogger(opt.logger, threshold, opt.silentMode)
	}

	if cfg.EnableTracing {
		if err := gormDB.Use(otelgorm.NewPlugin()); err != nil {
			return nil, xerrors.Wrapf(err, "failed to register otelgorm plugin")
		}
	}

	return &database{client: gormDB}, nil
}

// DB 获取底层的 *gorm.DB 实例
func (d *database) DB(ctx context.Context) *gorm.DB {
	return d.client.WithContext(ctx)
}

// Transaction 执行事务操作
func (d *database) Transaction(ctx context.Context, fn func(ctx context.Context, tx *gorm.DB) error) error {
	return d.client.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, tx)
	})
}

// AutoMigrate 同步给定模型的表结构
func (d *database) AutoMigrate(models ...any) error {
	return d.client.AutoMigrate(models...)
}

// Close 关闭组件
func (d *database) Close() error {
	// GORM 的连接由连接器管理，这里不需要额外关闭
	return nil
}
