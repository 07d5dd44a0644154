package db

import (
	"github.com/ceyewan/orderlock/clog"
	"github.com/ceyewan/orderlock/connector"
)

// Option 配置 DB 实例的选项
type Option func(*options)

// options 内部选项结构
type options struct {
	logger          clog.Logger
	mysqlConnector  connector.MySQLConnector
	sqliteConnector connector.SQLiteConnector
	silentMode      bool // 静默模式，禁用 SQL 日志输出
}

// WithLogger 注入日志记录器
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("db")
		}
	}
}

// WithMySQLConnector 注入 MySQL 连接器
func WithMySQLConnector(conn connector.MySQLConnector) Option {
	return func(o *options) {
		o.mysqlConnector = conn
	}
}

// WithSQLiteConnector 注入 SQLite 连接器
func WithSQLiteConnector(conn connector.SQLiteConnector) Option {
	return func(o *options) {
		o.sqliteConnector = conn
	}
}

// WithSilentMode 启用静默模式，禁用 SQL 日志输出
// 适用于测试环境或不需要 SQL 日志的场景
func WithSilentMode() Option {
	return func(o *options) {
		o.silentMode = true
	}
}
