package connector

import "github.com/ceyewan/orderlock/clog"

// Option 连接器可选参数
type Option func(*options)

// options 内部选项结构
type options struct {
	logger clog.Logger
}

// applyDefaults 为未设置的选项填充默认值
func (o *options) applyDefaults() {
	if o.logger == nil {
		o.logger = clog.Discard()
	}
}

// WithLogger 注入日志记录器
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("connector")
		}
	}
}
