package lease

import (
	"github.com/ceyewan/orderlock/clog"
	"github.com/ceyewan/orderlock/metrics"
)

// Option 配置租约组件的选项
type Option func(*options)

// options 内部选项结构
type options struct {
	logger   clog.Logger
	meter    metrics.Meter
	notifier Notifier
	resolver NameResolver
}

// applyDefaults 为未设置的选项填充默认值
func (o *options) applyDefaults() {
	if o.logger == nil {
		o.logger = clog.Discard()
	}
	if o.meter == nil {
		o.meter = metrics.Discard()
	}
	if o.notifier == nil {
		o.notifier = noopNotifier{}
	}
	if o.resolver == nil {
		o.resolver = rawIDResolver{}
	}
}

// WithLogger 注入日志记录器，自动添加 "lease" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("lease")
		}
	}
}

// WithMeter 注入指标 Meter
func WithMeter(m metrics.Meter) Option {
	return func(o *options) {
		if m != nil {
			o.meter = m
		}
	}
}

// WithNotifier 注入事件通知器
func WithNotifier(n Notifier) Option {
	return func(o *options) {
		if n != nil {
			o.notifier = n
		}
	}
}

// WithNameResolver 注入持有者显示名解析器
func WithNameResolver(r NameResolver) Option {
	return func(o *options) {
		if r != nil {
			o.resolver = r
		}
	}
}
