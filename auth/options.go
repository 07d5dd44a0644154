package auth

import (
	"sync"

	"github.com/ceyewan/orderlock/clog"
	"github.com/ceyewan/orderlock/metrics"
)

// Option 配置选项函数
type Option func(*options)

// options 内部选项结构
type options struct {
	logger clog.Logger
	meter  metrics.Meter

	mu         sync.Mutex
	counters   map[string]metrics.Counter
	histograms map[string]metrics.Histogram
}

// defaultOptions 创建默认选项，使用 Discard() 作为空实现
func defaultOptions() *options {
	return &options{
		logger:     clog.Discard(),
		meter:      metrics.Discard(),
		counters:   make(map[string]metrics.Counter),
		histograms: make(map[string]metrics.Histogram),
	}
}

// GetCounter 返回按名称缓存的计数器，创建失败时返回 nil
func (o *options) GetCounter(name, desc string) metrics.Counter {
	o.mu.Lock()
	defer o.mu.Unlock()

	if c, ok := o.counters[name]; ok {
		return c
	}
	c, err := o.meter.Counter(name, desc)
	if err != nil {
		return nil
	}
	o.counters[name] = c
	return c
}

// GetHistogram 返回按名称缓存的直方图，创建失败时返回 nil
func (o *options) GetHistogram(name, desc string) metrics.Histogram {
	o.mu.Lock()
	defer o.mu.Unlock()

	if h, ok := o.histograms[name]; ok {
		return h
	}
	h, err := o.meter.Histogram(name, desc, metrics.WithUnit("s"))
	if err != nil {
		return nil
	}
	o.histograms[name] = h
	return h
}

// WithLogger 注入日志记录器，自动添加 "auth" 命名空间
func WithLogger(l clog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l.WithNamespace("auth")
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
