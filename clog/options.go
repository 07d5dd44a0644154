package clog

// Option 函数式选项
type Option func(*options)

// options 内部选项结构
type options struct {
	namespaceParts []string
}

// applyOptions 应用所有选项并返回最终配置
func applyOptions(opts ...Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithNamespace 设置初始命名空间
//
// 示例：
//
//	logger, _ := clog.New(cfg, clog.WithNamespace("orderlockd"))
func WithNamespace(parts ...string) Option {
	return func(o *options) {
		o.namespaceParts = append(o.namespaceParts, parts...)
	}
}
