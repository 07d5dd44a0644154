package clog

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// NamespaceKey 是日志中命名空间的字段名，用于标识服务模块
const NamespaceKey = "namespace"

// logger 是 Logger 接口的 slog 实现
type logger struct {
	slog      *slog.Logger
	level     *slog.LevelVar
	namespace []string
	nsAttr    slog.Attr // 预计算的命名空间字段，记录时追加
	file      *os.File  // 仅当输出到文件时非 nil，Flush 时同步
}

// newLogger 创建 slog 后端的 Logger（内部使用）
func newLogger(config *Config, options *options) (Logger, error) {
	level, err := ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	levelVar := new(slog.LevelVar)
	levelVar.Set(slog.Level(level))

	var w *os.File
	var file *os.File
	switch config.Output {
	case "", "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		f, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		w = f
		file = f
	}

	handlerOpts := &slog.HandlerOptions{
		Level:     levelVar,
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if strings.ToLower(config.Format) == "json" {
		handler = slog.NewJSONHandler(w, handlerOpts)
	} else {
		handler = slog.NewTextHandler(w, handlerOpts)
	}

	l := &logger{
		slog:  slog.New(handler),
		level: levelVar,
		file:  file,
	}

	if len(options.namespaceParts) > 0 {
		return l.WithNamespace(options.namespaceParts...), nil
	}
	return l, nil
}

func (l *logger) log(ctx context.Context, level Level, msg string, fields []Field) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !l.nsAttr.Equal(slog.Attr{}) {
		fields = append([]Field{l.nsAttr}, fields...)
	}
	l.slog.LogAttrs(ctx, slog.Level(level), msg, fields...)
}

func (l *logger) Debug(msg string, fields ...Field) {
	l.log(nil, DebugLevel, msg, fields)
}

func (l *logger) Info(msg string, fields ...Field) {
	l.log(nil, InfoLevel, msg, fields)
}

func (l *logger) Warn(msg string, fields ...Field) {
	l.log(nil, WarnLevel, msg, fields)
}

func (l *logger) Error(msg string, fields ...Field) {
	l.log(nil, ErrorLevel, msg, fields)
}

func (l *logger) Fatal(msg string, fields ...Field) {
	l.log(nil, FatalLevel, msg, fields)
	l.Flush()
	os.Exit(1)
}

func (l *logger) DebugContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, DebugLevel, msg, fields)
}

func (l *logger) InfoContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, InfoLevel, msg, fields)
}

func (l *logger) WarnContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, WarnLevel, msg, fields)
}

func (l *logger) ErrorContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, ErrorLevel, msg, fields)
}

func (l *logger) FatalContext(ctx context.Context, msg string, fields ...Field) {
	l.log(ctx, FatalLevel, msg, fields)
	l.Flush()
	os.Exit(1)
}

// With 创建一个带有预设字段的子 Logger
func (l *logger) With(fields ...Field) Logger {
	if len(fields) == 0 {
		return l
	}
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	child := *l
	child.slog = l.slog.With(args...)
	return &child
}

// WithNamespace 创建一个扩展命名空间的子 Logger
//
// 命名空间以 "." 连接并作为 namespace 字段输出。
func (l *logger) WithNamespace(parts ...string) Logger {
	if len(parts) == 0 {
		return l
	}
	ns := make([]string, 0, len(l.namespace)+len(parts))
	ns = append(ns, l.namespace...)
	ns = append(ns, parts...)

	child := *l
	child.namespace = ns
	child.nsAttr = slog.String(NamespaceKey, strings.Join(ns, "."))
	return &child
}

// SetLevel 动态调整日志级别
func (l *logger) SetLevel(level Level) error {
	if _, err := ParseLevel(level.String()); err != nil {
		return err
	}
	l.level.Set(slog.Level(level))
	return nil
}

// Flush 强制同步所有缓冲区的日志
func (l *logger) Flush() {
	if l.file != nil {
		_ = l.file.Sync()
	}
}

// =============================================================================
// 包级默认 Logger
// =============================================================================

var (
	defaultOnce   sync.Once
	defaultLogger Logger
)

// Default 返回包级默认 Logger（console 格式，info 级别）
func Default() Logger {
	defaultOnce.Do(func() {
		l, err := New(&Config{Level: "info", Format: "console", Output: "stdout"})
		if err != nil {
			l = Discard()
		}
		defaultLogger = l
	})
	return defaultLogger
}

// Discard 返回丢弃所有日志的 Logger，用于测试或可选依赖的默认值
func Discard() Logger {
	return &logger{
		slog:  slog.New(slog.DiscardHandler),
		level: new(slog.LevelVar),
	}
}
