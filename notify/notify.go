// Package notify 通过 NATS 广播锁事件。
//
// 通知是 fire-and-forget 的：发布失败只记日志，
// 绝不阻塞或失败锁操作本身。发布路径由熔断器保护，
// broker 故障时快速放弃而不是在每次调用上超时。
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sony/gobreaker/v2"

	"github.com/ceyewan/orderlock/clog"
	"github.com/ceyewan/orderlock/connector"
	"github.com/ceyewan/orderlock/lease"
	"github.com/ceyewan/orderlock/xerrors"
)

// Config 通知器配置
type Config struct {
	// SubjectPrefix NATS 主题前缀 (默认: "orderlock")
	// 事件发布到 "{prefix}.{event}"
	SubjectPrefix string `mapstructure:"subject_prefix"`

	// BreakerTimeout 熔断器打开后的冷却时间 (默认: 30s)
	BreakerTimeout time.Duration `mapstructure:"breaker_timeout"`

	// FailureRatio 触发熔断的失败率阈值 (默认: 0.6)
	FailureRatio float64 `mapstructure:"failure_ratio"`

	// MinimumRequests 触发熔断前的最小请求数 (默认: 10)
	MinimumRequests uint32 `mapstructure:"minimum_requests"`
}

func (c *Config) setDefaults() {
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = "orderlock"
	}
	if c.BreakerTimeout == 0 {
		c.BreakerTimeout = 30 * time.Second
	}
	if c.FailureRatio == 0 {
		c.FailureRatio = 0.6
	}
	if c.MinimumRequests == 0 {
		c.MinimumRequests = 10
	}
}

type natsNotifier struct {
	conn    *nats.Conn
	breaker *gobreaker.CircuitBreaker[any]
	prefix  string
	logger  clog.Logger
}

// Option 配置选项
type Option func(*natsNotifier)

// WithLogger 注入日志记录器
func WithLogger(l clog.Logger) Option {
	return func(n *natsNotifier) {
		if l != nil {
			n.logger = l.WithNamespace("notify")
		}
	}
}

// New 创建 NATS 通知器
func New(conn connector.NATSConnector, cfg *Config, opts ...Option) (lease.Notifier, error) {
	if conn == nil {
		return nil, xerrors.Wrap(xerrors.ErrInvalidInput, "notify: nats connector is nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.setDefaults()

	n := &natsNotifier{
		conn:   conn.GetClient(),
		prefix: cfg.SubjectPrefix,
		logger: clog.Discard(),
	}
	for _, o := range opts {
		o(n)
	}

	n.breaker = gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:    "notify-nats",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinimumRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			n.logger.Info("notify breaker state changed",
				clog.String("from", from.String()), clog.String("to", to.String()))
		},
	})

	return n, nil
}

// Notify 发布锁事件，失败只记日志
func (n *natsNotifier) Notify(ctx context.Context, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.WarnContext(ctx, "failed to encode event payload",
			clog.String("event", event), clog.Error(err))
		return
	}

	subject := n.prefix + "." + event
	_, err = n.breaker.Execute(func() (any, error) {
		return nil, n.conn.Publish(subject, data)
	})
	if err != nil {
		n.logger.WarnContext(ctx, "failed to publish lock event",
			clog.String("subject", subject), clog.Error(err))
		return
	}

	n.logger.DebugContext(ctx, "lock event published", clog.String("subject", subject))
}

// Noop 返回丢弃所有事件的通知器，用于测试和无 broker 部署
func Noop() lease.Notifier {
	return noop{}
}

type noop struct{}

func (noop) Notify(ctx context.Context, event string, payload any) {}
