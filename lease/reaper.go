package lease

import (
	"context"
	"time"

	"github.com/ceyewan/orderlock/clog"
)

// Reaper 周期性清理过期持久行的后台任务。
//
// 清理只影响持久层：快路径键靠 TTL 自行消失。
// 到期的租约在任何读路径上都已视为未锁定，清理不影响正确性，
// 只回收存储空间，因此单次失败仅告警，等待下一轮。
type Reaper struct {
	coordinator Coordinator
	interval    time.Duration
	logger      clog.Logger
	stop        chan struct{}
	done        chan struct{}
}

// NewReaper 创建清理任务，interval 为 0 时使用 Config 默认值
func NewReaper(coordinator Coordinator, cfg *Config, opts ...Option) (*Reaper, error) {
	if coordinator == nil {
		return nil, xerrorsNil("coordinator")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	opt := &options{}
	for _, o := range opts {
		o(opt)
	}
	opt.applyDefaults()

	return &Reaper{
		coordinator: coordinator,
		interval:    cfg.CleanupInterval,
		logger:      opt.logger,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}, nil
}

// Start 启动后台清理循环，立即返回
func (r *Reaper) Start() {
	go r.run()
	r.logger.Info("lease reaper started", clog.Duration("interval", r.interval))
}

// Stop 停止清理循环并等待当前一轮结束。幂等性由调用方保证
func (r *Reaper) Stop() {
	close(r.stop)
	<-r.done
	r.logger.Info("lease reaper stopped")
}

func (r *Reaper) run() {
	defer close(r.done)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			removed, err := r.coordinator.Cleanup(ctx)
			cancel()

			if err != nil {
				r.logger.Warn("lease cleanup sweep failed", clog.Error(err))
				continue
			}
			if removed > 0 {
				r.logger.Info("lease cleanup sweep completed", clog.Int64("removed", removed))
			}
		}
	}
}
