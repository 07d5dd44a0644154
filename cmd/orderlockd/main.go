// orderlockd 是订单锁协调器服务的入口。
//
// 启动顺序：配置 → 日志 → 指标 → 连接器 → 存储组件 → 协调器 →
// 后台清理 → HTTP 服务。关闭按 LIFO 顺序释放资源：
// 先停依赖连接器的组件，再关连接器。
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ceyewan/orderlock/api"
	"github.com/ceyewan/orderlock/auth"
	"github.com/ceyewan/orderlock/clog"
	"github.com/ceyewan/orderlock/config"
	"github.com/ceyewan/orderlock/connector"
	"github.com/ceyewan/orderlock/db"
	"github.com/ceyewan/orderlock/identity"
	"github.com/ceyewan/orderlock/lease"
	"github.com/ceyewan/orderlock/metrics"
	"github.com/ceyewan/orderlock/notify"
	"github.com/ceyewan/orderlock/order"
)

// AppConfig 服务的全部配置，从 config.Loader 反序列化
type AppConfig struct {
	Server struct {
		Addr            string        `mapstructure:"addr"`
		ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	} `mapstructure:"server"`

	Log      clog.Config           `mapstructure:"log"`
	Metrics  metrics.Config        `mapstructure:"metrics"`
	Auth     auth.Config           `mapstructure:"auth"`
	Redis    connector.RedisConfig `mapstructure:"redis"`
	MySQL    connector.MySQLConfig `mapstructure:"mysql"`
	NATS     connector.NATSConfig  `mapstructure:"nats"`
	DB       db.Config             `mapstructure:"db"`
	Lease    lease.Config          `mapstructure:"lease"`
	Notify   notify.Config         `mapstructure:"notify"`
	Identity identity.Config       `mapstructure:"identity"`
	Router   api.RouterConfig      `mapstructure:"router"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "orderlockd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// 配置
	loader, err := config.New(&config.Config{
		Name:  "config",
		Paths: []string{".", "./configs", "/etc/orderlockd"},
	})
	if err != nil {
		return fmt.Errorf("create config loader: %w", err)
	}
	if err := loader.Load(ctx); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cfg := &AppConfig{}
	if err := loader.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	// 日志
	logger, err := clog.New(&cfg.Log)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Flush()

	// 指标
	meter, err := metrics.New(&cfg.Metrics, metrics.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create meter: %w", err)
	}
	defer meter.Shutdown(ctx)

	// 连接器
	redisConn, err := connector.NewRedis(&cfg.Redis, connector.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create redis connector: %w", err)
	}
	if err := redisConn.Connect(ctx); err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisConn.Close()

	mysqlConn, err := connector.NewMySQL(&cfg.MySQL, connector.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create mysql connector: %w", err)
	}
	if err := mysqlConn.Connect(ctx); err != nil {
		return fmt.Errorf("connect mysql: %w", err)
	}
	defer mysqlConn.Close()

	// NATS 可选：URL 为空时退化为 Noop 通知器
	notifier := notify.Noop()
	if cfg.NATS.URL != "" {
		natsConn, err := connector.NewNATS(&cfg.NATS, connector.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("create nats connector: %w", err)
		}
		if err := natsConn.Connect(ctx); err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer natsConn.Close()

		notifier, err = notify.New(natsConn, &cfg.Notify, notify.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("create notifier: %w", err)
		}
	}

	// 数据库组件
	database, err := db.New(&cfg.DB,
		db.WithMySQLConnector(mysqlConn),
		db.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create db component: %w", err)
	}
	defer database.Close()

	if err := database.AutoMigrate(&lease.Lease{}); err != nil {
		return fmt.Errorf("migrate lease table: %w", err)
	}

	// 协调器及其协作者
	store, err := lease.NewStore(redisConn, &cfg.Lease, lease.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create lease store: %w", err)
	}
	repo, err := lease.NewRepository(database)
	if err != nil {
		return fmt.Errorf("create lease repository: %w", err)
	}
	checker, err := order.NewChecker(database, order.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create order checker: %w", err)
	}
	resolver, err := identity.NewResolver(database, &cfg.Identity, identity.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create identity resolver: %w", err)
	}

	coordinator, err := lease.NewCoordinator(store, repo, checker, &cfg.Lease,
		lease.WithLogger(logger),
		lease.WithMeter(meter),
		lease.WithNotifier(notifier),
		lease.WithNameResolver(resolver))
	if err != nil {
		return fmt.Errorf("create coordinator: %w", err)
	}

	reaper, err := lease.NewReaper(coordinator, &cfg.Lease, lease.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create reaper: %w", err)
	}
	reaper.Start()
	defer reaper.Stop()

	// HTTP
	authenticator, err := auth.New(&cfg.Auth, auth.WithLogger(logger), auth.WithMeter(meter))
	if err != nil {
		return fmt.Errorf("create authenticator: %w", err)
	}

	handler, err := api.NewHandler(coordinator, logger)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	httpMetrics, err := metrics.NewHTTPServerMetrics(meter,
		metrics.DefaultHTTPServerMetricsConfig("orderlock"))
	if err != nil {
		return fmt.Errorf("create http metrics: %w", err)
	}

	engine := api.NewRouter(handler, authenticator, &cfg.Router, httpMetrics)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server starting", clog.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// 等待退出信号
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case sig := <-sigCh:
		logger.Info("shutdown signal received", clog.String("signal", sig.String()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}

	logger.Info("orderlockd stopped")
	return nil
}
