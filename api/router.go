package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ceyewan/orderlock/auth"
	"github.com/ceyewan/orderlock/metrics"
)

// RouterConfig 路由器配置
type RouterConfig struct {
	// RequestTimeout 单请求超时 (默认: 2s)
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// RateLimitRPS 每客户端每秒请求数 (默认: 20)
	RateLimitRPS float64 `mapstructure:"rate_limit_rps"`

	// RateLimitBurst 突发容量 (默认: 40)
	RateLimitBurst int `mapstructure:"rate_limit_burst"`
}

func (c *RouterConfig) setDefaults() {
	if c.RequestTimeout == 0 {
		c.RequestTimeout = 2 * time.Second
	}
	if c.RateLimitRPS == 0 {
		c.RateLimitRPS = 20
	}
	if c.RateLimitBurst == 0 {
		c.RateLimitBurst = 40
	}
}

// NewRouter 组装 gin 引擎。
// 中间件顺序：recovery → 超时 → 指标 → 限流 → 认证（仅业务路由）
func NewRouter(handler *Handler, authenticator auth.Authenticator, cfg *RouterConfig, httpMetrics *metrics.HTTPServerMetrics) *gin.Engine {
	if cfg == nil {
		cfg = &RouterConfig{}
	}
	cfg.setDefaults()

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(TimeoutMiddleware(cfg.RequestTimeout))
	if httpMetrics != nil {
		engine.Use(metrics.GinHTTPMiddleware(httpMetrics))
	}
	engine.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	locks := engine.Group("/api/order-locks")
	locks.Use(authenticator.GinMiddleware())
	{
		locks.POST("/acquire", handler.Acquire)
		locks.DELETE("/release/:orderId", handler.Release)
		locks.POST("/renew/:orderId", handler.Renew)
		locks.GET("/status/:orderId", handler.Status)
	}

	return engine
}
