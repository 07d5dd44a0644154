package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// TimeoutMiddleware 为每个请求附加超时。
// 协调器的所有存储访问都继承该 deadline，保证没有调用无限阻塞
func TimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// clientLimiter 单个客户端的限流器及其最近活跃时间
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware 按客户端 IP 的令牌桶限流。
// 超限返回 429。空闲条目在请求路径上惰性回收，
// 不占用后台 goroutine，引擎可随测试自然回收
func RateLimitMiddleware(rps float64, burst int) gin.HandlerFunc {
	var mu sync.Mutex
	clients := make(map[string]*clientLimiter)
	lastSweep := time.Now()

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		if now.Sub(lastSweep) > time.Minute {
			for addr, cl := range clients {
				if now.Sub(cl.lastSeen) > 3*time.Minute {
					delete(clients, addr)
				}
			}
			lastSweep = now
		}

		cl, ok := clients[ip]
		if !ok {
			cl = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
			clients[ip] = cl
		}
		cl.lastSeen = now
		allowed := cl.limiter.Allow()
		mu.Unlock()

		if !allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, errorBody{
				StatusCode: http.StatusTooManyRequests,
				Message:    "too many requests",
			})
			return
		}
		c.Next()
	}
}
