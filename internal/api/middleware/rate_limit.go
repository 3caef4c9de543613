package middleware

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/0xIIEST/attend-ease/pkg/redis"
	"github.com/0xIIEST/attend-ease/pkg/response"
)

// RateLimit 按客户端 IP + 路由限流（Redis 滑动窗口），用于登录接口防爆破
// limit <= 0 或 rdb 为 nil 时不限流；Redis 出错时放行
func RateLimit(rdb *redis.Client, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if rdb == nil || limit <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("attendease:rl:%s:%s", c.FullPath(), c.ClientIP())
		allowed, err := rdb.CheckRateLimit(c.Request.Context(), key, limit, window)
		if err == nil && !allowed {
			c.Header("Retry-After", fmt.Sprintf("%d", int(window.Seconds())))
			response.TooManyRequests(c, "登录尝试过于频繁，请稍后再试")
			c.Abort()
			return
		}

		c.Next()
	}
}
