package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/0xIIEST/attend-ease/pkg/response"
)

// BodyLimit 请求体大小上限
// Content-Length 已声明超限时直接拒绝；未声明时交给 MaxBytesReader 在读取阶段截断，
// 此时 JSON 绑定失败，由各处理器按参数错误返回。
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			response.Error(c, http.StatusRequestEntityTooLarge, 10005, "请求体过大")
			c.Abort()
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
