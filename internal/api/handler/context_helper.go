package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/0xIIEST/attend-ease/pkg/response"
)

// MustGetStudentID 从 Gin 上下文中安全提取 student_id。
// 如果 JWT 中间件未正确注入 student_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetStudentID(c *gin.Context) (string, bool) {
	return mustGetString(c, "student_id")
}

// MustGetSessionID 从 Gin 上下文中安全提取会话 ID（token 的 sid 声明）
func MustGetSessionID(c *gin.Context) (string, bool) {
	return mustGetString(c, "session_id")
}

func mustGetString(c *gin.Context, key string) (string, bool) {
	v, exists := c.Get(key)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// tokenInfo 当前 access token 的 jti 与过期时间（登出拉黑用）
func tokenInfo(c *gin.Context) (string, time.Time) {
	jti := c.GetString("token_jti")
	exp, _ := c.Get("token_exp")
	expiresAt, _ := exp.(time.Time)
	return jti, expiresAt
}
