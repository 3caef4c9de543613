package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/0xIIEST/attend-ease/pkg/jwt"
	"github.com/0xIIEST/attend-ease/pkg/redis"
	"github.com/0xIIEST/attend-ease/pkg/response"
)

// 注入到 gin.Context 的认证信息键名
const (
	ctxStudentID = "student_id"
	ctxCollegeID = "college_id"
	ctxSessionID = "session_id"
	ctxTokenJTI  = "token_jti"
	ctxTokenExp  = "token_exp"
)

// JWTAuth 学生认证中间件
// 从 Authorization: Bearer <token> 中提取 Access Token，校验签名、类型与黑名单，
// 通过后注入 student_id / college_id / session_id 以及登出所需的 jti 与过期时间。
// rdb 为 nil 或 Redis 出错时跳过黑名单检查。
func JWTAuth(jwtMgr *jwt.Manager, rdb *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, found := strings.Cut(c.GetHeader("Authorization"), " ")
		if !found || scheme != "Bearer" || token == "" {
			response.Unauthorized(c, 10002, "缺少或无效的认证头")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(token)
		if err != nil {
			response.Unauthorized(c, 10002, "Token 无效或已过期")
			c.Abort()
			return
		}
		if claims.TokenType != jwt.TokenTypeAccess || claims.SessionID == "" {
			response.Unauthorized(c, 10002, "Token 类型无效")
			c.Abort()
			return
		}

		if rdb != nil && claims.ID != "" {
			if revoked, err := rdb.IsBlacklisted(c.Request.Context(), claims.ID); err == nil && revoked {
				response.Unauthorized(c, 10002, "Token 已注销")
				c.Abort()
				return
			}
		}

		c.Set(ctxStudentID, claims.StudentID)
		c.Set(ctxCollegeID, claims.CollegeID)
		c.Set(ctxSessionID, claims.SessionID)
		c.Set(ctxTokenJTI, claims.ID)
		if claims.ExpiresAt != nil {
			c.Set(ctxTokenExp, claims.ExpiresAt.Time)
		}

		c.Next()
	}
}
