package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/0xIIEST/attend-ease/config"
	"github.com/0xIIEST/attend-ease/internal/api/handler"
	"github.com/0xIIEST/attend-ease/internal/api/middleware"
	"github.com/0xIIEST/attend-ease/pkg/jwt"
	"github.com/0xIIEST/attend-ease/pkg/redis"
)

// 请求体上限：本服务只接收小体量 JSON
const maxBodyBytes = 64 << 10

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, jwtMgr *jwt.Manager, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(middleware.RequestID())
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(maxBodyBytes))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 认证模块（无需认证）
		auth := v1.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", middleware.RateLimit(rdb, cfg.Auth.LoginRateLimit, cfg.Auth.LoginRateWindow), h.Auth.Login)
			auth.POST("/refresh", h.Auth.RefreshToken)
		}

		// 需要认证的路由
		authorized := v1.Group("")
		authorized.Use(middleware.JWTAuth(jwtMgr, rdb))
		{
			authorized.POST("/auth/logout", h.Auth.Logout)
			authorized.GET("/auth/me", h.Auth.GetCurrentStudent)

			// 考勤模块
			attendance := authorized.Group("/attendance")
			{
				attendance.GET("/dashboard", h.Attendance.Dashboard)
				attendance.GET("/records", h.Attendance.ListRecords)
				attendance.PUT("/records", h.Attendance.MarkAttendance)
				attendance.GET("/subjects/:code", h.Attendance.SubjectDetail)
				attendance.GET("/daily", h.Attendance.DailySchedule)
			}

			// 课表目录
			schedule := authorized.Group("/schedule")
			{
				schedule.GET("", h.Schedule.GetCatalog)
				schedule.GET("/weekly", h.Schedule.GetWeekly)
				schedule.GET("/holidays", h.Schedule.ListHolidays)
				schedule.GET("/exams", h.Schedule.ListExamPeriods)
			}

			// 导出
			export := authorized.Group("/export")
			{
				export.GET("/attendance", h.Export.ExportAttendance)
				export.GET("/calendar", h.Export.ExportCalendar)
			}
		}
	}

	return r
}
