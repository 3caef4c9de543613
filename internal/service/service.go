package service

import (
	"go.uber.org/zap"

	"github.com/0xIIEST/attend-ease/config"
	"github.com/0xIIEST/attend-ease/internal/catalog"
	"github.com/0xIIEST/attend-ease/internal/repository"
	"github.com/0xIIEST/attend-ease/pkg/jwt"
	"github.com/0xIIEST/attend-ease/pkg/redis"
)

// Service 所有 Service 的聚合入口
type Service struct {
	Auth       AuthService
	Attendance AttendanceService
	Schedule   ScheduleService
	Export     ExportService
	Calendar   CalendarService

	// 供 main 启动会话清理与优雅关闭使用
	Sessions *SessionRegistry
	Backfill *BackfillEngine
}

// NewService 创建 Service 聚合
func NewService(
	cfg *config.Config,
	repo *repository.Repository,
	cat *catalog.Catalog,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	logger *zap.Logger,
) *Service {
	// 会话空闲过期与"记住我"的 refresh token 有效期一致
	sessions := NewSessionRegistry(cfg.Auth.RefreshTokenTTLRemember, logger)
	backfill := NewBackfillEngine(repo.Attendance, &cfg.Backfill, logger)
	identity := NewLocalIdentityProvider(repo.Credential, logger)

	return &Service{
		Auth:       NewAuthService(cfg, repo, cat, identity, sessions, jwtMgr, rdb, logger),
		Attendance: NewAttendanceService(cfg, repo, cat, sessions, backfill, logger),
		Schedule:   NewScheduleService(repo, cat, logger),
		Export:     NewExportService(cfg, repo, cat, logger),
		Calendar:   NewCalendarService(repo, cat, logger),
		Sessions:   sessions,
		Backfill:   backfill,
	}
}
