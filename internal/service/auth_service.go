package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/0xIIEST/attend-ease/config"
	"github.com/0xIIEST/attend-ease/internal/catalog"
	"github.com/0xIIEST/attend-ease/internal/dto"
	"github.com/0xIIEST/attend-ease/internal/model"
	"github.com/0xIIEST/attend-ease/internal/repository"
	pkgerrors "github.com/0xIIEST/attend-ease/pkg/errors"
	"github.com/0xIIEST/attend-ease/pkg/jwt"
	"github.com/0xIIEST/attend-ease/pkg/redis"
)

var (
	ErrWeakPassword        = errors.New("密码至少需要 6 位")
	ErrInvalidGroup        = errors.New("分组只能为 A 或 B")
	ErrUnknownBranch       = errors.New("课表中没有该班级")
	ErrRefreshTokenInvalid = errors.New("刷新令牌无效或已过期")
	ErrStudentNotFound     = errors.New("学生档案不存在")
)

const (
	minPasswordLength      = 6
	defaultCurrentSemester = 2
)

// AuthService 认证业务接口
type AuthService interface {
	Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error)
	Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error)
	RefreshToken(ctx context.Context, refreshToken string) (*dto.TokenResponse, error)
	Logout(ctx context.Context, sessionID, jti string, expiresAt time.Time) error
	GetCurrentStudent(ctx context.Context, studentID string) (*dto.StudentResponse, error)
}

type authService struct {
	cfg      *config.Config
	repo     *repository.Repository
	cat      *catalog.Catalog
	identity IdentityProvider
	sessions *SessionRegistry
	jwtMgr   *jwt.Manager
	rdb      *redis.Client // 可为 nil
	logger   *zap.Logger
}

// NewAuthService 创建 AuthService 实例
func NewAuthService(
	cfg *config.Config,
	repo *repository.Repository,
	cat *catalog.Catalog,
	identity IdentityProvider,
	sessions *SessionRegistry,
	jwtMgr *jwt.Manager,
	rdb *redis.Client,
	logger *zap.Logger,
) AuthService {
	return &authService{
		cfg:      cfg,
		repo:     repo,
		cat:      cat,
		identity: identity,
		sessions: sessions,
		jwtMgr:   jwtMgr,
		rdb:      rdb,
		logger:   logger,
	}
}

// ═══════════════════════════════════════════════════════════
// Register — 注册（成功后不自动登录）
// ═══════════════════════════════════════════════════════════

func (s *authService) Register(ctx context.Context, req *dto.RegisterRequest) (*dto.RegisterResponse, error) {
	// 1. 业务校验
	group := strings.ToUpper(strings.TrimSpace(req.Group))
	if group != catalog.GroupA && group != catalog.GroupB {
		return nil, ErrInvalidGroup
	}
	if len(req.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	branch := strings.ToUpper(strings.TrimSpace(req.Branch))
	if len(s.cat.Subjects(branch, group)) == 0 {
		return nil, ErrUnknownBranch
	}

	collegeID := BuildCollegeID(req.Year, branch, req.RollNumber)
	email := AuthEmail(collegeID, s.cfg.Auth.EmailDomain)

	// 2. 创建身份
	accountID, err := s.identity.Register(ctx, email, req.Password, req.Name)
	if err != nil {
		return nil, err
	}

	// 3. 创建学生档案，失败时回滚身份
	profile := &model.StudentProfile{
		StudentID:       accountID,
		CollegeID:       collegeID,
		Name:            strings.TrimSpace(req.Name),
		Year:            req.Year,
		Branch:          branch,
		RollNumber:      req.RollNumber,
		Group:           group,
		AuthEmail:       email,
		CurrentSemester: defaultCurrentSemester,
	}
	if err := s.repo.Student.Create(ctx, profile); err != nil {
		if rbErr := s.identity.Remove(ctx, accountID); rbErr != nil {
			s.logger.Error("回滚身份失败", zap.String("account_id", accountID), zap.Error(rbErr))
		}
		if errors.Is(err, pkgerrors.ErrDuplicateKey) {
			return nil, ErrAlreadyRegistered
		}
		s.logger.Error("创建学生档案失败", zap.String("college_id", collegeID), zap.Error(err))
		return nil, err
	}

	s.logger.Info("学生注册成功", zap.String("college_id", collegeID))
	return &dto.RegisterResponse{
		ID:        profile.StudentID,
		CollegeID: profile.CollegeID,
		Name:      profile.Name,
	}, nil
}

// ═══════════════════════════════════════════════════════════
// Login — 登录并创建会话
// ═══════════════════════════════════════════════════════════

func (s *authService) Login(ctx context.Context, req *dto.LoginRequest) (*dto.TokenResponse, error) {
	collegeID := strings.ToUpper(strings.TrimSpace(req.CollegeID))

	// 1. 校验凭据
	accountID, err := s.identity.Authenticate(ctx, AuthEmail(collegeID, s.cfg.Auth.EmailDomain), req.Password)
	if err != nil {
		return nil, err
	}

	// 2. 查询档案
	profile, err := s.repo.Student.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Warn("凭据存在但缺少学生档案", zap.String("account_id", accountID))
			return nil, ErrInvalidCredentials
		}
		s.logger.Error("查询学生档案失败", zap.Error(err))
		return nil, err
	}

	// 3. 新建会话并签发 Token
	sess := s.sessions.Create(profile.StudentID)
	return s.issueTokens(profile, sess.ID, req.RememberMe)
}

// ═══════════════════════════════════════════════════════════
// RefreshToken — 轮换 Token 对，会话保持不变
// ═══════════════════════════════════════════════════════════

func (s *authService) RefreshToken(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	claims, err := s.jwtMgr.ParseToken(refreshToken)
	if err != nil || claims.TokenType != jwt.TokenTypeRefresh {
		return nil, ErrRefreshTokenInvalid
	}

	if s.sessions.IsRevoked(claims.SessionID) {
		return nil, ErrRefreshTokenInvalid
	}
	if s.rdb != nil {
		blacklisted, err := s.rdb.IsBlacklisted(ctx, claims.ID)
		if err != nil {
			s.logger.Warn("检查 Token 黑名单失败", zap.Error(err))
		} else if blacklisted {
			return nil, ErrRefreshTokenInvalid
		}
		revoked, err := s.rdb.IsSessionRevoked(ctx, claims.SessionID)
		if err != nil {
			s.logger.Warn("检查会话注销状态失败", zap.Error(err))
		} else if revoked {
			return nil, ErrRefreshTokenInvalid
		}
	}

	profile, err := s.repo.Student.GetByID(ctx, claims.StudentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRefreshTokenInvalid
		}
		s.logger.Error("查询学生档案失败", zap.Error(err))
		return nil, err
	}

	// 旧 refresh token 作废
	if s.rdb != nil && claims.ExpiresAt != nil {
		if err := s.rdb.BlacklistToken(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
			s.logger.Warn("作废旧 RefreshToken 失败", zap.Error(err))
		}
	}

	sess := s.sessions.Resume(claims.SessionID, profile.StudentID)
	return s.issueTokens(profile, sess.ID, claims.RememberMe)
}

// ═══════════════════════════════════════════════════════════
// Logout — 拉黑当前 access token 并注销会话
// ═══════════════════════════════════════════════════════════
//
// 会话 ID 记为已注销（本进程 + Redis），同一会话签发的 refresh token 随之失效，
// 无论客户端是否还持有 Cookie 或请求体里的旧 token。

func (s *authService) Logout(ctx context.Context, sessionID, jti string, expiresAt time.Time) error {
	s.sessions.Revoke(sessionID)

	if s.rdb == nil {
		return nil
	}
	if err := s.rdb.RevokeSession(ctx, sessionID, s.jwtMgr.RefreshTokenTTL(true)); err != nil {
		s.logger.Error("写入会话注销记录失败", zap.Error(err))
		return err
	}
	if jti == "" {
		return nil
	}
	if err := s.rdb.BlacklistToken(ctx, jti, time.Until(expiresAt)); err != nil {
		s.logger.Error("写入 Token 黑名单失败", zap.Error(err))
		return err
	}
	return nil
}

// GetCurrentStudent 当前登录学生档案
func (s *authService) GetCurrentStudent(ctx context.Context, studentID string) (*dto.StudentResponse, error) {
	profile, err := s.repo.Student.GetByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStudentNotFound
		}
		s.logger.Error("查询学生档案失败", zap.Error(err))
		return nil, err
	}
	resp := toStudentResponse(profile)
	return &resp, nil
}

// ── 辅助函数 ──

func (s *authService) issueTokens(profile *model.StudentProfile, sessionID string, rememberMe bool) (*dto.TokenResponse, error) {
	id := jwt.Identity{
		StudentID: profile.StudentID,
		CollegeID: profile.CollegeID,
		SessionID: sessionID,
	}

	accessToken, err := s.jwtMgr.GenerateAccessToken(id)
	if err != nil {
		s.logger.Error("生成 AccessToken 失败", zap.Error(err))
		return nil, err
	}
	refreshToken, err := s.jwtMgr.GenerateRefreshToken(id, rememberMe)
	if err != nil {
		s.logger.Error("生成 RefreshToken 失败", zap.Error(err))
		return nil, err
	}

	return &dto.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    int(s.jwtMgr.AccessTokenTTL().Seconds()),
		RefreshTTL:   int(s.jwtMgr.RefreshTokenTTL(rememberMe).Seconds()),
		Student:      toStudentResponse(profile),
	}, nil
}

func toStudentResponse(p *model.StudentProfile) dto.StudentResponse {
	resp := dto.StudentResponse{
		ID:              p.StudentID,
		CollegeID:       p.CollegeID,
		Name:            p.Name,
		Year:            p.Year,
		Branch:          p.Branch,
		RollNumber:      p.RollNumber,
		Group:           p.Group,
		CurrentSemester: p.CurrentSemester,
	}
	if !p.CreatedAt.IsZero() {
		resp.CreatedAt = p.CreatedAt.Format(time.RFC3339)
	}
	return resp
}
