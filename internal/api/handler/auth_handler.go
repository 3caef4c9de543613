package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/0xIIEST/attend-ease/config"
	"github.com/0xIIEST/attend-ease/internal/dto"
	"github.com/0xIIEST/attend-ease/internal/service"
	"github.com/0xIIEST/attend-ease/pkg/response"
)

const refreshCookieName = "refresh_token"

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	authSvc service.AuthService
	cookie  *config.CookieConfig // 为 nil 时使用非 Secure、SameSite=Lax
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(authSvc service.AuthService, cookie *config.CookieConfig) *AuthHandler {
	return &AuthHandler{authSvc: authSvc, cookie: cookie}
}

// Register 学生注册（不自动登录）
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	result, err := h.authSvc.Register(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.Created(c, result)
}

// Login 学号 + 密码登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, err)
		return
	}

	result, err := h.authSvc.Login(c.Request.Context(), &req)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken, result.RefreshTTL)
	response.OK(c, result)
}

// RefreshToken 刷新 Token，优先读取 Cookie，其次读取请求体
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	token, err := c.Cookie(refreshCookieName)
	if err != nil || token == "" {
		var req dto.RefreshTokenRequest
		_ = c.ShouldBindJSON(&req)
		token = req.RefreshToken
	}
	if token == "" {
		response.BadRequest(c, 10001, "缺少 refresh_token")
		return
	}

	result, err := h.authSvc.RefreshToken(c.Request.Context(), token)
	if err != nil {
		h.clearRefreshCookie(c)
		h.handleAuthError(c, err)
		return
	}

	h.setRefreshCookie(c, result.RefreshToken, result.RefreshTTL)
	response.OK(c, result)
}

// Logout 登出：拉黑当前 access token、注销会话、清除 Cookie
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID, ok := MustGetSessionID(c)
	if !ok {
		return
	}
	jti, expiresAt := tokenInfo(c)

	if err := h.authSvc.Logout(c.Request.Context(), sessionID, jti, expiresAt); err != nil {
		response.InternalError(c)
		return
	}

	h.clearRefreshCookie(c)
	response.OK(c, nil)
}

// GetCurrentStudent 当前登录学生
// GET /api/v1/auth/me
func (h *AuthHandler) GetCurrentStudent(c *gin.Context) {
	studentID, ok := MustGetStudentID(c)
	if !ok {
		return
	}

	result, err := h.authSvc.GetCurrentStudent(c.Request.Context(), studentID)
	if err != nil {
		h.handleAuthError(c, err)
		return
	}

	response.OK(c, result)
}

// ── Cookie ──

func (h *AuthHandler) setRefreshCookie(c *gin.Context, token string, maxAge int) {
	secure, domain := false, ""
	sameSite := http.SameSiteLaxMode
	if h.cookie != nil {
		secure, domain = h.cookie.Secure, h.cookie.Domain
		sameSite = parseSameSite(h.cookie.SameSite)
	}
	c.SetSameSite(sameSite)
	c.SetCookie(refreshCookieName, token, maxAge, "/api/v1/auth", domain, secure, true)
}

func (h *AuthHandler) clearRefreshCookie(c *gin.Context) {
	h.setRefreshCookie(c, "", -1)
}

func parseSameSite(s string) http.SameSite {
	switch s {
	case "Strict", "strict":
		return http.SameSiteStrictMode
	case "None", "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}

func (h *AuthHandler) handleAuthError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Error(c, http.StatusUnauthorized, 11001, "学号或密码错误")
	case errors.Is(err, service.ErrAlreadyRegistered):
		response.Conflict(c, 11002, "该学号已注册")
	case errors.Is(err, service.ErrWeakPassword):
		response.BadRequest(c, 11003, "密码至少需要 6 位")
	case errors.Is(err, service.ErrInvalidGroup):
		response.BadRequest(c, 11004, "分组只能为 A 或 B")
	case errors.Is(err, service.ErrUnknownBranch):
		response.BadRequest(c, 11005, "课表中没有该班级")
	case errors.Is(err, service.ErrRefreshTokenInvalid):
		response.Unauthorized(c, 11006, "刷新令牌无效或已过期")
	case errors.Is(err, service.ErrStudentNotFound):
		response.NotFound(c, 11007, "学生档案不存在")
	default:
		response.InternalError(c)
	}
}
