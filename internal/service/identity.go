package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/0xIIEST/attend-ease/internal/model"
	"github.com/0xIIEST/attend-ease/internal/repository"
	pkgerrors "github.com/0xIIEST/attend-ease/pkg/errors"
)

// ── 身份认证 ──
//
// 对外只区分"已注册"与"凭据无效"两种业务失败，其余一律视为内部错误。

var (
	ErrAlreadyRegistered  = errors.New("该学号已注册")
	ErrInvalidCredentials = errors.New("学号或密码错误")
)

// IdentityProvider 账号密码认证，返回稳定的账号 ID
type IdentityProvider interface {
	Register(ctx context.Context, email, password, displayName string) (string, error)
	Authenticate(ctx context.Context, email, password string) (string, error)
	Remove(ctx context.Context, accountID string) error
}

// localIdentityProvider 基于 bcrypt 的本地实现
type localIdentityProvider struct {
	creds  repository.CredentialRepository
	cost   int
	logger *zap.Logger
}

// NewLocalIdentityProvider 创建本地身份认证
func NewLocalIdentityProvider(creds repository.CredentialRepository, logger *zap.Logger) IdentityProvider {
	return &localIdentityProvider{creds: creds, cost: bcrypt.DefaultCost, logger: logger}
}

func (p *localIdentityProvider) Register(ctx context.Context, email, password, displayName string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return "", fmt.Errorf("密码哈希失败: %w", err)
	}

	cred := &model.StudentCredential{
		AccountID:    uuid.New().String(),
		AuthEmail:    email,
		PasswordHash: string(hash),
		DisplayName:  displayName,
	}
	if err := p.creds.Create(ctx, cred); err != nil {
		if errors.Is(err, pkgerrors.ErrDuplicateKey) {
			return "", ErrAlreadyRegistered
		}
		p.logger.Error("创建凭据失败", zap.String("email", email), zap.Error(err))
		return "", err
	}
	return cred.AccountID, nil
}

func (p *localIdentityProvider) Authenticate(ctx context.Context, email, password string) (string, error) {
	cred, err := p.creds.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", ErrInvalidCredentials
		}
		p.logger.Error("查询凭据失败", zap.Error(err))
		return "", err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(cred.PasswordHash), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return cred.AccountID, nil
}

func (p *localIdentityProvider) Remove(ctx context.Context, accountID string) error {
	return p.creds.Delete(ctx, accountID)
}

// ── 学号约定 ──

// BuildCollegeID 学号 = 入学年份 + 班级（大写）+ 三位学号
// 例：("2026", "csb", "1") → "2026CSB001"
func BuildCollegeID(year, branch, roll string) string {
	roll = strings.TrimSpace(roll)
	if len(roll) < 3 {
		roll = strings.Repeat("0", 3-len(roll)) + roll
	}
	return strings.TrimSpace(year) + strings.ToUpper(strings.TrimSpace(branch)) + roll
}

// AuthEmail 学号对应的登录邮箱：小写学号@域名
func AuthEmail(collegeID, domain string) string {
	return strings.ToLower(strings.TrimSpace(collegeID)) + "@" + domain
}
