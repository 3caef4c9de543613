package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/0xIIEST/attend-ease/internal/model"
	pkgerrors "github.com/0xIIEST/attend-ease/pkg/errors"
)

// CredentialRepository 本地身份凭据数据访问接口
type CredentialRepository interface {
	Create(ctx context.Context, cred *model.StudentCredential) error
	GetByEmail(ctx context.Context, email string) (*model.StudentCredential, error)
	Delete(ctx context.Context, accountID string) error
}

type credentialRepo struct {
	db *gorm.DB
}

// NewCredentialRepo 创建 CredentialRepository 实例
func NewCredentialRepo(db *gorm.DB) CredentialRepository {
	return &credentialRepo{db: db}
}

func (r *credentialRepo) Create(ctx context.Context, cred *model.StudentCredential) error {
	err := r.db.WithContext(ctx).Create(cred).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return pkgerrors.ErrDuplicateKey
	}
	return err
}

func (r *credentialRepo) GetByEmail(ctx context.Context, email string) (*model.StudentCredential, error) {
	var cred model.StudentCredential
	err := r.db.WithContext(ctx).
		Where("auth_email = ?", email).
		First(&cred).Error
	if err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *credentialRepo) Delete(ctx context.Context, accountID string) error {
	return r.db.WithContext(ctx).
		Where("account_id = ?", accountID).
		Delete(&model.StudentCredential{}).Error
}
