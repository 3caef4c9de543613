package firestore

import (
	"context"
	"fmt"

	gcfirestore "cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/0xIIEST/attend-ease/config"
)

// NewClient 通过 Firebase Admin SDK 创建 Firestore 客户端
// 凭据优先级：credentials_json > credentials_file > 运行环境默认凭据（ADC）
func NewClient(ctx context.Context, cfg *config.FirestoreConfig, logger *zap.Logger) (*gcfirestore.Client, error) {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("初始化 Firebase 应用失败: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("创建 Firestore 客户端失败: %w", err)
	}

	logger.Info("Firestore 连接成功", zap.String("project_id", cfg.ProjectID))
	return client, nil
}
