package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/0xIIEST/attend-ease/config"
	"github.com/0xIIEST/attend-ease/internal/api/handler"
	"github.com/0xIIEST/attend-ease/internal/api/router"
	"github.com/0xIIEST/attend-ease/internal/catalog"
	"github.com/0xIIEST/attend-ease/internal/repository"
	"github.com/0xIIEST/attend-ease/internal/service"
	"github.com/0xIIEST/attend-ease/pkg/database"
	appfirestore "github.com/0xIIEST/attend-ease/pkg/firestore"
	"github.com/0xIIEST/attend-ease/pkg/jwt"
	applogger "github.com/0xIIEST/attend-ease/pkg/logger"
	"github.com/0xIIEST/attend-ease/pkg/redis"
)

// 过期会话清理周期
const sessionSweepInterval = 10 * time.Minute

func main() {
	// 1. 加载配置
	cfg, err := config.Load(os.Getenv("ATTEND_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	logger, err := applogger.NewLogger(&cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("应用启动中...",
		zap.Int("port", cfg.Server.Port),
		zap.String("store", cfg.Store.Driver),
		zap.String("backfill_policy", cfg.Backfill.CompletionPolicy),
	)

	// 3. 加载课表目录（只读，启动后不再变化）
	cat, err := catalog.Load(cfg.Catalog.Dir)
	if err != nil {
		logger.Fatal("课表目录加载失败", zap.Error(err))
	}
	logger.Info("课表目录已加载",
		zap.String("semester_start", catalog.FormatDate(cat.SemesterStart)),
		zap.String("semester_end", catalog.FormatDate(cat.SemesterEnd)),
		zap.Int("classes", len(cat.Classes)),
	)

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	// 4. 初始化存储
	repo, closeStore := openStore(rootCtx, cfg, logger)
	defer closeStore()

	// 5. 连接 Redis（可选：连接失败时降级运行，不中断启动）
	var rdb *redis.Client
	rdb, err = redis.NewClient(&cfg.Redis, logger)
	if err != nil {
		logger.Warn("Redis 连接失败，Token 黑名单与登录限流将不可用", zap.Error(err))
		rdb = nil
	}

	// 6. 初始化 JWT 管理器
	jwtMgr := jwt.NewManager(&cfg.Auth)

	// 7. 依赖注入: Repository → Service → Handler
	svc := service.NewService(cfg, repo, cat, jwtMgr, rdb, logger)
	h := handler.NewHandler(cfg, svc)
	go svc.Sessions.Run(rootCtx, sessionSweepInterval)

	// 8. 初始化路由
	engine := router.Setup(cfg, h, jwtMgr, rdb, logger)

	// 9. 启动 HTTP 服务器（优雅关闭）
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP 服务器已启动", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("HTTP 服务器异常", zap.Error(err))
		}
	}()

	// 10. 监听系统信号，优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	logger.Info("收到关闭信号，开始优雅关闭...", zap.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("服务器关闭异常", zap.Error(err))
	}
	stop()

	// 等待在途补录写完，再关闭存储
	done := make(chan struct{})
	go func() {
		svc.Backfill.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		logger.Warn("等待缺勤补录超时，部分写入可能未完成")
	}

	if rdb != nil {
		rdb.Close()
	}

	logger.Info("服务器已关闭")
}

// openStore 按 store.driver 打开记录存储，返回仓储集合与关闭函数
func openStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*repository.Repository, func()) {
	switch cfg.Store.Driver {
	case config.StoreDriverFirestore:
		client, err := appfirestore.NewClient(ctx, &cfg.Firestore, logger)
		if err != nil {
			logger.Fatal("Firestore 连接失败", zap.Error(err))
		}
		logger.Info("Firestore 连接成功", zap.String("project_id", cfg.Firestore.ProjectID))
		return repository.NewFirestoreRepository(client), func() { client.Close() }

	case config.StoreDriverMemory:
		logger.Warn("使用内存存储，进程退出后数据丢失")
		return repository.NewMemoryRepository(), func() {}

	default:
		db, err := database.NewDB(&cfg.Database, cfg.Log.Level, logger)
		if err != nil {
			logger.Fatal("数据库连接失败", zap.Error(err))
		}
		logger.Info("数据库连接成功")

		sqlDB, err := db.DB()
		if err != nil {
			logger.Fatal("获取底层 sql.DB 失败", zap.Error(err))
		}
		if err := database.RunMigrations(sqlDB, logger); err != nil {
			logger.Fatal("数据库迁移失败", zap.Error(err))
		}
		return repository.NewRepository(db), func() { closeDB(db) }
	}
}

func closeDB(db *gorm.DB) {
	if sqlDB, _ := db.DB(); sqlDB != nil {
		sqlDB.Close()
	}
}
