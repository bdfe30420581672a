package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"VoiceMorph/cache"
	"VoiceMorph/config"
	"VoiceMorph/core/audio"
	"VoiceMorph/core/auth"
	"VoiceMorph/core/cleanup"
	"VoiceMorph/core/effects"
	"VoiceMorph/db"
	"VoiceMorph/logger"
	"VoiceMorph/repository"
	"VoiceMorph/storage"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

var (
	// LoginRule 登录限流: 每个IP 15分钟内 5 次
	LoginRule = cache.LimitRule{Name: "login", Max: 5, Window: 15 * time.Minute}
	// RegisterRule 注册限流: 每个IP 15分钟内 10 次
	RegisterRule = cache.LimitRule{Name: "register", Max: 10, Window: 15 * time.Minute}
)

// backends holds the connections opened for one server run.
type backends struct {
	gdb   *gorm.DB
	redis *redis.Client
	store storage.ObjectStore
}

func (b *backends) close() {
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			logger.Warn("关闭Redis连接失败", logger.ErrorField(err))
		}
	}
	if err := db.Close(b.gdb); err != nil {
		logger.Warn("关闭数据库连接失败", logger.ErrorField(err))
	}
}

// buildDependencies opens every backend and assembles the handler inputs.
// Background workers started here stop when ctx is done.
func buildDependencies(ctx context.Context, cfg *config.Config) (Dependencies, *backends, error) {
	b := &backends{}

	gdb, err := db.Open(cfg)
	if err != nil {
		return Dependencies{}, nil, err
	}
	b.gdb = gdb
	if err := db.AutoMigrate(gdb); err != nil {
		b.close()
		return Dependencies{}, nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	checks := map[string]HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}

	var (
		loginLimiter, registerLimiter cache.Limiter
		revocations                   auth.RevocationStore
	)
	if cfg.RedisEnabled() {
		client, err := db.ConnectRedis(ctx, cfg)
		if err != nil {
			b.close()
			return Dependencies{}, nil, err
		}
		b.redis = client
		logger.Info("Redis连接成功", logger.String("host", cfg.RedisHost))

		loginLimiter = cache.NewRedisLimiter(client, LoginRule)
		registerLimiter = cache.NewRedisLimiter(client, RegisterRule)
		revocations = cache.NewRedisRevocations(client)
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	} else {
		login := cache.NewMemoryLimiter(LoginRule)
		register := cache.NewMemoryLimiter(RegisterRule)
		go login.Run(ctx)
		go register.Run(ctx)
		loginLimiter, registerLimiter = login, register
		revocations = cache.NewMemoryRevocations()
		logger.Info("未配置Redis，使用进程内限流和Token吊销")
	}

	store, err := storage.New(ctx, cfg)
	if err != nil {
		b.close()
		return Dependencies{}, nil, err
	}
	b.store = store
	if store != nil {
		logger.Info("对象存储已启用", logger.String("backend", store.Name()))
		checks["storage"] = func(ctx context.Context) error {
			obj, _, err := store.Get(ctx, storage.RecordingKey(".healthcheck"))
			if err == nil {
				obj.Close()
				return nil
			}
			if errors.Is(err, storage.ErrObjectNotFound) {
				return nil
			}
			return err
		}
	}

	catalog := effects.Default()
	processor := audio.NewFFmpegProcessor(catalog, cfg.FFmpegPath, cfg.FFprobePath).WithTimeout(cfg.FFmpegTimeout)

	return Dependencies{
		Config:          cfg,
		Catalog:         catalog,
		Processor:       processor,
		Users:           repository.NewGormUserRepository(gdb),
		Recordings:      repository.NewGormRecordingRepository(gdb),
		Tokens:          auth.NewTokenService(cfg.JWTSecret, cfg.JWTExpiry, revocations),
		LoginLimiter:    loginLimiter,
		RegisterLimiter: registerLimiter,
		Store:           store,
		HealthChecks:    checks,
	}, b, nil
}

// Start initializes and starts the HTTP server. It returns after ctx is
// cancelled or SIGINT/SIGTERM arrives and the server has shut down.
func Start(ctx context.Context, cfg *config.Config) error {
	if err := ensureDirExists(cfg.UploadDir); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	deps, b, err := buildDependencies(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	sweeper := cleanup.NewSweeper(cfg.UploadDir, cfg.CleanupMaxAge)
	go sweeper.Run(ctx, cfg.CleanupInterval)

	handler := NewAPIHandler(deps)

	// 设置服务器超时
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      NewRouter(handler),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	// 创建一个通道来接收操作系统信号
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("服务器启动",
			logger.String("addr", server.Addr),
			logger.Strings("effects", deps.Catalog.IDs()),
			logger.String("uploadDir", cfg.UploadDir))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-stop:
	case <-ctx.Done():
	}
	logger.Info("正在关闭服务器...")

	// 创建一个10秒超时的上下文
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	// 优雅关闭服务器
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Info("服务器已停止")
	return nil
}

func ensureDirExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Info("创建目录", logger.String("path", path))
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", path, err)
		}
	} else if err != nil {
		return fmt.Errorf("failed to check directory %s: %w", path, err)
	}
	return nil
}
