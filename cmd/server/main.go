package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"mailsuite/backend/internal/config"
	"mailsuite/backend/internal/logger"
	"mailsuite/backend/internal/monitoring"
	"mailsuite/backend/internal/pool"
	"mailsuite/backend/internal/service"
	"mailsuite/backend/internal/storage"
	"mailsuite/backend/internal/storage/localcache"
	"mailsuite/backend/internal/storage/remote"
	httptransport "mailsuite/backend/internal/transport/http"
)

// main 启动邮件导入与管理服务。
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	// 设置 Gin 模式（基于开发环境标志）
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// 初始化日志系统
	log, err := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Development: cfg.Log.Development,
		LogFile:     cfg.Log.File,
		MaxSize:     cfg.Log.MaxSize,
		MaxBackups:  cfg.Log.MaxBackups,
		MaxAge:      cfg.Log.MaxAge,
		Compress:    cfg.Log.Compress,
	})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	log.Info("starting mailsuite server",
		zap.String("log_level", cfg.Log.Level),
		zap.Bool("development", cfg.Log.Development),
	)

	// 本地缓存层：必须可用，没有它服务无法保证持久性
	localStore, err := localcache.NewStore(cfg.Cache.Path, log)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize local cache: %v", err))
	}
	log.Info("local cache initialized", zap.String("path", cfg.Cache.Path))

	// 远端存储层：可选，失败时降级到仅本地模式
	var remoteStore storage.Store
	if cfg.RemoteConfigured() {
		rs, err := remote.NewStoreForType(cfg.Database.Type, cfg.Database.DSN, remote.Options{
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
			QueryTimeout:    cfg.Database.QueryTimeout,
		})
		if err != nil {
			log.Warn("remote store unavailable, running in local-only mode", zap.Error(err))
		} else {
			remoteStore = rs
			log.Info("remote store initialized", zap.String("type", cfg.Database.Type))
		}
	} else {
		log.Info("remote store not configured, running in local-only mode")
	}

	// 监控指标（promauto 自动注册）
	metrics := monitoring.NewMetrics()

	// 远端镜像写入队列。单协程顺序执行，同一封邮件的
	// 连续变更才能按序到达远端。
	workers := pool.NewWorkerPool(1, cfg.Mirror.QueueSize, log)

	// 信号处理
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	workers.Start(ctx)

	// 服务层
	emailService, err := service.NewEmailService(localStore, remoteStore, workers, log, metrics)
	if err != nil {
		panic(fmt.Sprintf("failed to create email service: %v", err))
	}
	if err := emailService.Init(); err != nil {
		panic(fmt.Sprintf("failed to initialize email service: %v", err))
	}

	// HTTP 服务器
	httpAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	router := httptransport.NewRouter(httptransport.RouterDependencies{
		Config:       cfg,
		EmailService: emailService,
		LocalStore:   localStore,
		RemoteStore:  remoteStore,
		Metrics:      metrics,
		Logger:       log,
	})

	httpServer := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	// HTTP 服务器 goroutine
	group.Go(func() error {
		log.Info("starting HTTP server", zap.String("address", httpAddr))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
			return err
		}
		return nil
	})

	// 优雅关闭 goroutine
	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("shutdown signal received, gracefully shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("HTTP server shutdown error", zap.Error(err))
		}

		// 等在途的镜像写入排空后再关存储
		workers.Stop()

		if remoteStore != nil {
			if err := remoteStore.Close(); err != nil {
				log.Warn("remote store close warning", zap.Error(err))
			}
		}
		if err := localStore.Close(); err != nil {
			log.Warn("local cache close warning", zap.Error(err))
		}

		log.Info("server stopped")
		return nil
	})

	if err := group.Wait(); err != nil && err != context.Canceled {
		log.Fatal("server error", zap.Error(err))
	}

	log.Info("server exited cleanly")
}
