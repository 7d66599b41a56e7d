package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	hzapp "github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/config"
	"go.uber.org/zap"

	cfg "github.com/MehulDev0228/aurin-platform-sub001/config"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/app"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/middleware"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/queue"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/router"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/schedule"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/snowflake"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/token"
	"github.com/MehulDev0228/aurin-platform-sub001/storage"
	"github.com/MehulDev0228/aurin-platform-sub001/storage/mq"
)

func main() {
	// 日志部分
	logger.Init()
	defer logger.Sync()

	cfg.MustValidate()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	shutdownTelemetry, err := app.InitTelemetry(ctx, cfg.Cfg.ServiceName)
	if err != nil {
		logger.Logger.Warn("Failed to initialize OpenTelemetry, tracing disabled", zap.Error(err))
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	// 初始化存储层，记得关闭外部连接
	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	if err := snowflake.Init(cfg.Cfg.SnowflakeMachineID, cfg.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	if err := token.Init(
		cfg.Cfg.JWTSecret,
		time.Duration(cfg.Cfg.JWTExpireMinutes)*time.Minute,
		time.Duration(cfg.Cfg.JWTRefreshDays)*24*time.Hour,
	); err != nil {
		logger.Logger.Fatal("Failed to initialize token package", zap.Error(err))
	} // token 在中间件前初始化，middleware 依赖 token

	components, err := app.Build(true)
	if err != nil {
		logger.Logger.Fatal("Failed to build components", zap.Error(err))
	}
	defer components.Close()

	mq.SetServiceName(cfg.Cfg.ServiceName)
	if err := mq.Setup(queue.DeclareTopology); err != nil {
		logger.Logger.Fatal("Failed to declare queue topology", zap.Error(err))
	}

	if err := components.InitServices(queue.NewProducer()); err != nil {
		logger.Logger.Fatal("Failed to initialize services", zap.Error(err))
	}

	// 初始化中间件
	generalLimiter := components.Limiter
	if !cfg.Cfg.RateLimitEnabled {
		generalLimiter = nil
	}
	if err := middleware.Init(generalLimiter); err != nil {
		logger.Logger.Fatal("Failed to initialize middlewares", zap.Error(err))
	}

	// badger 只能被一个进程打开，由 server 自己清理孤儿凭证
	if cfg.Cfg.EvidenceBackend == "badger" {
		sweeper := components.NewEvidenceSweeper()
		go schedule.RunEvery(ctx, "evidence_sweep",
			time.Duration(cfg.Cfg.SweepEvidenceMinutes)*time.Minute, sweeper.Sweep)
	}

	logger.Logger.Info("Server starting",
		zap.String("service", cfg.Cfg.ServiceName),
		zap.String("port", cfg.Cfg.ServerPort),
		zap.String("environment", cfg.Cfg.Environment),
	)

	addr := net.JoinHostPort(cfg.Cfg.ServerHost, cfg.Cfg.ServerPort)
	opts := []config.Option{server.WithHostPorts(addr)}

	var tracingMiddleware hzapp.HandlerFunc
	if cfg.Cfg.OTelEnabled {
		var tracer config.Option
		tracer, tracingMiddleware = middleware.NewServerTracerConfig()
		opts = append(opts, tracer)
	}

	h := server.Default(opts...)
	if tracingMiddleware != nil {
		h.Use(tracingMiddleware)
	}

	router.Register(h)

	// 优雅关闭：在单独的 goroutine 中监听关闭信号并调用 Shutdown
	go func() {
		<-ctx.Done()
		logger.Logger.Info("Initiating graceful shutdown...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := h.Shutdown(shutdownCtx); err != nil {
			logger.Logger.Error("Failed to shutdown HTTP server", zap.Error(err))
		}
	}()

	logger.Logger.Info("HTTP server listening", zap.String("addr", addr))

	h.Spin()

	logger.Logger.Info("Server shutting down gracefully")
}
