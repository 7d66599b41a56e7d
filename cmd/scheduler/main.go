package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/config"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/app"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/queue"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/schedule"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/snowflake"
	"github.com/MehulDev0228/aurin-platform-sub001/storage"
	"github.com/MehulDev0228/aurin-platform-sub001/storage/mq"
)

func main() {
	logger.Init()
	defer logger.Sync()

	config.MustValidate()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Logger.Info("Scheduler received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	serviceName := config.Cfg.ServiceName + "-scheduler"

	shutdownTelemetry, err := app.InitTelemetry(ctx, serviceName)
	if err != nil {
		logger.Logger.Warn("Failed to initialize OpenTelemetry, tracing disabled", zap.Error(err))
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage for scheduler", zap.Error(err))
	}
	defer storage.Close()

	// 补投消息的 message_id 依赖 snowflake
	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake for scheduler", zap.Error(err))
	}

	// badger 由 server 进程独占，只有 gridfs 时才在这里清理凭证
	sweepEvidence := config.Cfg.EvidenceBackend == "gridfs"

	components, err := app.Build(sweepEvidence)
	if err != nil {
		logger.Logger.Fatal("Failed to build components for scheduler", zap.Error(err))
	}
	defer components.Close()

	mq.SetServiceName(serviceName)
	if err := mq.Setup(queue.DeclareTopology); err != nil {
		logger.Logger.Fatal("Failed to declare queue topology", zap.Error(err))
	}

	logger.Logger.Info("Scheduler service starting",
		zap.String("service", serviceName),
		zap.String("environment", config.Cfg.Environment),
	)

	redispatchInterval := time.Duration(config.Cfg.SweepRedispatchSeconds) * time.Second
	reconcileInterval := time.Duration(config.Cfg.SweepReconcileMinutes) * time.Minute
	evidenceInterval := time.Duration(config.Cfg.SweepEvidenceMinutes) * time.Minute

	// 开发环境缩短间隔，方便本地调试
	if config.Cfg.IsDevelopment() {
		redispatchInterval = 15 * time.Second
		reconcileInterval = time.Minute
		evidenceInterval = time.Minute
		logger.Logger.Info("Scheduler running in development mode with short intervals")
	}

	mintSweeper := components.NewMintSweeper(queue.NewProducer())

	go schedule.RunEvery(ctx, "mint_redispatch", redispatchInterval, mintSweeper.Redispatch)
	go schedule.RunEvery(ctx, "mint_reconcile", reconcileInterval, mintSweeper.ReconcileStale)
	if sweepEvidence {
		go schedule.RunEvery(ctx, "evidence_sweep", evidenceInterval, components.NewEvidenceSweeper().Sweep)
	}

	<-ctx.Done()

	logger.Logger.Info("Scheduler service shutting down gracefully")
}
