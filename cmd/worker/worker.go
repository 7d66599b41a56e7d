package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/config"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/app"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/queue"
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

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Logger.Info("Received shutdown signal",
			zap.String("signal", sig.String()),
		)
		cancel()
	}()

	serviceName := config.Cfg.ServiceName + "-worker"

	shutdownTelemetry, err := app.InitTelemetry(ctx, serviceName)
	if err != nil {
		logger.Logger.Warn("Failed to initialize OpenTelemetry, tracing disabled", zap.Error(err))
	}
	defer func() {
		_ = shutdownTelemetry(context.Background())
	}()

	if err := storage.Init(); err != nil {
		logger.Logger.Fatal("Failed to initialize storage", zap.Error(err))
	}
	defer storage.Close()

	// worker 会写入状态变更，多副本部署时 machineID 需要各不相同
	if err := snowflake.Init(config.Cfg.SnowflakeMachineID, config.Cfg.SnowflakeDataCenter); err != nil {
		logger.Logger.Fatal("Failed to initialize snowflake", zap.Error(err))
	}

	components, err := app.Build(false)
	if err != nil {
		logger.Logger.Fatal("Failed to build components", zap.Error(err))
	}
	defer components.Close()

	worker, err := components.NewWorker(ctx)
	if err != nil {
		logger.Logger.Fatal("Failed to create mint worker", zap.Error(err))
	}

	mq.SetServiceName(serviceName)
	if err := mq.Setup(queue.DeclareTopology); err != nil {
		logger.Logger.Fatal("Failed to declare queue topology", zap.Error(err))
	}

	logger.Logger.Info("Worker service starting",
		zap.String("service", serviceName),
		zap.String("environment", config.Cfg.Environment),
		zap.String("mint_provider", config.Cfg.MintProvider),
	)

	if err := queue.StartMintConsumer(ctx, worker, config.Cfg.MintWorkerPrefetch); err != nil && ctx.Err() == nil {
		logger.Logger.Error("Mint consumer stopped unexpectedly", zap.Error(err))
	}

	logger.Logger.Info("Worker service shutting down gracefully")
}
