// Package app 按配置组装各入口共用的组件
package app

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MehulDev0228/aurin-platform-sub001/config"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/cache"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/checkin"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/evidence"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/issuance"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/liveproof"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/mintworker"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/ratelimit"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/repository"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/schedule"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/service"
	pkgdb "github.com/MehulDev0228/aurin-platform-sub001/pkg/database"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/metrics"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/mint"
	pkgmq "github.com/MehulDev0228/aurin-platform-sub001/pkg/mq"
	pkgotel "github.com/MehulDev0228/aurin-platform-sub001/pkg/otel"
	pkgredis "github.com/MehulDev0228/aurin-platform-sub001/pkg/redis"
	"github.com/MehulDev0228/aurin-platform-sub001/storage/database"
	"github.com/MehulDev0228/aurin-platform-sub001/storage/mongo"
	"github.com/MehulDev0228/aurin-platform-sub001/storage/redis"
)

// Components 存储层初始化之后才能构建
type Components struct {
	DB           *gorm.DB
	Events       *repository.EventRepository
	Achievements *repository.AchievementRepository
	CheckIns     *repository.CheckInRepository
	Machine      *issuance.Machine
	Evidence     evidence.Store
	Locker       *cache.Locker
	Limiter      *ratelimit.Limiter

	closers []func() error
}

// Build withEvidence 为 false 时不打开证据存储，worker 不需要
func Build(withEvidence bool) (*Components, error) {
	db := database.DB()
	if db == nil {
		return nil, fmt.Errorf("database not initialized")
	}

	client := redis.Client()
	prefix := redis.Prefix()

	c := &Components{
		DB:           db,
		Events:       repository.NewEventRepository(db),
		Achievements: repository.NewAchievementRepository(db),
		CheckIns:     repository.NewCheckInRepository(db),
		Locker:       cache.NewLocker(client, prefix),
		Limiter:      ratelimit.New(cache.NewSlidingWindowStore(client, prefix)),
	}
	c.Machine = issuance.New(c.Achievements)

	if withEvidence {
		store, err := openEvidence()
		if err != nil {
			return nil, err
		}
		c.Evidence = store
		if closer, ok := store.(interface{ Close() error }); ok {
			c.closers = append(c.closers, closer.Close)
		}
	}

	return c, nil
}

func openEvidence() (evidence.Store, error) {
	switch config.Cfg.EvidenceBackend {
	case "gridfs":
		return evidence.NewGridFSStore(mongo.Database()), nil
	case "badger", "":
		store, err := evidence.OpenBadger(config.Cfg.EvidenceBadgerPath)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported evidence backend: %s", config.Cfg.EvidenceBackend)
	}
}

// Close 释放 Build 打开的本地资源，外部连接由 storage.Close 负责
func (c *Components) Close() {
	for _, closer := range c.closers {
		if err := closer(); err != nil {
			logger.Logger.Error("Failed to close component", zap.Error(err))
		}
	}
}

// InitServices 组装 HTTP 服务层
func (c *Components) InitServices(dispatcher service.Dispatcher) error {
	cfg := config.Cfg

	tokens, err := liveproof.NewService(
		[]byte(cfg.LiveProofSecret),
		c.Events,
		cache.NewNonceStore(redis.Client(), redis.Prefix()),
		liveproof.WithTTL(cfg.LiveProofTTL()),
	)
	if err != nil {
		return err
	}

	service.Init(service.Dependencies{
		Tokens:     tokens,
		Limiter:    c.Limiter,
		CheckIns:   checkin.NewStore(c.CheckIns, c.Evidence, cfg.EvidenceMaxBytes),
		Machine:    c.Machine,
		Directory:  c.Events,
		Parked:     c.Achievements,
		Dispatcher: dispatcher,
		StartPolicy: ratelimit.Policy{
			Action: service.DefaultStartPolicy.Action,
			Max:    cfg.StartRateLimit,
			Window: time.Duration(cfg.StartRateWindowSecond) * time.Second,
		},
		VerifyPolicy: ratelimit.Policy{
			Action: service.DefaultVerifyPolicy.Action,
			Max:    cfg.VerifyRateLimit,
			Window: time.Duration(cfg.VerifyRateWindowSecond) * time.Second,
		},
	})
	return nil
}

// NewWorker 按配置创建铸造客户端和 worker
func (c *Components) NewWorker(ctx context.Context) (*mintworker.Worker, error) {
	cfg := config.Cfg

	client, err := mint.New(ctx, mint.Config{
		Provider:        cfg.MintProvider,
		RPCURL:          cfg.EthereumRPCURL,
		PrivateKey:      cfg.MinterPrivateKey,
		ERC721Contract:  cfg.ERC721Contract,
		ERC1155Contract: cfg.ERC1155Contract,
		ReceiptTimeout:  2 * time.Minute,
	})
	if err != nil {
		return nil, err
	}
	if closer, ok := client.(interface{ Close() }); ok {
		c.closers = append(c.closers, func() error { closer.Close(); return nil })
	}

	return mintworker.New(c.Machine, c.Events, client, c.Locker, mintworker.Config{
		MaxAttempts:    cfg.MintMaxAttempts,
		InitialBackoff: cfg.MintBackoffInitial(),
		MaxBackoff:     cfg.MintBackoffMax(),
		AttemptTimeout: cfg.MintAttemptTimeout(),
		LockTTL:        cfg.MintLockTTL(),
	}), nil
}

func (c *Components) NewMintSweeper(dispatcher schedule.Dispatcher) *schedule.MintSweeper {
	cfg := config.Cfg
	return schedule.NewMintSweeper(c.Achievements, c.Machine, dispatcher, c.Locker, schedule.MintSweepConfig{
		PendingGrace:  time.Duration(cfg.SweepPendingGraceSeconds) * time.Second,
		RetryCooldown: time.Duration(cfg.SweepRetryCooldownMinutes) * time.Minute,
		StaleAfter:    cfg.MintStaleAfter(),
		MaxRounds:     cfg.MintMaxRounds,
		BatchSize:     cfg.SweepBatchSize,
	})
}

func (c *Components) NewEvidenceSweeper() *schedule.EvidenceSweeper {
	cfg := config.Cfg
	return schedule.NewEvidenceSweeper(c.Evidence, c.CheckIns, c.Locker,
		time.Duration(cfg.EvidenceOrphanAfter)*time.Minute, cfg.SweepBatchSize)
}

// InitTelemetry OTEL_ENABLED=false 时返回空操作的关闭函数
func InitTelemetry(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	cfg := config.Cfg
	noop := func(context.Context) error { return nil }
	if !cfg.OTelEnabled {
		return noop, nil
	}

	shutdown, err := pkgotel.InitOpenTelemetry(ctx, pkgotel.Config{
		ServiceName:    serviceName,
		ServiceVersion: cfg.ServiceVersion,
		Environment:    cfg.Environment,
		OTLPEndpoint:   cfg.OTelEndpoint,
		SampleRatio:    cfg.OTelSampleRatio,
	})
	if err != nil {
		return noop, err
	}

	meter := otel.Meter(cfg.ServiceName)
	for name, initFn := range map[string]func() error{
		"pipeline": metrics.InitMetrics,
		"database": func() error { return pkgdb.InitDatabaseMetrics(meter) },
		"redis":    func() error { return pkgredis.InitRedisMetrics(meter) },
		"mq":       func() error { return pkgmq.InitMQMetrics(meter) },
	} {
		if err := initFn(); err != nil {
			logger.Logger.Warn("Failed to initialize metrics", zap.String("instruments", name), zap.Error(err))
		}
	}

	return shutdown, nil
}
