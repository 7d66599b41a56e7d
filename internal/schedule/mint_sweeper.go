// Package schedule 对账和清理任务，由 cmd/scheduler 周期性驱动
package schedule

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/mintworker"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
	pkgerrors "github.com/MehulDev0228/aurin-platform-sub001/pkg/errors"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/metrics"
)

// AchievementScanner *repository.AchievementRepository 实现
type AchievementScanner interface {
	ListRedispatchable(ctx context.Context, pendingBefore, failedBefore time.Time, maxRounds, limit int) ([]*model.Achievement, error)
	ListStaleMinting(ctx context.Context, startedBefore time.Time, limit int) ([]*model.Achievement, error)
}

// Failer *issuance.Machine 实现
type Failer interface {
	FailMint(ctx context.Context, id int64, reason string, kind model.FailureKind, attempts int) (*model.Achievement, error)
}

type Dispatcher interface {
	DispatchMint(ctx context.Context, achievementID int64, reason model.MintReason) error
}

type MintSweepConfig struct {
	PendingGrace  time.Duration
	RetryCooldown time.Duration
	StaleAfter    time.Duration
	MaxRounds     int
	BatchSize     int
}

func (c MintSweepConfig) withDefaults() MintSweepConfig {
	if c.PendingGrace <= 0 {
		c.PendingGrace = 2 * time.Minute
	}
	if c.RetryCooldown <= 0 {
		c.RetryCooldown = 10 * time.Minute
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 30 * time.Minute
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = 3
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 200
	}
	return c
}

// MintSweeper 补投丢失的铸造消息，并对长时间停在 minting 的成就做对账
type MintSweeper struct {
	scanner    AchievementScanner
	failer     Failer
	dispatcher Dispatcher
	locker     Locker
	cfg        MintSweepConfig
	now        func() time.Time
	log        *zap.Logger

	redispatchJob jobGuard
	reconcileJob  jobGuard
}

func NewMintSweeper(scanner AchievementScanner, failer Failer, dispatcher Dispatcher, locker Locker, cfg MintSweepConfig) *MintSweeper {
	return &MintSweeper{
		scanner:    scanner,
		failer:     failer,
		dispatcher: dispatcher,
		locker:     locker,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
		log:        logger.Named("mint-sweeper"),
	}
}

// Redispatch 重新投递超过宽限期的 pending，以及冷却期已过、轮次未用完的 transient 失败
func (s *MintSweeper) Redispatch(ctx context.Context) (int, error) {
	now := s.now()
	if !s.redispatchJob.enter(now) {
		s.log.Info("Redispatch job already running, skipping")
		return 0, nil
	}
	defer s.redispatchJob.leave()

	dispatched := 0
	ran, err := withLock(ctx, s.locker, "sweep:redispatch", time.Minute, func() error {
		rows, err := s.scanner.ListRedispatchable(ctx,
			now.Add(-s.cfg.PendingGrace),
			now.Add(-s.cfg.RetryCooldown),
			s.cfg.MaxRounds,
			s.cfg.BatchSize,
		)
		if err != nil {
			return fmt.Errorf("failed to list redispatchable achievements: %w", err)
		}

		for _, a := range rows {
			if err := s.dispatcher.DispatchMint(ctx, a.ID, model.MintReasonRedispatch); err != nil {
				s.log.Warn("Failed to redispatch achievement",
					zap.Int64("achievement_id", a.ID),
					zap.String("status", string(a.Status)),
					zap.Error(err),
				)
				continue
			}
			dispatched++
		}
		return nil
	})
	if err != nil {
		return dispatched, err
	}
	if !ran {
		s.log.Debug("Redispatch lock held by another scheduler")
		return 0, nil
	}

	metrics.RecordSweep(ctx, dispatched, 0)
	if dispatched > 0 {
		s.log.Info("Redispatched achievements", zap.Int("count", dispatched))
	}
	return dispatched, nil
}

// ReconcileStale minting 超时的成就标记为 stale 失败，不自动重试，链上可能已经铸造
func (s *MintSweeper) ReconcileStale(ctx context.Context) (int, error) {
	now := s.now()
	if !s.reconcileJob.enter(now) {
		s.log.Info("Reconcile job already running, skipping")
		return 0, nil
	}
	defer s.reconcileJob.leave()

	reconciled := 0
	ran, err := withLock(ctx, s.locker, "sweep:reconcile", time.Minute, func() error {
		rows, err := s.scanner.ListStaleMinting(ctx, now.Add(-s.cfg.StaleAfter), s.cfg.BatchSize)
		if err != nil {
			return fmt.Errorf("failed to list stale minting achievements: %w", err)
		}

		for _, a := range rows {
			ok, err := s.reconcileOne(ctx, a)
			if err != nil {
				s.log.Warn("Failed to reconcile stale achievement",
					zap.Int64("achievement_id", a.ID),
					zap.Error(err),
				)
				continue
			}
			if ok {
				reconciled++
			}
		}
		return nil
	})
	if err != nil {
		return reconciled, err
	}
	if !ran {
		return 0, nil
	}

	metrics.RecordSweep(ctx, 0, reconciled)
	return reconciled, nil
}

// reconcileOne 持有成就锁时才改写状态，锁还在说明 worker 仍在重试，本轮跳过
func (s *MintSweeper) reconcileOne(ctx context.Context, a *model.Achievement) (bool, error) {
	failed := false
	ran, err := withLock(ctx, s.locker, mintworker.LockName(a.ID), time.Minute, func() error {
		reason := fmt.Sprintf("mint outcome unknown: minting since %s exceeded %s",
			a.MintStartedAt.UTC().Format(time.RFC3339), s.cfg.StaleAfter)

		_, err := s.failer.FailMint(ctx, a.ID, reason, model.FailureKindStale, 0)
		if stderrors.Is(err, pkgerrors.InvalidTransition) {
			// worker 刚好完成了
			return nil
		}
		if err != nil {
			return err
		}
		failed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !ran {
		s.log.Info("Stale achievement still locked by a worker, skipping",
			zap.Int64("achievement_id", a.ID),
		)
		return false, nil
	}
	if failed {
		s.log.Warn("Stale minting achievement marked failed",
			zap.Int64("achievement_id", a.ID),
			zap.Timep("mint_started_at", a.MintStartedAt),
		)
	}
	return failed, nil
}
