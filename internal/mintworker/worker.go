// Package mintworker 异步铸造成就凭证
package mintworker

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/repository"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/breaker"
	pkgerrors "github.com/MehulDev0228/aurin-platform-sub001/pkg/errors"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/metrics"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/mint"
)

// Achievements 状态机，*issuance.Machine 实现
type Achievements interface {
	Get(ctx context.Context, id int64) (*model.Achievement, error)
	BeginMint(ctx context.Context, id int64) (*model.Achievement, error)
	CompleteMint(ctx context.Context, id int64, tokenID, txHash string, attempts int) (*model.Achievement, error)
	FailMint(ctx context.Context, id int64, reason string, kind model.FailureKind, attempts int) (*model.Achievement, error)
	Park(ctx context.Context, id int64, reason string) (*model.Achievement, error)
}

// Directory 钱包和徽章查询，*repository.EventRepository 实现
type Directory interface {
	WalletOf(ctx context.Context, userID string) (string, error)
	GetBadge(ctx context.Context, id int64) (*model.Badge, error)
}

// Outcome 一次处理的结果
type Outcome string

const (
	OutcomeMinted  Outcome = "minted"
	OutcomeFailed  Outcome = "failed"
	OutcomeParked  Outcome = "parked"
	OutcomeSkipped Outcome = "skipped" // 已在铸造或已完成，或被其他 worker 抢先
	OutcomeBusy    Outcome = "busy"    // 锁被占用
)

type Result struct {
	Outcome     Outcome
	Attempts    int
	Achievement *model.Achievement
}

type Config struct {
	MaxAttempts      int
	InitialBackoff   time.Duration
	MaxBackoff       time.Duration
	AttemptTimeout   time.Duration
	LockTTL          time.Duration
	BreakerFailures  int
	BreakerResetTime time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = 2 * time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = time.Minute
	}
	if c.AttemptTimeout <= 0 {
		c.AttemptTimeout = 3 * time.Minute
	}
	if c.LockTTL <= 0 {
		// 锁要覆盖最坏情况下的整轮重试
		c.LockTTL = time.Duration(c.MaxAttempts) * (c.AttemptTimeout + c.MaxBackoff)
	}
	if c.BreakerFailures <= 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerResetTime <= 0 {
		c.BreakerResetTime = 30 * time.Second
	}
	return c
}

type Worker struct {
	achievements Achievements
	directory    Directory
	client       mint.Client
	locker       Locker
	breaker      *breaker.CircuitBreaker
	cfg          Config
	log          *zap.Logger
}

func New(achievements Achievements, directory Directory, client mint.Client, locker Locker, cfg Config) *Worker {
	cfg = cfg.withDefaults()
	return &Worker{
		achievements: achievements,
		directory:    directory,
		client:       client,
		locker:       locker,
		breaker: breaker.New("ledger", cfg.BreakerFailures, cfg.BreakerResetTime,
			breaker.WithFailurePredicate(mint.IsTransient),
		),
		cfg: cfg,
		log: logger.Named("mintworker"),
	}
}

// LockName 单个成就的锁名，对账任务改写 minting 记录前也要拿这把锁
func LockName(id int64) string {
	return "achievement:" + strconv.FormatInt(id, 10)
}

// Process 处理一个成就，返回的 error 只表示基础设施故障，调用方可以稍后重投
func (w *Worker) Process(ctx context.Context, id int64) (Result, error) {
	lockName := LockName(id)
	token, ok, err := w.locker.TryLock(ctx, lockName, w.cfg.LockTTL)
	if err != nil {
		return Result{}, fmt.Errorf("failed to acquire achievement lock: %w", err)
	}
	if !ok {
		w.log.Debug("Achievement is being processed elsewhere", zap.Int64("achievement_id", id))
		return Result{Outcome: OutcomeBusy}, nil
	}
	defer func() {
		if err := w.locker.Unlock(context.WithoutCancel(ctx), lockName, token); err != nil {
			w.log.Warn("Failed to release achievement lock", zap.Int64("achievement_id", id), zap.Error(err))
		}
	}()

	a, err := w.achievements.Get(ctx, id)
	if err != nil {
		if stderrors.Is(err, pkgerrors.AchievementNotFound) {
			w.log.Warn("Mint requested for unknown achievement", zap.Int64("achievement_id", id))
			return Result{Outcome: OutcomeSkipped}, nil
		}
		return Result{}, err
	}
	if !a.Status.Mintable() {
		return Result{Outcome: OutcomeSkipped, Achievement: a}, nil
	}

	wallet, err := w.directory.WalletOf(ctx, a.AttendeeID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load wallet: %w", err)
	}
	if wallet == "" {
		return w.park(ctx, a)
	}

	a, err = w.achievements.BeginMint(ctx, id)
	if err != nil {
		if stderrors.Is(err, pkgerrors.InvalidTransition) {
			return Result{Outcome: OutcomeSkipped, Achievement: a}, nil
		}
		return Result{}, err
	}

	// 进入 minting 之后，结果必须落库，不受调用方取消影响
	persistCtx := context.WithoutCancel(ctx)

	badge, err := w.directory.GetBadge(ctx, a.BadgeID)
	if err != nil {
		kind := model.FailureKindTransient
		if stderrors.Is(err, repository.ErrNotFound) {
			kind = model.FailureKindPermanent
		}
		return w.fail(persistCtx, a, fmt.Errorf("failed to load badge %d: %w", a.BadgeID, err), kind, 0)
	}

	res, attempts, pending, err := w.mintWithRetry(ctx, a.ID, mint.Standard(badge.TokenStandard), wallet, badge.MetadataURI)
	if err != nil {
		kind := model.FailureKindTransient
		switch {
		case mint.Classify(err) == mint.KindPermanent:
			kind = model.FailureKindPermanent
		case pending != "":
			// 交易可能稍后上链，补投会重复铸造，留给人工核对
			kind = model.FailureKindStale
			err = fmt.Errorf("mint outcome unknown: transaction %s submitted without receipt: %w", pending, err)
		}
		return w.fail(persistCtx, a, err, kind, attempts)
	}

	done, err := w.achievements.CompleteMint(persistCtx, a.ID, res.TokenID, res.TxHash, attempts)
	if err != nil {
		w.log.Error("Failed to record minted achievement",
			zap.Int64("achievement_id", a.ID),
			zap.String("tx_hash", res.TxHash),
			zap.Error(err),
		)
		return Result{}, err
	}

	w.log.Info("Achievement minted",
		zap.Int64("achievement_id", a.ID),
		zap.String("token_id", res.TokenID),
		zap.String("tx_hash", res.TxHash),
		zap.Int("attempts", attempts),
	)
	return Result{Outcome: OutcomeMinted, Attempts: attempts, Achievement: done}, nil
}

func (w *Worker) park(ctx context.Context, a *model.Achievement) (Result, error) {
	parked, err := w.achievements.Park(ctx, a.ID, model.ParkReasonWalletRequired)
	if err != nil {
		if stderrors.Is(err, pkgerrors.InvalidTransition) {
			return Result{Outcome: OutcomeSkipped, Achievement: parked}, nil
		}
		return Result{}, err
	}

	w.log.Info("Achievement parked until wallet is connected",
		zap.Int64("achievement_id", a.ID),
		zap.String("attendee_id", a.AttendeeID),
	)
	return Result{Outcome: OutcomeParked, Achievement: parked}, nil
}

func (w *Worker) fail(ctx context.Context, a *model.Achievement, cause error, kind model.FailureKind, attempts int) (Result, error) {
	failed, err := w.achievements.FailMint(ctx, a.ID, cause.Error(), kind, attempts)
	if err != nil {
		return Result{}, err
	}

	w.log.Warn("Mint failed",
		zap.Int64("achievement_id", a.ID),
		zap.String("failure_kind", string(kind)),
		zap.Int("attempts", attempts),
		zap.Error(cause),
	)
	return Result{Outcome: OutcomeFailed, Attempts: attempts, Achievement: failed}, nil
}

// mintWithRetry 临时错误指数退避重试，永久错误立即返回
// 交易已提交但没等到回执时，后续尝试只等待这笔交易，返回值 pending 为其哈希
func (w *Worker) mintWithRetry(ctx context.Context, id int64, standard mint.Standard, wallet, metadataURI string) (*mint.Result, int, string, error) {
	calls := 0
	pending := ""
	op := func() (*mint.Result, error) {
		var res *mint.Result
		err := w.breaker.Call(ctx, func(ctx context.Context) error {
			calls++
			attemptCtx, cancel := context.WithTimeout(ctx, w.cfg.AttemptTimeout)
			defer cancel()

			start := time.Now()
			var err error
			if pending != "" {
				res, err = w.client.Await(attemptCtx, standard, pending)
			} else {
				res, err = w.client.Mint(attemptCtx, standard, wallet, metadataURI)
			}
			metrics.RecordMintAttempt(ctx, string(standard), outcomeLabel(err), time.Since(start))
			return err
		})
		if err == nil {
			return res, nil
		}
		if tx, ok := mint.PendingTx(err); ok {
			pending = tx
		}
		if mint.Classify(err) == mint.KindPermanent {
			return nil, backoff.Permanent(err)
		}
		return nil, err
	}

	res, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(w.newBackOff()),
		backoff.WithMaxTries(uint(w.cfg.MaxAttempts)),
		backoff.WithNotify(func(err error, next time.Duration) {
			w.log.Warn("Mint attempt failed, retrying",
				zap.Int64("achievement_id", id),
				zap.Int("attempt", calls),
				zap.String("pending_tx", pending),
				zap.Duration("next_retry", next),
				zap.Error(err),
			)
		}),
	)
	return res, calls, pending, err
}

func (w *Worker) newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.cfg.InitialBackoff
	b.MaxInterval = w.cfg.MaxBackoff
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	return b
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	return mint.Classify(err).String()
}
