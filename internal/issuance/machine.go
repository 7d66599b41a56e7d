// Package issuance 成就发放状态机
//
//	pending ──BeginMint──> minting ──CompleteMint──> minted
//	   ^                      │
//	   │                   FailMint
//	   │                      v
//	   └──────────────── mint_failed ──BeginMint──> minting
//
// 所有迁移都是带前置状态条件的单条 UPDATE。
package issuance

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/repository"
	pkgerrors "github.com/MehulDev0228/aurin-platform-sub001/pkg/errors"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/metrics"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/snowflake"
)

const maxErrorLength = 1000

// Repository 成就持久化
type Repository interface {
	Create(ctx context.Context, a *model.Achievement) error
	GetByID(ctx context.Context, id int64) (*model.Achievement, error)
	GetByCheckIn(ctx context.Context, checkInID int64) (*model.Achievement, error)
	CompareAndUpdate(ctx context.Context, id int64, from []model.AchievementStatus, updates map[string]interface{}) (int64, error)
}

type Machine struct {
	repo Repository
	now  func() time.Time
	log  *zap.Logger
}

type Option func(*Machine)

func WithClock(now func() time.Time) Option {
	return func(m *Machine) {
		m.now = now
	}
}

func New(repo Repository, opts ...Option) *Machine {
	m := &Machine{
		repo: repo,
		now:  time.Now,
		log:  logger.Named("issuance"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateInput 发放成就所需信息
type CreateInput struct {
	CheckInID  int64
	EventID    int64
	BadgeID    int64
	AttendeeID string
	EarnedAt   time.Time
}

// Create 同一签到重复发放时返回已存在的成就和 Conflict
func (m *Machine) Create(ctx context.Context, in CreateInput) (*model.Achievement, error) {
	id, err := snowflake.NextID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate achievement id: %w", err)
	}

	earnedAt := in.EarnedAt
	if earnedAt.IsZero() {
		earnedAt = m.now()
	}

	a := &model.Achievement{
		BaseModel:  model.BaseModel{ID: id},
		EventID:    in.EventID,
		AttendeeID: in.AttendeeID,
		BadgeID:    in.BadgeID,
		CheckInID:  in.CheckInID,
		Status:     model.AchievementStatusPending,
		EarnedAt:   earnedAt.UTC(),
	}

	if err := m.repo.Create(ctx, a); err != nil {
		if !stderrors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("failed to create achievement: %w", err)
		}

		existing, getErr := m.repo.GetByCheckIn(ctx, in.CheckInID)
		if getErr != nil {
			return nil, fmt.Errorf("failed to load existing achievement: %w", getErr)
		}
		metrics.RecordTransition(ctx, "create", "conflict")
		return existing, pkgerrors.Conflict
	}

	metrics.RecordTransition(ctx, "create", "ok")
	m.log.Info("Achievement created",
		zap.Int64("achievement_id", a.ID),
		zap.Int64("checkin_id", a.CheckInID),
		zap.String("attendee_id", a.AttendeeID),
	)
	return a, nil
}

// BeginMint pending|mint_failed -> minting，唯一能触发铸造的迁移
func (m *Machine) BeginMint(ctx context.Context, id int64) (*model.Achievement, error) {
	now := m.now()
	return m.transition(ctx, id, "begin_mint",
		[]model.AchievementStatus{model.AchievementStatusPending, model.AchievementStatusMintFailed},
		map[string]interface{}{
			"status":          model.AchievementStatusMinting,
			"mint_started_at": now,
			"parked_reason":   nil,
			"parked_at":       nil,
		},
	)
}

// CompleteMint minting -> minted
func (m *Machine) CompleteMint(ctx context.Context, id int64, tokenID, txHash string, attempts int) (*model.Achievement, error) {
	now := m.now()
	return m.transition(ctx, id, "complete_mint",
		[]model.AchievementStatus{model.AchievementStatusMinting},
		map[string]interface{}{
			"status":        model.AchievementStatusMinted,
			"token_id":      tokenID,
			"tx_hash":       txHash,
			"minted_at":     now,
			"mint_attempts": gorm.Expr("mint_attempts + ?", attempts),
			"last_error":    nil,
			"failure_kind":  nil,
		},
	)
}

// FailMint minting -> mint_failed，签到和徽章关联不受影响
func (m *Machine) FailMint(ctx context.Context, id int64, reason string, kind model.FailureKind, attempts int) (*model.Achievement, error) {
	if len(reason) > maxErrorLength {
		reason = reason[:maxErrorLength]
	}

	now := m.now()
	return m.transition(ctx, id, "fail_mint",
		[]model.AchievementStatus{model.AchievementStatusMinting},
		map[string]interface{}{
			"status":         model.AchievementStatusMintFailed,
			"failed_at":      now,
			"last_error":     reason,
			"failure_kind":   kind,
			"failure_rounds": gorm.Expr("failure_rounds + 1"),
			"mint_attempts":  gorm.Expr("mint_attempts + ?", attempts),
		},
	)
}

// Park 缺少前置条件时挂起，状态不变
func (m *Machine) Park(ctx context.Context, id int64, reason string) (*model.Achievement, error) {
	now := m.now()
	return m.transition(ctx, id, "park",
		[]model.AchievementStatus{model.AchievementStatusPending, model.AchievementStatusMintFailed},
		map[string]interface{}{
			"parked_reason": reason,
			"parked_at":     now,
		},
	)
}

func (m *Machine) Unpark(ctx context.Context, id int64) (*model.Achievement, error) {
	return m.transition(ctx, id, "unpark",
		[]model.AchievementStatus{model.AchievementStatusPending, model.AchievementStatusMintFailed},
		map[string]interface{}{
			"parked_reason": nil,
			"parked_at":     nil,
		},
	)
}

func (m *Machine) Get(ctx context.Context, id int64) (*model.Achievement, error) {
	a, err := m.repo.GetByID(ctx, id)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, pkgerrors.AchievementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load achievement: %w", err)
	}
	return a, nil
}

func (m *Machine) transition(
	ctx context.Context,
	id int64,
	op string,
	from []model.AchievementStatus,
	updates map[string]interface{},
) (*model.Achievement, error) {
	rows, err := m.repo.CompareAndUpdate(ctx, id, from, updates)
	if err != nil {
		metrics.RecordTransition(ctx, op, "error")
		return nil, fmt.Errorf("failed to %s: %w", op, err)
	}

	current, err := m.repo.GetByID(ctx, id)
	if stderrors.Is(err, repository.ErrNotFound) {
		metrics.RecordTransition(ctx, op, "not_found")
		return nil, pkgerrors.AchievementNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reload achievement: %w", err)
	}

	if rows == 0 {
		metrics.RecordTransition(ctx, op, "invalid")
		m.log.Warn("Invalid achievement transition rejected",
			zap.Int64("achievement_id", id),
			zap.String("op", op),
			zap.String("status", string(current.Status)),
		)
		return current, fmt.Errorf("%w: %s from %s", pkgerrors.InvalidTransition, op, current.Status)
	}

	metrics.RecordTransition(ctx, op, "ok")
	return current, nil
}
