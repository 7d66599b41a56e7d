package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/checkin"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/issuance"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/model/dto"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/proofscore"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/repository"
	pkgerrors "github.com/MehulDev0228/aurin-platform-sub001/pkg/errors"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/snowflake"
)

type AchievementService struct {
	machine    *issuance.Machine
	checkins   *checkin.Store
	directory  Directory
	dispatcher Dispatcher
	now        func() time.Time
	log        *zap.Logger
}

func newAchievementService(d Dependencies) *AchievementService {
	return &AchievementService{
		machine:    d.Machine,
		checkins:   d.CheckIns,
		directory:  d.Directory,
		dispatcher: d.Dispatcher,
		now:        d.Now,
		log:        logger.Named("achievement"),
	}
}

// IssueInput 发放请求，ID 已由接口层解析
type IssueInput struct {
	EventID    int64
	AttendeeID string
	BadgeID    int64
	CheckInID  int64
}

// Issue 只有活动的组织者可以发放，签到必须属于该活动和参与者
// 同一签到重复发放返回已有成就，created 为 false
func (s *AchievementService) Issue(ctx context.Context, organizerID string, in IssueInput) (*model.Achievement, bool, error) {
	event, err := s.directory.GetEvent(ctx, in.EventID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, false, pkgerrors.EventNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load event: %w", err)
	}
	if event.OrganizerID != organizerID {
		return nil, false, pkgerrors.IssuerUnauthorized
	}

	c, err := s.checkins.Get(ctx, in.CheckInID)
	if err != nil {
		return nil, false, err
	}
	if !c.Verified || c.EventID != in.EventID || c.AttendeeID != in.AttendeeID {
		return nil, false, pkgerrors.CheckInMismatch
	}

	if _, err := s.directory.GetBadge(ctx, in.BadgeID); err != nil {
		if stderrors.Is(err, repository.ErrNotFound) {
			return nil, false, pkgerrors.BadgeNotFound
		}
		return nil, false, fmt.Errorf("failed to load badge: %w", err)
	}

	a, err := s.machine.Create(ctx, issuance.CreateInput{
		CheckInID:  c.ID,
		EventID:    c.EventID,
		BadgeID:    in.BadgeID,
		AttendeeID: c.AttendeeID,
		EarnedAt:   c.CreatedAt,
	})
	if stderrors.Is(err, pkgerrors.Conflict) {
		return a, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	s.dispatch(ctx, a.ID, model.MintReasonIssued)
	return a, true, nil
}

// Get 参与者本人或活动组织者可查看，附带按需计算的 ProofScore
func (s *AchievementService) Get(ctx context.Context, callerID string, id int64) (*dto.AchievementView, error) {
	a, event, err := s.loadAuthorized(ctx, callerID, id, true)
	if err != nil {
		return nil, err
	}

	score, err := s.proofScore(ctx, a, event)
	if err != nil {
		return nil, err
	}

	return &dto.AchievementView{
		ID:           snowflake.FormatID(a.ID),
		EventID:      snowflake.FormatID(a.EventID),
		AttendeeID:   a.AttendeeID,
		BadgeID:      snowflake.FormatID(a.BadgeID),
		CheckInID:    snowflake.FormatID(a.CheckInID),
		Status:       string(a.Status),
		TokenID:      a.TokenID,
		TxHash:       a.TxHash,
		EarnedAt:     a.EarnedAt.UTC().Format(time.RFC3339),
		MintAttempts: a.MintAttempts,
		LastError:    a.LastError,
		ParkedReason: a.ParkedReason,
		ProofScore:   score,
		NextAction:   NextAction(a),
	}, nil
}

// Retry 手动重试失败或挂起的成就，只有参与者本人可以操作
func (s *AchievementService) Retry(ctx context.Context, callerID string, id int64) (*model.Achievement, error) {
	a, _, err := s.loadAuthorized(ctx, callerID, id, false)
	if err != nil {
		return nil, err
	}

	if !a.Status.Mintable() {
		return a, fmt.Errorf("%w: retry from %s", pkgerrors.InvalidTransition, a.Status)
	}
	if a.IsParked() {
		if a, err = s.machine.Unpark(ctx, id); err != nil {
			return a, err
		}
	}

	s.dispatch(ctx, a.ID, model.MintReasonRetry)
	return a, nil
}

// loadAuthorized organizerAllowed 为 false 时只允许参与者本人
func (s *AchievementService) loadAuthorized(ctx context.Context, callerID string, id int64, organizerAllowed bool) (*model.Achievement, *model.Event, error) {
	a, err := s.machine.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	event, err := s.directory.GetEvent(ctx, a.EventID)
	if err != nil && !stderrors.Is(err, repository.ErrNotFound) {
		return nil, nil, fmt.Errorf("failed to load event: %w", err)
	}

	if a.AttendeeID == callerID {
		return a, event, nil
	}
	if organizerAllowed && event != nil && event.OrganizerID == callerID {
		return a, event, nil
	}
	return nil, nil, pkgerrors.Forbidden
}

func (s *AchievementService) proofScore(ctx context.Context, a *model.Achievement, event *model.Event) (int, error) {
	in := proofscore.Inputs{Rarity: string(model.RarityCommon)}

	if event != nil {
		rep, err := s.directory.ReputationOf(ctx, event.OrganizerID)
		if err != nil {
			return 0, fmt.Errorf("failed to load organizer reputation: %w", err)
		}
		in.OrganizerRep = rep
	}

	badge, err := s.directory.GetBadge(ctx, a.BadgeID)
	switch {
	case err == nil:
		in.Rarity = string(badge.Rarity)
	case !stderrors.Is(err, repository.ErrNotFound):
		return 0, fmt.Errorf("failed to load badge: %w", err)
	}

	asOf := s.now()
	proofs, err := s.checkins.LatestProofs(ctx, a.AttendeeID, asOf)
	if err != nil {
		return 0, err
	}
	if len(proofs) > 0 {
		in.DaysSinceLastProof = proofscore.DaysSince(proofs[0], asOf)
		in.StreakDays = proofscore.StreakDays(proofs)
	}

	return proofscore.Calculate(in), nil
}

// dispatch 投递失败不影响已落库的成就，扫描任务会补投
func (s *AchievementService) dispatch(ctx context.Context, id int64, reason model.MintReason) {
	if err := s.dispatcher.DispatchMint(ctx, id, reason); err != nil {
		s.log.Warn("Failed to dispatch mint, sweep will retry",
			zap.Int64("achievement_id", id),
			zap.String("reason", string(reason)),
			zap.Error(err),
		)
	}
}

// NextAction 客户端下一步
func NextAction(a *model.Achievement) string {
	switch {
	case a.Status == model.AchievementStatusMinted:
		return dto.NextActionNone
	case a.IsParked() && a.ParkedReason != nil && *a.ParkedReason == model.ParkReasonWalletRequired:
		return dto.NextActionConnectWallet
	case a.Status == model.AchievementStatusMintFailed:
		return dto.NextActionRetry
	default:
		return dto.NextActionWait
	}
}
