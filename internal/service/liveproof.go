package service

import (
	"context"
	stderrors "errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/checkin"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/liveproof"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/model/dto"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/ratelimit"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/repository"
	pkgerrors "github.com/MehulDev0228/aurin-platform-sub001/pkg/errors"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/metrics"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/snowflake"
)

type LiveProofService struct {
	tokens       *liveproof.Service
	limiter      *ratelimit.Limiter
	checkins     *checkin.Store
	directory    Directory
	startPolicy  ratelimit.Policy
	verifyPolicy ratelimit.Policy
	log          *zap.Logger
}

func newLiveProofService(d Dependencies) *LiveProofService {
	return &LiveProofService{
		tokens:       d.Tokens,
		limiter:      d.Limiter,
		checkins:     d.CheckIns,
		directory:    d.Directory,
		startPolicy:  d.StartPolicy,
		verifyPolicy: d.VerifyPolicy,
		log:          logger.Named("liveproof"),
	}
}

// Start 组织者为活动生成二维码令牌
func (s *LiveProofService) Start(ctx context.Context, organizerID string, eventID int64) (*dto.StartLiveProofResponse, error) {
	if err := s.allow(ctx, s.startPolicy, organizerID, eventID); err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(ctx, eventID, organizerID)
	if err != nil {
		return nil, err
	}

	metrics.RecordTokenIssued(ctx)
	s.log.Info("LiveProof token issued",
		zap.Int64("event_id", eventID),
		zap.String("organizer_id", organizerID),
		zap.Time("expires_at", token.ExpiresAt),
	)

	return &dto.StartLiveProofResponse{
		QRToken:          token.Token,
		ExpiresInSeconds: s.tokens.ExpiresIn(token),
	}, nil
}

// VerifyInput 参与者提交的签到
type VerifyInput struct {
	Token             string
	Evidence          checkin.Evidence
	Geolocation       model.Geolocation
	DeviceFingerprint string
}

// Verify 令牌校验 -> 限流 -> 围栏 -> 消耗 nonce -> 落库
// nonce 只在前面的检查全部通过后才消耗，落库失败时归还
func (s *LiveProofService) Verify(ctx context.Context, attendeeID string, in VerifyInput) (*model.CheckIn, bool, error) {
	claims, err := s.tokens.Inspect(in.Token)
	if err != nil {
		metrics.RecordVerify(ctx, outcomeOf(err))
		return nil, false, err
	}

	if err := s.allow(ctx, s.verifyPolicy, attendeeID, claims.EventID); err != nil {
		metrics.RecordVerify(ctx, outcomeOf(err))
		return nil, false, err
	}

	event, err := s.directory.GetEvent(ctx, claims.EventID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, false, pkgerrors.EventNotFound
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to load event: %w", err)
	}
	if !checkin.WithinGeofence(event, in.Geolocation) {
		metrics.RecordVerify(ctx, outcomeOf(pkgerrors.OutsideGeofence))
		return nil, false, pkgerrors.OutsideGeofence
	}

	input := checkin.CreateInput{
		EventID:           claims.EventID,
		AttendeeID:        attendeeID,
		Evidence:          in.Evidence,
		Geolocation:       in.Geolocation,
		DeviceFingerprint: in.DeviceFingerprint,
	}
	// 输入非法不应烧掉令牌
	if err := s.checkins.Validate(input); err != nil {
		metrics.RecordVerify(ctx, outcomeOf(err))
		return nil, false, err
	}

	consumed, err := s.tokens.Verify(ctx, in.Token)
	if err != nil {
		metrics.RecordVerify(ctx, outcomeOf(err))
		if stderrors.Is(err, pkgerrors.TokenReplayed) {
			s.log.Warn("LiveProof token replayed",
				zap.Int64("event_id", claims.EventID),
				zap.String("attendee_id", attendeeID),
			)
		}
		return nil, false, err
	}

	c, created, err := s.checkins.CreateCheckIn(ctx, input)
	if err != nil {
		if relErr := s.tokens.Release(context.WithoutCancel(ctx), consumed); relErr != nil {
			s.log.Error("Failed to release nonce after check-in failure",
				zap.Int64("event_id", claims.EventID),
				zap.Error(relErr),
			)
		}
		metrics.RecordVerify(ctx, outcomeOf(err))
		return nil, false, err
	}

	metrics.RecordVerify(ctx, "ok")
	return c, created, nil
}

// GetCheckIn 参与者本人或活动组织者可查看
func (s *LiveProofService) GetCheckIn(ctx context.Context, callerID string, id int64) (*dto.CheckInView, error) {
	c, err := s.checkins.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.AttendeeID != callerID {
		event, err := s.directory.GetEvent(ctx, c.EventID)
		if err != nil && !stderrors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("failed to load event: %w", err)
		}
		if event == nil || event.OrganizerID != callerID {
			return nil, pkgerrors.Forbidden
		}
	}

	return &dto.CheckInView{
		ID:                snowflake.FormatID(c.ID),
		EventID:           snowflake.FormatID(c.EventID),
		AttendeeID:        c.AttendeeID,
		EvidenceRef:       c.EvidenceRef,
		Latitude:          c.Latitude,
		Longitude:         c.Longitude,
		AccuracyM:         c.AccuracyM,
		DeviceFingerprint: c.DeviceFingerprint,
		Verified:          c.Verified,
		CreatedAt:         c.CreatedAt.UTC().Format(time.RFC3339),
	}, nil
}

func (s *LiveProofService) allow(ctx context.Context, p ratelimit.Policy, identity string, eventID int64) error {
	d, err := s.limiter.Allow(ctx, p, identity, strconv.FormatInt(eventID, 10))
	if err != nil {
		return err
	}
	if !d.Allowed {
		metrics.RecordRateLimited(ctx, p.Action)
		return &ratelimit.ExceededError{Decision: d}
	}
	return nil
}

// outcomeOf 指标标签使用错误码
func outcomeOf(err error) string {
	var def pkgerrors.Definition
	if stderrors.As(err, &def) {
		return def.Code
	}
	return "error"
}
