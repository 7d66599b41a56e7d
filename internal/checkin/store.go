// Package checkin 到场签到记录
package checkin

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/evidence"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
	"github.com/MehulDev0228/aurin-platform-sub001/internal/repository"
	pkgerrors "github.com/MehulDev0228/aurin-platform-sub001/pkg/errors"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/logger"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/metrics"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/snowflake"
	"github.com/MehulDev0228/aurin-platform-sub001/pkg/validate"
)

const (
	DefaultMaxEvidenceBytes = 5 << 20

	// 计算连续天数只需要最近的若干条
	proofHistoryLimit = 60
)

type Repository interface {
	Create(ctx context.Context, c *model.CheckIn) error
	GetByID(ctx context.Context, id int64) (*model.CheckIn, error)
	GetVerified(ctx context.Context, eventID int64, attendeeID string) (*model.CheckIn, error)
	VerifiedTimes(ctx context.Context, attendeeID string, before time.Time, limit int) ([]time.Time, error)
}

// Evidence 上传的照片
type Evidence struct {
	Data        []byte
	ContentType string
}

// CreateInput 一次签到请求
type CreateInput struct {
	EventID           int64             `json:"event_id" validate:"gt=0"`
	AttendeeID        string            `json:"attendee_id" validate:"required,max=64"`
	Evidence          Evidence          `json:"-"`
	Geolocation       model.Geolocation `json:"geolocation"`
	DeviceFingerprint string            `json:"device_fingerprint" validate:"required,max=128"`
}

type Store struct {
	repo     Repository
	evidence evidence.Store
	maxBytes int
	log      *zap.Logger
}

func NewStore(repo Repository, ev evidence.Store, maxBytes int) *Store {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxEvidenceBytes
	}
	return &Store{
		repo:     repo,
		evidence: ev,
		maxBytes: maxBytes,
		log:      logger.Named("checkin"),
	}
}

// Validate 在消耗令牌之前做的输入检查
func (s *Store) Validate(in CreateInput) error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", pkgerrors.InvalidRequest, err)
	}
	if len(in.Evidence.Data) == 0 || len(in.Evidence.Data) > s.maxBytes {
		return pkgerrors.EvidenceInvalid
	}
	return nil
}

// UploadEvidence 返回即代表对象已持久化
func (s *Store) UploadEvidence(ctx context.Context, eventID int64, attendeeID string, ev Evidence) (evidence.Object, error) {
	key := evidence.NewKey(eventID, attendeeID)
	obj, err := s.evidence.Put(ctx, key, ev.ContentType, ev.Data)
	if err != nil {
		return evidence.Object{}, fmt.Errorf("failed to upload evidence: %w", err)
	}
	return obj, nil
}

// CreateCheckIn 同一 (event, attendee) 重复调用返回第一次的记录，created 为 false
// 凭证先落盘再写记录，写记录失败留下的孤儿对象由清理任务删除
func (s *Store) CreateCheckIn(ctx context.Context, in CreateInput) (*model.CheckIn, bool, error) {
	if err := s.Validate(in); err != nil {
		return nil, false, err
	}

	existing, err := s.repo.GetVerified(ctx, in.EventID, in.AttendeeID)
	if err == nil {
		metrics.RecordCheckIn(ctx, false, 0)
		return existing, false, nil
	}
	if !stderrors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("failed to look up check-in: %w", err)
	}

	obj, err := s.UploadEvidence(ctx, in.EventID, in.AttendeeID, in.Evidence)
	if err != nil {
		return nil, false, err
	}

	id, err := snowflake.NextID()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate check-in id: %w", err)
	}

	c := &model.CheckIn{
		BaseModel:         model.BaseModel{ID: id},
		EventID:           in.EventID,
		AttendeeID:        in.AttendeeID,
		EvidenceRef:       obj.Key,
		Latitude:          in.Geolocation.Lat,
		Longitude:         in.Geolocation.Lng,
		AccuracyM:         in.Geolocation.AccuracyM,
		DeviceFingerprint: in.DeviceFingerprint,
		Verified:          true,
	}

	if err := s.repo.Create(ctx, c); err != nil {
		if !stderrors.Is(err, repository.ErrDuplicate) {
			return nil, false, fmt.Errorf("failed to create check-in: %w", err)
		}

		// 并发请求先写入了，以唯一索引为准
		existing, getErr := s.repo.GetVerified(ctx, in.EventID, in.AttendeeID)
		if getErr != nil {
			return nil, false, fmt.Errorf("failed to load existing check-in: %w", getErr)
		}
		s.log.Info("Concurrent check-in resolved by unique index",
			zap.Int64("checkin_id", existing.ID),
			zap.String("orphan_evidence", obj.Key),
		)
		metrics.RecordCheckIn(ctx, false, 0)
		return existing, false, nil
	}

	metrics.RecordCheckIn(ctx, true, len(in.Evidence.Data))
	s.log.Info("Check-in created",
		zap.Int64("checkin_id", c.ID),
		zap.Int64("event_id", c.EventID),
		zap.String("attendee_id", c.AttendeeID),
	)
	return c, true, nil
}

// Existing 已验证的签到，不存在时返回 CheckInNotFound
func (s *Store) Existing(ctx context.Context, eventID int64, attendeeID string) (*model.CheckIn, error) {
	c, err := s.repo.GetVerified(ctx, eventID, attendeeID)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, pkgerrors.CheckInNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up check-in: %w", err)
	}
	return c, nil
}

func (s *Store) Get(ctx context.Context, id int64) (*model.CheckIn, error) {
	c, err := s.repo.GetByID(ctx, id)
	if stderrors.Is(err, repository.ErrNotFound) {
		return nil, pkgerrors.CheckInNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load check-in: %w", err)
	}
	return c, nil
}

// LatestProofs 最近的已验证签到时间，倒序
func (s *Store) LatestProofs(ctx context.Context, attendeeID string, asOf time.Time) ([]time.Time, error) {
	times, err := s.repo.VerifiedTimes(ctx, attendeeID, asOf, proofHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load proof history: %w", err)
	}
	return times, nil
}
