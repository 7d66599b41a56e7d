package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
)

type CheckInRepository struct {
	db *gorm.DB
}

func NewCheckInRepository(db *gorm.DB) *CheckInRepository {
	return &CheckInRepository{db: db}
}

// Create 命中 (event_id, attendee_id) 唯一索引时返回 ErrDuplicate
func (r *CheckInRepository) Create(ctx context.Context, c *model.CheckIn) error {
	return translate(r.db.WithContext(ctx).Create(c).Error)
}

func (r *CheckInRepository) GetByID(ctx context.Context, id int64) (*model.CheckIn, error) {
	var c model.CheckIn
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (r *CheckInRepository) GetVerified(ctx context.Context, eventID int64, attendeeID string) (*model.CheckIn, error) {
	var c model.CheckIn
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND attendee_id = ? AND verified = ?", eventID, attendeeID, true).
		Take(&c).Error
	if err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

// VerifiedTimes 参与者在 before 之前的已验证签到时间，按时间倒序
func (r *CheckInRepository) VerifiedTimes(ctx context.Context, attendeeID string, before time.Time, limit int) ([]time.Time, error) {
	var rows []model.CheckIn
	err := r.db.WithContext(ctx).
		Select("created_at").
		Where("attendee_id = ? AND verified = ? AND created_at <= ?", attendeeID, true, before).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	times := make([]time.Time, 0, len(rows))
	for _, row := range rows {
		times = append(times, row.CreatedAt)
	}
	return times, nil
}

// ReferencedEvidence 返回 refs 中已被签到引用的部分
func (r *CheckInRepository) ReferencedEvidence(ctx context.Context, refs []string) (map[string]struct{}, error) {
	out := make(map[string]struct{}, len(refs))
	if len(refs) == 0 {
		return out, nil
	}

	var used []string
	err := r.db.WithContext(ctx).
		Model(&model.CheckIn{}).
		Where("evidence_ref IN ?", refs).
		Pluck("evidence_ref", &used).Error
	if err != nil {
		return nil, err
	}
	for _, ref := range used {
		out[ref] = struct{}{}
	}
	return out, nil
}
