package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
)

type AchievementRepository struct {
	db *gorm.DB
}

func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

// Create 命中 checkin_id 唯一索引时返回 ErrDuplicate
func (r *AchievementRepository) Create(ctx context.Context, a *model.Achievement) error {
	return translate(r.db.WithContext(ctx).Create(a).Error)
}

func (r *AchievementRepository) GetByID(ctx context.Context, id int64) (*model.Achievement, error) {
	var a model.Achievement
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

func (r *AchievementRepository) GetByCheckIn(ctx context.Context, checkInID int64) (*model.Achievement, error) {
	var a model.Achievement
	if err := r.db.WithContext(ctx).Where("check_in_id = ?", checkInID).Take(&a).Error; err != nil {
		return nil, translate(err)
	}
	return &a, nil
}

// CompareAndUpdate 仅当当前状态属于 from 时更新，返回受影响行数
// 单条 UPDATE ... WHERE status IN (...)，并发下只有一个调用方能成功
func (r *AchievementRepository) CompareAndUpdate(
	ctx context.Context,
	id int64,
	from []model.AchievementStatus,
	updates map[string]interface{},
) (int64, error) {
	statuses := make([]string, 0, len(from))
	for _, s := range from {
		statuses = append(statuses, string(s))
	}

	res := r.db.WithContext(ctx).
		Model(&model.Achievement{}).
		Where("id = ? AND status IN ?", id, statuses).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// ListRedispatchable 扫描需要重新投递的成就
// 未挂起的 pending 超过宽限期，或可重试的 transient 失败超过冷却期
func (r *AchievementRepository) ListRedispatchable(
	ctx context.Context,
	pendingBefore, failedBefore time.Time,
	maxRounds, limit int,
) ([]*model.Achievement, error) {
	var rows []*model.Achievement
	err := r.db.WithContext(ctx).
		Where("parked_reason IS NULL").
		Where(
			r.db.Where("status = ? AND updated_at < ?", model.AchievementStatusPending, pendingBefore).
				Or("status = ? AND failure_kind = ? AND failure_rounds < ? AND failed_at < ?",
					model.AchievementStatusMintFailed, model.FailureKindTransient, maxRounds, failedBefore),
		).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListStaleMinting minting 状态停留超过阈值的成就
func (r *AchievementRepository) ListStaleMinting(ctx context.Context, startedBefore time.Time, limit int) ([]*model.Achievement, error) {
	var rows []*model.Achievement
	err := r.db.WithContext(ctx).
		Where("status = ? AND mint_started_at < ?", model.AchievementStatusMinting, startedBefore).
		Order("mint_started_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// ListParked 参与者因某原因挂起的成就
func (r *AchievementRepository) ListParked(ctx context.Context, attendeeID, reason string) ([]*model.Achievement, error) {
	var rows []*model.Achievement
	err := r.db.WithContext(ctx).
		Where("attendee_id = ? AND parked_reason = ?", attendeeID, reason).
		Find(&rows).Error
	return rows, err
}
