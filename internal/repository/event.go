package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/MehulDev0228/aurin-platform-sub001/internal/model"
)

// EventRepository 活动、徽章、用户资料的只读查询，以及钱包绑定
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) GetEvent(ctx context.Context, id int64) (*model.Event, error) {
	var event model.Event
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&event).Error; err != nil {
		return nil, translate(err)
	}
	return &event, nil
}

func (r *EventRepository) GetBadge(ctx context.Context, id int64) (*model.Badge, error) {
	var badge model.Badge
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&badge).Error; err != nil {
		return nil, translate(err)
	}
	return &badge, nil
}

func (r *EventRepository) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	var profile model.Profile
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Take(&profile).Error; err != nil {
		return nil, translate(err)
	}
	return &profile, nil
}

// WalletOf 未建档或未绑定都返回空串
func (r *EventRepository) WalletOf(ctx context.Context, userID string) (string, error) {
	profile, err := r.GetProfile(ctx, userID)
	if err == ErrNotFound {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return profile.Wallet(), nil
}

// ReputationOf 未建档的用户信誉按 0 计
func (r *EventRepository) ReputationOf(ctx context.Context, userID string) (int, error) {
	profile, err := r.GetProfile(ctx, userID)
	if err == ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return profile.Reputation, nil
}

// SetWallet 绑定钱包，资料不存在时创建
func (r *EventRepository) SetWallet(ctx context.Context, userID, address string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Profile{}).Where("user_id = ?", userID).Update("wallet_address", address)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
		err := tx.Create(&model.Profile{UserID: userID, WalletAddress: &address}).Error
		if IsUniqueViolation(err) {
			// 并发创建，改为更新
			return tx.Model(&model.Profile{}).Where("user_id = ?", userID).Update("wallet_address", address).Error
		}
		return err
	})
}
