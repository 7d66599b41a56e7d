package model

import "time"

// AchievementStatus 成就发放状态
type AchievementStatus string

const (
	AchievementStatusPending    AchievementStatus = "pending"     // 待铸造
	AchievementStatusMinting    AchievementStatus = "minting"     // 铸造中
	AchievementStatusMinted     AchievementStatus = "minted"      // 已上链，终态
	AchievementStatusMintFailed AchievementStatus = "mint_failed" // 失败，可重试
)

// FailureKind 铸造失败分类
type FailureKind string

const (
	FailureKindTransient FailureKind = "transient"
	FailureKindPermanent FailureKind = "permanent"
	FailureKindStale     FailureKind = "stale" // 超时对账，链上结果未知
)

// ParkReasonWalletRequired 缺少钱包时挂起
const ParkReasonWalletRequired = "wallet_required"

// Achievement 成就记录，只能通过状态机迁移，不删除
type Achievement struct {
	BaseModel
	EventID       int64             `gorm:"not null;index" json:"event_id,string"`
	AttendeeID    string            `gorm:"type:varchar(64);not null;index" json:"attendee_id"`
	BadgeID       int64             `gorm:"not null" json:"badge_id,string"`
	CheckInID     int64             `gorm:"not null;uniqueIndex:idx_achievements_check_in" json:"checkin_id,string"`
	Status        AchievementStatus `gorm:"type:varchar(16);not null;default:'pending';index:idx_achievements_status_updated" json:"status"`
	TokenID       *string           `gorm:"type:varchar(78)" json:"token_id,omitempty"`
	TxHash        *string           `gorm:"type:varchar(66)" json:"tx_hash,omitempty"`
	EarnedAt      time.Time         `gorm:"not null" json:"earned_at"`
	MintStartedAt *time.Time        `gorm:"index" json:"mint_started_at,omitempty"`
	MintedAt      *time.Time        `json:"minted_at,omitempty"`
	FailedAt      *time.Time        `json:"failed_at,omitempty"`
	MintAttempts  int               `gorm:"not null;default:0" json:"mint_attempts"`
	FailureRounds int               `gorm:"not null;default:0" json:"failure_rounds"`
	FailureKind   *FailureKind      `gorm:"type:varchar(16)" json:"failure_kind,omitempty"`
	LastError     *string           `gorm:"type:text" json:"last_error,omitempty"`
	ParkedReason  *string           `gorm:"type:varchar(32)" json:"parked_reason,omitempty"`
	ParkedAt      *time.Time        `json:"parked_at,omitempty"`
}

func (Achievement) TableName() string {
	return "achievements"
}

// IsParked 挂起的成就不会被 worker 或扫描任务自动处理
func (a *Achievement) IsParked() bool {
	return a.ParkedReason != nil
}

// Mintable pending 与 mint_failed 可以进入 minting
func (s AchievementStatus) Mintable() bool {
	return s == AchievementStatusPending || s == AchievementStatusMintFailed
}
