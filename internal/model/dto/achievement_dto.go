package dto

// ========== Achievement 相关 DTO ==========

// 前端下一步动作
const (
	NextActionIssueAchievement = "issue_achievement"
	NextActionMintNFT          = "mint_nft"
	NextActionWait             = "wait"
	NextActionConnectWallet    = "connect_wallet"
	NextActionRetry            = "retry"
	NextActionNone             = "none"
)

// IssueAchievementRequest 组织者为签到发放成就
type IssueAchievementRequest struct {
	EventID    string `json:"event_id" validate:"required,numeric"`
	AttendeeID string `json:"attendee_id" validate:"required,max=64"`
	BadgeID    string `json:"badge_id" validate:"required,numeric"`
	CheckInID  string `json:"checkin_id" validate:"required,numeric"`
}

// IssueAchievementResponse 发放结果
type IssueAchievementResponse struct {
	AchievementID string `json:"achievement_id"`
	Status        string `json:"status"`
	NextAction    string `json:"next_action"`
}

// AchievementView 成就详情，含按需计算的 ProofScore
type AchievementView struct {
	ID           string  `json:"id"`
	EventID      string  `json:"event_id"`
	AttendeeID   string  `json:"attendee_id"`
	BadgeID      string  `json:"badge_id"`
	CheckInID    string  `json:"checkin_id"`
	Status       string  `json:"status"`
	TokenID      *string `json:"token_id,omitempty"`
	TxHash       *string `json:"tx_hash,omitempty"`
	EarnedAt     string  `json:"earned_at"`
	MintAttempts int     `json:"mint_attempts"`
	LastError    *string `json:"last_error,omitempty"`
	ParkedReason *string `json:"parked_reason,omitempty"`
	ProofScore   int     `json:"proof_score"`
	NextAction   string  `json:"next_action"`
}

// ConnectWalletRequest 绑定钱包
type ConnectWalletRequest struct {
	WalletAddress string `json:"wallet_address" validate:"required,eth_addr"`
}

// ConnectWalletResponse 绑定结果，Resumed 为重新投递的成就数量
type ConnectWalletResponse struct {
	WalletAddress string `json:"wallet_address"`
	Resumed       int    `json:"resumed"`
}
