package model

// MintReason 铸造消息来源
type MintReason string

const (
	MintReasonIssued          MintReason = "issued"
	MintReasonRedispatch      MintReason = "redispatch"
	MintReasonRetry           MintReason = "retry"
	MintReasonWalletConnected MintReason = "wallet_connected"
)

// MintRequestMessage 铸造任务消息，achievement 的状态机本身保证重复投递无害
type MintRequestMessage struct {
	MessageID     string     `json:"message_id"` // 消息唯一ID，用于日志追踪
	AchievementID int64      `json:"achievement_id,string"`
	Reason        MintReason `json:"reason"`
	RequestedAt   string     `json:"requested_at"`
}
