package errors

func (d Definition) Error() string {
	return d.Message
}

// Definition 表示业务错误码及默认信息。
// 值类型可比较，经 %w 包装后仍可用 errors.Is 判断。
type Definition struct {
	Code    string
	Message string
}

// 认证与授权错误。
var (
	Unauthorized       = Definition{Code: "UNAUTHORIZED", Message: "Unauthorized"}
	Forbidden          = Definition{Code: "FORBIDDEN", Message: "Forbidden"}
	IssuerUnauthorized = Definition{Code: "ISSUER_UNAUTHORIZED", Message: "Caller is not the organizer of record for this event"}
	InvalidRequest     = Definition{Code: "INVALID_REQUEST", Message: "Invalid request"}
	RateLimited        = Definition{Code: "RATE_LIMITED", Message: "Too many requests"}
)

// LiveProof 令牌协议错误，始终对用户可见，服务端不会自动重试。
var (
	TokenExpired          = Definition{Code: "TOKEN_EXPIRED", Message: "LiveProof token expired"}
	TokenReplayed         = Definition{Code: "TOKEN_REPLAYED", Message: "LiveProof token already used"}
	TokenInvalidSignature = Definition{Code: "TOKEN_INVALID_SIGNATURE", Message: "LiveProof token signature invalid"}
)

// 签到模块错误。
var (
	EventNotFound   = Definition{Code: "EVENT_NOT_FOUND", Message: "Event not found"}
	CheckInNotFound = Definition{Code: "CHECKIN_NOT_FOUND", Message: "Check-in not found"}
	CheckInMismatch = Definition{Code: "CHECKIN_MISMATCH", Message: "Check-in does not belong to this event and attendee"}
	EvidenceInvalid = Definition{Code: "EVIDENCE_INVALID", Message: "Evidence missing or too large"}
	OutsideGeofence = Definition{Code: "OUTSIDE_GEOFENCE", Message: "Reported location is outside the event geofence"}
)

// 成就发放模块错误。
var (
	Conflict            = Definition{Code: "CONFLICT", Message: "Resource already exists"}
	InvalidTransition   = Definition{Code: "INVALID_TRANSITION", Message: "Invalid achievement state transition"}
	AchievementNotFound = Definition{Code: "ACHIEVEMENT_NOT_FOUND", Message: "Achievement not found"}
	BadgeNotFound       = Definition{Code: "BADGE_NOT_FOUND", Message: "Badge not found"}
	WalletRequired      = Definition{Code: "WALLET_REQUIRED", Message: "Connect a wallet to receive this achievement"}
	WalletInvalid       = Definition{Code: "WALLET_INVALID", Message: "Wallet address invalid"}
	ProfileNotFound     = Definition{Code: "PROFILE_NOT_FOUND", Message: "Profile not found"}
)

// 令牌生成器错误。
var (
	ErrTokenGeneratorNotInitialized = Definition{Code: "TOKEN_GENERATOR_NOT_INITIALIZED", Message: "Token generator not initialized"}
	ErrInvalidTokenClaims           = Definition{Code: "INVALID_TOKEN_CLAIMS", Message: "Invalid token claims"}
)

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	Unauthorized.Code:          Unauthorized,
	Forbidden.Code:             Forbidden,
	IssuerUnauthorized.Code:    IssuerUnauthorized,
	InvalidRequest.Code:        InvalidRequest,
	RateLimited.Code:           RateLimited,
	TokenExpired.Code:          TokenExpired,
	TokenReplayed.Code:         TokenReplayed,
	TokenInvalidSignature.Code: TokenInvalidSignature,
	EventNotFound.Code:         EventNotFound,
	CheckInNotFound.Code:       CheckInNotFound,
	CheckInMismatch.Code:       CheckInMismatch,
	EvidenceInvalid.Code:       EvidenceInvalid,
	OutsideGeofence.Code:       OutsideGeofence,
	Conflict.Code:              Conflict,
	InvalidTransition.Code:     InvalidTransition,
	AchievementNotFound.Code:   AchievementNotFound,
	BadgeNotFound.Code:         BadgeNotFound,
	WalletRequired.Code:        WalletRequired,
	WalletInvalid.Code:         WalletInvalid,
	ProfileNotFound.Code:       ProfileNotFound,
}

// Get 根据错误码返回 Definition，若不存在则返回空 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}
