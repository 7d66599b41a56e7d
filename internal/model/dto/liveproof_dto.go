package dto

import "github.com/MehulDev0228/aurin-platform-sub001/internal/model"

// ========== LiveProof 相关 DTO ==========

// StartLiveProofRequest 组织者生成二维码挑战
type StartLiveProofRequest struct {
	EventID string `json:"event_id" validate:"required,numeric"`
}

// StartLiveProofResponse 二维码令牌
type StartLiveProofResponse struct {
	QRToken          string `json:"qr_token"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

// VerifyLiveProofRequest 参与者扫码后提交凭证
// Evidence 为 base64 编码的照片
type VerifyLiveProofRequest struct {
	QRToken             string            `json:"qr_token" validate:"required"`
	Evidence            []byte            `json:"evidence" validate:"required"`
	EvidenceContentType string            `json:"evidence_content_type,omitempty"`
	Geolocation         model.Geolocation `json:"geolocation"`
	DeviceFingerprint   string            `json:"device_fingerprint" validate:"required,max=128"`
}

// VerifyLiveProofResponse 签到结果
type VerifyLiveProofResponse struct {
	CheckInID  string `json:"checkin_id"`
	NextAction string `json:"next_action"`
}

// CheckInView 签到详情
type CheckInView struct {
	ID                string  `json:"id"`
	EventID           string  `json:"event_id"`
	AttendeeID        string  `json:"attendee_id"`
	EvidenceRef       string  `json:"evidence_ref"`
	Latitude          float64 `json:"latitude"`
	Longitude         float64 `json:"longitude"`
	AccuracyM         float64 `json:"accuracy_m"`
	DeviceFingerprint string  `json:"device_fingerprint"`
	Verified          bool    `json:"verified"`
	CreatedAt         string  `json:"created_at"`
}
