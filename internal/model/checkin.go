package model

// CheckIn 到场证明，verified=true 的记录在 (event_id, attendee_id) 上唯一
type CheckIn struct {
	BaseModel
	EventID           int64   `gorm:"not null;uniqueIndex:idx_check_ins_event_attendee_verified,where:verified = true;index:idx_check_ins_event" json:"event_id,string"`
	AttendeeID        string  `gorm:"type:varchar(64);not null;uniqueIndex:idx_check_ins_event_attendee_verified,where:verified = true;index:idx_check_ins_attendee_created" json:"attendee_id"`
	EvidenceRef       string  `gorm:"type:varchar(255);not null;index" json:"evidence_ref"`
	Latitude          float64 `gorm:"not null" json:"latitude"`
	Longitude         float64 `gorm:"not null" json:"longitude"`
	AccuracyM         float64 `gorm:"not null;default:0" json:"accuracy_m"`
	DeviceFingerprint string  `gorm:"type:varchar(128);not null" json:"device_fingerprint"`
	Verified          bool    `gorm:"not null;default:false" json:"verified"`
}

func (CheckIn) TableName() string {
	return "check_ins"
}

// Geolocation 客户端上报的位置
type Geolocation struct {
	Lat       float64 `json:"lat" validate:"latitude"`
	Lng       float64 `json:"lng" validate:"longitude"`
	AccuracyM float64 `json:"accuracy_m" validate:"gte=0,lte=10000"`
}
