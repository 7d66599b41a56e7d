package model

// Rarity 徽章稀有度
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityLegendary Rarity = "legendary"
)

// TokenStandard 链上凭证标准
type TokenStandard string

const (
	TokenStandardERC721  TokenStandard = "ERC721"
	TokenStandardERC1155 TokenStandard = "ERC1155"
)

// Event 活动，由外部 CRUD 维护，这里只读
type Event struct {
	BaseModel
	OrganizerID     string   `gorm:"type:varchar(64);not null;index" json:"organizer_id"`
	Title           string   `gorm:"type:varchar(255);not null" json:"title"`
	BadgeID         *int64   `json:"badge_id,omitempty,string"`
	VenueLat        *float64 `json:"venue_lat,omitempty"`
	VenueLng        *float64 `json:"venue_lng,omitempty"`
	GeofenceRadiusM int      `gorm:"not null;default:0" json:"geofence_radius_m"` // 0 表示不校验
}

func (Event) TableName() string {
	return "events"
}

// HasGeofence 场地坐标和半径齐全时才做围栏校验
func (e *Event) HasGeofence() bool {
	return e.VenueLat != nil && e.VenueLng != nil && e.GeofenceRadiusM > 0
}

// Badge 徽章定义
type Badge struct {
	BaseModel
	Name          string        `gorm:"type:varchar(128);not null" json:"name"`
	Rarity        Rarity        `gorm:"type:varchar(16);not null;default:'common'" json:"rarity"`
	TokenStandard TokenStandard `gorm:"type:varchar(16);not null;default:'ERC721'" json:"token_standard"`
	MetadataURI   string        `gorm:"type:varchar(512);not null" json:"metadata_uri"`
}

func (Badge) TableName() string {
	return "badges"
}

// Profile 用户资料，只关心信誉分和钱包
type Profile struct {
	UserID        string  `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	DisplayName   string  `gorm:"type:varchar(64)" json:"display_name"`
	Reputation    int     `gorm:"not null;default:0" json:"reputation"` // 0~100
	WalletAddress *string `gorm:"type:varchar(64)" json:"wallet_address,omitempty"`
}

func (Profile) TableName() string {
	return "profiles"
}

// Wallet 返回已绑定的钱包地址，未绑定为空串
func (p *Profile) Wallet() string {
	if p == nil || p.WalletAddress == nil {
		return ""
	}
	return *p.WalletAddress
}
