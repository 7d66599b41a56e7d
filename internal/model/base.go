package model

import (
	"time"
)

// BaseModel 业务表公共字段，主键由 snowflake 生成
// 签到与成就是审计记录，不做软删除
type BaseModel struct {
	ID        int64     `gorm:"primaryKey;autoIncrement:false" json:"id,string"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}
