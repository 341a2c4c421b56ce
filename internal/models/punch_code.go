package models

import (
	"time"
)

// PunchCode 一次性打卡码
// CardSlot / CodeSlot 仅在未使用期间持有值，依靠唯一索引保证：
// 同一 (用户, 集点卡) 至多一个未使用码；同一数字码至多被一个未使用码占用
type PunchCode struct {
	ID         uint       `gorm:"primarykey" json:"id"`                        // 主键
	Code       string     `gorm:"type:varchar(16);index;not null" json:"code"` // 数字码
	CardID     uint       `gorm:"index;not null" json:"card_id"`               // 集点卡ID
	UserID     uint       `gorm:"index;not null" json:"user_id"`               // 申请用户ID
	BusinessID uint       `gorm:"index;not null" json:"business_id"`           // 商家ID
	ExpiresAt  time.Time  `gorm:"index;not null" json:"expires_at"`            // 过期时间
	Used       bool       `gorm:"index;not null;default:false" json:"used"`    // 是否已使用
	UsedAt     *time.Time `json:"used_at"`                                     // 使用时间
	UsedBy     *uint      `gorm:"index" json:"used_by,omitempty"`              // 核销店员用户ID
	CardSlot   *string    `gorm:"type:varchar(64);uniqueIndex" json:"-"`       // 未使用占位：user:card
	CodeSlot   *string    `gorm:"type:varchar(16);uniqueIndex" json:"-"`       // 未使用占位：数字码
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`                     // 创建时间
}

// TableName 指定表名
func (PunchCode) TableName() string {
	return "punch_codes"
}

// IsExpired 打卡码在 now 时刻是否已过期（到期时刻即视为过期）
func (p *PunchCode) IsExpired(now time.Time) bool {
	if p == nil {
		return true
	}
	return !now.Before(p.ExpiresAt)
}
