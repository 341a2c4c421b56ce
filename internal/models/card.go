package models

import (
	"time"
)

// Card 顾客在某商家的一轮集点卡
// 进度只由 punch_events 推导，CompletedAt 仅作记账用途
type Card struct {
	ID          uint       `gorm:"primarykey" json:"id"`                                     // 主键
	BusinessID  uint       `gorm:"index:idx_card_business_user;not null" json:"business_id"` // 商家ID
	UserID      uint       `gorm:"index:idx_card_business_user;not null" json:"user_id"`     // 用户ID
	MaxPunches  int        `gorm:"not null" json:"max_punches"`                              // 集满所需次数
	ExpiresAt   time.Time  `gorm:"index;not null" json:"expires_at"`                         // 过期时间
	CompletedAt *time.Time `gorm:"index" json:"completed_at"`                                // 集满记账时间
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`                                  // 创建时间
	UpdatedAt   time.Time  `json:"updated_at"`                                               // 更新时间
	Business    *Business  `gorm:"foreignKey:BusinessID" json:"business,omitempty"`          // 商家信息
}

// TableName 指定表名
func (Card) TableName() string {
	return "cards"
}

// IsActive 集点卡在 now 时刻是否仍可打卡
func (c *Card) IsActive(now time.Time) bool {
	if c == nil {
		return false
	}
	return now.Before(c.ExpiresAt)
}
