package models

import (
	"time"
)

// PunchEvent 打卡流水，只追加不修改
type PunchEvent struct {
	ID          uint      `gorm:"primarykey" json:"id"`              // 主键
	CardID      uint      `gorm:"index;not null" json:"card_id"`     // 集点卡ID
	PunchCodeID *uint     `gorm:"uniqueIndex" json:"punch_code_id"`  // 消耗的打卡码ID
	PunchedBy   *uint     `gorm:"index" json:"punched_by,omitempty"` // 核销店员用户ID
	CreatedAt   time.Time `gorm:"index;not null" json:"created_at"`  // 打卡时间
}

// TableName 指定表名
func (PunchEvent) TableName() string {
	return "punch_events"
}
