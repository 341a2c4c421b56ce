package models

import (
	"time"

	"gorm.io/gorm"
)

// Business 参与集点活动的商家
type Business struct {
	ID                uint           `gorm:"primarykey" json:"id"`                                            // 主键
	OwnerUserID       uint           `gorm:"index;not null" json:"owner_user_id"`                             // 店主用户ID
	Name              string         `gorm:"type:varchar(120);not null" json:"name"`                          // 商家名称
	PunchesRequired   int            `gorm:"not null;default:10" json:"punches_required"`                     // 集满所需次数
	CardValidityDays  int            `gorm:"not null;default:365" json:"card_validity_days"`                  // 集点卡有效天数
	RewardDescription string         `gorm:"type:varchar(255);not null;default:''" json:"reward_description"` // 奖励说明
	RewardValue       Money          `gorm:"type:decimal(20,2);not null;default:0" json:"reward_value"`       // 奖励价值
	Status            string         `gorm:"type:varchar(24);index;not null;default:'active'" json:"status"`  // 状态
	CreatedAt         time.Time      `gorm:"index" json:"created_at"`                                         // 创建时间
	UpdatedAt         time.Time      `gorm:"index" json:"updated_at"`                                         // 更新时间
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`                                                  // 软删除时间
}

// TableName 指定表名
func (Business) TableName() string {
	return "businesses"
}
