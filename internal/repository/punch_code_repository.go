package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/punchcard-next/internal/models"

	"gorm.io/gorm"
)

// PunchCodeRepository 打卡码仓储接口
type PunchCodeRepository interface {
	Create(code *models.PunchCode) error
	GetByID(id uint) (*models.PunchCode, error)
	GetActiveForCard(userID, cardID uint, now time.Time) (*models.PunchCode, error)
	GetLatestUnusedByCode(code string) (*models.PunchCode, error)
	ReleaseExpiredSlots(cardSlot, codeSlot string, now time.Time) error
	MarkUsed(id uint, usedBy uint, usedAt time.Time) (bool, error)
	WithTx(tx *gorm.DB) *GormPunchCodeRepository
	WithContext(ctx context.Context) *GormPunchCodeRepository
}

// GormPunchCodeRepository GORM 打卡码仓储实现
type GormPunchCodeRepository struct {
	db *gorm.DB
}

// NewPunchCodeRepository 创建打卡码仓储
func NewPunchCodeRepository(db *gorm.DB) *GormPunchCodeRepository {
	return &GormPunchCodeRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPunchCodeRepository) WithTx(tx *gorm.DB) *GormPunchCodeRepository {
	if tx == nil {
		return r
	}
	return &GormPunchCodeRepository{db: tx}
}

// WithContext 绑定请求上下文
func (r *GormPunchCodeRepository) WithContext(ctx context.Context) *GormPunchCodeRepository {
	if ctx == nil {
		return r
	}
	return &GormPunchCodeRepository{db: r.db.WithContext(ctx)}
}

// Create 创建打卡码，占位列冲突时返回 gorm.ErrDuplicatedKey
func (r *GormPunchCodeRepository) Create(code *models.PunchCode) error {
	if code == nil {
		return errors.New("invalid punch code")
	}
	return r.db.Create(code).Error
}

// GetByID 根据 ID 查询打卡码
func (r *GormPunchCodeRepository) GetByID(id uint) (*models.PunchCode, error) {
	if id == 0 {
		return nil, nil
	}
	var code models.PunchCode
	if err := r.db.First(&code, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &code, nil
}

// GetActiveForCard 查询 (用户, 集点卡) 下未使用且未过期的打卡码
func (r *GormPunchCodeRepository) GetActiveForCard(userID, cardID uint, now time.Time) (*models.PunchCode, error) {
	if userID == 0 || cardID == 0 {
		return nil, nil
	}
	var code models.PunchCode
	if err := r.db.
		Where("user_id = ? AND card_id = ? AND used = ? AND expires_at > ?", userID, cardID, false, now).
		Order("id desc").
		First(&code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &code, nil
}

// GetLatestUnusedByCode 按数字码查询最新的未使用打卡码（不区分商家，不判断过期）
func (r *GormPunchCodeRepository) GetLatestUnusedByCode(code string) (*models.PunchCode, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil
	}
	var row models.PunchCode
	if err := r.db.
		Where("code = ? AND used = ?", code, false).
		Order("expires_at desc").
		Order("id desc").
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ReleaseExpiredSlots 回收已过期打卡码持有的占位，使新码可以写入
func (r *GormPunchCodeRepository) ReleaseExpiredSlots(cardSlot, codeSlot string, now time.Time) error {
	if cardSlot != "" {
		if err := r.db.Model(&models.PunchCode{}).
			Where("card_slot = ? AND expires_at <= ?", cardSlot, now).
			Update("card_slot", nil).Error; err != nil {
			return err
		}
	}
	if codeSlot != "" {
		if err := r.db.Model(&models.PunchCode{}).
			Where("code_slot = ? AND expires_at <= ?", codeSlot, now).
			Update("code_slot", nil).Error; err != nil {
			return err
		}
	}
	return nil
}

// MarkUsed 以 used = false 为条件原子核销打卡码，返回是否抢占成功
func (r *GormPunchCodeRepository) MarkUsed(id uint, usedBy uint, usedAt time.Time) (bool, error) {
	if id == 0 {
		return false, nil
	}
	updates := map[string]interface{}{
		"used":      true,
		"used_at":   usedAt,
		"card_slot": nil,
		"code_slot": nil,
	}
	if usedBy > 0 {
		updates["used_by"] = usedBy
	}
	result := r.db.Model(&models.PunchCode{}).
		Where("id = ? AND used = ?", id, false).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}
