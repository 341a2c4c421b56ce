package repository

import (
	"context"
	"errors"

	"github.com/punchcard-next/internal/models"

	"gorm.io/gorm"
)

// PunchEventRepository 打卡流水仓储接口（只追加）
type PunchEventRepository interface {
	Append(event *models.PunchEvent) error
	CountByCard(cardID uint) (int64, error)
	CountByCards(cardIDs []uint) (map[uint]int64, error)
	ListByCard(cardID uint, limit int) ([]models.PunchEvent, error)
	WithTx(tx *gorm.DB) *GormPunchEventRepository
	WithContext(ctx context.Context) *GormPunchEventRepository
}

// GormPunchEventRepository GORM 打卡流水仓储实现
type GormPunchEventRepository struct {
	db *gorm.DB
}

// NewPunchEventRepository 创建打卡流水仓储
func NewPunchEventRepository(db *gorm.DB) *GormPunchEventRepository {
	return &GormPunchEventRepository{db: db}
}

// WithTx 绑定事务
func (r *GormPunchEventRepository) WithTx(tx *gorm.DB) *GormPunchEventRepository {
	if tx == nil {
		return r
	}
	return &GormPunchEventRepository{db: tx}
}

// WithContext 绑定请求上下文
func (r *GormPunchEventRepository) WithContext(ctx context.Context) *GormPunchEventRepository {
	if ctx == nil {
		return r
	}
	return &GormPunchEventRepository{db: r.db.WithContext(ctx)}
}

// Append 追加打卡流水
func (r *GormPunchEventRepository) Append(event *models.PunchEvent) error {
	if event == nil || event.CardID == 0 {
		return errors.New("invalid punch event")
	}
	return r.db.Create(event).Error
}

// CountByCard 统计集点卡的打卡次数
func (r *GormPunchEventRepository) CountByCard(cardID uint) (int64, error) {
	if cardID == 0 {
		return 0, nil
	}
	var total int64
	if err := r.db.Model(&models.PunchEvent{}).Where("card_id = ?", cardID).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

type cardPunchCountRow struct {
	CardID uint
	Total  int64
}

// CountByCards 批量统计集点卡的打卡次数
func (r *GormPunchEventRepository) CountByCards(cardIDs []uint) (map[uint]int64, error) {
	result := make(map[uint]int64, len(cardIDs))
	if len(cardIDs) == 0 {
		return result, nil
	}
	var rows []cardPunchCountRow
	if err := r.db.Model(&models.PunchEvent{}).
		Select("card_id, COUNT(*) AS total").
		Where("card_id IN ?", cardIDs).
		Group("card_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		result[row.CardID] = row.Total
	}
	return result, nil
}

// ListByCard 按时间顺序查询集点卡的打卡流水
func (r *GormPunchEventRepository) ListByCard(cardID uint, limit int) ([]models.PunchEvent, error) {
	if cardID == 0 {
		return []models.PunchEvent{}, nil
	}
	query := r.db.Where("card_id = ?", cardID).Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var events []models.PunchEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
