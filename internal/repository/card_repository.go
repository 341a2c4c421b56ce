package repository

import (
	"context"
	"errors"
	"time"

	"github.com/punchcard-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CardRepository 集点卡仓储接口
type CardRepository interface {
	Create(card *models.Card) error
	GetByID(id uint) (*models.Card, error)
	GetByIDForUpdate(id uint) (*models.Card, error)
	ListByUser(filter CardListFilter) ([]models.Card, int64, error)
	ListActiveByBusinessUser(businessID, userID uint, now time.Time) ([]models.Card, error)
	MarkCompleted(id uint, completedAt time.Time) (bool, error)
	ListCompletionCandidates(limit int) ([]models.Card, error)
	WithTx(tx *gorm.DB) *GormCardRepository
	WithContext(ctx context.Context) *GormCardRepository
}

// GormCardRepository GORM 集点卡仓储实现
type GormCardRepository struct {
	db *gorm.DB
}

// NewCardRepository 创建集点卡仓储
func NewCardRepository(db *gorm.DB) *GormCardRepository {
	return &GormCardRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCardRepository) WithTx(tx *gorm.DB) *GormCardRepository {
	if tx == nil {
		return r
	}
	return &GormCardRepository{db: tx}
}

// WithContext 绑定请求上下文
func (r *GormCardRepository) WithContext(ctx context.Context) *GormCardRepository {
	if ctx == nil {
		return r
	}
	return &GormCardRepository{db: r.db.WithContext(ctx)}
}

// Create 创建集点卡
func (r *GormCardRepository) Create(card *models.Card) error {
	if card == nil {
		return errors.New("invalid card")
	}
	return r.db.Create(card).Error
}

// GetByID 根据 ID 查询集点卡
func (r *GormCardRepository) GetByID(id uint) (*models.Card, error) {
	if id == 0 {
		return nil, nil
	}
	var card models.Card
	if err := r.db.Preload("Business").First(&card, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// GetByIDForUpdate 根据 ID 加锁查询集点卡
func (r *GormCardRepository) GetByIDForUpdate(id uint) (*models.Card, error) {
	if id == 0 {
		return nil, nil
	}
	var card models.Card
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&card, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &card, nil
}

// ListByUser 查询用户的集点卡
func (r *GormCardRepository) ListByUser(filter CardListFilter) ([]models.Card, int64, error) {
	query := r.db.Model(&models.Card{}).Where("user_id = ?", filter.UserID)
	if filter.BusinessID > 0 {
		query = query.Where("business_id = ?", filter.BusinessID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = query.Scopes(paginate(filter.Page, filter.PageSize))

	var cards []models.Card
	if err := query.Preload("Business").Order("id desc").Find(&cards).Error; err != nil {
		return nil, 0, err
	}
	return cards, total, nil
}

// ListActiveByBusinessUser 查询用户在商家下尚未过期的集点卡
func (r *GormCardRepository) ListActiveByBusinessUser(businessID, userID uint, now time.Time) ([]models.Card, error) {
	var cards []models.Card
	if err := r.db.
		Where("business_id = ? AND user_id = ? AND expires_at > ?", businessID, userID, now).
		Order("id desc").
		Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}

// MarkCompleted 记录集满时间，仅首次生效
func (r *GormCardRepository) MarkCompleted(id uint, completedAt time.Time) (bool, error) {
	if id == 0 {
		return false, nil
	}
	result := r.db.Model(&models.Card{}).
		Where("id = ? AND completed_at IS NULL", id).
		Updates(map[string]interface{}{
			"completed_at": completedAt,
			"updated_at":   completedAt,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// ListCompletionCandidates 查询流水已达标但尚未记账集满的集点卡
func (r *GormCardRepository) ListCompletionCandidates(limit int) ([]models.Card, error) {
	query := r.db.Model(&models.Card{}).
		Where("completed_at IS NULL").
		Where("max_punches <= (SELECT COUNT(*) FROM punch_events WHERE punch_events.card_id = cards.id)").
		Order("id asc")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var cards []models.Card
	if err := query.Find(&cards).Error; err != nil {
		return nil, err
	}
	return cards, nil
}
