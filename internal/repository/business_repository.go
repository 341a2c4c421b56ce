package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/punchcard-next/internal/constants"
	"github.com/punchcard-next/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BusinessRepository 商家数据访问接口
type BusinessRepository interface {
	Create(business *models.Business) error
	GetByID(id uint) (*models.Business, error)
	GetByIDForUpdate(id uint) (*models.Business, error)
	List(filter BusinessListFilter) ([]models.Business, int64, error)
	Update(business *models.Business) error
	Delete(id uint) error
	WithTx(tx *gorm.DB) *GormBusinessRepository
	WithContext(ctx context.Context) *GormBusinessRepository
}

// GormBusinessRepository GORM 商家仓储实现
type GormBusinessRepository struct {
	db *gorm.DB
}

// NewBusinessRepository 创建商家仓储
func NewBusinessRepository(db *gorm.DB) *GormBusinessRepository {
	return &GormBusinessRepository{db: db}
}

// WithTx 绑定事务
func (r *GormBusinessRepository) WithTx(tx *gorm.DB) *GormBusinessRepository {
	if tx == nil {
		return r
	}
	return &GormBusinessRepository{db: tx}
}

// WithContext 绑定请求上下文
func (r *GormBusinessRepository) WithContext(ctx context.Context) *GormBusinessRepository {
	if ctx == nil {
		return r
	}
	return &GormBusinessRepository{db: r.db.WithContext(ctx)}
}

// Create 创建商家
func (r *GormBusinessRepository) Create(business *models.Business) error {
	if business == nil {
		return errors.New("invalid business")
	}
	return r.db.Create(business).Error
}

// GetByID 根据 ID 查询商家
func (r *GormBusinessRepository) GetByID(id uint) (*models.Business, error) {
	if id == 0 {
		return nil, nil
	}
	var business models.Business
	if err := r.db.First(&business, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &business, nil
}

// GetByIDForUpdate 根据 ID 加锁查询商家
func (r *GormBusinessRepository) GetByIDForUpdate(id uint) (*models.Business, error) {
	if id == 0 {
		return nil, nil
	}
	var business models.Business
	if err := r.db.Clauses(clause.Locking{Strength: "UPDATE"}).First(&business, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &business, nil
}

// List 查询商家列表
func (r *GormBusinessRepository) List(filter BusinessListFilter) ([]models.Business, int64, error) {
	query := r.db.Model(&models.Business{})
	if filter.OwnerUserID > 0 {
		query = query.Where("owner_user_id = ?", filter.OwnerUserID)
	}
	if filter.OnlyActive {
		query = query.Where("status = ?", constants.BusinessStatusActive)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		like := "%" + search + "%"
		condition, argCount := buildLikeCondition(r.db, []string{"name", "reward_description"})
		query = query.Where(condition, repeatLikeArgs(like, argCount)...)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = query.Scopes(paginate(filter.Page, filter.PageSize))

	var businesses []models.Business
	if err := query.Order("id desc").Find(&businesses).Error; err != nil {
		return nil, 0, err
	}
	return businesses, total, nil
}

// Update 更新商家
func (r *GormBusinessRepository) Update(business *models.Business) error {
	if business == nil {
		return errors.New("invalid business")
	}
	return r.db.Save(business).Error
}

// Delete 删除商家（软删除）
func (r *GormBusinessRepository) Delete(id uint) error {
	if id == 0 {
		return nil
	}
	return r.db.Delete(&models.Business{}, id).Error
}
