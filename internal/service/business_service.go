package service

import (
	"context"
	"errors"
	"strings"

	"github.com/punchcard-next/internal/constants"
	"github.com/punchcard-next/internal/logger"
	"github.com/punchcard-next/internal/models"
	"github.com/punchcard-next/internal/repository"
)

const (
	maxBusinessNameLength   = 120
	maxBusinessPunches      = 100
	maxBusinessValidityDays = 3650
)

// BusinessAuthorizer 商家角色授权能力
type BusinessAuthorizer interface {
	RedeemAuthorizer
	CanManage(userID, businessID uint) (bool, error)
	AssignBusinessRole(userID, businessID uint, role string) error
}

// CreateBusinessInput 创建商家输入
type CreateBusinessInput struct {
	OwnerUserID       uint
	Name              string
	PunchesRequired   int
	CardValidityDays  int
	RewardDescription string
	RewardValue       models.Money
}

// GrantStaffInput 授予店员输入
type GrantStaffInput struct {
	OperatorID uint
	BusinessID uint
	StaffEmail string
}

// BusinessService 商家服务
type BusinessService struct {
	businessRepo repository.BusinessRepository
	userRepo     repository.UserRepository
	authorizer   BusinessAuthorizer
}

// NewBusinessService 创建商家服务
func NewBusinessService(businessRepo repository.BusinessRepository, userRepo repository.UserRepository, authorizer BusinessAuthorizer) *BusinessService {
	return &BusinessService{
		businessRepo: businessRepo,
		userRepo:     userRepo,
		authorizer:   authorizer,
	}
}

// CreateBusiness 创建商家，创建者成为店主
func (s *BusinessService) CreateBusiness(ctx context.Context, input CreateBusinessInput) (*models.Business, error) {
	if input.OwnerUserID == 0 {
		return nil, ErrUnauthenticated
	}
	name := strings.TrimSpace(input.Name)
	if name == "" || len([]rune(name)) > maxBusinessNameLength {
		return nil, ErrBusinessInvalid
	}
	if input.PunchesRequired < 1 || input.PunchesRequired > maxBusinessPunches {
		return nil, ErrBusinessInvalid
	}
	if input.CardValidityDays < 1 || input.CardValidityDays > maxBusinessValidityDays {
		return nil, ErrBusinessInvalid
	}
	if input.RewardValue.IsNegative() {
		return nil, ErrBusinessInvalid
	}
	if s.authorizer == nil {
		return nil, ErrAuthzUnavailable
	}

	business := &models.Business{
		OwnerUserID:       input.OwnerUserID,
		Name:              name,
		PunchesRequired:   input.PunchesRequired,
		CardValidityDays:  input.CardValidityDays,
		RewardDescription: strings.TrimSpace(input.RewardDescription),
		RewardValue:       models.NewMoneyFromDecimal(input.RewardValue.Decimal),
		Status:            constants.BusinessStatusActive,
	}
	businessRepo := s.businessRepo.WithContext(ctx)
	if err := businessRepo.Create(business); err != nil {
		logger.Errorw("business_create_failed", "owner_user_id", input.OwnerUserID, "error", err)
		return nil, ErrBusinessCreateFailed
	}
	// 策略由 casbin 适配器独立落库，授权失败时撤回商家记录
	if err := s.authorizer.AssignBusinessRole(input.OwnerUserID, business.ID, constants.BusinessRoleOwner); err != nil {
		logger.Errorw("business_owner_grant_failed", "business_id", business.ID, "owner_user_id", input.OwnerUserID, "error", err)
		if delErr := businessRepo.Delete(business.ID); delErr != nil {
			logger.Errorw("business_create_rollback_failed", "business_id", business.ID, "error", delErr)
		}
		return nil, errors.Join(ErrAuthzUnavailable, err)
	}
	logger.Infow("business_created", "business_id", business.ID, "owner_user_id", business.OwnerUserID)
	return business, nil
}

// GetBusiness 查询商家
func (s *BusinessService) GetBusiness(ctx context.Context, id uint) (*models.Business, error) {
	if id == 0 {
		return nil, ErrBusinessInvalid
	}
	business, err := s.businessRepo.WithContext(ctx).GetByID(id)
	if err != nil {
		return nil, err
	}
	if business == nil {
		return nil, ErrBusinessNotFound
	}
	return business, nil
}

// ListBusinesses 查询可加入的商家
func (s *BusinessService) ListBusinesses(ctx context.Context, search string, page, pageSize int) ([]models.Business, int64, error) {
	return s.businessRepo.WithContext(ctx).List(repository.BusinessListFilter{
		Page:       page,
		PageSize:   pageSize,
		Search:     search,
		OnlyActive: true,
	})
}

// GrantStaff 店主授予店员核销权限
func (s *BusinessService) GrantStaff(ctx context.Context, input GrantStaffInput) (*models.User, error) {
	if input.OperatorID == 0 {
		return nil, ErrUnauthenticated
	}
	email := strings.ToLower(strings.TrimSpace(input.StaffEmail))
	if email == "" {
		return nil, ErrBusinessInvalid
	}
	if s.authorizer == nil {
		return nil, ErrAuthzUnavailable
	}
	if _, err := s.GetBusiness(ctx, input.BusinessID); err != nil {
		return nil, err
	}
	allowed, err := s.authorizer.CanManage(input.OperatorID, input.BusinessID)
	if err != nil {
		return nil, errors.Join(ErrAuthzUnavailable, err)
	}
	if !allowed {
		return nil, ErrBusinessForbidden
	}
	staff, err := s.userRepo.WithContext(ctx).GetByEmail(email)
	if err != nil {
		return nil, err
	}
	if staff == nil {
		return nil, ErrUserNotFound
	}
	if err := s.authorizer.AssignBusinessRole(staff.ID, input.BusinessID, constants.BusinessRoleStaff); err != nil {
		return nil, errors.Join(ErrAuthzUnavailable, err)
	}
	logger.Infow("business_staff_granted", "business_id", input.BusinessID, "staff_user_id", staff.ID, "operator_id", input.OperatorID)
	return staff, nil
}
