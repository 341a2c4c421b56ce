package service

import (
	"context"
	"time"

	"github.com/punchcard-next/internal/logger"
	"github.com/punchcard-next/internal/repository"

	"gorm.io/gorm"
)

// RedeemAuthorizer 判定身份能否代表商家核销
type RedeemAuthorizer interface {
	CanRedeem(userID, businessID uint) (bool, error)
}

// CompletionNotifier 集点卡集满后的记账通知
type CompletionNotifier interface {
	NotifyCardCompleted(ctx context.Context, cardID uint, completedAt time.Time) error
}

// RedeemPunchInput 核销输入
type RedeemPunchInput struct {
	Code       string
	RedeemerID uint
}

// RedeemResult 核销结果
type RedeemResult struct {
	CardID     uint
	BusinessID uint
	Punches    int
	MaxPunches int
	IsComplete bool
}

// RedemptionService 打卡码核销服务
type RedemptionService struct {
	db         *gorm.DB
	cardRepo   repository.CardRepository
	codeRepo   repository.PunchCodeRepository
	ledger     *PunchLedger
	authorizer RedeemAuthorizer
	notifier   CompletionNotifier
	codeLength int
	now        func() time.Time
}

// NewRedemptionService 创建核销服务
func NewRedemptionService(db *gorm.DB, cardRepo repository.CardRepository, codeRepo repository.PunchCodeRepository, ledger *PunchLedger, authorizer RedeemAuthorizer, codeLength int) *RedemptionService {
	if codeLength < minPunchCodeLength || codeLength > maxPunchCodeLength {
		codeLength = defaultPunchCodeLength
	}
	return &RedemptionService{
		db:         db,
		cardRepo:   cardRepo,
		codeRepo:   codeRepo,
		ledger:     ledger,
		authorizer: authorizer,
		codeLength: codeLength,
		now:        time.Now,
	}
}

// SetCompletionNotifier 设置集满通知（队列或进程内）
func (s *RedemptionService) SetCompletionNotifier(notifier CompletionNotifier) {
	s.notifier = notifier
}

// ValidateAndRedeem 校验打卡码并完成一次打卡
// 核销与流水追加在同一事务内完成，任一步失败则整体回滚，打卡码保持未使用
func (s *RedemptionService) ValidateAndRedeem(ctx context.Context, input RedeemPunchInput) (*RedeemResult, error) {
	if input.RedeemerID == 0 {
		return nil, ErrUnauthenticated
	}
	code, err := NormalizePunchCode(input.Code, s.codeLength)
	if err != nil {
		return nil, err
	}

	row, err := s.codeRepo.WithContext(ctx).GetLatestUnusedByCode(code)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, ErrPunchCodeNotFound
	}
	now := s.now()
	if row.IsExpired(now) {
		return nil, ErrPunchCodeExpired
	}

	if s.authorizer == nil {
		return nil, ErrAuthzUnavailable
	}
	allowed, err := s.authorizer.CanRedeem(input.RedeemerID, row.BusinessID)
	if err != nil {
		logger.Errorw("punch_redeem_authz_failed", "business_id", row.BusinessID, "redeemer_id", input.RedeemerID, "error", err)
		return nil, ErrAuthzUnavailable
	}
	if !allowed {
		logger.Warnw("punch_redeem_forbidden", "business_id", row.BusinessID, "redeemer_id", input.RedeemerID)
		return nil, ErrPunchCodeForbidden
	}

	var result RedeemResult
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		card, err := s.cardRepo.WithTx(tx).GetByIDForUpdate(row.CardID)
		if err != nil {
			return err
		}
		if card == nil {
			return ErrCardNotFound
		}
		if !card.IsActive(now) {
			return ErrCardExpired
		}

		// 卡行锁内重读打卡码，已被并发核销的按已使用处理，先于集满判断
		codeRepo := s.codeRepo.WithTx(tx)
		current, err := codeRepo.GetByID(row.ID)
		if err != nil {
			return err
		}
		if current == nil || current.Used {
			return ErrPunchCodeNotFound
		}

		ledger := s.ledger.WithTx(tx)
		punches, err := ledger.CountForCard(card.ID)
		if err != nil {
			return err
		}
		if punches >= card.MaxPunches {
			return ErrCardComplete
		}

		marked, err := codeRepo.MarkUsed(row.ID, input.RedeemerID, now)
		if err != nil {
			return err
		}
		if !marked {
			return ErrPunchCodeNotFound
		}
		if _, err := ledger.Append(PunchEntry{
			CardID:      card.ID,
			PunchCodeID: row.ID,
			PunchedBy:   input.RedeemerID,
			At:          now,
		}); err != nil {
			if repository.IsDuplicateKeyError(err) {
				return ErrPunchCodeNotFound
			}
			return err
		}

		result = RedeemResult{
			CardID:     card.ID,
			BusinessID: card.BusinessID,
			Punches:    punches + 1,
			MaxPunches: card.MaxPunches,
			IsComplete: punches+1 >= card.MaxPunches,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Infow("punch_redeemed",
		"card_id", result.CardID,
		"business_id", result.BusinessID,
		"redeemer_id", input.RedeemerID,
		"punches", result.Punches,
		"max_punches", result.MaxPunches,
		"is_complete", result.IsComplete,
	)
	if result.IsComplete {
		s.notifyCompleted(ctx, result.CardID, now)
	}
	return &result, nil
}

// notifyCompleted 集满记账为尽力而为，失败由后台对账补齐
func (s *RedemptionService) notifyCompleted(ctx context.Context, cardID uint, completedAt time.Time) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyCardCompleted(ctx, cardID, completedAt); err != nil {
		logger.Warnw("card_completion_notify_failed", "card_id", cardID, "error", err)
	}
}
