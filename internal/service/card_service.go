package service

import (
	"context"
	"time"

	"github.com/punchcard-next/internal/config"
	"github.com/punchcard-next/internal/constants"
	"github.com/punchcard-next/internal/logger"
	"github.com/punchcard-next/internal/models"
	"github.com/punchcard-next/internal/repository"

	"gorm.io/gorm"
)

const (
	defaultCardMaxPunches   = 10
	defaultCardValidityDays = 365
	cardHistoryLimit        = 200
	reconcileBatchSize      = 100
)

// CreateCardInput 创建集点卡输入
type CreateCardInput struct {
	BusinessID uint
	UserID     uint
	MaxPunches int
	ExpiresAt  time.Time
}

// CardProgress 集点卡及其由流水推导的进度
type CardProgress struct {
	Card       models.Card
	Punches    int
	IsComplete bool
	IsActive   bool
	Status     string
}

// CardDetail 集点卡详情
type CardDetail struct {
	CardProgress
	History []models.PunchEvent
}

// CardService 集点卡生命周期服务
type CardService struct {
	db           *gorm.DB
	cfg          config.CardConfig
	cardRepo     repository.CardRepository
	businessRepo repository.BusinessRepository
	ledger       *PunchLedger
	now          func() time.Time
}

// NewCardService 创建集点卡服务
func NewCardService(db *gorm.DB, cfg config.CardConfig, cardRepo repository.CardRepository, businessRepo repository.BusinessRepository, ledger *PunchLedger) *CardService {
	return &CardService{
		db:           db,
		cfg:          cfg,
		cardRepo:     cardRepo,
		businessRepo: businessRepo,
		ledger:       ledger,
		now:          time.Now,
	}
}

// IsActive 集点卡在 now 时刻是否有效
func (s *CardService) IsActive(card *models.Card, now time.Time) bool {
	return card.IsActive(now)
}

// CreateCard 创建集点卡，返回新卡 ID
func (s *CardService) CreateCard(ctx context.Context, input CreateCardInput) (uint, error) {
	card, err := s.createCard(s.cardRepo.WithContext(ctx), input, s.now())
	if err != nil {
		return 0, err
	}
	return card.ID, nil
}

func (s *CardService) createCard(repo repository.CardRepository, input CreateCardInput, now time.Time) (*models.Card, error) {
	if input.BusinessID == 0 || input.UserID == 0 {
		return nil, ErrCardInvalid
	}
	if input.MaxPunches < 1 {
		return nil, ErrCardInvalid
	}
	if !input.ExpiresAt.After(now) {
		return nil, ErrCardInvalid
	}
	card := &models.Card{
		BusinessID: input.BusinessID,
		UserID:     input.UserID,
		MaxPunches: input.MaxPunches,
		ExpiresAt:  input.ExpiresAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.Create(card); err != nil {
		return nil, err
	}
	return card, nil
}

// OptIn 用户加入商家集点活动；已有未集满且未过期的卡时拒绝
// 同一商家的开卡请求通过锁定商家行串行化
func (s *CardService) OptIn(ctx context.Context, businessID, userID uint) (*models.Card, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if businessID == 0 {
		return nil, ErrBusinessInvalid
	}
	now := s.now()
	var created *models.Card
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		business, err := s.businessRepo.WithTx(tx).GetByIDForUpdate(businessID)
		if err != nil {
			return err
		}
		if business == nil {
			return ErrBusinessNotFound
		}
		if business.Status != constants.BusinessStatusActive {
			return ErrBusinessDisabled
		}

		cardRepo := s.cardRepo.WithTx(tx)
		active, err := cardRepo.ListActiveByBusinessUser(businessID, userID, now)
		if err != nil {
			return err
		}
		if len(active) > 0 {
			ids := make([]uint, 0, len(active))
			for _, card := range active {
				ids = append(ids, card.ID)
			}
			counts, err := s.ledger.WithTx(tx).CountForCards(ids)
			if err != nil {
				return err
			}
			for _, card := range active {
				if counts[card.ID] < card.MaxPunches {
					return ErrCardActiveExists
				}
			}
		}

		maxPunches := business.PunchesRequired
		if maxPunches < 1 {
			maxPunches = s.defaultMaxPunches()
		}
		validityDays := business.CardValidityDays
		if validityDays < 1 {
			validityDays = s.defaultValidityDays()
		}
		card, err := s.createCard(cardRepo, CreateCardInput{
			BusinessID: businessID,
			UserID:     userID,
			MaxPunches: maxPunches,
			ExpiresAt:  now.AddDate(0, 0, validityDays),
		}, now)
		if err != nil {
			return err
		}
		created = card
		return nil
	})
	if err != nil {
		return nil, err
	}
	created.Business = nil
	logger.Infow("card_created",
		"card_id", created.ID,
		"business_id", created.BusinessID,
		"user_id", created.UserID,
		"max_punches", created.MaxPunches,
		"expires_at", created.ExpiresAt,
	)
	return created, nil
}

// MarkCompleted 记录集满时间，仅在流水达标时生效，重复调用无副作用
func (s *CardService) MarkCompleted(ctx context.Context, cardID uint, completedAt time.Time) (bool, error) {
	card, err := s.cardRepo.WithContext(ctx).GetByID(cardID)
	if err != nil {
		return false, err
	}
	if card == nil {
		return false, ErrCardNotFound
	}
	if card.CompletedAt != nil {
		return false, nil
	}
	punches, err := s.ledger.WithContext(ctx).CountForCard(card.ID)
	if err != nil {
		return false, err
	}
	if punches < card.MaxPunches {
		return false, nil
	}
	if completedAt.IsZero() {
		completedAt = s.now()
	}
	marked, err := s.cardRepo.WithContext(ctx).MarkCompleted(card.ID, completedAt)
	if err != nil {
		return false, err
	}
	if marked {
		logger.Infow("card_completed", "card_id", card.ID, "business_id", card.BusinessID, "user_id", card.UserID)
	}
	return marked, nil
}

// NotifyCardCompleted 进程内完成集满记账
func (s *CardService) NotifyCardCompleted(ctx context.Context, cardID uint, completedAt time.Time) error {
	_, err := s.MarkCompleted(ctx, cardID, completedAt)
	return err
}

// ReconcileCompletions 补记流水已达标但未记账的集点卡
func (s *CardService) ReconcileCompletions(ctx context.Context) (int, error) {
	candidates, err := s.cardRepo.WithContext(ctx).ListCompletionCandidates(reconcileBatchSize)
	if err != nil {
		return 0, err
	}
	marked := 0
	for _, card := range candidates {
		if ctx.Err() != nil {
			return marked, ctx.Err()
		}
		ok, err := s.MarkCompleted(ctx, card.ID, s.now())
		if err != nil {
			logger.Warnw("card_completion_reconcile_failed", "card_id", card.ID, "error", err)
			continue
		}
		if ok {
			marked++
		}
	}
	return marked, nil
}

// GetCardDetail 查询集点卡详情（仅持卡人可见）
func (s *CardService) GetCardDetail(ctx context.Context, cardID, userID uint) (*CardDetail, error) {
	if userID == 0 {
		return nil, ErrUnauthenticated
	}
	if cardID == 0 {
		return nil, ErrCardInvalid
	}
	card, err := s.cardRepo.WithContext(ctx).GetByID(cardID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, ErrCardNotFound
	}
	if card.UserID != userID {
		return nil, ErrCardForbidden
	}
	ledger := s.ledger.WithContext(ctx)
	punches, err := ledger.CountForCard(card.ID)
	if err != nil {
		return nil, err
	}
	history, err := ledger.History(card.ID, cardHistoryLimit)
	if err != nil {
		return nil, err
	}
	return &CardDetail{
		CardProgress: buildCardProgress(*card, punches, s.now()),
		History:      history,
	}, nil
}

// ListUserCards 查询用户的集点卡及进度
func (s *CardService) ListUserCards(ctx context.Context, userID uint, page, pageSize int) ([]CardProgress, int64, error) {
	if userID == 0 {
		return nil, 0, ErrUnauthenticated
	}
	cards, total, err := s.cardRepo.WithContext(ctx).ListByUser(repository.CardListFilter{
		UserID:   userID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, 0, err
	}
	ids := make([]uint, 0, len(cards))
	for _, card := range cards {
		ids = append(ids, card.ID)
	}
	counts, err := s.ledger.WithContext(ctx).CountForCards(ids)
	if err != nil {
		return nil, 0, err
	}
	now := s.now()
	items := make([]CardProgress, 0, len(cards))
	for _, card := range cards {
		items = append(items, buildCardProgress(card, counts[card.ID], now))
	}
	return items, total, nil
}

func buildCardProgress(card models.Card, punches int, now time.Time) CardProgress {
	progress := CardProgress{
		Card:       card,
		Punches:    punches,
		IsComplete: punches >= card.MaxPunches,
		IsActive:   card.IsActive(now),
	}
	switch {
	case progress.IsComplete:
		progress.Status = constants.CardStatusCompleted
	case !progress.IsActive:
		progress.Status = constants.CardStatusExpired
	default:
		progress.Status = constants.CardStatusActive
	}
	return progress
}

func (s *CardService) defaultMaxPunches() int {
	if s.cfg.DefaultMaxPunches > 0 {
		return s.cfg.DefaultMaxPunches
	}
	return defaultCardMaxPunches
}

func (s *CardService) defaultValidityDays() int {
	if s.cfg.DefaultValidityDays > 0 {
		return s.cfg.DefaultValidityDays
	}
	return defaultCardValidityDays
}
