package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/punchcard-next/internal/config"
	"github.com/punchcard-next/internal/logger"
	"github.com/punchcard-next/internal/models"
	"github.com/punchcard-next/internal/repository"

	"gorm.io/gorm"
)

const (
	defaultPunchCodeLength     = 6
	defaultPunchCodeTTL        = 2 * time.Minute
	defaultMaxGenerateAttempts = 10
	maxPunchCodeLength         = 9
	minPunchCodeLength         = 4
)

// errPunchSlotTaken 占位唯一索引冲突，需区分“已有活动码”与“数字码碰撞”
var errPunchSlotTaken = errors.New("punch code slot taken")

// GeneratePunchCodeInput 生成打卡码输入
type GeneratePunchCodeInput struct {
	CardID uint
	UserID uint
}

// PunchCodeResult 生成打卡码结果
type PunchCodeResult struct {
	Code      string
	CardID    uint
	ExpiresAt time.Time
}

// ExpiresAtMillis 过期时间（毫秒时间戳）
func (r *PunchCodeResult) ExpiresAtMillis() int64 {
	if r == nil {
		return 0
	}
	return r.ExpiresAt.UnixMilli()
}

// PunchCodeService 打卡码生成服务
type PunchCodeService struct {
	db          *gorm.DB
	cardRepo    repository.CardRepository
	codeRepo    repository.PunchCodeRepository
	limiter     RateLimiter
	length      int
	ttl         time.Duration
	maxAttempts int
	now         func() time.Time
	codeSource  func(length int) (string, error)
}

// NewPunchCodeService 创建打卡码生成服务
func NewPunchCodeService(db *gorm.DB, cfg config.PunchConfig, cardRepo repository.CardRepository, codeRepo repository.PunchCodeRepository, limiter RateLimiter) *PunchCodeService {
	length := cfg.CodeLength
	if length < minPunchCodeLength || length > maxPunchCodeLength {
		length = defaultPunchCodeLength
	}
	ttl := time.Duration(cfg.CodeTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = defaultPunchCodeTTL
	}
	attempts := cfg.MaxGenerateAttempts
	if attempts <= 0 {
		attempts = defaultMaxGenerateAttempts
	}
	return &PunchCodeService{
		db:          db,
		cardRepo:    cardRepo,
		codeRepo:    codeRepo,
		limiter:     limiter,
		length:      length,
		ttl:         ttl,
		maxAttempts: attempts,
		now:         time.Now,
		codeSource:  randomNumericCode,
	}
}

// GenerateCode 为集点卡签发一次性打卡码
func (s *PunchCodeService) GenerateCode(ctx context.Context, input GeneratePunchCodeInput) (*PunchCodeResult, error) {
	if input.UserID == 0 {
		return nil, ErrUnauthenticated
	}
	if input.CardID == 0 {
		return nil, ErrCardInvalid
	}

	if s.limiter != nil {
		allowed, err := s.limiter.CheckAndConsume(ctx, strconv.FormatUint(uint64(input.UserID), 10))
		if err != nil {
			return nil, err
		}
		if !allowed {
			logger.Warnw("punch_code_rate_limited", "user_id", input.UserID, "card_id", input.CardID)
			return nil, ErrRateLimited
		}
	}

	card, err := s.cardRepo.WithContext(ctx).GetByID(input.CardID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, ErrCardNotFound
	}
	if card.UserID != input.UserID {
		return nil, ErrCardForbidden
	}

	now := s.now()
	if !card.IsActive(now) {
		return nil, ErrCardExpired
	}

	cardSlot := punchCardSlot(input.UserID, card.ID)
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		candidate, err := s.codeSource(s.length)
		if err != nil {
			return nil, fmt.Errorf("generate punch code failed: %w", err)
		}
		code, err := s.tryIssue(ctx, card, cardSlot, candidate, now)
		if err == nil {
			logger.Infow("punch_code_issued",
				"card_id", card.ID,
				"user_id", input.UserID,
				"business_id", card.BusinessID,
				"expires_at", code.ExpiresAt,
				"attempt", attempt,
			)
			return &PunchCodeResult{Code: code.Code, CardID: card.ID, ExpiresAt: code.ExpiresAt}, nil
		}
		if !errors.Is(err, errPunchSlotTaken) {
			return nil, err
		}
		active, lookupErr := s.codeRepo.WithContext(ctx).GetActiveForCard(input.UserID, card.ID, now)
		if lookupErr != nil {
			return nil, lookupErr
		}
		if active != nil {
			return nil, ErrPunchCodeActive
		}
		logger.Debugw("punch_code_collision", "card_id", card.ID, "attempt", attempt)
	}
	logger.Errorw("punch_code_generation_exhausted", "card_id", card.ID, "attempts", s.maxAttempts)
	return nil, ErrGenerationExhausted
}

// tryIssue 单次签发：检查活动码、回收过期占位、写入新码，全部在同一事务内
func (s *PunchCodeService) tryIssue(ctx context.Context, card *models.Card, cardSlot, candidate string, now time.Time) (*models.PunchCode, error) {
	var issued *models.PunchCode
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		codeRepo := s.codeRepo.WithTx(tx)
		active, err := codeRepo.GetActiveForCard(card.UserID, card.ID, now)
		if err != nil {
			return err
		}
		if active != nil {
			return ErrPunchCodeActive
		}
		if err := codeRepo.ReleaseExpiredSlots(cardSlot, candidate, now); err != nil {
			return err
		}
		codeSlot := candidate
		slot := cardSlot
		row := &models.PunchCode{
			Code:       candidate,
			CardID:     card.ID,
			UserID:     card.UserID,
			BusinessID: card.BusinessID,
			ExpiresAt:  now.Add(s.ttl),
			Used:       false,
			CardSlot:   &slot,
			CodeSlot:   &codeSlot,
			CreatedAt:  now,
		}
		if err := codeRepo.Create(row); err != nil {
			if repository.IsDuplicateKeyError(err) {
				return errPunchSlotTaken
			}
			return err
		}
		issued = row
		return nil
	})
	if err != nil {
		return nil, err
	}
	return issued, nil
}

// GetActiveCode 查询集点卡当前可用的打卡码
func (s *PunchCodeService) GetActiveCode(ctx context.Context, input GeneratePunchCodeInput) (*PunchCodeResult, error) {
	if input.UserID == 0 {
		return nil, ErrUnauthenticated
	}
	if input.CardID == 0 {
		return nil, ErrCardInvalid
	}
	card, err := s.cardRepo.WithContext(ctx).GetByID(input.CardID)
	if err != nil {
		return nil, err
	}
	if card == nil {
		return nil, ErrCardNotFound
	}
	if card.UserID != input.UserID {
		return nil, ErrCardForbidden
	}
	active, err := s.codeRepo.WithContext(ctx).GetActiveForCard(input.UserID, card.ID, s.now())
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, ErrPunchCodeNoneActive
	}
	return &PunchCodeResult{Code: active.Code, CardID: card.ID, ExpiresAt: active.ExpiresAt}, nil
}

// NormalizePunchCode 校验并规整数字码
func NormalizePunchCode(raw string, length int) (string, error) {
	code := strings.TrimSpace(raw)
	if len(code) != length {
		return "", ErrPunchCodeInvalid
	}
	for _, ch := range code {
		if ch < '0' || ch > '9' {
			return "", ErrPunchCodeInvalid
		}
	}
	return code, nil
}

func punchCardSlot(userID, cardID uint) string {
	return fmt.Sprintf("%d:%d", userID, cardID)
}

// randomNumericCode 在 [0, 10^length) 上均匀取值并左补零
func randomNumericCode(length int) (string, error) {
	upper := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}
