package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/punchcard-next/internal/authz"
	"github.com/punchcard-next/internal/config"
	"github.com/punchcard-next/internal/constants"
	"github.com/punchcard-next/internal/models"
	"github.com/punchcard-next/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type completionRecorder struct {
	mu    sync.Mutex
	cards []uint
}

func (r *completionRecorder) NotifyCardCompleted(_ context.Context, cardID uint, _ time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cards = append(r.cards, cardID)
	return nil
}

func (r *completionRecorder) calls() []uint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]uint(nil), r.cards...)
}

type punchFixture struct {
	db         *gorm.DB
	clock      *testClock
	authz      *authz.Service
	limiter    *MemoryRateLimiter
	codes      *PunchCodeService
	redemption *RedemptionService
	cards      *CardService
	businesses *BusinessService
	auth       *UserAuthService
	ledger     *PunchLedger
	codeRepo   *repository.GormPunchCodeRepository
	completion *completionRecorder
}

func setupPunchFixture(t *testing.T, policy RateLimitPolicy) *punchFixture {
	t.Helper()
	dsn := fmt.Sprintf("file:punch_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(models.AllModels()...); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	authzSvc, err := authz.NewService(db)
	if err != nil {
		t.Fatalf("new authz service failed: %v", err)
	}

	cfg := &config.Config{
		UserJWT: config.JWTConfig{SecretKey: "test-secret", ExpireHours: 1},
		Punch:   config.PunchConfig{CodeLength: 6, CodeTTLSeconds: 120, MaxGenerateAttempts: 10},
		Card:    config.CardConfig{DefaultMaxPunches: 10, DefaultValidityDays: 365},
	}

	clock := newTestClock()
	limiter := NewMemoryRateLimiter(policy)
	limiter.now = clock.Now

	userRepo := repository.NewUserRepository(db)
	businessRepo := repository.NewBusinessRepository(db)
	cardRepo := repository.NewCardRepository(db)
	codeRepo := repository.NewPunchCodeRepository(db)
	ledger := NewPunchLedger(repository.NewPunchEventRepository(db))

	codes := NewPunchCodeService(db, cfg.Punch, cardRepo, codeRepo, limiter)
	codes.now = clock.Now

	redemption := NewRedemptionService(db, cardRepo, codeRepo, ledger, authzSvc, cfg.Punch.CodeLength)
	redemption.now = clock.Now
	recorder := &completionRecorder{}
	redemption.SetCompletionNotifier(recorder)

	cards := NewCardService(db, cfg.Card, cardRepo, businessRepo, ledger)
	cards.now = clock.Now

	return &punchFixture{
		db:         db,
		clock:      clock,
		authz:      authzSvc,
		limiter:    limiter,
		codes:      codes,
		redemption: redemption,
		cards:      cards,
		businesses: NewBusinessService(businessRepo, userRepo, authzSvc),
		auth:       NewUserAuthService(cfg, userRepo),
		ledger:     ledger,
		codeRepo:   codeRepo,
		completion: recorder,
	}
}

func generousPolicy() RateLimitPolicy {
	return RateLimitPolicy{Window: time.Minute, MaxRequests: 1000}
}

func (f *punchFixture) seedUser(t *testing.T, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, PasswordHash: "hash", Status: constants.UserStatusActive}
	if err := f.db.Create(user).Error; err != nil {
		t.Fatalf("create user %s failed: %v", email, err)
	}
	return user
}

// seedBusiness 创建商家并授予店主角色，返回商家与一名店员
func (f *punchFixture) seedBusiness(t *testing.T, name string, punches int) (*models.Business, *models.User) {
	t.Helper()
	owner := f.seedUser(t, fmt.Sprintf("owner_%s@example.com", name))
	business := &models.Business{
		OwnerUserID:      owner.ID,
		Name:             name,
		PunchesRequired:  punches,
		CardValidityDays: 30,
		Status:           constants.BusinessStatusActive,
	}
	if err := f.db.Create(business).Error; err != nil {
		t.Fatalf("create business failed: %v", err)
	}
	if err := f.authz.AssignBusinessRole(owner.ID, business.ID, constants.BusinessRoleOwner); err != nil {
		t.Fatalf("assign owner failed: %v", err)
	}
	staff := f.seedUser(t, fmt.Sprintf("staff_%s@example.com", name))
	if err := f.authz.AssignBusinessRole(staff.ID, business.ID, constants.BusinessRoleStaff); err != nil {
		t.Fatalf("assign staff failed: %v", err)
	}
	return business, staff
}

func (f *punchFixture) seedCard(t *testing.T, business *models.Business, user *models.User, maxPunches int) *models.Card {
	t.Helper()
	cardID, err := f.cards.CreateCard(context.Background(), CreateCardInput{
		BusinessID: business.ID,
		UserID:     user.ID,
		MaxPunches: maxPunches,
		ExpiresAt:  f.clock.Now().Add(30 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatalf("create card failed: %v", err)
	}
	var card models.Card
	if err := f.db.First(&card, cardID).Error; err != nil {
		t.Fatalf("load card failed: %v", err)
	}
	return &card
}

func (f *punchFixture) punchCount(t *testing.T, cardID uint) int {
	t.Helper()
	count, err := f.ledger.CountForCard(cardID)
	if err != nil {
		t.Fatalf("count punches failed: %v", err)
	}
	return count
}

// sequenceCodes 依次返回给定数字码，用尽后重复最后一个
func sequenceCodes(values ...string) func(int) (string, error) {
	var mu sync.Mutex
	idx := 0
	return func(int) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		value := values[idx]
		if idx < len(values)-1 {
			idx++
		}
		return value, nil
	}
}
