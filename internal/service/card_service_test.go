package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/punchcard-next/internal/constants"
	"github.com/punchcard-next/internal/models"
)

func (f *punchFixture) fillCard(t *testing.T, card *models.Card, punches int) {
	t.Helper()
	for i := 0; i < punches; i++ {
		if _, err := f.ledger.Append(PunchEntry{CardID: card.ID, At: f.clock.Now()}); err != nil {
			t.Fatalf("append punch failed: %v", err)
		}
	}
}

func TestOptInCreatesCardFromBusinessRules(t *testing.T) {
	f := setupPunchFixture(t, generousPolicy())
	business, _ := f.seedBusiness(t, "cafe", 4)
	customer := f.seedUser(t, "customer@example.com")

	card, err := f.cards.OptIn(context.Background(), business.ID, customer.ID)
	if err != nil {
		t.Fatalf("opt in failed: %v", err)
	}
	if card.MaxPunches != 4 {
		t.Fatalf("max punches want 4 got %d", card.MaxPunches)
	}
	want := f.clock.Now().AddDate(0, 0, 30)
	if !card.ExpiresAt.Equal(want) {
		t.Fatalf("expires_at want %v got %v", want, card.ExpiresAt)
	}
}

func TestOptInRejectsSecondActiveCard(t *testing.T) {
	f := setupPunchFixture(t, generousPolicy())
	business, _ := f.seedBusiness(t, "cafe", 2)
	customer := f.seedUser(t, "customer@example.com")
	ctx := context.Background()

	first, err := f.cards.OptIn(ctx, business.ID, customer.ID)
	if err != nil {
		t.Fatalf("first opt in failed: %v", err)
	}
	_, err = f.cards.OptIn(ctx, business.ID, customer.ID)
	if !errors.Is(err, ErrCardActiveExists) {
		t.Fatalf("second opt in should fail with active exists, got %v", err)
	}
	if ReasonOf(err) != constants.ErrorReasonCardActiveExists {
		t.Fatalf("unexpected reason: %s", ReasonOf(err))
	}

	f.fillCard(t, first, 2)
	second, err := f.cards.OptIn(ctx, business.ID, customer.ID)
	if err != nil {
		t.Fatalf("opt in after completion failed: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("renewal should create a new card")
	}
}

func TestOptInAfterExpiry(t *testing.T) {
	f := setupPunchFixture(t, generousPolicy())
	business, _ := f.seedBusiness(t, "cafe", 5)
	customer := f.seedUser(t, "customer@example.com")
	ctx := context.Background()

	if _, err := f.cards.OptIn(ctx, business.ID, customer.ID); err != nil {
		t.Fatalf("first opt in failed: %v", err)
	}
	f.clock.Advance(31 * 24 * time.Hour)
	if _, err := f.cards.OptIn(ctx, business.ID, customer.ID); err != nil {
		t.Fatalf("opt in after expiry failed: %v", err)
	}
}

func TestOptInPreconditions(t *testing.T) {
	f := setupPunchFixture(t, generousPolicy())
	business, _ := f.seedBusiness(t, "cafe", 5)
	customer := f.seedUser(t, "customer@example.com")
	ctx := context.Background()

	if _, err := f.cards.OptIn(ctx, business.ID, 0); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("anonymous opt in should be unauthenticated, got %v", err)
	}
	if _, err := f.cards.OptIn(ctx, 9999, customer.ID); !errors.Is(err, ErrBusinessNotFound) {
		t.Fatalf("unknown business should be not found, got %v", err)
	}
	if err := f.db.Model(&models.Business{}).Where("id = ?", business.ID).
		Update("status", constants.BusinessStatusDisabled).Error; err != nil {
		t.Fatalf("disable business failed: %v", err)
	}
	if _, err := f.cards.OptIn(ctx, business.ID, customer.ID); !errors.Is(err, ErrBusinessDisabled) {
		t.Fatalf("disabled business should reject opt in, got %v", err)
	}
}

func TestCreateCardValidation(t *testing.T) {
	f := setupPunchFixture(t, generousPolicy())
	business, _ := f.seedBusiness(t, "cafe", 5)
	customer := f.seedUser(t, "customer@example.com")
	now := f.clock.Now()

	cases := []CreateCardInput{
		{UserID: customer.ID, MaxPunches: 5, ExpiresAt: now.Add(time.Hour)},
		{BusinessID: business.ID, MaxPunches: 5, ExpiresAt: now.Add(time.Hour)},
		{BusinessID: business.ID, UserID: customer.ID, MaxPunches: 0, ExpiresAt: now.Add(time.Hour)},
		{BusinessID: business.ID, UserID: customer.ID, MaxPunches: 5, ExpiresAt: now},
	}
	for i, input := range cases {
		if _, err := f.cards.CreateCard(context.Background(), input); !errors.Is(err, ErrCardInvalid) {
			t.Fatalf("case %d should be invalid, got %v", i, err)
		}
	}
}

func TestCardIsActiveBoundary(t *testing.T) {
	f := setupPunchFixture(t, generousPolicy())
	expires := f.clock.Now().Add(time.Hour)
	card := &models.Card{ExpiresAt: expires}
	if !f.cards.IsActive(card, expires.Add(-time.Nanosecond)) {
		t.Fatalf("card should be active before expires_at")
	}
	if f.cards.IsActive(card, expires) {
		t.Fatalf("card should be inactive at expires_at")
	}
}

func TestMarkCompletedOnlyWhenLedgerFull(t *testing.T) {
	f := setupPunchFixture(t, generousPolicy())
	business, _ := f.seedBusiness(t, "cafe", 2)
	customer := f.seedUser(t, "customer@example.com")
	card := f.seedCard(t, business, customer, 2)
	ctx := context.Background()

	f.fillCard(t, card, 1)
	marked, err := f.cards.MarkCompleted(ctx, card.ID, f.clock.Now())
	if err != nil || marked {
		t.Fatalf("half full card must not be marked, marked=%v err=%v", marked, err)
	}

	f.fillCard(t, card, 1)
	marked, err = f.cards.MarkCompleted(ctx, card.ID, f.clock.Now())
	if err != nil || !marked {
		t.Fatalf("full card should be marked, marked=%v err=%v", marked, err)
	}
	marked, err = f.cards.MarkCompleted(ctx, card.ID, f.clock.Now())
	if err != nil || marked {
		t.Fatalf("second mark should be a no-op, marked=%v err=%v", marked, err)
	}
	if _, err := f.cards.MarkCompleted(ctx, 9999, f.clock.Now()); !errors.Is(err, ErrCardNotFound) {
		t.Fatalf("unknown card should be not found, got %v", err)
	}
}

func TestReconcileCompletions(t *testing.T) {
	f := setupPunchFixture(t, generousPolicy())
	business, _ := f.seedBusiness(t, "cafe", 2)
	alice := f.seedUser(t, "alice@example.com")
	bob := f.seedUser(t, "bob@example.com")
	full := f.seedCard(t, business, alice, 2)
	partial := f.seedCard(t, business, bob, 2)
	f.fillCard(t, full, 2)
	f.fillCard(t, partial, 1)
	ctx := context.Background()

	marked, err := f.cards.ReconcileCompletions(ctx)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if marked != 1 {
		t.Fatalf("reconcile should mark 1 card, got %d", marked)
	}
	marked, err = f.cards.ReconcileCompletions(ctx)
	if err != nil || marked != 0 {
		t.Fatalf("second reconcile should mark nothing, marked=%d err=%v", marked, err)
	}

	var stored models.Card
	if err := f.db.First(&stored, partial.ID).Error; err != nil {
		t.Fatalf("load partial card failed: %v", err)
	}
	if stored.CompletedAt != nil {
		t.Fatalf("partial card must not be marked complete")
	}
}

func TestListUserCardsDerivesStatus(t *testing.T) {
	f := setupPunchFixture(t, generousPolicy())
	cafe, _ := f.seedBusiness(t, "cafe", 2)
	bakery, _ := f.seedBusiness(t, "bakery", 2)
	customer := f.seedUser(t, "customer@example.com")
	ctx := context.Background()

	done := f.seedCard(t, cafe, customer, 2)
	f.fillCard(t, done, 2)
	shortID, err := f.cards.CreateCard(ctx, CreateCardInput{
		BusinessID: bakery.ID,
		UserID:     customer.ID,
		MaxPunches: 2,
		ExpiresAt:  f.clock.Now().Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("create short card failed: %v", err)
	}
	live := f.seedCard(t, bakery, customer, 2)
	f.clock.Advance(2 * time.Hour)

	items, total, err := f.cards.ListUserCards(ctx, customer.ID, 1, 20)
	if err != nil {
		t.Fatalf("list cards failed: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("want 3 cards got total=%d len=%d", total, len(items))
	}
	statuses := make(map[uint]string, len(items))
	for _, item := range items {
		statuses[item.Card.ID] = item.Status
	}
	if statuses[done.ID] != constants.CardStatusCompleted {
		t.Fatalf("full card status want completed got %s", statuses[done.ID])
	}
	if statuses[shortID] != constants.CardStatusExpired {
		t.Fatalf("short card status want expired got %s", statuses[shortID])
	}
	if statuses[live.ID] != constants.CardStatusActive {
		t.Fatalf("live card status want active got %s", statuses[live.ID])
	}
}

func TestGetCardDetailOwnerOnly(t *testing.T) {
	f := setupPunchFixture(t, generousPolicy())
	business, staff := f.seedBusiness(t, "cafe", 3)
	customer := f.seedUser(t, "customer@example.com")
	card := f.seedCard(t, business, customer, 3)
	ctx := context.Background()

	issued, err := f.codes.GenerateCode(ctx, GeneratePunchCodeInput{CardID: card.ID, UserID: customer.ID})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := f.redemption.ValidateAndRedeem(ctx, RedeemPunchInput{Code: issued.Code, RedeemerID: staff.ID}); err != nil {
		t.Fatalf("redeem failed: %v", err)
	}

	detail, err := f.cards.GetCardDetail(ctx, card.ID, customer.ID)
	if err != nil {
		t.Fatalf("get detail failed: %v", err)
	}
	if detail.Punches != 1 || len(detail.History) != 1 {
		t.Fatalf("want 1 punch and 1 history entry, got %d/%d", detail.Punches, len(detail.History))
	}
	if by := detail.History[0].PunchedBy; by == nil || *by != staff.ID {
		t.Fatalf("history should record redeemer %d", staff.ID)
	}
	if detail.Status != constants.CardStatusActive {
		t.Fatalf("status want active got %s", detail.Status)
	}

	if _, err := f.cards.GetCardDetail(ctx, card.ID, staff.ID); !errors.Is(err, ErrCardForbidden) {
		t.Fatalf("non owner should be forbidden, got %v", err)
	}
	if _, err := f.cards.GetCardDetail(ctx, 9999, customer.ID); !errors.Is(err, ErrCardNotFound) {
		t.Fatalf("unknown card should be not found, got %v", err)
	}
}
