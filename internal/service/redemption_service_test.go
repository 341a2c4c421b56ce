package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/punchcard-next/internal/constants"
)

func TestRedeemCompletesCardScenario(t *testing.T) {
	f := setupPunchFixture(t, generousPolicy())
	business, staff := f.seedBusiness(t, "cafe", 3)
	customer := f.seedUser(t, "customer@example.com")
	card := f.seedCard(t, business, customer, 3)
	ctx := context.Background()
	input := GeneratePunchCodeInput{CardID: card.ID, UserID: customer.ID}

	for round := 1; round <= 3; round++ {
		issued, err := f.codes.GenerateCode(ctx, input)
		if err != nil {
			t.Fatalf("round %d generate failed: %v", round, err)
		}
		if !issued.ExpiresAt.Equal(f.clock.Now().Add(120 * time.Second)) {
			t.Fatalf("round %d expires_at should be now+120s", round)
		}
		result, err := f.redemption.ValidateAndRedeem(ctx, RedeemPunchInput{Code: issued.Code, RedeemerID: staff.ID})
		if err != nil {
			t.Fatalf("round %d redeem failed: %v", round, err)
		}
		if result.Punches != round || result.MaxPunches != 3 {
			t.Fatalf("round %d want punches=%d max=3 got %+v", round, round, result)
		}
		if result.IsComplete != (round == 3) {
			t.Fatalf("round %d is_complete mismatch: %+v", round, result)
		}
	}
	if calls := f.completion.calls(); len(calls) != 1 || calls[0] != card.ID {
		t.Fatalf("completion should be notified once for card %d, got %v", card.ID, calls)
	}

	fourth, err := f.codes.GenerateCode(ctx, input)
	if err != nil {
		t.Fatalf("fourth generate failed: %v", err)
	}
	_, err = f.redemption.ValidateAndRedeem(ctx, RedeemPunchInput{Code: fourth.Code, RedeemerID: staff.ID})
	if !errors.Is(err, ErrCardComplete) {
		t.Fatalf("fourth redeem should fail with card complete, got %v", err)
	}
	if KindOf(err) != constants.ErrorKindFailedPrecondition {
		t.Fatalf("kind want FAILED_PRECONDITION got %s", KindOf(err))
	}
	if got := f.punchCount(t, card.ID); got != 3 {
		t.Fatalf("ledger must stay at 3, got %d", got)
	}
	row, err := f.codeRepo.GetLatestUnusedByCode(fourth.Code)
	if err != nil {
		t.Fatalf("lookup fourth code failed: %v", err)
	}
	if row == nil || row.Used {
		t.Fatalf("code presented to a complete card must stay unused")
	}
}

func TestRedeemCompletionBoundary(t *testing.T) {
	f := setupPunchFixture(t, generousPolicy())
	business, staff := f.seedBusiness(t, "cafe", 5)
	customer := f.seedUser(t, "customer@example.com")
	card := f.seedCard(t, business, customer, 5)
	for i := 0; i < 4; i++ {
		if _, err := f.ledger.Append(PunchEntry{CardID: card.ID, At: f.clock.Now()}); err != nil {
			t.Fatalf("seed punch failed: %v", err)
		}
	}
	ctx := context.Background()

	issued, err := f.codes.GenerateCode(ctx, GeneratePunchCodeInput{CardID: card.ID, UserID: customer.ID})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	result, err := f.redemption.ValidateAndRedeem(ctx, RedeemPunchInput{Code: issued.Code, RedeemerID: staff.ID})
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if !result.IsComplete || result.Punches != 5 {
		t.Fatalf("boundary redeem should complete with 5 punches, got %+v", result)
	}
}

func TestRedeemConcurrentSingleSuccess(t *testing.T) {
	f := setupPunchFixture(t, generousPolicy())
	business, staff := f.seedBusiness(t, "cafe", 10)
	customer := f.seedUser(t, "customer@example.com")
	card := f.seedCard(t, business, customer, 10)
	ctx := context.Background()

	issued, err := f.codes.GenerateCode(ctx, GeneratePunchCodeInput{CardID: card.ID, UserID: customer.ID})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	const workers = 10
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		notFound  int
		others    []error
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.redemption.ValidateAndRedeem(ctx, RedeemPunchInput{Code: issued.Code, RedeemerID: staff.ID})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrPunchCodeNotFound):
				notFound++
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	if len(others) > 0 {
		t.Fatalf("unexpected errors: %v", others)
	}
	if successes != 1 || notFound != workers-1 {
		t.Fatalf("want exactly 1 success, got success=%d not_found=%d", successes, notFound)
	}
	if got := f.punchCount(t, card.ID); got != 1 {
		t.Fatalf("ledger must grow by exactly 1, got %d", got)
	}
}

// rendezvousAuthorizer 让并发核销在授权检查处汇合，确保都已越过查码阶段
type rendezvousAuthorizer struct {
	inner   RedeemAuthorizer
	arrived *sync.WaitGroup
}

func (a rendezvousAuthorizer) CanRedeem(userID, businessID uint) (bool, error) {
	a.arrived.Done()
	a.arrived.Wait()
	return a.inner.CanRedeem(userID, businessID)
}

func TestRedeemConcurrentFinalPunchLoserIsNotFound(t *testing.T) {
	f := setupPunchFixture(t, generousPolicy())
	business, staff := f.seedBusiness(t, "cafe", 1)
	customer := f.seedUser(t, "customer@example.com")
	card := f.seedCard(t, business, customer, 1)
	ctx := context.Background()

	issued, err := f.codes.GenerateCode(ctx, GeneratePunchCodeInput{CardID: card.ID, UserID: customer.ID})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	const attempts = 2
	arrived := &sync.WaitGroup{}
	arrived.Add(attempts)
	f.redemption.authorizer = rendezvousAuthorizer{inner: f.authz, arrived: arrived}

	errs := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.redemption.ValidateAndRedeem(ctx, RedeemPunchInput{Code: issued.Code, RedeemerID: staff.ID})
		}(i)
	}
	wg.Wait()

	successes, notFound := 0, 0
	for i, err := range errs {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrPunchCodeNotFound):
			notFound++
		default:
			t.Fatalf("attempt %d: want success or not found, got %v (kind=%s reason=%s)", i, err, KindOf(err), ReasonOf(err))
		}
	}
	if successes != 1 || notFound != 1 {
		t.Fatalf("want 1 success and 1 not found, got success=%d not_found=%d", successes, notFound)
	}
	if got := f.punchCount(t, card.ID); got != 1 {
		t.Fatalf("ledger must hold exactly 1 punch, got %d", got)
	}
}

func TestRedeemExpiredCode(t *testing.T) {
	f := setupPunchFixture(t, generousPolicy())
	business, staff := f.seedBusiness(t, "cafe", 3)
	customer := f.seedUser(t, "customer@example.com")
	card := f.seedCard(t, business, customer, 3)
	ctx := context.Background()

	issued, err := f.codes.GenerateCode(ctx, GeneratePunchCodeInput{CardID: card.ID, UserID: customer.ID})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	f.clock.Advance(2 * time.Minute)

	_, err = f.redemption.ValidateAndRedeem(ctx, RedeemPunchInput{Code: issued.Code, RedeemerID: staff.ID})
	if !errors.Is(err, ErrPunchCodeExpired) {
		t.Fatalf("code at expires_at should be expired, got %v", err)
	}
	if KindOf(err) != constants.ErrorKindExpired {
		t.Fatalf("kind want EXPIRED got %s", KindOf(err))
	}
	if got := f.punchCount(t, card.ID); got != 0 {
		t.Fatalf("expired code must not punch, got %d", got)
	}
}

func TestRedeemCrossBusinessDenied(t *testing.T) {
	f := setupPunchFixture(t, generousPolicy())
	cafe, cafeStaff := f.seedBusiness(t, "cafe", 3)
	_, bakeryStaff := f.seedBusiness(t, "bakery", 3)
	customer := f.seedUser(t, "customer@example.com")
	card := f.seedCard(t, cafe, customer, 3)
	ctx := context.Background()

	issued, err := f.codes.GenerateCode(ctx, GeneratePunchCodeInput{CardID: card.ID, UserID: customer.ID})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	_, err = f.redemption.ValidateAndRedeem(ctx, RedeemPunchInput{Code: issued.Code, RedeemerID: bakeryStaff.ID})
	if !errors.Is(err, ErrPunchCodeForbidden) {
		t.Fatalf("other business should be denied, got %v", err)
	}
	if KindOf(err) != constants.ErrorKindPermissionDenied {
		t.Fatalf("kind want PERMISSION_DENIED got %s", KindOf(err))
	}
	_, err = f.redemption.ValidateAndRedeem(ctx, RedeemPunchInput{Code: issued.Code, RedeemerID: customer.ID})
	if !errors.Is(err, ErrPunchCodeForbidden) {
		t.Fatalf("customer must not redeem own code, got %v", err)
	}

	result, err := f.redemption.ValidateAndRedeem(ctx, RedeemPunchInput{Code: issued.Code, RedeemerID: cafeStaff.ID})
	if err != nil {
		t.Fatalf("owning business redeem failed: %v", err)
	}
	if result.Punches != 1 {
		t.Fatalf("want punches=1 got %d", result.Punches)
	}
}

func TestRedeemOwnerCanRedeem(t *testing.T) {
	f := setupPunchFixture(t, generousPolicy())
	business, _ := f.seedBusiness(t, "cafe", 3)
	customer := f.seedUser(t, "customer@example.com")
	card := f.seedCard(t, business, customer, 3)
	ctx := context.Background()

	issued, err := f.codes.GenerateCode(ctx, GeneratePunchCodeInput{CardID: card.ID, UserID: customer.ID})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if _, err := f.redemption.ValidateAndRedeem(ctx, RedeemPunchInput{Code: issued.Code, RedeemerID: business.OwnerUserID}); err != nil {
		t.Fatalf("owner should redeem, got %v", err)
	}
}

func TestRedeemInputValidation(t *testing.T) {
	f := setupPunchFixture(t, generousPolicy())
	_, staff := f.seedBusiness(t, "cafe", 3)
	ctx := context.Background()

	cases := []struct {
		name  string
		input RedeemPunchInput
		want  error
	}{
		{name: "anonymous", input: RedeemPunchInput{Code: "123456"}, want: ErrUnauthenticated},
		{name: "empty", input: RedeemPunchInput{RedeemerID: staff.ID}, want: ErrPunchCodeInvalid},
		{name: "short", input: RedeemPunchInput{Code: "12345", RedeemerID: staff.ID}, want: ErrPunchCodeInvalid},
		{name: "letters", input: RedeemPunchInput{Code: "12a456", RedeemerID: staff.ID}, want: ErrPunchCodeInvalid},
		{name: "unknown", input: RedeemPunchInput{Code: "999999", RedeemerID: staff.ID}, want: ErrPunchCodeNotFound},
	}
	for _, tc := range cases {
		_, err := f.redemption.ValidateAndRedeem(ctx, tc.input)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: want %v got %v", tc.name, tc.want, err)
		}
	}
}

func TestRedeemUsedCodeNotFound(t *testing.T) {
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
		t.Fatalf("first redeem failed: %v", err)
	}
	_, err = f.redemption.ValidateAndRedeem(ctx, RedeemPunchInput{Code: issued.Code, RedeemerID: staff.ID})
	if !errors.Is(err, ErrPunchCodeNotFound) {
		t.Fatalf("second redeem should be not found, got %v", err)
	}
	if KindOf(err) != constants.ErrorKindNotFound {
		t.Fatalf("kind want NOT_FOUND got %s", KindOf(err))
	}
}

func TestRedeemCanceledContextLeavesNoState(t *testing.T) {
	f := setupPunchFixture(t, generousPolicy())
	business, staff := f.seedBusiness(t, "cafe", 3)
	customer := f.seedUser(t, "customer@example.com")
	card := f.seedCard(t, business, customer, 3)

	issued, err := f.codes.GenerateCode(context.Background(), GeneratePunchCodeInput{CardID: card.ID, UserID: customer.ID})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := f.redemption.ValidateAndRedeem(ctx, RedeemPunchInput{Code: issued.Code, RedeemerID: staff.ID}); err == nil {
		t.Fatalf("canceled redeem should fail")
	}
	if got := f.punchCount(t, card.ID); got != 0 {
		t.Fatalf("canceled redeem must not punch, got %d", got)
	}
	if _, err := f.redemption.ValidateAndRedeem(context.Background(), RedeemPunchInput{Code: issued.Code, RedeemerID: staff.ID}); err != nil {
		t.Fatalf("retry after cancel should succeed, got %v", err)
	}
}
