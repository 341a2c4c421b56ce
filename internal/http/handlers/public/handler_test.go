package public

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/punchcard-next/internal/config"
	"github.com/punchcard-next/internal/constants"
	"github.com/punchcard-next/internal/models"
	"github.com/punchcard-next/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

type envelope struct {
	StatusCode int             `json:"status_code"`
	Msg        string          `json:"msg"`
	Data       json.RawMessage `json:"data"`
}

type errorData struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

type handlerFixture struct {
	engine    *gin.Engine
	container *provider.Container
}

const testUserHeader = "X-Test-User"

func setupHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:public_handler_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
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

	cfg := &config.Config{
		UserJWT: config.JWTConfig{SecretKey: "handler-secret", ExpireHours: 1},
		Punch:   config.PunchConfig{CodeLength: 6, CodeTTLSeconds: 120, MaxGenerateAttempts: 10},
		Card:    config.CardConfig{DefaultMaxPunches: 10, DefaultValidityDays: 365},
	}
	container := provider.Build(cfg, db, nil)
	handler := New(container)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if raw := c.GetHeader(testUserHeader); raw != "" {
			id, _ := strconv.ParseUint(raw, 10, 64)
			c.Set("user_id", uint(id))
		}
		c.Next()
	})
	r.POST("/login", handler.Login)
	r.GET("/me", handler.GetMe)
	r.POST("/businesses", handler.CreateBusiness)
	r.GET("/businesses", handler.ListBusinesses)
	r.GET("/businesses/:id", handler.GetBusiness)
	r.POST("/businesses/:id/staff", handler.GrantStaff)
	r.POST("/cards", handler.CreateCard)
	r.GET("/cards", handler.ListCards)
	r.GET("/cards/:id", handler.GetCard)
	r.GET("/cards/:id/punch-code", handler.GetActivePunchCode)
	r.POST("/punch-codes", handler.GeneratePunchCode)
	r.POST("/punch-codes/validate", handler.ValidatePunchCode)

	return &handlerFixture{engine: r, container: container}
}

func (f *handlerFixture) createUser(t *testing.T, email string) *models.User {
	t.Helper()
	user, err := f.container.UserAuthService.CreateUser(context.Background(), email, "secret123", email)
	if err != nil {
		t.Fatalf("create user %s failed: %v", email, err)
	}
	return user
}

func (f *handlerFixture) do(t *testing.T, method, path string, userID uint, body interface{}) envelope {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body failed: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", "en-US")
	if userID > 0 {
		req.Header.Set(testUserHeader, strconv.FormatUint(uint64(userID), 10))
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("http status want 200 got %d", w.Code)
	}
	var resp envelope
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v body=%s", err, w.Body.String())
	}
	return resp
}

func decodeData(t *testing.T, resp envelope, dest interface{}) {
	t.Helper()
	if err := json.Unmarshal(resp.Data, dest); err != nil {
		t.Fatalf("decode data failed: %v data=%s", err, string(resp.Data))
	}
}

func expectError(t *testing.T, resp envelope, code int, kind string) errorData {
	t.Helper()
	if resp.StatusCode != code {
		t.Fatalf("status_code want %d got %d msg=%s", code, resp.StatusCode, resp.Msg)
	}
	var data errorData
	decodeData(t, resp, &data)
	if data.Kind != kind {
		t.Fatalf("kind want %s got %s", kind, data.Kind)
	}
	return data
}

func TestPunchFlowOverHTTP(t *testing.T) {
	f := setupHandlerFixture(t)
	owner := f.createUser(t, "owner@example.com")
	staff := f.createUser(t, "staff@example.com")
	customer := f.createUser(t, "customer@example.com")

	resp := f.do(t, http.MethodPost, "/businesses", owner.ID, gin.H{
		"name":               "Corner Coffee",
		"punches_required":   2,
		"card_validity_days": 30,
		"reward_description": "free latte",
		"reward_value":       "4.50",
	})
	if resp.StatusCode != 0 {
		t.Fatalf("create business failed: %d %s", resp.StatusCode, resp.Msg)
	}
	var business struct {
		ID uint `json:"id"`
	}
	decodeData(t, resp, &business)

	resp = f.do(t, http.MethodPost, fmt.Sprintf("/businesses/%d/staff", business.ID), owner.ID, gin.H{"email": staff.Email})
	if resp.StatusCode != 0 {
		t.Fatalf("grant staff failed: %d %s", resp.StatusCode, resp.Msg)
	}
	resp = f.do(t, http.MethodPost, fmt.Sprintf("/businesses/%d/staff", business.ID), customer.ID, gin.H{"email": customer.Email})
	expectError(t, resp, 403, constants.ErrorKindPermissionDenied)

	resp = f.do(t, http.MethodPost, "/cards", customer.ID, gin.H{"business_id": business.ID})
	if resp.StatusCode != 0 {
		t.Fatalf("create card failed: %d %s", resp.StatusCode, resp.Msg)
	}
	var card CardView
	decodeData(t, resp, &card)
	if card.MaxPunches != 2 || card.Punches != 0 || card.Status != constants.CardStatusActive {
		t.Fatalf("unexpected new card: %+v", card)
	}

	resp = f.do(t, http.MethodPost, "/cards", customer.ID, gin.H{"business_id": business.ID})
	data := expectError(t, resp, 409, constants.ErrorKindFailedPrecondition)
	if data.Reason != constants.ErrorReasonCardActiveExists {
		t.Fatalf("reason want %s got %s", constants.ErrorReasonCardActiveExists, data.Reason)
	}

	resp = f.do(t, http.MethodGet, fmt.Sprintf("/cards/%d/punch-code", card.ID), customer.ID, nil)
	expectError(t, resp, 404, constants.ErrorKindNotFound)

	type codePayload struct {
		Success   bool   `json:"success"`
		Code      string `json:"code"`
		CardID    uint   `json:"card_id"`
		ExpiresAt int64  `json:"expires_at"`
	}
	issue := func() codePayload {
		resp := f.do(t, http.MethodPost, "/punch-codes", customer.ID, gin.H{"card_id": card.ID})
		if resp.StatusCode != 0 {
			t.Fatalf("generate code failed: %d %s", resp.StatusCode, resp.Msg)
		}
		var payload codePayload
		decodeData(t, resp, &payload)
		if !payload.Success || len(payload.Code) != 6 || payload.CardID != card.ID {
			t.Fatalf("unexpected code payload: %+v", payload)
		}
		if payload.ExpiresAt <= time.Now().UnixMilli() {
			t.Fatalf("expires_at should be in the future: %d", payload.ExpiresAt)
		}
		return payload
	}

	first := issue()

	resp = f.do(t, http.MethodGet, fmt.Sprintf("/cards/%d/punch-code", card.ID), customer.ID, nil)
	var active codePayload
	decodeData(t, resp, &active)
	if active.Code != first.Code {
		t.Fatalf("active code want %s got %s", first.Code, active.Code)
	}

	resp = f.do(t, http.MethodPost, "/punch-codes", customer.ID, gin.H{"card_id": card.ID})
	data = expectError(t, resp, 409, constants.ErrorKindFailedPrecondition)
	if data.Reason != constants.ErrorReasonAlreadyActive {
		t.Fatalf("reason want %s got %s", constants.ErrorReasonAlreadyActive, data.Reason)
	}

	resp = f.do(t, http.MethodPost, "/punch-codes/validate", customer.ID, gin.H{"code": first.Code})
	expectError(t, resp, 403, constants.ErrorKindPermissionDenied)

	type redeemPayload struct {
		Success    bool   `json:"success"`
		Message    string `json:"message"`
		Punches    int    `json:"punches"`
		MaxPunches int    `json:"max_punches"`
		IsComplete bool   `json:"is_complete"`
	}
	resp = f.do(t, http.MethodPost, "/punch-codes/validate", staff.ID, gin.H{"code": first.Code})
	if resp.StatusCode != 0 {
		t.Fatalf("validate failed: %d %s", resp.StatusCode, resp.Msg)
	}
	var redeemed redeemPayload
	decodeData(t, resp, &redeemed)
	if !redeemed.Success || redeemed.Punches != 1 || redeemed.MaxPunches != 2 || redeemed.IsComplete {
		t.Fatalf("unexpected first redeem: %+v", redeemed)
	}
	if redeemed.Message != "Punch recorded" {
		t.Fatalf("unexpected message: %s", redeemed.Message)
	}

	resp = f.do(t, http.MethodPost, "/punch-codes/validate", staff.ID, gin.H{"code": first.Code})
	expectError(t, resp, 404, constants.ErrorKindNotFound)

	second := issue()
	resp = f.do(t, http.MethodPost, "/punch-codes/validate", owner.ID, gin.H{"code": second.Code})
	decodeData(t, resp, &redeemed)
	if resp.StatusCode != 0 || redeemed.Punches != 2 || !redeemed.IsComplete {
		t.Fatalf("second redeem should complete card: %d %+v", resp.StatusCode, redeemed)
	}
	if redeemed.Message != "Punch recorded, card complete" {
		t.Fatalf("unexpected completion message: %s", redeemed.Message)
	}

	// 集满后仍可生成，核销时拒绝且码保持未使用
	third := issue()
	resp = f.do(t, http.MethodPost, "/punch-codes/validate", staff.ID, gin.H{"code": third.Code})
	data = expectError(t, resp, 409, constants.ErrorKindFailedPrecondition)
	if data.Reason != constants.ErrorReasonCardComplete {
		t.Fatalf("reason want %s got %s", constants.ErrorReasonCardComplete, data.Reason)
	}
	resp = f.do(t, http.MethodGet, fmt.Sprintf("/cards/%d/punch-code", card.ID), customer.ID, nil)
	decodeData(t, resp, &active)
	if resp.StatusCode != 0 || active.Code != third.Code {
		t.Fatalf("rejected code should stay active: %d %+v", resp.StatusCode, active)
	}

	resp = f.do(t, http.MethodGet, fmt.Sprintf("/cards/%d", card.ID), customer.ID, nil)
	var detail struct {
		Card    CardView           `json:"card"`
		History []PunchHistoryView `json:"history"`
	}
	decodeData(t, resp, &detail)
	if detail.Card.Punches != 2 || !detail.Card.IsComplete || len(detail.History) != 2 {
		t.Fatalf("unexpected card detail: %+v", detail)
	}

	resp = f.do(t, http.MethodGet, fmt.Sprintf("/cards/%d", card.ID), staff.ID, nil)
	expectError(t, resp, 403, constants.ErrorKindPermissionDenied)
}

func TestValidateInputErrors(t *testing.T) {
	f := setupHandlerFixture(t)
	staff := f.createUser(t, "staff@example.com")

	resp := f.do(t, http.MethodPost, "/punch-codes/validate", staff.ID, gin.H{"code": "12ab"})
	expectError(t, resp, 400, constants.ErrorKindInvalidArgument)

	resp = f.do(t, http.MethodPost, "/punch-codes/validate", staff.ID, gin.H{"code": "000000"})
	expectError(t, resp, 404, constants.ErrorKindNotFound)

	resp = f.do(t, http.MethodPost, "/punch-codes/validate", 0, gin.H{"code": "000000"})
	if resp.StatusCode != 401 {
		t.Fatalf("missing identity want 401 got %d", resp.StatusCode)
	}

	resp = f.do(t, http.MethodGet, "/cards/abc", staff.ID, nil)
	expectError(t, resp, 400, constants.ErrorKindInvalidArgument)
}

func TestLoginAndMe(t *testing.T) {
	f := setupHandlerFixture(t)
	user := f.createUser(t, "login@example.com")

	resp := f.do(t, http.MethodPost, "/login", 0, gin.H{"email": "login@example.com", "password": "wrong-pass"})
	expectError(t, resp, 401, constants.ErrorKindUnauthenticated)

	resp = f.do(t, http.MethodPost, "/login", 0, gin.H{"email": "LOGIN@example.com", "password": "secret123"})
	if resp.StatusCode != 0 {
		t.Fatalf("login failed: %d %s", resp.StatusCode, resp.Msg)
	}
	var login struct {
		Token     string   `json:"token"`
		ExpiresAt int64    `json:"expires_at"`
		User      UserView `json:"user"`
	}
	decodeData(t, resp, &login)
	if login.Token == "" || login.User.ID != user.ID || login.ExpiresAt <= time.Now().UnixMilli() {
		t.Fatalf("unexpected login payload: %+v", login)
	}

	resp = f.do(t, http.MethodGet, "/me", user.ID, nil)
	var me struct {
		User  UserView `json:"user"`
		Roles []struct {
			BusinessID uint   `json:"business_id"`
			Role       string `json:"role"`
		} `json:"roles"`
	}
	decodeData(t, resp, &me)
	if me.User.Email != "login@example.com" || len(me.Roles) != 0 {
		t.Fatalf("unexpected me payload: %+v", me)
	}
}
