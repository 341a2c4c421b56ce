package public

import (
	"time"

	"github.com/punchcard-next/internal/constants"
	"github.com/punchcard-next/internal/http/response"
	"github.com/punchcard-next/internal/models"
	"github.com/punchcard-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateCardRequest 加入商家集点活动请求
type CreateCardRequest struct {
	BusinessID uint `json:"business_id" binding:"required"`
}

// CardView 集点卡及进度
type CardView struct {
	ID          uint       `json:"id"`
	BusinessID  uint       `json:"business_id"`
	MaxPunches  int        `json:"max_punches"`
	Punches     int        `json:"punches"`
	IsComplete  bool       `json:"is_complete"`
	IsActive    bool       `json:"is_active"`
	Status      string     `json:"status"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CompletedAt *time.Time `json:"completed_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PunchHistoryView 打卡流水
type PunchHistoryView struct {
	ID        uint      `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

func toCardView(progress service.CardProgress) CardView {
	return CardView{
		ID:          progress.Card.ID,
		BusinessID:  progress.Card.BusinessID,
		MaxPunches:  progress.Card.MaxPunches,
		Punches:     progress.Punches,
		IsComplete:  progress.IsComplete,
		IsActive:    progress.IsActive,
		Status:      progress.Status,
		ExpiresAt:   progress.Card.ExpiresAt,
		CompletedAt: progress.Card.CompletedAt,
		CreatedAt:   progress.Card.CreatedAt,
	}
}

func toPunchHistory(events []models.PunchEvent) []PunchHistoryView {
	items := make([]PunchHistoryView, 0, len(events))
	for _, event := range events {
		items = append(items, PunchHistoryView{ID: event.ID, CreatedAt: event.CreatedAt})
	}
	return items
}

// CreateCard 加入商家集点活动（新建集点卡）
func (h *Handler) CreateCard(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req CreateCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	card, err := h.CardService.OptIn(c.Request.Context(), req.BusinessID, userID)
	if err != nil {
		respondCardError(c, err, "error.card_create_failed")
		return
	}
	response.Success(c, toCardView(service.CardProgress{
		Card:     *card,
		IsActive: true,
		Status:   constants.CardStatusActive,
	}))
}

// ListCards 当前用户的集点卡
func (h *Handler) ListCards(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	page, pageSize := parsePagination(c)
	items, total, err := h.CardService.ListUserCards(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		respondCardError(c, err, "error.card_fetch_failed")
		return
	}
	views := make([]CardView, 0, len(items))
	for _, item := range items {
		views = append(views, toCardView(item))
	}
	response.SuccessWithPage(c, views, response.BuildPagination(page, pageSize, total))
}

// GetCard 集点卡详情与打卡流水
func (h *Handler) GetCard(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	cardID, ok := parseIDParam(c, "id", "error.card_invalid")
	if !ok {
		return
	}
	detail, err := h.CardService.GetCardDetail(c.Request.Context(), cardID, userID)
	if err != nil {
		respondCardError(c, err, "error.card_fetch_failed")
		return
	}
	response.Success(c, gin.H{
		"card":    toCardView(detail.CardProgress),
		"history": toPunchHistory(detail.History),
	})
}

// GetActivePunchCode 查询集点卡当前可用的打卡码
func (h *Handler) GetActivePunchCode(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	cardID, ok := parseIDParam(c, "id", "error.card_invalid")
	if !ok {
		return
	}
	result, err := h.PunchCodeService.GetActiveCode(c.Request.Context(), service.GeneratePunchCodeInput{
		CardID: cardID,
		UserID: userID,
	})
	if err != nil {
		respondPunchCodeError(c, err)
		return
	}
	response.Success(c, punchCodePayload(result))
}
