package public

import (
	"github.com/punchcard-next/internal/http/response"
	"github.com/punchcard-next/internal/i18n"
	"github.com/punchcard-next/internal/service"

	"github.com/gin-gonic/gin"
)

// GeneratePunchCodeRequest 生成打卡码请求
type GeneratePunchCodeRequest struct {
	CardID uint `json:"card_id" binding:"required"`
}

// ValidatePunchCodeRequest 核销打卡码请求
type ValidatePunchCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

func punchCodePayload(result *service.PunchCodeResult) gin.H {
	return gin.H{
		"success":    true,
		"code":       result.Code,
		"card_id":    result.CardID,
		"expires_at": result.ExpiresAtMillis(),
	}
}

// GeneratePunchCode 顾客为自己的集点卡生成一次性打卡码
func (h *Handler) GeneratePunchCode(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req GeneratePunchCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.card_invalid", nil)
		return
	}
	result, err := h.PunchCodeService.GenerateCode(c.Request.Context(), service.GeneratePunchCodeInput{
		CardID: req.CardID,
		UserID: userID,
	})
	if err != nil {
		respondPunchCodeError(c, err)
		return
	}
	response.Success(c, punchCodePayload(result))
}

// ValidatePunchCode 商家店员核销打卡码并记一次打卡
func (h *Handler) ValidatePunchCode(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req ValidatePunchCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.punch_code_invalid", nil)
		return
	}
	result, err := h.RedemptionService.ValidateAndRedeem(c.Request.Context(), service.RedeemPunchInput{
		Code:       req.Code,
		RedeemerID: userID,
	})
	if err != nil {
		respondRedeemError(c, err)
		return
	}
	msgKey := "success.punch_redeemed"
	if result.IsComplete {
		msgKey = "success.card_completed"
	}
	msg := i18n.T(i18n.ResolveLocale(c), msgKey)
	response.SuccessWithMsg(c, msg, gin.H{
		"success":     true,
		"message":     msg,
		"card_id":     result.CardID,
		"punches":     result.Punches,
		"max_punches": result.MaxPunches,
		"is_complete": result.IsComplete,
	})
}
