package public

import (
	"strings"

	"github.com/punchcard-next/internal/http/response"
	"github.com/punchcard-next/internal/models"
	"github.com/punchcard-next/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateBusinessRequest 创建商家请求
type CreateBusinessRequest struct {
	Name              string `json:"name" binding:"required"`
	PunchesRequired   int    `json:"punches_required" binding:"required"`
	CardValidityDays  int    `json:"card_validity_days" binding:"required"`
	RewardDescription string `json:"reward_description"`
	RewardValue       string `json:"reward_value"`
}

// GrantStaffRequest 授予店员请求
type GrantStaffRequest struct {
	Email string `json:"email" binding:"required"`
}

// CreateBusiness 创建商家集点活动，调用者成为店主
func (h *Handler) CreateBusiness(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req CreateBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	reward := models.Money{}
	if raw := strings.TrimSpace(req.RewardValue); raw != "" {
		parsed, err := models.ParseMoney(raw)
		if err != nil {
			respondError(c, response.CodeBadRequest, "error.business_invalid", nil)
			return
		}
		reward = parsed
	}
	business, err := h.BusinessService.CreateBusiness(c.Request.Context(), service.CreateBusinessInput{
		OwnerUserID:       userID,
		Name:              req.Name,
		PunchesRequired:   req.PunchesRequired,
		CardValidityDays:  req.CardValidityDays,
		RewardDescription: req.RewardDescription,
		RewardValue:       reward,
	})
	if err != nil {
		respondBusinessError(c, err, "error.business_create_failed")
		return
	}
	response.Success(c, business)
}

// ListBusinesses 查询可加入的商家
func (h *Handler) ListBusinesses(c *gin.Context) {
	page, pageSize := parsePagination(c)
	items, total, err := h.BusinessService.ListBusinesses(c.Request.Context(), strings.TrimSpace(c.Query("search")), page, pageSize)
	if err != nil {
		respondBusinessError(c, err, "error.business_fetch_failed")
		return
	}
	response.SuccessWithPage(c, items, response.BuildPagination(page, pageSize, total))
}

// GetBusiness 商家详情
func (h *Handler) GetBusiness(c *gin.Context) {
	businessID, ok := parseIDParam(c, "id", "error.business_invalid")
	if !ok {
		return
	}
	business, err := h.BusinessService.GetBusiness(c.Request.Context(), businessID)
	if err != nil {
		respondBusinessError(c, err, "error.business_fetch_failed")
		return
	}
	response.Success(c, business)
}

// GrantStaff 店主授予店员核销权限
func (h *Handler) GrantStaff(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	businessID, ok := parseIDParam(c, "id", "error.business_invalid")
	if !ok {
		return
	}
	var req GrantStaffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	staff, err := h.BusinessService.GrantStaff(c.Request.Context(), service.GrantStaffInput{
		OperatorID: userID,
		BusinessID: businessID,
		StaffEmail: req.Email,
	})
	if err != nil {
		respondBusinessError(c, err, "error.business_staff_failed")
		return
	}
	response.Success(c, gin.H{
		"business_id": businessID,
		"staff":       toUserView(staff),
	})
}
