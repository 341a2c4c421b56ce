package public

import (
	"strings"

	"github.com/punchcard-next/internal/http/response"
	"github.com/punchcard-next/internal/models"

	"github.com/gin-gonic/gin"
)

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// UserView 对外展示的用户信息
type UserView struct {
	ID          uint   `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Locale      string `json:"locale"`
}

func toUserView(user *models.User) UserView {
	return UserView{
		ID:          user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
		Locale:      user.Locale,
	}
}

// Login 用户登录
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "error.bad_request", nil)
		return
	}
	user, token, expiresAt, err := h.UserAuthService.Login(c.Request.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		respondLoginError(c, err)
		return
	}
	response.Success(c, gin.H{
		"user":       toUserView(user),
		"token":      token,
		"expires_at": expiresAt.UnixMilli(),
	})
}

// GetMe 当前登录用户
func (h *Handler) GetMe(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	user, err := h.UserAuthService.GetUser(c.Request.Context(), userID)
	if err != nil {
		respondIdentityError(c, err)
		return
	}
	roles, err := h.AuthzService.Memberships(userID)
	if err != nil {
		respondError(c, response.CodeInternal, "error.internal", err)
		return
	}
	response.Success(c, gin.H{
		"user":  toUserView(user),
		"roles": roles,
	})
}
