package public

import "github.com/punchcard-next/internal/provider"

// Handler 用户侧接口处理器入口
// 说明：顾客与商家店员共用同一身份体系，权限差异由 casbin 角色决定。
type Handler struct {
	*provider.Container
}

// New 创建处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
