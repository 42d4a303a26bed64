package public

import "github.com/qaznet/partner-core/internal/provider"

// Handler 合伙人侧接口处理器入口
type Handler struct {
	*provider.Container
}

// New 创建合伙人侧处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
