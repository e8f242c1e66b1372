package handler

import (
	"agrichat-web/internal/session"
	"agrichat-web/internal/ui"
	"agrichat-web/pkg/log"
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ModalHandler 将对话框按钮的提交路由到登记的动作。
type ModalHandler struct {
	registry  *ui.Registry
	presenter *ui.Presenter
}

// NewModalHandler 创建一个新的 ModalHandler 实例。
func NewModalHandler(registry *ui.Registry, presenter *ui.Presenter) *ModalHandler {
	return &ModalHandler{registry: registry, presenter: presenter}
}

// Confirm 处理 POST /ui/modals/:id/confirm。
func (h *ModalHandler) Confirm(c *gin.Context) {
	h.invoke(c, (*ui.ConfirmModal).Confirm)
}

// Close 处理 POST /ui/modals/:id/close。
func (h *ModalHandler) Close(c *gin.Context) {
	h.invoke(c, (*ui.ConfirmModal).Close)
}

// Dismiss 处理 POST /ui/modals/:id/dismiss（点击遮罩或按 Esc）。
func (h *ModalHandler) Dismiss(c *gin.Context) {
	h.invoke(c, (*ui.ConfirmModal).RequestClose)
}

func (h *ModalHandler) invoke(c *gin.Context, action func(*ui.ConfirmModal, context.Context) (string, error)) {
	sc := session.From(c)
	modal, err := h.registry.Take(c.Param("id"), sc.ClientID)
	if err != nil {
		renderMessage(c, h.presenter, http.StatusNotFound, "이미 처리되었거나 만료된 요청입니다.", nil)
		return
	}
	to, err := action(modal, c.Request.Context())
	if err != nil {
		log.Errorf("对话框动作执行失败, id: %s, error: %v", modal.ID, err)
		renderMessage(c, h.presenter, http.StatusInternalServerError, "요청을 처리하지 못했습니다.", nil)
		return
	}
	redirect(c, to)
}
