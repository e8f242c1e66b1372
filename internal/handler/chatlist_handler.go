package handler

import (
	"agrichat-web/internal/service"
	"agrichat-web/internal/session"
	"agrichat-web/internal/ui"
	"agrichat-web/pkg/log"
	"context"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

// ChatListHandler 负责首页和会话列表。
type ChatListHandler struct {
	chatListService service.ChatListService
	store           session.Store
	registry        *ui.Registry
	presenter       *ui.Presenter
}

// NewChatListHandler 创建一个新的 ChatListHandler 实例。
func NewChatListHandler(chatListService service.ChatListService, store session.Store, registry *ui.Registry, presenter *ui.Presenter) *ChatListHandler {
	return &ChatListHandler{chatListService: chatListService, store: store, registry: registry, presenter: presenter}
}

// Home 渲染首页，提供最近会话的入口。
func (h *ChatListHandler) Home(c *gin.Context) {
	sc := session.From(c)
	page := ui.HomePage{Page: basePage(c, h.presenter)}
	ref, ok, err := h.store.Last(c.Request.Context(), sc.ClientID)
	if err != nil {
		log.Warnf("读取最近会话失败, clientID: %s, error: %v", sc.ClientID, err)
	} else if ok {
		page.LastSessionID, page.LastSessionName = ref.SessionID, ref.SessionName
	}
	c.HTML(http.StatusOK, "home.html", page)
}

// List 处理 GET /chatlist。带 modal 参数时同时显示对应的对话框。
func (h *ChatListHandler) List(c *gin.Context) {
	sc := session.From(c)
	list, err := h.chatListService.List(c.Request.Context(), sc)
	if err != nil {
		log.Errorf("读取会话列表失败, userID: %s, error: %v", sc.UserID, err)
		renderMessage(c, h.presenter, http.StatusInternalServerError, "대화 목록을 불러오지 못했습니다.", nil)
		return
	}

	page := ui.ChatListPage{Page: basePage(c, h.presenter), Sessions: list.Sessions, Last: list.Last, HasLast: list.HasLast}
	if id := c.Query("modal"); id != "" {
		if modal, err := h.registry.Get(id, sc.ClientID); err == nil {
			page.Modal = modal
		}
	}
	if c.Query("deleted") != "" {
		page.Notice = "대화가 삭제되었습니다."
	}
	c.HTML(http.StatusOK, "chatlist.html", page)
}

// Delete 处理 POST /chatlist/:sessionid/delete，打开删除确认框，确认后才真正删除。
func (h *ChatListHandler) Delete(c *gin.Context) {
	sc := session.From(c)
	sessionID := c.Param("sessionid")

	modal := h.registry.Open(sc.ClientID, ui.ModalFuncs{
		Confirm: func(ctx context.Context) (string, error) {
			if err := h.chatListService.Delete(ctx, sc, sessionID); err != nil {
				return "", err
			}
			return "/chatlist?deleted=1", nil
		},
		Close: ui.Redirect("/chatlist"),
	},
		ui.WithTitle("Delete Confirmation"),
		ui.WithContent("정말 이 대화를 삭제하시겠습니까?"),
		ui.WithConfirmText("삭제"),
		ui.WithCancelText("취소"),
	)
	redirect(c, "/chatlist?modal="+url.QueryEscape(modal.ID))
}
