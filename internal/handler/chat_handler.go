package handler

import (
	"agrichat-web/internal/model"
	"agrichat-web/internal/repository"
	"agrichat-web/internal/service"
	"agrichat-web/internal/session"
	"agrichat-web/internal/ui"
	"agrichat-web/pkg/log"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// CheckOrigin 为 nil 时只接受同源连接。
var upgrader = websocket.Upgrader{}

// ChatHandler 负责聊天页面的挂载、重新渲染、提问和实时推送。
type ChatHandler struct {
	chatService service.ChatService
	presenter   *ui.Presenter
}

// NewChatHandler 创建一个新的 ChatHandler。
func NewChatHandler(chatService service.ChatService, presenter *ui.Presenter) *ChatHandler {
	return &ChatHandler{chatService: chatService, presenter: presenter}
}

// SubmitRequest 是提问请求，支持表单和 JSON。
type SubmitRequest struct {
	Question string `form:"question" json:"question"`
}

// wireEvent 是推送给页面脚本的消息，HTML 为服务端渲染好的片段。
type wireEvent struct {
	Type     model.ViewEventType `json:"type"`
	Revision int                 `json:"revision"`
	Waiting  bool                `json:"waiting"`
	HTML     string              `json:"html,omitempty"`
}

func viewURL(view *model.ChatView) string {
	u := "/chat/" + url.PathEscape(view.Session.SessionID) + "/views/" + url.PathEscape(view.ID)
	if view.Session.SessionName != "" {
		u += "?session_name=" + url.QueryEscape(view.Session.SessionName)
	}
	return u
}

// NewSession 生成一个新的会话 ID 并跳转到对应的聊天页面。
func (h *ChatHandler) NewSession(c *gin.Context) {
	to := "/chat/" + uuid.NewString()
	if name := c.Query("session_name"); name != "" {
		to += "?session_name=" + url.QueryEscape(name)
	}
	redirect(c, to)
}

// Mount 处理 GET /chat/:sessionid，每次访问都创建一个新视图。
func (h *ChatHandler) Mount(c *gin.Context) {
	sc := session.From(c)
	view, err := h.chatService.Mount(c.Request.Context(), sc)
	if err != nil {
		log.Errorf("挂载聊天页面失败, sessionID: %s, error: %v", sc.SessionID, err)
		renderMessage(c, h.presenter, http.StatusInternalServerError, "대화를 불러오지 못했습니다.", nil)
		return
	}
	c.HTML(http.StatusOK, "chat.html", h.presenter.ChatPage(view))
}

// View 处理 GET /chat/:sessionid/views/:viewid，只渲染已存储的视图。
func (h *ChatHandler) View(c *gin.Context) {
	sc := session.From(c)
	view, err := h.chatService.View(c.Request.Context(), sc, c.Param("viewid"))
	if err != nil {
		h.viewError(c, sc, err)
		return
	}
	if wantsJSON(c) {
		c.JSON(http.StatusOK, gin.H{"viewId": view.ID, "revision": view.Revision(), "waiting": view.Waiting, "turns": view.Turns})
		return
	}
	c.HTML(http.StatusOK, "chat.html", h.presenter.ChatPage(view))
}

// viewError 处理视图不存在或读取失败。页面请求回到挂载地址重新开始。
func (h *ChatHandler) viewError(c *gin.Context, sc session.Context, err error) {
	if errors.Is(err, repository.ErrViewNotFound) {
		if wantsJSON(c) {
			c.JSON(http.StatusNotFound, gin.H{"error": "대화 화면을 찾을 수 없습니다."})
			return
		}
		redirect(c, "/chat/"+url.PathEscape(sc.SessionID))
		return
	}
	log.Errorf("读取聊天视图失败, error: %v", err)
	if wantsJSON(c) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "서버 오류가 발생했습니다."})
		return
	}
	renderMessage(c, h.presenter, http.StatusInternalServerError, "서버 오류가 발생했습니다.", nil)
}

// Submit 处理 POST /chat/:sessionid/views/:viewid/messages。
// 请求在回答落定后返回；页面脚本通过 websocket 提前看到用户消息和加载状态。
func (h *ChatHandler) Submit(c *gin.Context) {
	sc := session.From(c)
	viewID := c.Param("viewid")

	var req SubmitRequest
	if err := c.ShouldBind(&req); err != nil {
		log.Warnf("Submit: Invalid request payload, error: %v", err)
	}

	view, err := h.chatService.Submit(c.Request.Context(), sc, viewID, req.Question)
	switch {
	case err == nil:
		if wantsJSON(c) {
			c.JSON(http.StatusOK, gin.H{"viewId": view.ID, "revision": view.Revision(), "waiting": view.Waiting})
			return
		}
		redirect(c, viewURL(view))
	case errors.Is(err, service.ErrEmptyQuestion):
		h.rejectSubmit(c, sc, viewID, http.StatusBadRequest, "질문을 입력해 주세요.", req.Question)
	case errors.Is(err, service.ErrReplyPending):
		h.rejectSubmit(c, sc, viewID, http.StatusConflict, "이전 질문에 대한 답변을 기다리는 중입니다.", req.Question)
	default:
		h.viewError(c, sc, err)
	}
}

// rejectSubmit 拒绝一次提问，页面请求会保留输入框中的内容。
func (h *ChatHandler) rejectSubmit(c *gin.Context, sc session.Context, viewID string, code int, notice, draft string) {
	if wantsJSON(c) {
		c.JSON(code, gin.H{"error": notice})
		return
	}
	view, err := h.chatService.View(c.Request.Context(), sc, viewID)
	if err != nil {
		h.viewError(c, sc, err)
		return
	}
	page := h.presenter.ChatPage(view)
	page.Notice = notice
	page.Draft = draft
	c.HTML(code, "chat.html", page)
}

// Stream 处理 GET /chat/:sessionid/views/:viewid/ws，先推送快照，再推送每一次变化。
func (h *ChatHandler) Stream(c *gin.Context) {
	sc := session.From(c)
	viewID := c.Param("viewid")
	if _, err := h.chatService.View(c.Request.Context(), sc, viewID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "대화 화면을 찾을 수 없습니다."})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WebSocket 升级失败", err)
		return
	}
	defer conn.Close()

	// 先订阅再读取快照，期间的事件由客户端按 revision 去重
	events, cancel := h.chatService.Subscribe(viewID)
	defer cancel()

	view, err := h.chatService.View(c.Request.Context(), sc, viewID)
	if err != nil {
		log.Errorf("读取聊天视图失败, viewID: %s, error: %v", viewID, err)
		return
	}
	snapshot, err := h.presenter.RenderTurns(view)
	if err != nil {
		log.Errorf("渲染消息列表失败, viewID: %s, error: %v", viewID, err)
		return
	}
	if err := h.write(conn, wireEvent{Type: model.ViewEventSnapshot, Revision: view.Revision(), Waiting: view.Waiting, HTML: snapshot}); err != nil {
		return
	}
	log.Infof("WebSocket 连接已建立, viewID: %s", viewID)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			msg := wireEvent{Type: ev.Type, Revision: ev.Revision, Waiting: ev.Waiting}
			if ev.Type == model.ViewEventTurn && ev.Turn != nil {
				if msg.HTML, err = h.presenter.RenderTurn(*ev.Turn); err != nil {
					log.Errorf("渲染消息失败, viewID: %s, error: %v", viewID, err)
					return
				}
			}
			if err := h.write(conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

func (h *ChatHandler) write(conn *websocket.Conn, msg wireEvent) error {
	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(msg); err != nil {
		log.Warnf("WebSocket 写入失败: %v", err)
		return err
	}
	return nil
}
