package handler

import (
	"agrichat-web/internal/ui"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handlers 汇总所有页面控制器。
type Handlers struct {
	Chat     *ChatHandler
	ChatList *ChatListHandler
	Post     *PostHandler
	User     *UserHandler
	Modal    *ModalHandler
}

// RegisterRoutes 注册页面路由。requireLogin 用于需要登录的页面。
func RegisterRoutes(r *gin.Engine, h Handlers, requireLogin gin.HandlerFunc) {
	r.StaticFS("/static", http.FS(ui.StaticFS()))

	r.GET("/", h.ChatList.Home)
	r.GET("/login", h.User.LoginPage)
	r.POST("/login", h.User.Login)
	r.GET("/register", h.User.RegisterPage)
	r.POST("/register", h.User.Register)
	r.POST("/logout", h.User.Logout)

	// Chat 路由组
	r.GET("/chat", h.Chat.NewSession)
	chat := r.Group("/chat/:sessionid")
	{
		chat.GET("", h.Chat.Mount)
		chat.GET("/views/:viewid", h.Chat.View)
		chat.POST("/views/:viewid/messages", h.Chat.Submit)
		chat.GET("/views/:viewid/ws", h.Chat.Stream)
	}

	// 会话列表路由组，需要登录
	chatList := r.Group("/chatlist")
	chatList.Use(requireLogin)
	{
		chatList.GET("", h.ChatList.List)
		chatList.POST("/:sessionid/delete", h.ChatList.Delete)
	}

	posts := r.Group("/community/posts/new")
	{
		posts.GET("", h.Post.New)
		posts.POST("", h.Post.Submit)
		posts.POST("/back", h.Post.Back)
	}

	modals := r.Group("/ui/modals/:id")
	{
		modals.POST("/confirm", h.Modal.Confirm)
		modals.POST("/close", h.Modal.Close)
		modals.POST("/dismiss", h.Modal.Dismiss)
	}
}
