// Package session 提供页面边界处构造的会话上下文，以及按客户端记忆最近会话的存储。
package session

import (
	"agrichat-web/internal/model"

	"github.com/gin-gonic/gin"
)

const contextKey = "session.context"

// Context 在请求进入页面时构造一次，之后显式传递给服务层。
type Context struct {
	ClientID    string
	UserID      string
	Username    string
	SessionID   string
	SessionName string
}

// LoggedIn 报告是否存在已登录用户。
func (c Context) LoggedIn() bool {
	return c.UserID != ""
}

// Ref 返回当前聊天会话的标识。
func (c Context) Ref() model.ChatSessionRef {
	return model.ChatSessionRef{SessionID: c.SessionID, SessionName: c.SessionName}
}

// Set 将会话上下文保存到 gin 上下文中。
func Set(c *gin.Context, sc Context) {
	c.Set(contextKey, sc)
}

// From 取出中间件构造的会话上下文，不存在时返回零值。
func From(c *gin.Context) Context {
	if v, ok := c.Get(contextKey); ok {
		if sc, ok := v.(Context); ok {
			return sc
		}
	}
	return Context{}
}
