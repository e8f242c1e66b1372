package middleware

import (
	"agrichat-web/internal/model"
	"agrichat-web/internal/session"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ClientCookieName 是标识浏览器客户端的 cookie。
const ClientCookieName = "agrichat_client"

const clientCookieMaxAge = 365 * 24 * 60 * 60

// SessionContext 在页面边界处构造 session.Context：
// 客户端 ID 来自 cookie（缺失时签发），用户来自 OptionalAuth，会话来自路由参数和查询字符串。
func SessionContext(secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID, err := c.Cookie(ClientCookieName)
		if err != nil || clientID == "" {
			clientID = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(ClientCookieName, clientID, clientCookieMaxAge, "/", "", secureCookies, true)
		}

		sc := session.Context{
			ClientID:    clientID,
			SessionID:   c.Param("sessionid"),
			SessionName: c.Query("session_name"),
		}
		if claims, ok := Claims(c); ok {
			sc.UserID = model.FormatUserID(claims.UserID)
			sc.Username = claims.Username
		}
		session.Set(c, sc)
		c.Next()
	}
}
