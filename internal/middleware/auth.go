// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"agrichat-web/pkg/log"
	"agrichat-web/pkg/token"
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
)

const claimsKey = "claims"

// OptionalAuth 从 cookie 中读取 JWT。token 有效时将 claims 存入上下文；
// 缺失或无效时按未登录处理，不中止请求。
func OptionalAuth(jwtManager *token.JWTManager, cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, err := c.Cookie(cookieName)
		if err != nil || tokenString == "" {
			c.Next()
			return
		}

		claims, err := jwtManager.VerifyToken(tokenString)
		if err != nil {
			log.Infof("忽略无效或已过期的 token: %v", err)
			c.Next()
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// Claims 返回 OptionalAuth 存入的 claims，未登录时 ok 为 false。
func Claims(c *gin.Context) (*token.CustomClaims, bool) {
	v, exists := c.Get(claimsKey)
	if !exists {
		return nil, false
	}
	claims, ok := v.(*token.CustomClaims)
	return claims, ok
}

// RequireLogin 要求用户已登录。必须在 OptionalAuth 之后使用。
// 页面请求重定向到登录页，JSON 请求返回 401。
func RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := Claims(c); ok {
			c.Next()
			return
		}
		if c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "로그인이 필요합니다."})
			return
		}
		c.Redirect(http.StatusSeeOther, "/login?next="+url.QueryEscape(c.Request.URL.RequestURI()))
		c.Abort()
	}
}
