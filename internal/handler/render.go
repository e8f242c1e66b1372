// Package handler 包含了处理 HTTP 请求的控制器逻辑。
package handler

import (
	"agrichat-web/internal/session"
	"agrichat-web/internal/ui"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// basePage 用会话上下文填充所有页面共用的字段。
func basePage(c *gin.Context, presenter *ui.Presenter) ui.Page {
	sc := session.From(c)
	return ui.Page{Title: presenter.Title(), LoggedIn: sc.LoggedIn(), Username: sc.Username}
}

// wantsJSON 根据 Accept 头判断调用方是页面脚本还是浏览器表单。
func wantsJSON(c *gin.Context) bool {
	return c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) == gin.MIMEJSON
}

// renderMessage 渲染只有一条提示（和可选对话框）的页面。
func renderMessage(c *gin.Context, presenter *ui.Presenter, code int, notice string, modal *ui.ConfirmModal) {
	page := basePage(c, presenter)
	page.Notice = notice
	page.Modal = modal
	c.HTML(code, "message.html", page)
}

// localPath 只接受站内路径，防止跳转到外部地址。无效时返回空字符串。
func localPath(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || !strings.HasPrefix(u.Path, "/") || strings.HasPrefix(u.Path, "//") {
		return ""
	}
	return u.RequestURI()
}

// refererPath 返回同源 Referer 的站内路径。
func refererPath(c *gin.Context) string {
	ref := c.Request.Referer()
	if ref == "" {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil || (u.Host != "" && u.Host != c.Request.Host) {
		return ""
	}
	return localPath(u.RequestURI())
}

func redirect(c *gin.Context, to string) {
	if to == "" {
		to = "/"
	}
	c.Redirect(http.StatusSeeOther, to)
}
