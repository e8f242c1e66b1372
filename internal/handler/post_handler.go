package handler

import (
	"agrichat-web/internal/config"
	"agrichat-web/internal/model"
	"agrichat-web/internal/service"
	"agrichat-web/internal/session"
	"agrichat-web/internal/ui"
	"agrichat-web/pkg/community"
	"agrichat-web/pkg/log"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

const writePostPath = "/community/posts/new"

// PostHandler 负责发帖页面。
type PostHandler struct {
	postService service.PostService
	registry    *ui.Registry
	presenter   *ui.Presenter
	cfg         config.CommunityAPIConfig
}

// NewPostHandler 创建一个新的 PostHandler 实例。
func NewPostHandler(postService service.PostService, registry *ui.Registry, presenter *ui.Presenter, cfg config.CommunityAPIConfig) *PostHandler {
	return &PostHandler{postService: postService, registry: registry, presenter: presenter, cfg: cfg}
}

func (h *PostHandler) render(c *gin.Context, code int, draft *model.PostDraft, notice string) {
	page := ui.WritePostPage{Page: basePage(c, h.presenter), Draft: draft}
	page.Notice = notice
	c.HTML(code, "write_post.html", page)
}

// New 处理 GET /community/posts/new?post_type=...
func (h *PostHandler) New(c *gin.Context) {
	sc := session.From(c)
	returnTo := refererPath(c)
	if strings.HasPrefix(returnTo, writePostPath) {
		returnTo = ""
	}
	draft, err := h.postService.Open(c.Request.Context(), sc, c.Query("post_type"), returnTo)
	if err != nil {
		log.Errorf("打开发帖页面失败, clientID: %s, error: %v", sc.ClientID, err)
		renderMessage(c, h.presenter, http.StatusInternalServerError, "글쓰기 화면을 불러오지 못했습니다.", nil)
		return
	}
	h.render(c, http.StatusOK, draft, "")
}

// credentials 从浏览器请求中取出转发给社区服务的 CSRF token 和 cookie。
func (h *PostHandler) credentials(c *gin.Context) community.Credentials {
	var cred community.Credentials
	if v, err := c.Cookie(h.cfg.CSRFCookie); err == nil {
		cred.CSRFToken = v
	}
	for _, name := range h.cfg.ForwardCookies {
		if ck, err := c.Request.Cookie(name); err == nil {
			cred.Cookies = append(cred.Cookies, ck)
		}
	}
	return cred
}

// Submit 处理 POST /community/posts/new（multipart 表单）。
func (h *PostHandler) Submit(c *gin.Context) {
	sc := session.From(c)
	form := service.PostForm{
		Title:    c.PostForm("title"),
		Content:  c.PostForm("content"),
		Category: c.PostForm("post_type"),
	}

	fileHeader, err := c.FormFile("image")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		log.Warnf("读取上传图片失败: %v", err)
	}
	if fileHeader != nil && fileHeader.Size > 0 {
		file, err := fileHeader.Open()
		if err != nil {
			log.Errorf("打开上传图片失败: %v", err)
			renderMessage(c, h.presenter, http.StatusBadRequest, "이미지를 읽을 수 없습니다.", nil)
			return
		}
		defer file.Close()
		form.Image = &service.UploadedImage{
			FileName:    fileHeader.Filename,
			ContentType: fileHeader.Header.Get("Content-Type"),
			Size:        fileHeader.Size,
			Reader:      file,
		}
	}

	created, kept, err := h.postService.Submit(c.Request.Context(), sc, form, h.credentials(c))
	if err != nil {
		h.submitFailed(c, kept, err)
		return
	}

	location := "/post/" + url.PathEscape(created.ID)
	if wantsJSON(c) {
		c.JSON(http.StatusCreated, gin.H{"id": created.ID, "location": location})
		return
	}
	modal := h.registry.Open(sc.ClientID, ui.ModalFuncs{
		Confirm: ui.Redirect(location),
		Close:   ui.Redirect(location),
	}, ui.WithTitle("글 작성 성공"))
	renderMessage(c, h.presenter, http.StatusOK, "", modal)
}

// submitFailed 保留草稿并重新渲染表单，同时给出提示。
func (h *PostHandler) submitFailed(c *gin.Context, kept *model.PostDraft, err error) {
	code, notice := http.StatusBadGateway, "글 작성에 실패했습니다. 다시 시도해 주세요."
	if errors.Is(err, model.ErrInvalidPostType) {
		code, notice = http.StatusBadRequest, "게시판을 선택해 주세요."
	}
	if wantsJSON(c) {
		c.JSON(code, gin.H{"error": notice})
		return
	}
	if kept == nil {
		renderMessage(c, h.presenter, http.StatusInternalServerError, notice, nil)
		return
	}
	h.render(c, code, kept, notice)
}

// Back 处理 POST /community/posts/new/back，丢弃草稿并返回之前的页面。
func (h *PostHandler) Back(c *gin.Context) {
	sc := session.From(c)
	to, err := h.postService.Back(c.Request.Context(), sc)
	if err != nil {
		log.Errorf("丢弃草稿失败, clientID: %s, error: %v", sc.ClientID, err)
	}
	redirect(c, to)
}
