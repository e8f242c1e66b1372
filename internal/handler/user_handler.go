package handler

import (
	"agrichat-web/internal/service"
	"agrichat-web/internal/ui"
	"agrichat-web/pkg/log"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// AuthCookie 描述保存登录 token 的 cookie。
type AuthCookie struct {
	Name   string
	TTL    time.Duration
	Secure bool
}

// UserHandler 负责登录、注册和登出。
type UserHandler struct {
	userService service.UserService
	presenter   *ui.Presenter
	cookie      AuthCookie
}

// NewUserHandler 创建一个新的 UserHandler 实例。
func NewUserHandler(userService service.UserService, presenter *ui.Presenter, cookie AuthCookie) *UserHandler {
	return &UserHandler{userService: userService, presenter: presenter, cookie: cookie}
}

// CredentialsRequest 定义了登录和注册表单的字段。
type CredentialsRequest struct {
	Username string `form:"username" json:"username" binding:"required"`
	Password string `form:"password" json:"password" binding:"required"`
	Next     string `form:"next" json:"next"`
}

func (h *UserHandler) authPage(c *gin.Context, code int, name, notice string, req CredentialsRequest) {
	page := ui.AuthPage{Page: basePage(c, h.presenter), FormUsername: req.Username, Next: req.Next}
	page.Notice = notice
	c.HTML(code, name, page)
}

// LoginPage 渲染登录页。
func (h *UserHandler) LoginPage(c *gin.Context) {
	h.authPage(c, http.StatusOK, "login.html", "", CredentialsRequest{Next: localPath(c.Query("next"))})
}

// RegisterPage 渲染注册页。
func (h *UserHandler) RegisterPage(c *gin.Context) {
	h.authPage(c, http.StatusOK, "register.html", "", CredentialsRequest{})
}

// Login 处理用户登录请求，成功后写入 HttpOnly cookie。
func (h *UserHandler) Login(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		log.Warnf("Login: Invalid request payload, error: %v", err)
		h.authPage(c, http.StatusBadRequest, "login.html", "아이디와 비밀번호를 입력해 주세요.", req)
		return
	}

	accessToken, user, err := h.userService.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			log.Warnf("Login: Authentication failed for user '%s'", req.Username)
			h.authPage(c, http.StatusUnauthorized, "login.html", "아이디 또는 비밀번호가 올바르지 않습니다.", req)
			return
		}
		log.Errorf("Login: error for user '%s': %v", req.Username, err)
		h.authPage(c, http.StatusInternalServerError, "login.html", "로그인 중 오류가 발생했습니다.", req)
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, accessToken, int(h.cookie.TTL.Seconds()), "/", "", h.cookie.Secure, true)
	log.Infof("User '%s' logged in successfully", user.Username)
	redirect(c, localPath(req.Next))
}

// Register 处理用户注册请求，成功后跳转到登录页。
func (h *UserHandler) Register(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBind(&req); err != nil {
		log.Warnf("Register: Invalid request payload, error: %v", err)
		h.authPage(c, http.StatusBadRequest, "register.html", "아이디와 비밀번호를 입력해 주세요.", req)
		return
	}

	user, err := h.userService.Register(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserExists):
			h.authPage(c, http.StatusConflict, "register.html", "이미 사용 중인 아이디입니다.", req)
		case errors.Is(err, service.ErrInvalidUsername):
			h.authPage(c, http.StatusBadRequest, "register.html", "아이디와 비밀번호를 입력해 주세요.", req)
		default:
			log.Errorf("Register: User registration failed for '%s', error: %v", req.Username, err)
			h.authPage(c, http.StatusInternalServerError, "register.html", "회원가입 중 오류가 발생했습니다.", req)
		}
		return
	}

	log.Infof("User '%s' registered successfully", user.Username)
	redirect(c, "/login")
}

// Logout 清除登录 cookie。
func (h *UserHandler) Logout(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cookie.Name, "", -1, "/", "", h.cookie.Secure, true)
	redirect(c, "/")
}
