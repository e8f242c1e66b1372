package handler

import (
	"agrichat-web/internal/config"
	"agrichat-web/internal/middleware"
	"agrichat-web/internal/model"
	"agrichat-web/internal/repository"
	"agrichat-web/internal/service"
	"agrichat-web/internal/session"
	"agrichat-web/internal/ui"
	"agrichat-web/pkg/community"
	"agrichat-web/pkg/events"
	"agrichat-web/pkg/storage"
	"agrichat-web/pkg/token"
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubChatAPI struct {
	history      []model.HistoryRecord
	historyCalls atomic.Int32
	block        chan struct{}
	entered      chan struct{}
}

func (s *stubChatAPI) FetchHistory(context.Context, string) ([]model.HistoryRecord, error) {
	s.historyCalls.Add(1)
	return s.history, nil
}

func (s *stubChatAPI) Send(ctx context.Context, req model.SendRequest) (*model.SendResponse, error) {
	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.block != nil {
		select {
		case <-s.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &model.SendResponse{Answer: "**답변** " + req.Question, Timestamp: "2024-05-01T00:30:00.000Z"}, nil
}

type stubCommunity struct {
	err  error
	cred community.Credentials
	req  community.CreatePostRequest
}

func (s *stubCommunity) CreatePost(_ context.Context, req community.CreatePostRequest, cred community.Credentials) (*model.CreatedPost, error) {
	s.req, s.cred = req, cred
	if s.err != nil {
		return nil, s.err
	}
	return &model.CreatedPost{ID: "42"}, nil
}

type testApp struct {
	router    *gin.Engine
	chatAPI   *stubChatAPI
	community *stubCommunity
	sessions  repository.ChatSessionRepository
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	chatCfg := config.ChatConfig{
		Title:             "농업 GPT",
		Greeting:          "안녕하세요 무엇을 도와드릴까요?",
		ErrorText:         "An error occurred. Please try again later.",
		LoadingText:       "답변을 불러오는 중입니다.",
		InFlightTTLSecond: 60,
	}
	presenter, err := ui.NewPresenter(config.UIConfig{Timezone: "Asia/Seoul", AssistantIcon: "/static/assistant.svg", UserIcon: "/static/user.svg"}, chatCfg)
	require.NoError(t, err)

	app := &testApp{
		chatAPI:   &stubChatAPI{},
		community: &stubCommunity{},
		sessions:  repository.NewMemoryChatSessionRepository(),
	}
	store := session.NewMemoryStore()
	registry := ui.NewRegistry(time.Minute)
	jwtManager := token.NewJWTManager("secret", 1)

	chatService := service.NewChatService(chatCfg, app.chatAPI, repository.NewMemoryChatViewRepository(), app.sessions, store, events.Noop())
	postService := service.NewPostService(repository.NewMemoryDraftRepository(), storage.NewMemoryStore(), app.community, events.Noop(), "drafts")
	userService := service.NewUserService(repository.NewMemoryUserRepository(), jwtManager)
	chatListService := service.NewChatListService(app.sessions, store)

	r := gin.New()
	r.SetHTMLTemplate(presenter.Templates())
	r.Use(gin.Recovery(), middleware.OptionalAuth(jwtManager, "agrichat_token"), middleware.SessionContext(false))
	RegisterRoutes(r, Handlers{
		Chat:     NewChatHandler(chatService, presenter),
		ChatList: NewChatListHandler(chatListService, store, registry, presenter),
		Post: NewPostHandler(postService, registry, presenter, config.CommunityAPIConfig{
			CSRFCookie:     "csrftoken",
			ForwardCookies: []string{"csrftoken", "sessionid"},
		}),
		User:  NewUserHandler(userService, presenter, AuthCookie{Name: "agrichat_token", TTL: time.Hour}),
		Modal: NewModalHandler(registry, presenter),
	}, middleware.RequireLogin())
	app.router = r
	return app
}

// do 以固定的客户端 cookie 发送请求。
func (a *testApp) do(req *http.Request, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req.AddCookie(&http.Cookie{Name: middleware.ClientCookieName, Value: "client-1"})
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

var (
	viewIDPattern  = regexp.MustCompile(`data-view-id="([^"]+)"`)
	modalIDPattern = regexp.MustCompile(`data-modal-id="([^"]+)"`)
)

func match(t *testing.T, re *regexp.Regexp, body string) string {
	t.Helper()
	m := re.FindStringSubmatch(body)
	require.Len(t, m, 2, "pattern %s not found", re)
	return m[1]
}

func (a *testApp) mount(t *testing.T, path string, cookies ...*http.Cookie) string {
	t.Helper()
	w := a.do(httptest.NewRequest(http.MethodGet, path, nil), cookies...)
	require.Equal(t, http.StatusOK, w.Code)
	return match(t, viewIDPattern, w.Body.String())
}

func (a *testApp) login(t *testing.T) *http.Cookie {
	t.Helper()
	w := a.do(postForm("/register", url.Values{"username": {"farmer"}, "password": {"pw1234"}}))
	require.Equal(t, http.StatusSeeOther, w.Code)

	w = a.do(postForm("/login", url.Values{"username": {"farmer"}, "password": {"pw1234"}}))
	require.Equal(t, http.StatusSeeOther, w.Code)
	for _, ck := range w.Result().Cookies() {
		if ck.Name == "agrichat_token" {
			return ck
		}
	}
	t.Fatal("login cookie not set")
	return nil
}

func TestChatMountGuest(t *testing.T) {
	app := newTestApp(t)
	w := app.do(httptest.NewRequest(http.MethodGet, "/chat/s1?session_name=%EA%B0%90%EC%9E%90", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "안녕하세요 무엇을 도와드릴까요?")
	assert.Contains(t, body, "감자")
	assert.Contains(t, body, `data-revision="1"`)
	assert.Zero(t, app.chatAPI.historyCalls.Load())
}

func TestChatSubmitFormThenRerender(t *testing.T) {
	app := newTestApp(t)
	viewID := app.mount(t, "/chat/s1?session_name=test")

	w := app.do(postForm("/chat/s1/views/"+viewID+"/messages", url.Values{"question": {"<감자> 언제 심나요?"}}))
	require.Equal(t, http.StatusSeeOther, w.Code)
	location := w.Header().Get("Location")
	assert.Equal(t, "/chat/s1/views/"+viewID+"?session_name=test", location)

	w = app.do(httptest.NewRequest(http.MethodGet, location, nil))
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "&lt;감자&gt; 언제 심나요?")
	assert.Contains(t, body, "<strong>답변</strong>")
	assert.Contains(t, body, "오전 09:30")
	assert.Contains(t, body, `data-revision="3"`)

	// 重新渲染不会再次访问远端服务，也不会改变 revision
	w = app.do(httptest.NewRequest(http.MethodGet, location, nil))
	assert.Contains(t, w.Body.String(), `data-revision="3"`)
	assert.Zero(t, app.chatAPI.historyCalls.Load())
}

func TestChatSubmitRejectsEmpty(t *testing.T) {
	app := newTestApp(t)
	viewID := app.mount(t, "/chat/s1")

	req := httptest.NewRequest(http.MethodPost, "/chat/s1/views/"+viewID+"/messages", strings.NewReader(`{"question":"  "}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	w := app.do(req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestChatSubmitConflictWhilePending(t *testing.T) {
	app := newTestApp(t)
	app.chatAPI.block = make(chan struct{})
	app.chatAPI.entered = make(chan struct{}, 1)
	viewID := app.mount(t, "/chat/s1")
	path := "/chat/s1/views/" + viewID + "/messages"

	done := make(chan int, 1)
	go func() {
		done <- app.do(postForm(path, url.Values{"question": {"first"}})).Code
	}()
	<-app.chatAPI.entered

	w := app.do(postForm(path, url.Values{"question": {"second"}}))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `value="second"`)
	assert.Contains(t, w.Body.String(), "이전 질문에 대한 답변을 기다리는 중입니다.")

	close(app.chatAPI.block)
	assert.Equal(t, http.StatusSeeOther, <-done)
}

func TestChatUnknownViewRedirectsToMount(t *testing.T) {
	app := newTestApp(t)
	w := app.do(httptest.NewRequest(http.MethodGet, "/chat/s1/views/missing", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/chat/s1", w.Header().Get("Location"))
}

func TestNewSessionRedirect(t *testing.T) {
	app := newTestApp(t)
	w := app.do(httptest.NewRequest(http.MethodGet, "/chat?session_name=%EB%B0%B0%EC%B6%94", nil))
	require.Equal(t, http.StatusSeeOther, w.Code)
	loc := w.Header().Get("Location")
	assert.True(t, strings.HasPrefix(loc, "/chat/"))
	assert.True(t, strings.HasSuffix(loc, "?session_name=%EB%B0%B0%EC%B6%94"))
}

func TestChatMountLoggedInLoadsHistory(t *testing.T) {
	app := newTestApp(t)
	app.chatAPI.history = []model.HistoryRecord{{Question: "Q1", Answer: "A1", Timestamp: "2024-05-01T00:30:00.000Z"}}
	cookie := app.login(t)

	w := app.do(httptest.NewRequest(http.MethodGet, "/chat/s1", nil), cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Q1")
	assert.Contains(t, w.Body.String(), `data-revision="3"`)
	assert.Equal(t, int32(1), app.chatAPI.historyCalls.Load())

	w = app.do(httptest.NewRequest(http.MethodGet, "/", nil), cookie)
	assert.Contains(t, w.Body.String(), `href="/chat/s1?session_name="`)
}

func multipartPost(t *testing.T, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/community/posts/new", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestPostSubmitShowsAckAndNavigates(t *testing.T) {
	app := newTestApp(t)
	req := multipartPost(t, map[string]string{"title": "T", "content": "C", "post_type": "sell"})
	w := app.do(req, &http.Cookie{Name: "csrftoken", Value: "tok"}, &http.Cookie{Name: "sessionid", Value: "sid"})

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "글 작성 성공")
	assert.Equal(t, "tok", app.community.cred.CSRFToken)
	assert.Len(t, app.community.cred.Cookies, 2)
	assert.Equal(t, community.CreatePostRequest{Title: "T", Content: "C", PostType: model.PostTypeSell}, app.community.req)

	modalID := match(t, modalIDPattern, body)
	w = app.do(httptest.NewRequest(http.MethodPost, "/ui/modals/"+modalID+"/confirm", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/post/42", w.Header().Get("Location"))

	// 对话框只能使用一次
	w = app.do(httptest.NewRequest(http.MethodPost, "/ui/modals/"+modalID+"/confirm", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestPostSubmitFailureKeepsForm(t *testing.T) {
	app := newTestApp(t)
	app.community.err = &community.StatusError{StatusCode: 500, Body: "boom"}

	w := app.do(multipartPost(t, map[string]string{"title": "사과", "content": "10kg", "post_type": "exchange"}))
	require.Equal(t, http.StatusBadGateway, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, `value="사과"`)
	assert.Contains(t, body, "10kg")
	assert.Contains(t, body, `value="exchange" checked`)
	assert.Contains(t, body, "글 작성에 실패했습니다.")

	// 重新打开页面仍然是保留的草稿
	w = app.do(httptest.NewRequest(http.MethodGet, "/community/posts/new", nil))
	assert.Contains(t, w.Body.String(), `value="사과"`)
}

func TestPostNewQueryTypeAndBack(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/community/posts/new?post_type=exchange", nil)
	req.Header.Set("Referer", "http://example.com/community?tab=3")
	w := app.do(req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `value="exchange" checked`)

	w = app.do(httptest.NewRequest(http.MethodPost, "/community/posts/new/back", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/community?tab=3", w.Header().Get("Location"))

	w = app.do(httptest.NewRequest(http.MethodGet, "/community/posts/new", nil))
	assert.Contains(t, w.Body.String(), `value="buy" checked`)
}

func TestPostNewIgnoresForeignReferer(t *testing.T) {
	app := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/community/posts/new", nil)
	req.Header.Set("Referer", "http://evil.test/phish")
	require.Equal(t, http.StatusOK, app.do(req).Code)

	w := app.do(httptest.NewRequest(http.MethodPost, "/community/posts/new/back", nil))
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestLoginFailures(t *testing.T) {
	app := newTestApp(t)
	w := app.do(postForm("/login", url.Values{"username": {"nobody"}, "password": {"x"}}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `value="nobody"`)

	w = app.do(postForm("/login", url.Values{"username": {"nobody"}}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	app.login(t)
	w = app.do(postForm("/register", url.Values{"username": {"farmer"}, "password": {"again"}}))
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLoginRedirectsToNext(t *testing.T) {
	app := newTestApp(t)
	app.do(postForm("/register", url.Values{"username": {"farmer"}, "password": {"pw1234"}}))

	w := app.do(postForm("/login", url.Values{"username": {"farmer"}, "password": {"pw1234"}, "next": {"/chatlist"}}))
	assert.Equal(t, "/chatlist", w.Header().Get("Location"))

	w = app.do(postForm("/login", url.Values{"username": {"farmer"}, "password": {"pw1234"}, "next": {"https://evil.test/"}}))
	assert.Equal(t, "/", w.Header().Get("Location"))
}

func TestChatListDeleteGoesThroughModal(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t)
	app.mount(t, "/chat/s1?session_name=%EA%B0%90%EC%9E%90", cookie)

	w := app.do(httptest.NewRequest(http.MethodGet, "/chatlist", nil))
	assert.Equal(t, http.StatusSeeOther, w.Code, "guests are sent to login")

	w = app.do(httptest.NewRequest(http.MethodGet, "/chatlist", nil), cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "감자")

	openModal := func() string {
		w := app.do(httptest.NewRequest(http.MethodPost, "/chatlist/s1/delete", nil), cookie)
		require.Equal(t, http.StatusSeeOther, w.Code)
		w = app.do(httptest.NewRequest(http.MethodGet, w.Header().Get("Location"), nil), cookie)
		require.Contains(t, w.Body.String(), "Delete Confirmation")
		return match(t, modalIDPattern, w.Body.String())
	}

	// 关闭不删除
	w = app.do(httptest.NewRequest(http.MethodPost, "/ui/modals/"+openModal()+"/close", nil), cookie)
	assert.Equal(t, "/chatlist", w.Header().Get("Location"))
	list, err := app.sessions.ListByUser(1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	// 点击遮罩同样不删除
	w = app.do(httptest.NewRequest(http.MethodPost, "/ui/modals/"+openModal()+"/dismiss", nil), cookie)
	assert.Equal(t, "/chatlist", w.Header().Get("Location"))

	w = app.do(httptest.NewRequest(http.MethodPost, "/ui/modals/"+openModal()+"/confirm", nil), cookie)
	assert.Equal(t, "/chatlist?deleted=1", w.Header().Get("Location"))
	list, err = app.sessions.ListByUser(1)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestModalBelongsToClient(t *testing.T) {
	app := newTestApp(t)
	w := app.do(multipartPost(t, map[string]string{"title": "T", "content": "C", "post_type": "buy"}))
	modalID := match(t, modalIDPattern, w.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/ui/modals/"+modalID+"/confirm", nil)
	req.AddCookie(&http.Cookie{Name: middleware.ClientCookieName, Value: "someone-else"})
	other := httptest.NewRecorder()
	app.router.ServeHTTP(other, req)
	assert.Equal(t, http.StatusNotFound, other.Code)
}
