package ui

import (
	"agrichat-web/internal/config"
	"agrichat-web/internal/model"
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPresenter(t *testing.T, window int) *Presenter {
	t.Helper()
	p, err := NewPresenter(
		config.UIConfig{Timezone: "Asia/Seoul", RenderWindow: window, AssistantIcon: "/static/assistant.svg", UserIcon: "/static/user.svg"},
		config.ChatConfig{Title: "농업 GPT", LoadingText: "답변을 불러오는 중입니다."},
	)
	require.NoError(t, err)
	return p
}

func TestPresenterTurnRendering(t *testing.T) {
	p := newTestPresenter(t, 0)

	user := p.Turn(model.ChatTurn{IsFromUser: true, Text: "<b>hi</b>", Timestamp: "2024-05-01T00:30:00.000Z"})
	assert.Equal(t, "/static/user.svg", user.Icon)
	assert.Empty(t, user.HTML)
	assert.Equal(t, "오전 09:30", user.TimeLabel)

	html, err := p.RenderTurn(model.ChatTurn{IsFromUser: true, Text: "<b>hi</b>"})
	require.NoError(t, err)
	assert.Contains(t, html, "&lt;b&gt;hi&lt;/b&gt;")

	html, err = p.RenderTurn(model.ChatTurn{Text: "**굵게**"})
	require.NoError(t, err)
	assert.Contains(t, html, "<strong>굵게</strong>")
	assert.Contains(t, html, "/static/assistant.svg")
}

func TestPresenterRenderWindow(t *testing.T) {
	view := &model.ChatView{ID: "v1", Session: model.ChatSessionRef{SessionID: "s1"}}
	for i := 0; i < 7; i++ {
		view.Turns = append(view.Turns, model.ChatTurn{IsFromUser: i%2 == 1, Text: fmt.Sprintf("t%d", i)})
	}

	page := newTestPresenter(t, 3).ChatPage(view)
	assert.Len(t, page.Turns, 3)
	assert.Equal(t, 4, page.HiddenTurns)
	assert.Equal(t, "t4", page.Turns[0].Text)
	assert.Equal(t, 7, page.Revision)
	assert.Len(t, view.Turns, 7)

	page = newTestPresenter(t, 0).ChatPage(view)
	assert.Len(t, page.Turns, 7)
	assert.Zero(t, page.HiddenTurns)
}

func TestChatPageTemplate(t *testing.T) {
	p := newTestPresenter(t, 0)
	view := &model.ChatView{
		ID:      "v1",
		Session: model.ChatSessionRef{SessionID: "s1", SessionName: "감자"},
		Turns:   []model.ChatTurn{{Text: "안녕하세요"}},
		Waiting: true,
	}
	var buf bytes.Buffer
	require.NoError(t, p.Templates().ExecuteTemplate(&buf, "chat.html", p.ChatPage(view)))
	out := buf.String()
	assert.Contains(t, out, `data-revision="1"`)
	assert.Contains(t, out, "/chat/s1/views/v1/messages")
	assert.Contains(t, out, "답변을 불러오는 중입니다.")
	assert.NotContains(t, out, `id="loading" hidden`)
}

func TestPageTemplatesRenderWithoutModal(t *testing.T) {
	p := newTestPresenter(t, 0)
	base := Page{Title: "농업 GPT"}
	cases := map[string]interface{}{
		"home.html":       HomePage{Page: base},
		"chatlist.html":   ChatListPage{Page: base},
		"write_post.html": WritePostPage{Page: base, Draft: model.NewPostDraft("d1", "c1")},
		"login.html":      AuthPage{Page: base},
		"register.html":   AuthPage{Page: base},
		"message.html":    base,
	}
	for name, data := range cases {
		var buf bytes.Buffer
		require.NoError(t, p.Templates().ExecuteTemplate(&buf, name, data), name)
		assert.NotContains(t, buf.String(), "modal-root", name)
	}
}
