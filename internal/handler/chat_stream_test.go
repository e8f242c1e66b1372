package handler

import (
	"agrichat-web/internal/middleware"
	"agrichat-web/internal/model"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialView(t *testing.T, server *httptest.Server, sessionID, viewID string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/chat/" + sessionID + "/views/" + viewID + "/ws"
	header := http.Header{}
	header.Add("Cookie", middleware.ClientCookieName+"=client-1")
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	require.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var ev wireEvent
	require.NoError(t, conn.ReadJSON(&ev))
	return ev
}

func TestStreamPushesSnapshotThenChanges(t *testing.T) {
	app := newTestApp(t)
	server := httptest.NewServer(app.router)
	defer server.Close()

	viewID := app.mount(t, "/chat/s1")
	conn := dialView(t, server, "s1", viewID)
	defer conn.Close()

	snapshot := readEvent(t, conn)
	assert.Equal(t, model.ViewEventSnapshot, snapshot.Type)
	assert.Equal(t, 1, snapshot.Revision)
	assert.False(t, snapshot.Waiting)
	assert.Contains(t, snapshot.HTML, "안녕하세요 무엇을 도와드릴까요?")
	assert.Contains(t, snapshot.HTML, `id="loading"`)

	w := app.do(postForm("/chat/s1/views/"+viewID+"/messages", url.Values{"question": {"감자"}}))
	require.Equal(t, http.StatusSeeOther, w.Code)

	userTurn := readEvent(t, conn)
	assert.Equal(t, model.ViewEventTurn, userTurn.Type)
	assert.Equal(t, 2, userTurn.Revision)
	assert.Contains(t, userTurn.HTML, "turn-user")

	waiting := readEvent(t, conn)
	assert.Equal(t, model.ViewEventWaiting, waiting.Type)
	assert.True(t, waiting.Waiting)

	answer := readEvent(t, conn)
	assert.Equal(t, model.ViewEventTurn, answer.Type)
	assert.Equal(t, 3, answer.Revision)
	assert.Contains(t, answer.HTML, "<strong>답변</strong>")

	settled := readEvent(t, conn)
	assert.Equal(t, model.ViewEventWaiting, settled.Type)
	assert.False(t, settled.Waiting)
}

func TestStreamRejectsUnknownView(t *testing.T) {
	app := newTestApp(t)
	server := httptest.NewServer(app.router)
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/chat/s1/views/missing/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
