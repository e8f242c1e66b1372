package ui

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingActions struct {
	confirms int
	closes   int
}

func (a *countingActions) OnConfirm(context.Context) (string, error) {
	a.confirms++
	return "/confirmed", nil
}

func (a *countingActions) CloseModal(context.Context) (string, error) {
	a.closes++
	return "/closed", nil
}

type dismissActions struct {
	countingActions
	dismissed int
}

func (a *dismissActions) OnRequestClose(context.Context) (string, error) {
	a.dismissed++
	return "/dismissed", nil
}

func TestModalDefaultColors(t *testing.T) {
	m := NewConfirmModal("m1", true, &countingActions{}, WithTitle("Delete Confirmation"))
	html := string(m.Render())

	for _, want := range []string{"#4aaa87", "#3b8b6d", "#e53e3e", "#c53030", "확인", "닫기", "Delete Confirmation"} {
		assert.Contains(t, html, want)
	}
	assert.Contains(t, html, "/ui/modals/m1/confirm")
	assert.Contains(t, html, "/ui/modals/m1/close")
	assert.Contains(t, html, "/ui/modals/m1/dismiss")
}

func TestModalOptionsOverrideDefaults(t *testing.T) {
	cfg := NewModalConfig(
		WithContent("정말 삭제할까요?"),
		WithConfirmText("삭제"),
		WithCancelText("취소"),
		WithConfirmColors("#000000", "#111111"),
		WithCancelColors("#222222", "#333333"),
	)
	assert.Equal(t, ModalConfig{
		Content:           "정말 삭제할까요?",
		ConfirmText:       "삭제",
		CancelText:        "취소",
		ConfirmColor:      "#000000",
		ConfirmHoverColor: "#111111",
		CancelColor:       "#222222",
		CancelHoverColor:  "#333333",
	}, cfg)
}

func TestModalClosedRendersNothing(t *testing.T) {
	m := NewConfirmModal("m1", false, &countingActions{})
	assert.Empty(t, m.Render())

	var nilModal *ConfirmModal
	assert.Empty(t, nilModal.Render())
}

func TestModalRenderEscapesContent(t *testing.T) {
	m := NewConfirmModal("m1", true, &countingActions{}, WithContent("<script>alert(1)</script>"))
	html := string(m.Render())
	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestModalConfirmCallsOnlyOnConfirm(t *testing.T) {
	actions := &countingActions{}
	m := NewConfirmModal("m1", true, actions)

	to, err := m.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/confirmed", to)
	assert.Equal(t, 1, actions.confirms)
	assert.Zero(t, actions.closes)
}

func TestModalCloseAndRequestClose(t *testing.T) {
	actions := &countingActions{}
	m := NewConfirmModal("m1", true, actions)

	to, err := m.Close(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/closed", to)

	// 未实现 RequestCloser 时回退到 CloseModal
	to, err = m.RequestClose(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/closed", to)
	assert.Equal(t, 2, actions.closes)
	assert.Zero(t, actions.confirms)

	withDismiss := &dismissActions{}
	m = NewConfirmModal("m2", true, withDismiss)
	to, err = m.RequestClose(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/dismissed", to)
	assert.Equal(t, 1, withDismiss.dismissed)
	assert.Zero(t, withDismiss.closes)
}

func TestModalFuncs(t *testing.T) {
	m := NewConfirmModal("m1", true, ModalFuncs{Confirm: Redirect("/post/42"), Close: Redirect("/")})
	to, err := m.Confirm(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/post/42", to)
	to, err = m.Close(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/", to)
}

func TestRegistryTakeOnce(t *testing.T) {
	r := NewRegistry(time.Minute)
	m := r.Open("c1", &countingActions{}, WithTitle("t"))
	assert.True(t, m.IsOpen)
	assert.NotEmpty(t, m.ID)

	_, err := r.Get(m.ID, "c2")
	assert.ErrorIs(t, err, ErrModalNotFound)
	got, err := r.Get(m.ID, "c1")
	require.NoError(t, err)
	assert.Same(t, m, got)

	_, err = r.Take(m.ID, "c2")
	assert.ErrorIs(t, err, ErrModalNotFound)
	got, err = r.Take(m.ID, "c1")
	require.NoError(t, err)
	assert.Same(t, m, got)

	_, err = r.Take(m.ID, "c1")
	assert.ErrorIs(t, err, ErrModalNotFound)
}

func TestRegistryExpiry(t *testing.T) {
	r := NewRegistry(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	old := r.Open("c1", &countingActions{})
	now = now.Add(2 * time.Minute)

	_, err := r.Get(old.ID, "c1")
	assert.ErrorIs(t, err, ErrModalNotFound)

	// 打开新对话框时清理过期项
	r.Open("c1", &countingActions{})
	assert.Equal(t, 1, r.Len())
	_, err = r.Take(old.ID, "c1")
	assert.ErrorIs(t, err, ErrModalNotFound)
}

func TestTimeLabel(t *testing.T) {
	seoul := time.FixedZone("KST", 9*3600)
	assert.Equal(t, "오전 09:30", TimeLabel("2024-05-01T00:30:00.000Z", seoul))
	assert.Equal(t, "오후 03:04", TimeLabel("2024-05-01T06:04:00Z", seoul))
	assert.Equal(t, "오후 12:00", TimeLabel("2024-05-01T03:00:00Z", seoul))
	assert.Equal(t, "오전 12:15", TimeLabel("2024-04-30T15:15:00Z", seoul))
	assert.Equal(t, "", TimeLabel("garbage", seoul))
}

func TestMarkupSanitizes(t *testing.T) {
	m := NewMarkup()
	out := string(m.Render("**감자**는\n<script>alert(1)</script>"))
	assert.Contains(t, out, "<strong>감자</strong>")
	assert.False(t, strings.Contains(out, "<script>"))
}

func TestMarkupKeepsSafeHTML(t *testing.T) {
	m := NewMarkup()

	out := string(m.Render("<p>답변입니다</p>"))
	assert.Contains(t, out, "<p>답변입니다</p>")

	out = string(m.Render("첫 줄<br>둘째 줄"))
	assert.Contains(t, out, "첫 줄<br")
	assert.Contains(t, out, "둘째 줄")

	out = string(m.Render("<b>굵게</b> 텍스트"))
	assert.Contains(t, out, "<b>굵게</b> 텍스트")

	out = string(m.Render("<div>안내</div>\n<script>alert(1)</script>\n<img src=x onerror=alert(1)>"))
	assert.Contains(t, out, "안내")
	assert.NotContains(t, out, "<script")
	assert.NotContains(t, out, "onerror")
}
