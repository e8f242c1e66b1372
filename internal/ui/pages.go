package ui

import "agrichat-web/internal/model"

// Page 是所有页面共用的字段。
type Page struct {
	Title    string
	LoggedIn bool
	Username string
	Notice   string
	Modal    *ConfirmModal
}

// HomePage 是首页数据，LastSession* 来自会话存储。
type HomePage struct {
	Page
	LastSessionID   string
	LastSessionName string
}

// ChatListPage 是会话列表页面数据。
type ChatListPage struct {
	Page
	Sessions []model.ChatSession
	Last     model.ChatSessionRef
	HasLast  bool
}

// WritePostPage 是发帖页面数据。
type WritePostPage struct {
	Page
	Draft *model.PostDraft
}

// AuthPage 是登录和注册页面数据。
type AuthPage struct {
	Page
	FormUsername string
	Next         string
}
