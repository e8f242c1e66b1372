// Package repository 提供了数据访问层的实现。
package repository

import "errors"

var (
	// ErrViewNotFound 表示聊天视图不存在或已过期。
	ErrViewNotFound = errors.New("chat view not found")
	// ErrDraftNotFound 表示当前客户端没有保存的草稿。
	ErrDraftNotFound = errors.New("post draft not found")
	// ErrUserNotFound 表示用户不存在。
	ErrUserNotFound = errors.New("user not found")
	// ErrChatSessionNotFound 表示用户的会话记录不存在。
	ErrChatSessionNotFound = errors.New("chat session not found")
)
