package model

import (
	"strconv"
	"time"
)

// User 对应于数据库中的 'users' 表。
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Password  string    `gorm:"type:varchar(255);not null" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (User) TableName() string {
	return "users"
}

// ChatSession 记录用户打开过的聊天会话，供会话列表页面使用。
type ChatSession struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"uniqueIndex:idx_user_session;not null" json:"userId"`
	SessionID    string    `gorm:"type:varchar(128);uniqueIndex:idx_user_session;not null" json:"sessionId"`
	Name         string    `gorm:"type:varchar(255)" json:"name"`
	LastOpenedAt time.Time `gorm:"index" json:"lastOpenedAt"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}

// FormatUserID 将数字用户 ID 转为会话上下文中使用的字符串形式。
func FormatUserID(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// ParseUserID 是 FormatUserID 的逆操作。
func ParseUserID(s string) (uint, bool) {
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
