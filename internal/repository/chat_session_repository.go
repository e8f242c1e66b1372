package repository

import (
	"agrichat-web/internal/model"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChatSessionRepository 维护用户打开过的聊天会话列表。
type ChatSessionRepository interface {
	// Touch 记录一次会话打开；已存在时更新名称（非空时）和最后打开时间。
	Touch(userID uint, ref model.ChatSessionRef, openedAt time.Time) error
	// ListByUser 按最后打开时间倒序返回会话。
	ListByUser(userID uint) ([]model.ChatSession, error)
	Delete(userID uint, sessionID string) error
}

type chatSessionRepository struct {
	db *gorm.DB
}

// NewChatSessionRepository 创建一个 GORM 实现的 ChatSessionRepository。
func NewChatSessionRepository(db *gorm.DB) ChatSessionRepository {
	return &chatSessionRepository{db: db}
}

func (r *chatSessionRepository) Touch(userID uint, ref model.ChatSessionRef, openedAt time.Time) error {
	session := model.ChatSession{
		UserID:       userID,
		SessionID:    ref.SessionID,
		Name:         ref.SessionName,
		LastOpenedAt: openedAt,
	}
	updates := []string{"last_opened_at"}
	if ref.SessionName != "" {
		updates = append(updates, "name")
	}
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "session_id"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&session).Error
}

func (r *chatSessionRepository) ListByUser(userID uint) ([]model.ChatSession, error) {
	var sessions []model.ChatSession
	err := r.db.Where("user_id = ?", userID).Order("last_opened_at DESC").Find(&sessions).Error
	return sessions, err
}

func (r *chatSessionRepository) Delete(userID uint, sessionID string) error {
	result := r.db.Where("user_id = ? AND session_id = ?", userID, sessionID).Delete(&model.ChatSession{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrChatSessionNotFound
	}
	return nil
}

type memoryChatSessionRepository struct {
	mu       sync.Mutex
	nextID   uint
	sessions map[uint]map[string]model.ChatSession
}

// NewMemoryChatSessionRepository 返回一个进程内的 ChatSessionRepository。
func NewMemoryChatSessionRepository() ChatSessionRepository {
	return &memoryChatSessionRepository{sessions: make(map[uint]map[string]model.ChatSession)}
}

func (r *memoryChatSessionRepository) Touch(userID uint, ref model.ChatSessionRef, openedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	byID, ok := r.sessions[userID]
	if !ok {
		byID = make(map[string]model.ChatSession)
		r.sessions[userID] = byID
	}
	s, ok := byID[ref.SessionID]
	if !ok {
		r.nextID++
		s = model.ChatSession{ID: r.nextID, UserID: userID, SessionID: ref.SessionID, CreatedAt: openedAt}
	}
	if ref.SessionName != "" {
		s.Name = ref.SessionName
	}
	s.LastOpenedAt = openedAt
	byID[ref.SessionID] = s
	return nil
}

func (r *memoryChatSessionRepository) ListByUser(userID uint) ([]model.ChatSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := make([]model.ChatSession, 0, len(r.sessions[userID]))
	for _, s := range r.sessions[userID] {
		list = append(list, s)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].LastOpenedAt.After(list[j].LastOpenedAt)
	})
	return list, nil
}

func (r *memoryChatSessionRepository) Delete(userID uint, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[userID][sessionID]; !ok {
		return ErrChatSessionNotFound
	}
	delete(r.sessions[userID], sessionID)
	return nil
}
