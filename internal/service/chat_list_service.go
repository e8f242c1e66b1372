package service

import (
	"agrichat-web/internal/model"
	"agrichat-web/internal/repository"
	"agrichat-web/internal/session"
	"agrichat-web/pkg/log"
	"context"
	"errors"
)

// ErrLoginRequired 表示操作需要登录。
var ErrLoginRequired = errors.New("login required")

// ChatList 是会话列表页面的数据。
type ChatList struct {
	Sessions []model.ChatSession
	// Last 是当前客户端最近打开的会话，列表中会高亮显示
	Last    model.ChatSessionRef
	HasLast bool
}

// ChatListService 定义了会话列表的业务操作。
type ChatListService interface {
	List(ctx context.Context, sc session.Context) (*ChatList, error)
	Delete(ctx context.Context, sc session.Context, sessionID string) error
}

type chatListService struct {
	sessions repository.ChatSessionRepository
	store    session.Store
}

// NewChatListService 创建一个新的 ChatListService 实例。
func NewChatListService(sessions repository.ChatSessionRepository, store session.Store) ChatListService {
	return &chatListService{sessions: sessions, store: store}
}

func (s *chatListService) List(ctx context.Context, sc session.Context) (*ChatList, error) {
	userID, ok := model.ParseUserID(sc.UserID)
	if !ok {
		return nil, ErrLoginRequired
	}
	sessions, err := s.sessions.ListByUser(userID)
	if err != nil {
		return nil, err
	}
	list := &ChatList{Sessions: sessions}
	last, ok, err := s.store.Last(ctx, sc.ClientID)
	if err != nil {
		log.Warnf("读取最近会话失败, clientID: %s, error: %v", sc.ClientID, err)
	} else if ok {
		list.Last, list.HasLast = last, true
	}
	return list, nil
}

func (s *chatListService) Delete(_ context.Context, sc session.Context, sessionID string) error {
	userID, ok := model.ParseUserID(sc.UserID)
	if !ok {
		return ErrLoginRequired
	}
	if err := s.sessions.Delete(userID, sessionID); err != nil {
		return err
	}
	log.Infof("[ChatListService] 会话已删除, userID: %d, sessionID: %s", userID, sessionID)
	return nil
}
