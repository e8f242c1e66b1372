// Package service 包含了应用的业务逻辑层。
package service

import (
	"agrichat-web/internal/config"
	"agrichat-web/internal/model"
	"agrichat-web/internal/repository"
	"agrichat-web/internal/session"
	"agrichat-web/pkg/chatapi"
	"agrichat-web/pkg/events"
	"agrichat-web/pkg/log"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrEmptyQuestion 表示提交的问题为空。
	ErrEmptyQuestion = errors.New("question is empty")
	// ErrReplyPending 表示同一会话仍有未完成的请求。
	ErrReplyPending = errors.New("a reply is still pending for this session")
)

// ChatService 定义了聊天页面的业务操作。
type ChatService interface {
	// Mount 为一次页面挂载创建新视图。已登录时拉取历史记录，失败时只保留问候语。
	Mount(ctx context.Context, sc session.Context) (*model.ChatView, error)
	// View 返回已存储的视图，不访问远端服务。
	View(ctx context.Context, sc session.Context, viewID string) (*model.ChatView, error)
	// Submit 发送一个问题并等待回答落定，返回落定后的视图。
	Submit(ctx context.Context, sc session.Context, viewID, question string) (*model.ChatView, error)
	// Subscribe 订阅视图变化，调用返回的函数取消订阅。
	Subscribe(viewID string) (<-chan model.ViewEvent, func())
}

type chatService struct {
	cfg       config.ChatConfig
	chatAPI   chatapi.Client
	viewRepo  repository.ChatViewRepository
	sessions  repository.ChatSessionRepository
	store     session.Store
	publisher events.Publisher
	hub       *viewHub
	now       func() time.Time
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	cfg config.ChatConfig,
	chatAPI chatapi.Client,
	viewRepo repository.ChatViewRepository,
	sessions repository.ChatSessionRepository,
	store session.Store,
	publisher events.Publisher,
) ChatService {
	return &chatService{
		cfg:       cfg,
		chatAPI:   chatAPI,
		viewRepo:  viewRepo,
		sessions:  sessions,
		store:     store,
		publisher: publisher,
		hub:       newViewHub(),
		now:       time.Now,
	}
}

func (s *chatService) greeting() model.ChatTurn {
	return model.NewAssistantTurn(s.cfg.Greeting, model.ISOTimestamp(s.now()))
}

func (s *chatService) Mount(ctx context.Context, sc session.Context) (*model.ChatView, error) {
	view := &model.ChatView{
		ID:        uuid.NewString(),
		ClientID:  sc.ClientID,
		Session:   sc.Ref(),
		UserID:    sc.UserID,
		CreatedAt: s.now(),
	}
	greeting := s.greeting()

	if sc.LoggedIn() {
		s.rememberSession(ctx, sc)
		records, err := s.chatAPI.FetchHistory(ctx, sc.SessionID)
		if err != nil {
			log.Errorf("[ChatService] 获取历史记录失败, sessionID: %s, error: %v", sc.SessionID, err)
			view.Turns = []model.ChatTurn{greeting}
		} else {
			view.Turns = model.TurnsFromHistory(greeting, records)
		}
	} else {
		view.Turns = []model.ChatTurn{greeting}
	}

	if err := s.viewRepo.Create(ctx, view); err != nil {
		return nil, fmt.Errorf("创建聊天视图失败: %w", err)
	}
	log.Infow("聊天视图已创建", "viewID", view.ID, "sessionID", sc.SessionID, "loggedIn", sc.LoggedIn(), "turns", len(view.Turns))
	return view, nil
}

// rememberSession 记住会话供其他页面复用，并写入用户的会话列表。两者都只记录错误。
func (s *chatService) rememberSession(ctx context.Context, sc session.Context) {
	if err := s.store.Remember(ctx, sc.ClientID, sc.Ref()); err != nil {
		log.Errorf("[ChatService] 保存会话信息失败, clientID: %s, error: %v", sc.ClientID, err)
	}
	userID, ok := model.ParseUserID(sc.UserID)
	if !ok {
		return
	}
	if err := s.sessions.Touch(userID, sc.Ref(), s.now()); err != nil {
		log.Errorf("[ChatService] 更新会话列表失败, userID: %d, error: %v", userID, err)
	}
}

func (s *chatService) View(ctx context.Context, sc session.Context, viewID string) (*model.ChatView, error) {
	view, err := s.viewRepo.Get(ctx, viewID)
	if err != nil {
		return nil, err
	}
	if view.ClientID != sc.ClientID || view.Session.SessionID != sc.SessionID {
		return nil, repository.ErrViewNotFound
	}
	return view, nil
}

func (s *chatService) Submit(ctx context.Context, sc session.Context, viewID, question string) (*model.ChatView, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	view, err := s.View(ctx, sc, viewID)
	if err != nil {
		return nil, err
	}

	sessionID := view.Session.SessionID
	holder := uuid.NewString()
	acquired, err := s.viewRepo.AcquireInFlight(ctx, sessionID, holder, s.cfg.InFlightTTL())
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, ErrReplyPending
	}

	// 请求被取消后仍需完成消息落定和槽位释放
	settleCtx := context.WithoutCancel(ctx)
	released := false
	release := func() {
		if released {
			return
		}
		released = true
		if err := s.viewRepo.ReleaseInFlight(settleCtx, sessionID, holder); err != nil {
			log.Errorf("[ChatService] 释放会话槽位失败, sessionID: %s, error: %v", sessionID, err)
		}
	}
	defer release()

	if err := s.appendTurn(settleCtx, viewID, model.NewUserTurn(question, s.now())); err != nil {
		return nil, err
	}

	req := model.SendRequest{
		Question:    question,
		SessionID:   sessionID,
		SessionName: view.Session.SessionName,
	}
	if sc.LoggedIn() {
		userID := sc.UserID
		req.UserID = &userID
	}

	start := s.now()
	answer, failed, err := s.exchange(ctx, settleCtx, viewID, req)
	// 回答落定后立即释放槽位，事件发布不占用会话
	release()
	if err != nil {
		return nil, err
	}
	s.publishSettled(settleCtx, sc, req, answer, failed, s.now().Sub(start))

	return s.viewRepo.Get(settleCtx, viewID)
}

// exchange 在等待状态下完成一次问答并追加回答。无论成功与否，返回前都会清除等待状态。
func (s *chatService) exchange(ctx, settleCtx context.Context, viewID string, req model.SendRequest) (answer model.ChatTurn, failed bool, err error) {
	s.setWaiting(settleCtx, viewID, true)
	defer s.setWaiting(settleCtx, viewID, false)

	resp, sendErr := s.chatAPI.Send(ctx, req)
	if sendErr != nil {
		log.Errorf("[ChatService] 发送问题失败, sessionID: %s, error: %v", req.SessionID, sendErr)
		failed = true
		answer = model.NewAssistantTurn(s.cfg.ErrorText, model.ISOTimestamp(s.now()))
	} else {
		ts := resp.Timestamp
		if ts == "" {
			ts = model.ISOTimestamp(s.now())
		}
		answer = model.NewAssistantTurn(resp.Answer, ts)
	}
	err = s.appendTurn(settleCtx, viewID, answer)
	return answer, failed, err
}

func (s *chatService) appendTurn(ctx context.Context, viewID string, turn model.ChatTurn) error {
	revision, err := s.viewRepo.AppendTurn(ctx, viewID, turn)
	if err != nil {
		return fmt.Errorf("追加消息失败: %w", err)
	}
	t := turn
	s.hub.publish(model.ViewEvent{Type: model.ViewEventTurn, ViewID: viewID, Turn: &t, Revision: revision})
	return nil
}

func (s *chatService) setWaiting(ctx context.Context, viewID string, waiting bool) {
	if err := s.viewRepo.SetWaiting(ctx, viewID, waiting); err != nil {
		log.Errorf("[ChatService] 更新等待状态失败, viewID: %s, error: %v", viewID, err)
	}
	s.hub.publish(model.ViewEvent{Type: model.ViewEventWaiting, ViewID: viewID, Waiting: waiting})
}

func (s *chatService) publishSettled(ctx context.Context, sc session.Context, req model.SendRequest, answer model.ChatTurn, failed bool, latency time.Duration) {
	payload := events.ChatExchangeSettled{
		SessionID:   req.SessionID,
		SessionName: req.SessionName,
		UserID:      sc.UserID,
		Question:    req.Question,
		Answer:      answer.Text,
		Failed:      failed,
		LatencyMs:   latency.Milliseconds(),
	}
	ctx, cancel := context.WithTimeout(ctx, events.PublishTimeout)
	defer cancel()
	if err := s.publisher.Publish(ctx, req.SessionID, events.New(events.TypeChatExchangeSettled, payload)); err != nil {
		log.Warnf("发布聊天事件失败, sessionID: %s, error: %v", req.SessionID, err)
	}
}

func (s *chatService) Subscribe(viewID string) (<-chan model.ViewEvent, func()) {
	return s.hub.subscribe(viewID)
}
