package repository

import (
	"agrichat-web/internal/model"
	"context"
	"sync"
	"time"
)

type memoryChatViewRepository struct {
	mu       sync.Mutex
	views    map[string]*model.ChatView
	inFlight map[string]inFlightSlot
	now      func() time.Time
}

type inFlightSlot struct {
	holder  string
	expires time.Time
}

// NewMemoryChatViewRepository 返回一个进程内的 ChatViewRepository，用于本地开发和测试。
func NewMemoryChatViewRepository() ChatViewRepository {
	return &memoryChatViewRepository{
		views:    make(map[string]*model.ChatView),
		inFlight: make(map[string]inFlightSlot),
		now:      time.Now,
	}
}

func (r *memoryChatViewRepository) Create(_ context.Context, view *model.ChatView) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *view
	cp.Turns = append([]model.ChatTurn(nil), view.Turns...)
	cp.Waiting = false
	r.views[view.ID] = &cp
	return nil
}

func (r *memoryChatViewRepository) Get(_ context.Context, viewID string) (*model.ChatView, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[viewID]
	if !ok {
		return nil, ErrViewNotFound
	}
	cp := *v
	cp.Turns = append([]model.ChatTurn(nil), v.Turns...)
	return &cp, nil
}

func (r *memoryChatViewRepository) AppendTurn(_ context.Context, viewID string, turn model.ChatTurn) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[viewID]
	if !ok {
		return 0, ErrViewNotFound
	}
	v.Turns = append(v.Turns, turn)
	return len(v.Turns), nil
}

func (r *memoryChatViewRepository) SetWaiting(_ context.Context, viewID string, waiting bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[viewID]
	if !ok {
		return ErrViewNotFound
	}
	v.Waiting = waiting
	return nil
}

func (r *memoryChatViewRepository) AcquireInFlight(_ context.Context, sessionID, holder string, ttl time.Duration) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if slot, ok := r.inFlight[sessionID]; ok && now.Before(slot.expires) {
		return false, nil
	}
	r.inFlight[sessionID] = inFlightSlot{holder: holder, expires: now.Add(ttl)}
	return true, nil
}

func (r *memoryChatViewRepository) ReleaseInFlight(_ context.Context, sessionID, holder string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if slot, ok := r.inFlight[sessionID]; ok && slot.holder == holder {
		delete(r.inFlight, sessionID)
	}
	return nil
}
