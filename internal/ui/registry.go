package ui

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrModalNotFound 表示对话框不存在、已过期或不属于当前客户端。
var ErrModalNotFound = errors.New("modal not found")

type registryEntry struct {
	modal   *ConfirmModal
	owner   string
	expires time.Time
}

// Registry 保存已打开的对话框，供 /ui/modals/:id/* 路由调用其动作。
// 对话框只能被调用一次，调用后即被移除。
type Registry struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]registryEntry
	now     func() time.Time
}

// NewRegistry 创建一个对话框注册表，ttl 之后未被处理的对话框失效。
func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{ttl: ttl, entries: make(map[string]registryEntry), now: time.Now}
}

// Open 为 owner 打开并登记一个对话框。
func (r *Registry) Open(owner string, actions ModalActions, opts ...ModalOption) *ConfirmModal {
	modal := NewConfirmModal(uuid.NewString(), true, actions, opts...)

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	for id, e := range r.entries {
		if now.After(e.expires) {
			delete(r.entries, id)
		}
	}
	r.entries[modal.ID] = registryEntry{modal: modal, owner: owner, expires: now.Add(r.ttl)}
	return modal
}

// Get 返回仍然有效的对话框，不移除。
func (r *Registry) Get(id, owner string) (*ConfirmModal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.owner != owner || r.now().After(e.expires) {
		return nil, ErrModalNotFound
	}
	return e.modal, nil
}

// Take 取出并移除对话框。
func (r *Registry) Take(id, owner string) (*ConfirmModal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	if !ok || e.owner != owner {
		return nil, ErrModalNotFound
	}
	delete(r.entries, id)
	if r.now().After(e.expires) {
		return nil, ErrModalNotFound
	}
	return e.modal, nil
}

// Len 返回登记中的对话框数量（含已过期未清理的）。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
