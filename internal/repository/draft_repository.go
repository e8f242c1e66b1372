package repository

import (
	"agrichat-web/internal/model"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// DraftRepository 按客户端保存未提交的帖子草稿。每个客户端最多一份草稿。
type DraftRepository interface {
	Get(ctx context.Context, clientID string) (*model.PostDraft, error)
	Save(ctx context.Context, draft *model.PostDraft) error
	Delete(ctx context.Context, clientID string) error
}

type redisDraftRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewDraftRepository 创建一个基于 Redis 的 DraftRepository。
func NewDraftRepository(redisClient *redis.Client, ttl time.Duration) DraftRepository {
	return &redisDraftRepository{redisClient: redisClient, ttl: ttl}
}

func draftKey(clientID string) string {
	return fmt.Sprintf("post:draft:%s", clientID)
}

func (r *redisDraftRepository) Get(ctx context.Context, clientID string) (*model.PostDraft, error) {
	val, err := r.redisClient.Get(ctx, draftKey(clientID)).Result()
	if err == redis.Nil {
		return nil, ErrDraftNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get draft: %w", err)
	}
	var draft model.PostDraft
	if err := json.Unmarshal([]byte(val), &draft); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draft: %w", err)
	}
	return &draft, nil
}

func (r *redisDraftRepository) Save(ctx context.Context, draft *model.PostDraft) error {
	b, err := json.Marshal(draft)
	if err != nil {
		return fmt.Errorf("failed to marshal draft: %w", err)
	}
	if err := r.redisClient.Set(ctx, draftKey(draft.ClientID), b, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save draft: %w", err)
	}
	return nil
}

func (r *redisDraftRepository) Delete(ctx context.Context, clientID string) error {
	if err := r.redisClient.Del(ctx, draftKey(clientID)).Err(); err != nil {
		return fmt.Errorf("failed to delete draft: %w", err)
	}
	return nil
}

type memoryDraftRepository struct {
	mu     sync.Mutex
	drafts map[string]model.PostDraft
}

// NewMemoryDraftRepository 返回一个进程内的 DraftRepository。
func NewMemoryDraftRepository() DraftRepository {
	return &memoryDraftRepository{drafts: make(map[string]model.PostDraft)}
}

func (r *memoryDraftRepository) Get(_ context.Context, clientID string) (*model.PostDraft, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.drafts[clientID]
	if !ok {
		return nil, ErrDraftNotFound
	}
	if d.Image != nil {
		img := *d.Image
		d.Image = &img
	}
	return &d, nil
}

func (r *memoryDraftRepository) Save(_ context.Context, draft *model.PostDraft) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d := *draft
	if draft.Image != nil {
		img := *draft.Image
		d.Image = &img
	}
	r.drafts[draft.ClientID] = d
	return nil
}

func (r *memoryDraftRepository) Delete(_ context.Context, clientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, clientID)
	return nil
}
