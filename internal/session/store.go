package session

import (
	"agrichat-web/internal/model"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store 按客户端记忆最近打开的会话 ID 和名称，供其他页面复用。
type Store interface {
	Remember(ctx context.Context, clientID string, ref model.ChatSessionRef) error
	// Last 返回最近记住的会话，不存在时 ok 为 false。
	Last(ctx context.Context, clientID string) (ref model.ChatSessionRef, ok bool, err error)
}

type redisStore struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewRedisStore 创建一个基于 Redis 哈希的 Store。
func NewRedisStore(redisClient *redis.Client, ttl time.Duration) Store {
	return &redisStore{redisClient: redisClient, ttl: ttl}
}

func storeKey(clientID string) string {
	return fmt.Sprintf("client:%s:session", clientID)
}

func (s *redisStore) Remember(ctx context.Context, clientID string, ref model.ChatSessionRef) error {
	key := storeKey(clientID)
	pipe := s.redisClient.TxPipeline()
	pipe.HSet(ctx, key, "sessionId", ref.SessionID, "sessionName", ref.SessionName)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to remember session: %w", err)
	}
	return nil
}

func (s *redisStore) Last(ctx context.Context, clientID string) (model.ChatSessionRef, bool, error) {
	vals, err := s.redisClient.HGetAll(ctx, storeKey(clientID)).Result()
	if err != nil {
		return model.ChatSessionRef{}, false, fmt.Errorf("failed to read session: %w", err)
	}
	if vals["sessionId"] == "" {
		return model.ChatSessionRef{}, false, nil
	}
	return model.ChatSessionRef{SessionID: vals["sessionId"], SessionName: vals["sessionName"]}, true, nil
}

type memoryStore struct {
	mu   sync.RWMutex
	refs map[string]model.ChatSessionRef
}

// NewMemoryStore 返回一个进程内的 Store。
func NewMemoryStore() Store {
	return &memoryStore{refs: make(map[string]model.ChatSessionRef)}
}

func (s *memoryStore) Remember(_ context.Context, clientID string, ref model.ChatSessionRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refs[clientID] = ref
	return nil
}

func (s *memoryStore) Last(_ context.Context, clientID string) (model.ChatSessionRef, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ref, ok := s.refs[clientID]
	return ref, ok, nil
}
