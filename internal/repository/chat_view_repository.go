package repository

import (
	"agrichat-web/internal/model"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ChatViewRepository 保存聊天页面的服务端状态。消息列表只追加、不修改。
type ChatViewRepository interface {
	Create(ctx context.Context, view *model.ChatView) error
	Get(ctx context.Context, viewID string) (*model.ChatView, error)
	// AppendTurn 追加一条消息并返回追加后的消息总数。
	AppendTurn(ctx context.Context, viewID string, turn model.ChatTurn) (int, error)
	SetWaiting(ctx context.Context, viewID string, waiting bool) error
	// AcquireInFlight 尝试占用会话的“请求进行中”槽位，已被占用时返回 false。
	AcquireInFlight(ctx context.Context, sessionID, holder string, ttl time.Duration) (bool, error)
	// ReleaseInFlight 仅当槽位仍由 holder 持有时释放。
	ReleaseInFlight(ctx context.Context, sessionID, holder string) error
}

type redisChatViewRepository struct {
	redisClient *redis.Client
	ttl         time.Duration
}

// NewChatViewRepository 创建一个基于 Redis 的 ChatViewRepository。
func NewChatViewRepository(redisClient *redis.Client, ttl time.Duration) ChatViewRepository {
	return &redisChatViewRepository{redisClient: redisClient, ttl: ttl}
}

func viewMetaKey(viewID string) string    { return fmt.Sprintf("chatview:%s:meta", viewID) }
func viewTurnsKey(viewID string) string   { return fmt.Sprintf("chatview:%s:turns", viewID) }
func viewWaitingKey(viewID string) string { return fmt.Sprintf("chatview:%s:waiting", viewID) }
func inFlightKey(sessionID string) string { return fmt.Sprintf("chat:inflight:%s", sessionID) }

// releaseScript 原子地比较持有者后删除，避免释放他人在 TTL 过期后重新获取的槽位。
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// appendScript 仅在视图元数据存在时追加消息并刷新过期时间，返回追加后的长度；视图不存在时返回 -1。
var appendScript = redis.NewScript(`
if redis.call("EXISTS", KEYS[1]) == 0 then
	return -1
end
local n = redis.call("RPUSH", KEYS[2], ARGV[1])
if tonumber(ARGV[2]) > 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
	redis.call("PEXPIRE", KEYS[2], ARGV[2])
end
return n
`)

// Create 在 Redis 中写入视图元数据和初始消息列表。
func (r *redisChatViewRepository) Create(ctx context.Context, view *model.ChatView) error {
	meta := *view
	meta.Turns = nil
	meta.Waiting = false
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal chat view: %w", err)
	}

	pipe := r.redisClient.TxPipeline()
	pipe.Set(ctx, viewMetaKey(view.ID), metaJSON, r.ttl)
	if len(view.Turns) > 0 {
		values := make([]interface{}, 0, len(view.Turns))
		for _, t := range view.Turns {
			b, err := json.Marshal(t)
			if err != nil {
				return fmt.Errorf("failed to marshal chat turn: %w", err)
			}
			values = append(values, b)
		}
		pipe.RPush(ctx, viewTurnsKey(view.ID), values...)
		if r.ttl > 0 {
			pipe.Expire(ctx, viewTurnsKey(view.ID), r.ttl)
		}
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create chat view: %w", err)
	}
	return nil
}

// Get 读取视图元数据、完整消息列表与等待标志。
func (r *redisChatViewRepository) Get(ctx context.Context, viewID string) (*model.ChatView, error) {
	metaJSON, err := r.redisClient.Get(ctx, viewMetaKey(viewID)).Result()
	if err == redis.Nil {
		return nil, ErrViewNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get chat view: %w", err)
	}
	var view model.ChatView
	if err := json.Unmarshal([]byte(metaJSON), &view); err != nil {
		return nil, fmt.Errorf("failed to unmarshal chat view: %w", err)
	}

	raw, err := r.redisClient.LRange(ctx, viewTurnsKey(viewID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get chat turns: %w", err)
	}
	view.Turns = make([]model.ChatTurn, 0, len(raw))
	for _, item := range raw {
		var t model.ChatTurn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			return nil, fmt.Errorf("failed to unmarshal chat turn: %w", err)
		}
		view.Turns = append(view.Turns, t)
	}

	n, err := r.redisClient.Exists(ctx, viewWaitingKey(viewID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get waiting flag: %w", err)
	}
	view.Waiting = n > 0
	return &view, nil
}

func (r *redisChatViewRepository) AppendTurn(ctx context.Context, viewID string, turn model.ChatTurn) (int, error) {
	b, err := json.Marshal(turn)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal chat turn: %w", err)
	}
	keys := []string{viewMetaKey(viewID), viewTurnsKey(viewID)}
	n, err := appendScript.Run(ctx, r.redisClient, keys, b, r.ttl.Milliseconds()).Int()
	if err != nil {
		return 0, fmt.Errorf("failed to append chat turn: %w", err)
	}
	if n < 0 {
		return 0, ErrViewNotFound
	}
	return n, nil
}

func (r *redisChatViewRepository) SetWaiting(ctx context.Context, viewID string, waiting bool) error {
	var err error
	if waiting {
		err = r.redisClient.Set(ctx, viewWaitingKey(viewID), "1", r.ttl).Err()
	} else {
		err = r.redisClient.Del(ctx, viewWaitingKey(viewID)).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to set waiting flag: %w", err)
	}
	return nil
}

func (r *redisChatViewRepository) AcquireInFlight(ctx context.Context, sessionID, holder string, ttl time.Duration) (bool, error) {
	ok, err := r.redisClient.SetNX(ctx, inFlightKey(sessionID), holder, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire in-flight slot: %w", err)
	}
	return ok, nil
}

func (r *redisChatViewRepository) ReleaseInFlight(ctx context.Context, sessionID, holder string) error {
	if err := releaseScript.Run(ctx, r.redisClient, []string{inFlightKey(sessionID)}, holder).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("failed to release in-flight slot: %w", err)
	}
	return nil
}
