// Package events 定义了发布到 Kafka 的领域事件结构。
package events

import (
	"context"
	"time"
)

// PublishTimeout 是单次发布的最长等待时间，超时后放弃本次发布。
const PublishTimeout = 5 * time.Second

const (
	TypeChatExchangeSettled = "chat.exchange.settled"
	TypePostCreated         = "post.created"
)

// Event 是消息体的外层信封。
type Event struct {
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurred_at"`
	Payload    interface{} `json:"payload"`
}

// ChatExchangeSettled 在一次提问得到回答（或失败）后发布。
type ChatExchangeSettled struct {
	SessionID   string `json:"session_id"`
	SessionName string `json:"session_name"`
	UserID      string `json:"user_id,omitempty"`
	Question    string `json:"question"`
	Answer      string `json:"answer"`
	Failed      bool   `json:"failed"`
	LatencyMs   int64  `json:"latency_ms"`
}

// PostCreated 在社区服务成功创建帖子后发布。
type PostCreated struct {
	PostID   string `json:"post_id"`
	PostType string `json:"post_type"`
	UserID   string `json:"user_id,omitempty"`
	HasImage bool   `json:"has_image"`
}

// Publisher 将事件发布到消息队列。key 决定分区，同一会话的事件保持顺序。
type Publisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type noopPublisher struct{}

// Noop 返回一个丢弃所有事件的 Publisher，未配置 Kafka 时使用。
func Noop() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, string, Event) error {
	return nil
}

// New 构造一个带当前时间的事件。
func New(eventType string, payload interface{}) Event {
	return Event{Type: eventType, OccurredAt: time.Now().UTC(), Payload: payload}
}
