// Package model 包含了应用的数据模型定义。
package model

import "time"

// ChatTurn 是对话中的一条消息（用户提问或助手回答）。追加后不再修改。
type ChatTurn struct {
	IsFromUser bool   `json:"isUser"`
	Text       string `json:"text"`
	Timestamp  string `json:"timestamp"` // ISO-8601
}

// NewUserTurn 以当前时间构造一条用户消息。
func NewUserTurn(text string, now time.Time) ChatTurn {
	return ChatTurn{IsFromUser: true, Text: text, Timestamp: ISOTimestamp(now)}
}

// NewAssistantTurn 构造一条助手消息，timestamp 通常来自服务端。
func NewAssistantTurn(text, timestamp string) ChatTurn {
	return ChatTurn{IsFromUser: false, Text: text, Timestamp: timestamp}
}

// HistoryRecord 是问答服务返回的一条历史问答。
type HistoryRecord struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	Timestamp string `json:"timestamp"`
}

// TurnsFromHistory 将历史记录展开为交替的用户/助手消息，并在最前面加上问候语。
func TurnsFromHistory(greeting ChatTurn, records []HistoryRecord) []ChatTurn {
	turns := make([]ChatTurn, 0, 1+2*len(records))
	turns = append(turns, greeting)
	for _, r := range records {
		turns = append(turns,
			ChatTurn{IsFromUser: true, Text: r.Question, Timestamp: r.Timestamp},
			ChatTurn{IsFromUser: false, Text: r.Answer, Timestamp: r.Timestamp},
		)
	}
	return turns
}

// ChatSessionRef 标识一个聊天会话。会话 ID 在页面生命周期内不变。
type ChatSessionRef struct {
	SessionID   string `json:"sessionId"`
	SessionName string `json:"sessionName"`
}

// ChatView 是一次聊天页面挂载对应的服务端状态。
type ChatView struct {
	ID        string         `json:"id"`
	ClientID  string         `json:"clientId"`
	Session   ChatSessionRef `json:"session"`
	UserID    string         `json:"userId,omitempty"`
	Turns     []ChatTurn     `json:"turns"`
	Waiting   bool           `json:"waiting"`
	CreatedAt time.Time      `json:"createdAt"`
}

// LoggedIn 报告挂载时是否存在已登录用户。
func (v *ChatView) LoggedIn() bool {
	return v.UserID != ""
}

// Revision 随每次追加消息单调递增，客户端仅在其增长时滚动到底部。
func (v *ChatView) Revision() int {
	return len(v.Turns)
}

// ViewEventType 标识推送给订阅者的视图变化。
type ViewEventType string

const (
	ViewEventSnapshot ViewEventType = "snapshot"
	ViewEventTurn     ViewEventType = "turn"
	ViewEventWaiting  ViewEventType = "waiting"
)

// ViewEvent 是通过 websocket 推送给页面的一次视图变化。
type ViewEvent struct {
	Type     ViewEventType `json:"type"`
	ViewID   string        `json:"viewId"`
	Turn     *ChatTurn     `json:"turn,omitempty"`
	Turns    []ChatTurn    `json:"turns,omitempty"`
	Waiting  bool          `json:"waiting"`
	Revision int           `json:"revision"`
}

// SendRequest 是发送给问答服务的请求体。未登录时 UserID 为 nil，序列化为 null。
type SendRequest struct {
	Question    string  `json:"question"`
	SessionID   string  `json:"session_id"`
	SessionName string  `json:"session_name"`
	UserID      *string `json:"user_id"`
}

// SendResponse 是问答服务的回答。
type SendResponse struct {
	Answer    string `json:"answer"`
	Timestamp string `json:"timestamp"`
}
