package service

import (
	"agrichat-web/internal/model"
	"agrichat-web/pkg/log"
	"sync"
)

const subscriberBuffer = 32

type subscriber struct {
	ch   chan model.ViewEvent
	once sync.Once
}

// viewHub 将视图事件分发给订阅该视图的 websocket 连接。
// 投递不阻塞；缓冲已满的订阅者会被移除并关闭通道，由客户端重连后取得新的快照。
type viewHub struct {
	mu   sync.RWMutex
	subs map[string]map[*subscriber]struct{}
}

func newViewHub() *viewHub {
	return &viewHub{subs: make(map[string]map[*subscriber]struct{})}
}

// subscribe 注册一个订阅者，返回事件通道和取消函数。取消后通道被关闭。
func (h *viewHub) subscribe(viewID string) (<-chan model.ViewEvent, func()) {
	sub := &subscriber{ch: make(chan model.ViewEvent, subscriberBuffer)}
	h.mu.Lock()
	if h.subs[viewID] == nil {
		h.subs[viewID] = make(map[*subscriber]struct{})
	}
	h.subs[viewID][sub] = struct{}{}
	h.mu.Unlock()

	return sub.ch, func() { h.drop(viewID, sub) }
}

// drop 移除订阅者并关闭其通道，可重复调用。
func (h *viewHub) drop(viewID string, sub *subscriber) {
	h.mu.Lock()
	delete(h.subs[viewID], sub)
	if len(h.subs[viewID]) == 0 {
		delete(h.subs, viewID)
	}
	h.mu.Unlock()
	sub.once.Do(func() { close(sub.ch) })
}

func (h *viewHub) publish(event model.ViewEvent) {
	var overflowed []*subscriber
	h.mu.RLock()
	for sub := range h.subs[event.ViewID] {
		select {
		case sub.ch <- event:
		default:
			overflowed = append(overflowed, sub)
		}
	}
	h.mu.RUnlock()

	for _, sub := range overflowed {
		log.Warnf("视图 %s 的订阅者缓冲已满，断开订阅, event: %s", event.ViewID, event.Type)
		h.drop(event.ViewID, sub)
	}
}

func (h *viewHub) subscriberCount(viewID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[viewID])
}
