package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/RajashekarChelimala/comrade-backend/internal/apperrors"
	"github.com/RajashekarChelimala/comrade-backend/internal/service"
)

// Event 广播给订阅者的一条实时事件
type Event struct {
	Topic   string      `json:"topic"`
	Name    string      `json:"name"`
	Payload interface{} `json:"payload"`
}

// MembershipChecker 订阅准入校验：只有会话成员可以订阅该会话
type MembershipChecker interface {
	IsParticipant(ctx context.Context, chatID string, userID int64) bool
}

// Subscriber 一个实时订阅方。事件从带缓冲的 C 读取，缓冲写满时
// 新事件被丢弃，订阅方应通过普通拉取接口补齐。
type Subscriber struct {
	UserID int64
	C      chan Event

	mu     sync.Mutex
	topics map[string]bool
}

func (s *Subscriber) subscribed(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.topics[topic]
}

// Hub 进程内实时分发中心：topic（会话）→ 订阅者集合。
// 广播永不阻塞，慢订阅者只会丢自己的事件。
type Hub struct {
	mu      sync.RWMutex
	subs    map[*Subscriber]bool
	checker MembershipChecker
	bufSize int
}

// NewHub 创建分发中心
func NewHub(checker MembershipChecker, bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 32
	}
	return &Hub{
		subs:    make(map[*Subscriber]bool),
		checker: checker,
		bufSize: bufSize,
	}
}

// Register 接入一个新订阅方
func (h *Hub) Register(userID int64) *Subscriber {
	s := &Subscriber{
		UserID: userID,
		C:      make(chan Event, h.bufSize),
		topics: make(map[string]bool),
	}
	h.mu.Lock()
	h.subs[s] = true
	h.mu.Unlock()
	return s
}

// Unregister 移除订阅方并关闭其事件通道
func (h *Hub) Unregister(s *Subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[s]; ok {
		delete(h.subs, s)
		close(s.C)
	}
	h.mu.Unlock()
}

// Join 订阅一个会话；准入在这里校验，之后成员资格变化不回收已有订阅
func (h *Hub) Join(ctx context.Context, s *Subscriber, chatID string) error {
	if h.checker != nil && !h.checker.IsParticipant(ctx, chatID, s.UserID) {
		return apperrors.ErrChatNotFound
	}
	s.mu.Lock()
	s.topics[chatID] = true
	s.mu.Unlock()
	return nil
}

// Leave 退订一个会话
func (h *Hub) Leave(s *Subscriber, chatID string) {
	s.mu.Lock()
	delete(s.topics, chatID)
	s.mu.Unlock()
}

// Broadcast 把事件发给该 topic 的所有订阅者，非阻塞
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs {
		if !s.subscribed(ev.Topic) {
			continue
		}
		select {
		case s.C <- ev:
		default:
			service.GetMonitor().RecordFanoutDropped()
			zap.S().Debugw("subscriber too slow, event dropped", "user_id", s.UserID, "topic", ev.Topic)
		}
	}
}
