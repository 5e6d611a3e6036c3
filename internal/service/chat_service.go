package service

import (
	"context"
	"time"

	"github.com/RajashekarChelimala/comrade-backend/internal/apperrors"
	"github.com/RajashekarChelimala/comrade-backend/internal/datamodels/chat"
	"github.com/RajashekarChelimala/comrade-backend/internal/datamodels/user"
)

// ChatView 会话列表项
type ChatView struct {
	ChatID      string     `json:"chat_id"`
	PeerID      int64      `json:"peer_id"`
	PeerName    string     `json:"peer_name,omitempty"`
	LastMessage string     `json:"last_message,omitempty"`
	LastTime    *time.Time `json:"last_time,omitempty"`
	Unread      int64      `json:"unread"`
	CreatedAt   time.Time  `json:"created_at"`
}

// ChatService 会话查询服务
type ChatService struct {
	chatRepo chat.Repository
	userRepo user.Repository
	unread   *UnreadCounter
}

// NewChatService 创建会话服务
func NewChatService(chatRepo chat.Repository, userRepo user.Repository, unread *UnreadCounter) *ChatService {
	return &ChatService{chatRepo: chatRepo, userRepo: userRepo, unread: unread}
}

// ListChats 返回用户参与的全部会话，按最近消息倒序
func (s *ChatService) ListChats(ctx context.Context, userID int64) ([]*ChatView, error) {
	cs, err := s.chatRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*ChatView, 0, len(cs))
	for _, c := range cs {
		peerID := c.OtherParticipant(userID)
		v := &ChatView{
			ChatID:      c.ChatID,
			PeerID:      peerID,
			LastMessage: c.LastMessagePreview,
			LastTime:    c.LastMessageAt,
			Unread:      s.unread.Get(c.ChatID, userID),
			CreatedAt:   c.CreatedAt,
		}
		if u, err := s.userRepo.GetByID(ctx, peerID); err == nil && u != nil {
			v.PeerName = u.Username
		}
		out = append(out, v)
	}
	return out, nil
}

// GetChat 按对外标识取会话，非参与者一律按不存在处理
func (s *ChatService) GetChat(ctx context.Context, chatID string, userID int64) (*chat.Chat, error) {
	c, err := s.chatRepo.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if c == nil || !c.HasParticipant(userID) {
		return nil, apperrors.ErrChatNotFound
	}
	return c, nil
}

// IsParticipant 实时订阅入口的成员校验
func (s *ChatService) IsParticipant(ctx context.Context, chatID string, userID int64) bool {
	c, err := s.chatRepo.GetByChatID(ctx, chatID)
	if err != nil || c == nil {
		return false
	}
	return c.HasParticipant(userID)
}
