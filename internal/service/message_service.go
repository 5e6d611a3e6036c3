package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/RajashekarChelimala/comrade-backend/internal/apperrors"
	"github.com/RajashekarChelimala/comrade-backend/internal/crypto"
	"github.com/RajashekarChelimala/comrade-backend/internal/datamodels/chat"
	"github.com/RajashekarChelimala/comrade-backend/internal/datamodels/user"
)

const previewMaxRunes = 64

// Emitter 实时事件出口。投递是尽力而为的，失败不影响已落库的消息。
type Emitter interface {
	Emit(topic, name string, payload interface{})
}

// ReactionView 表态视图
type ReactionView struct {
	UserID    int64     `json:"user_id"`
	Kind      string    `json:"kind"`
	ReactedAt time.Time `json:"reacted_at"`
}

// ReplyPreview 被引用消息的摘要
type ReplyPreview struct {
	ID        int64  `json:"id"`
	SenderID  int64  `json:"sender_id"`
	Type      string `json:"type"`
	Text      string `json:"text,omitempty"`
	IsDeleted bool   `json:"is_deleted,omitempty"`
}

// MessageView 消息的对外视图，文本已解密
type MessageView struct {
	ID       int64  `json:"id"`
	ChatID   string `json:"chat_id"`
	SenderID int64  `json:"sender_id"`
	Type     string `json:"type"`

	Text string `json:"text,omitempty"`
	// Unreadable 单条解密失败时置位，整页列表不受影响
	Unreadable bool `json:"unreadable,omitempty"`

	ReplyTo *ReplyPreview `json:"reply_to,omitempty"`

	MediaURL  string     `json:"media_url,omitempty"`
	MediaType string     `json:"media_type,omitempty"`
	IsSaved   bool       `json:"is_saved,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	IsDeleted bool       `json:"is_deleted,omitempty"`

	Reactions []ReactionView `json:"reactions"`
	CreatedAt time.Time      `json:"created_at"`
}

// SendInput 发消息入参
type SendInput struct {
	ChatID        string `json:"chat_id" validate:"required"`
	Type          string `json:"type" validate:"required,oneof=text media"`
	Text          string `json:"text"`
	ReplyToID     *int64 `json:"reply_to_id"`
	MediaURL      string `json:"media_url"`
	MediaType     string `json:"media_type"`
	MediaPublicID string `json:"media_public_id"`
}

// MessageService 消息服务：收发、表态、引用、媒体保存
type MessageService struct {
	chatRepo    chat.Repository
	messageRepo chat.MessageRepository
	userRepo    user.Repository
	vault       *crypto.KeyVault
	unread      *UnreadCounter
	emitter     Emitter
	mediaTTL    time.Duration
}

// NewMessageService 创建消息服务
func NewMessageService(
	chatRepo chat.Repository,
	messageRepo chat.MessageRepository,
	userRepo user.Repository,
	vault *crypto.KeyVault,
	unread *UnreadCounter,
	emitter Emitter,
	mediaTTL time.Duration,
) *MessageService {
	if mediaTTL <= 0 {
		mediaTTL = 24 * time.Hour
	}
	return &MessageService{
		chatRepo:    chatRepo,
		messageRepo: messageRepo,
		userRepo:    userRepo,
		vault:       vault,
		unread:      unread,
		emitter:     emitter,
		mediaTTL:    mediaTTL,
	}
}

// Send 发送一条消息。文本先加密再落库，媒体只存外部引用并带过期时间。
func (s *MessageService) Send(ctx context.Context, userID int64, in SendInput) (*MessageView, error) {
	GetMonitor().RecordSendRequest()

	c, err := s.memberChat(ctx, in.ChatID, userID)
	if err != nil {
		return nil, err
	}

	blocked, err := s.userRepo.IsBlockedBetween(ctx, c.UserLowID, c.UserHighID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, apperrors.ErrBlockedPair
	}

	m := &chat.Message{
		ChatID:   c.ID,
		SenderID: userID,
		Type:     chat.MessageType(in.Type),
	}

	switch m.Type {
	case chat.TypeText:
		text := strings.TrimSpace(in.Text)
		if text == "" {
			return nil, apperrors.ErrTextRequired
		}
		key, err := s.vault.UnwrapChatKey(c.EncryptedChatKey)
		if err != nil {
			return nil, err
		}
		blob, err := crypto.EncryptMessage(key, text)
		if err != nil {
			return nil, err
		}
		m.EncryptedContent = blob
	case chat.TypeMedia:
		if in.MediaURL == "" || in.MediaType == "" {
			return nil, apperrors.ErrMediaRequired
		}
		if in.MediaType != "image" && in.MediaType != "video" {
			return nil, apperrors.InvalidArg("media_type must be image or video")
		}
		m.MediaURL = in.MediaURL
		m.MediaType = in.MediaType
		m.MediaPublicID = in.MediaPublicID
		exp := time.Now().Add(s.mediaTTL)
		m.ExpiresAt = &exp
	default:
		return nil, apperrors.InvalidArg("type must be text or media")
	}

	// 引用必须指向同一会话里的消息，非法引用直接丢弃
	if in.ReplyToID != nil {
		target, err := s.messageRepo.GetByID(ctx, *in.ReplyToID)
		if err != nil {
			return nil, err
		}
		if target != nil && target.ChatID == c.ID {
			m.ReplyToID = in.ReplyToID
		}
	}

	if err := s.messageRepo.Create(ctx, m); err != nil {
		GetMonitor().RecordDBError()
		return nil, err
	}

	// 会话摘要与未读数是展示辅助，失败只记日志
	preview := "[media]"
	if m.Type == chat.TypeText {
		preview = truncateRunes(strings.TrimSpace(in.Text), previewMaxRunes)
	}
	if err := s.chatRepo.UpdateLastMessage(ctx, c.ID, m.CreatedAt, preview); err != nil {
		zap.S().Warnw("update chat preview failed", "chat_id", c.ChatID, "err", err)
	}
	s.unread.Incr(c.ChatID, c.OtherParticipant(userID))

	v := s.buildView(ctx, c, nil, m)
	s.emit(c.ChatID, "new_message", v)
	GetMonitor().RecordSendSuccess()
	return v, nil
}

// ListMessages 按时间倒序取一页消息；读取同时清零未读数。
// 单条解密失败降级为不可读条目，不让整页报错。
func (s *MessageService) ListMessages(ctx context.Context, userID int64, chatID string, before *time.Time, limit int) ([]*MessageView, error) {
	c, err := s.memberChat(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	ms, err := s.messageRepo.ListByChat(ctx, c.ID, before, limit)
	if err != nil {
		return nil, err
	}

	// 信封解包失败时整页降级为不可读，不影响读取
	key, err := s.vault.UnwrapChatKey(c.EncryptedChatKey)
	if err != nil {
		zap.S().Warnw("chat key unwrap failed, rendering page as unreadable", "chat_id", c.ChatID, "err", err)
		key = nil
	}

	// 取最新一页后按时间正序返回
	out := make([]*MessageView, 0, len(ms))
	for i := len(ms) - 1; i >= 0; i-- {
		out = append(out, s.buildView(ctx, c, key, ms[i]))
	}
	s.unread.Reset(c.ChatID, userID)
	return out, nil
}

// React 表态；同一用户重复表态按最后一次覆盖
func (s *MessageService) React(ctx context.Context, userID, messageID int64, kind string) (*MessageView, error) {
	if !chat.ReactionKinds[kind] {
		return nil, apperrors.ErrInvalidReaction
	}
	c, m, err := s.memberMessage(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}

	if err := s.messageRepo.UpsertReaction(ctx, &chat.Reaction{
		MessageID: m.ID,
		UserID:    userID,
		Kind:      kind,
		ReactedAt: time.Now(),
	}); err != nil {
		GetMonitor().RecordDBError()
		return nil, err
	}

	return s.reloadAndEmit(ctx, c, m.ID)
}

// Unreact 撤销表态；原本没有表态也算成功
func (s *MessageService) Unreact(ctx context.Context, userID, messageID int64) (*MessageView, error) {
	c, m, err := s.memberMessage(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	if err := s.messageRepo.RemoveReaction(ctx, m.ID, userID); err != nil {
		return nil, err
	}
	return s.reloadAndEmit(ctx, c, m.ID)
}

// SaveMedia 把媒体消息标记为已保存，之后不再过期回收。
// 已被回收的媒体无法再保存。
func (s *MessageService) SaveMedia(ctx context.Context, userID, messageID int64) (*MessageView, error) {
	c, m, err := s.memberMessage(ctx, userID, messageID)
	if err != nil {
		return nil, err
	}
	if m.Type != chat.TypeMedia {
		return nil, apperrors.ErrNotMedia
	}
	if m.IsDeleted {
		return nil, apperrors.ErrMessageNotFound
	}
	if err := s.messageRepo.MarkSaved(ctx, m.ID); err != nil {
		return nil, err
	}
	return s.reloadAndEmit(ctx, c, m.ID)
}

// memberChat 取会话并校验成员身份；非成员按不存在处理
func (s *MessageService) memberChat(ctx context.Context, chatID string, userID int64) (*chat.Chat, error) {
	c, err := s.chatRepo.GetByChatID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if c == nil || !c.HasParticipant(userID) {
		return nil, apperrors.ErrChatNotFound
	}
	return c, nil
}

// memberMessage 取消息并校验调用者是其所属会话的成员
func (s *MessageService) memberMessage(ctx context.Context, userID, messageID int64) (*chat.Chat, *chat.Message, error) {
	m, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, nil, err
	}
	if m == nil {
		return nil, nil, apperrors.ErrMessageNotFound
	}
	c, err := s.chatRepo.GetByID(ctx, m.ChatID)
	if err != nil {
		return nil, nil, err
	}
	if c == nil {
		return nil, nil, apperrors.ErrChatNotFound
	}
	if !c.HasParticipant(userID) {
		return nil, nil, apperrors.ErrNotAllowed
	}
	return c, m, nil
}

func (s *MessageService) reloadAndEmit(ctx context.Context, c *chat.Chat, messageID int64) (*MessageView, error) {
	m, err := s.messageRepo.GetByID(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, apperrors.ErrMessageNotFound
	}
	v := s.buildView(ctx, c, nil, m)
	s.emit(c.ChatID, "message_updated", v)
	return v, nil
}

// buildView 组装消息视图；key 为 nil 时按需解包会话密钥
func (s *MessageService) buildView(ctx context.Context, c *chat.Chat, key []byte, m *chat.Message) *MessageView {
	v := &MessageView{
		ID:        m.ID,
		ChatID:    c.ChatID,
		SenderID:  m.SenderID,
		Type:      string(m.Type),
		MediaURL:  m.MediaURL,
		MediaType: m.MediaType,
		IsSaved:   m.IsSaved,
		ExpiresAt: m.ExpiresAt,
		IsDeleted: m.IsDeleted,
		Reactions: make([]ReactionView, 0, len(m.Reactions)),
		CreatedAt: m.CreatedAt,
	}
	for _, r := range m.Reactions {
		v.Reactions = append(v.Reactions, ReactionView{
			UserID:    r.UserID,
			Kind:      r.Kind,
			ReactedAt: r.ReactedAt,
		})
	}

	if m.Type == chat.TypeText {
		if key == nil {
			k, err := s.vault.UnwrapChatKey(c.EncryptedChatKey)
			if err != nil {
				v.Unreadable = true
				return v
			}
			key = k
		}
		text, err := crypto.DecryptMessage(key, m.EncryptedContent)
		if err != nil {
			zap.S().Warnw("message decrypt failed", "message_id", m.ID, "chat_id", c.ChatID)
			v.Unreadable = true
		} else {
			v.Text = text
		}
	}

	if m.ReplyToID != nil {
		if target, err := s.messageRepo.GetByID(ctx, *m.ReplyToID); err == nil && target != nil {
			v.ReplyTo = s.buildReplyPreview(c, key, target)
		}
	}
	return v
}

func (s *MessageService) buildReplyPreview(c *chat.Chat, key []byte, target *chat.Message) *ReplyPreview {
	p := &ReplyPreview{
		ID:        target.ID,
		SenderID:  target.SenderID,
		Type:      string(target.Type),
		IsDeleted: target.IsDeleted,
	}
	if target.Type == chat.TypeText && !target.IsDeleted {
		if key == nil {
			k, err := s.vault.UnwrapChatKey(c.EncryptedChatKey)
			if err != nil {
				return p
			}
			key = k
		}
		if text, err := crypto.DecryptMessage(key, target.EncryptedContent); err == nil {
			p.Text = truncateRunes(text, previewMaxRunes)
		}
	}
	return p
}

func (s *MessageService) emit(chatID, name string, payload interface{}) {
	if s.emitter == nil {
		return
	}
	s.emitter.Emit(chatID, name, payload)
	GetMonitor().RecordFanoutEvent()
}

func truncateRunes(s string, max int) string {
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	return string(rs[:max]) + "…"
}
