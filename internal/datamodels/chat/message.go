package chat

import (
	"context"
	"time"
)

type MessageType string

const (
	TypeText  MessageType = "text"
	TypeMedia MessageType = "media"
)

// ReactionKinds 允许的表态类型
var ReactionKinds = map[string]bool{
	"like": true, "dislike": true, "love": true,
	"laugh": true, "sad": true, "angry": true,
}

// Message 消息模型。文本消息只存密文；媒体消息只存外部资源引用，
// 未保存的媒体带 ExpiresAt，由清理任务回收并墓碑化（IsDeleted），
// 记录本身从不物理删除。
type Message struct {
	ID       int64       `gorm:"primaryKey"`
	ChatID   int64       `gorm:"index:idx_message_chat_created;not null"` // 会话内部 ID
	SenderID int64       `gorm:"index;not null"`
	Type     MessageType `gorm:"size:8;not null"`

	EncryptedContent string `gorm:"size:8192"` // 仅文本消息

	// ReplyToID 可选的同会话消息引用；跨会话引用非法，写入时丢弃
	ReplyToID *int64 `gorm:"index"`

	MediaURL      string     `gorm:"size:512"`
	MediaType     string     `gorm:"size:16"` // image / video
	MediaPublicID string     `gorm:"size:128"`
	IsSaved       bool       `gorm:"not null;default:false"`
	ExpiresAt     *time.Time `gorm:"index"`
	IsDeleted     bool       `gorm:"not null;default:false"`

	Reactions []Reaction `gorm:"foreignKey:MessageID"`

	CreatedAt time.Time `gorm:"index:idx_message_chat_created"`
	UpdatedAt time.Time
}

// Reaction 某用户对某消息的单个表态。(message_id, user_id) 唯一，
// 重复表态按 last-write-wins 覆盖类型与时间。
type Reaction struct {
	ID        int64     `gorm:"primaryKey"`
	MessageID int64     `gorm:"uniqueIndex:uk_reaction_user;not null"`
	UserID    int64     `gorm:"uniqueIndex:uk_reaction_user;not null"`
	Kind      string    `gorm:"size:16;not null"`
	ReactedAt time.Time `gorm:"not null"`
}

// MessageRepository 消息仓储接口
type MessageRepository interface {
	Create(ctx context.Context, m *Message) error
	// GetByID 带表态预载入，不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id int64) (*Message, error)
	// ListByChat 按创建时间倒序取一页；before 非空时只取更早的
	ListByChat(ctx context.Context, chatID int64, before *time.Time, limit int) ([]*Message, error)
	// UpsertReaction 同一用户重复表态时覆盖类型与时间；不同用户并发
	// 插入互不丢失
	UpsertReaction(ctx context.Context, r *Reaction) error
	RemoveReaction(ctx context.Context, messageID, userID int64) error
	ListReactions(ctx context.Context, messageID int64) ([]Reaction, error)
	// ListExpiredMedia 清理任务的候选集：media、未保存、已过期、未墓碑
	ListExpiredMedia(ctx context.Context, now time.Time, limit int) ([]*Message, error)
	// Tombstone 墓碑化：置 IsDeleted 并清空媒体引用与过期时间
	Tombstone(ctx context.Context, id int64) error
	// MarkSaved 置 IsSaved 并清空过期时间，之后永不被清理任务触碰
	MarkSaved(ctx context.Context, id int64) error
}
