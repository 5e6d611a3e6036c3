package chat

import (
	"context"
	"time"
)

// Chat 会话模型，严格双人。(UserLowID, UserHighID) 是规范化后的
// 无序参与者对，唯一索引保证同一对用户只会建一个会话；信封密钥
// 在创建时生成一次，之后不可变。
type Chat struct {
	ID         int64  `gorm:"primaryKey"`
	ChatID     string `gorm:"size:64;uniqueIndex;not null"` // 对外不透明标识
	UserLowID  int64  `gorm:"uniqueIndex:uk_chat_pair;not null"`
	UserHighID int64  `gorm:"uniqueIndex:uk_chat_pair;not null"`
	CreatedBy  int64  `gorm:"not null"`

	// 信封字段整体落库为不透明内容
	ChatKeyID        string `gorm:"size:64;not null"`
	EncryptedChatKey string `gorm:"size:512;not null"`
	Algorithm        string `gorm:"size:32;not null"`

	LastMessageAt      *time.Time `gorm:"index"`
	LastMessagePreview string     `gorm:"size:128"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// PairOf 把两个用户 ID 规范化为 (low, high)
func PairOf(a, b int64) (int64, int64) {
	if a < b {
		return a, b
	}
	return b, a
}

// HasParticipant 判断用户是否是会话参与者
func (c *Chat) HasParticipant(userID int64) bool {
	return c.UserLowID == userID || c.UserHighID == userID
}

// OtherParticipant 返回对端用户 ID
func (c *Chat) OtherParticipant(userID int64) int64 {
	if c.UserLowID == userID {
		return c.UserHighID
	}
	return c.UserLowID
}

// Repository 会话仓储接口
type Repository interface {
	Create(ctx context.Context, c *Chat) error
	// GetByChatID 按对外标识查找，不存在时返回 (nil, nil)
	GetByChatID(ctx context.Context, chatID string) (*Chat, error)
	GetByID(ctx context.Context, id int64) (*Chat, error)
	// GetByPair 按无序参与者对查找，不存在时返回 (nil, nil)
	GetByPair(ctx context.Context, a, b int64) (*Chat, error)
	// ListByUser 某用户参与的所有会话，按最近消息时间倒序
	ListByUser(ctx context.Context, userID int64) ([]*Chat, error)
	UpdateLastMessage(ctx context.Context, id int64, at time.Time, preview string) error
}
