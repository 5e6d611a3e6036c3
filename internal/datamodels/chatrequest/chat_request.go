package chatrequest

import (
	"context"
	"time"
)

// MaxDeclines 同一有序对下允许的累计拒绝上限，达到后不能再重发
const MaxDeclines = 3

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

// ChatRequest 会话请求，状态机 PENDING → {ACCEPTED, REJECTED}；
// REJECTED 在 DeclineCount 未达上限前可重发回到 PENDING。
// 每个有序 (sender, recipient) 对至多一条记录，只改状态不删除。
type ChatRequest struct {
	ID           int64  `gorm:"primaryKey"`
	SenderID     int64  `gorm:"uniqueIndex:uk_request_pair;index;not null"`
	RecipientID  int64  `gorm:"uniqueIndex:uk_request_pair;index;not null"`
	Status       Status `gorm:"size:16;index;not null;default:PENDING"`
	DeclineCount int    `gorm:"not null;default:0"`
	LastActionAt *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Repository 会话请求仓储接口
type Repository interface {
	Create(ctx context.Context, r *ChatRequest) error
	// GetByID 不存在时返回 (nil, nil)
	GetByID(ctx context.Context, id int64) (*ChatRequest, error)
	// GetByPair 按有序对查找，不存在时返回 (nil, nil)
	GetByPair(ctx context.Context, senderID, recipientID int64) (*ChatRequest, error)
	Update(ctx context.Context, r *ChatRequest) error
	// ListIncoming 某用户收到的所有 PENDING 请求，最新优先
	ListIncoming(ctx context.Context, recipientID int64) ([]*ChatRequest, error)
	// ListOutgoing 某用户发出的所有请求，最新优先
	ListOutgoing(ctx context.Context, senderID int64) ([]*ChatRequest, error)
}
