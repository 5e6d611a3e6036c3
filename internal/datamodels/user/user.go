package user

import (
	"context"
	"time"
)

// User 用户模型（核心业务只消费身份与拉黑事实，注册登录是外围胶水）
type User struct {
	ID        int64  `gorm:"primaryKey"`
	Username  string `gorm:"size:64;uniqueIndex;not null"`
	Password  string `gorm:"size:128;not null"`
	Salt      string `gorm:"size:32;not null"`
	Name      string `gorm:"size:64"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Block 拉黑关系：blocker 单向拉黑 blocked，同方向至多一条
type Block struct {
	ID        int64 `gorm:"primaryKey"`
	BlockerID int64 `gorm:"uniqueIndex:uk_block_pair;not null"`
	BlockedID int64 `gorm:"uniqueIndex:uk_block_pair;not null"`
	CreatedAt time.Time
}

// Repository 用户仓储接口
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	Block(ctx context.Context, blockerID, blockedID int64) error
	Unblock(ctx context.Context, blockerID, blockedID int64) error
	// IsBlockedBetween 任一方向存在拉黑即为 true
	IsBlockedBetween(ctx context.Context, a, b int64) (bool, error)
}
