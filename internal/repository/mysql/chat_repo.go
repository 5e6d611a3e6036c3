package mysql

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/RajashekarChelimala/comrade-backend/internal/datamodels/chat"
)

type chatRepo struct {
	db *gorm.DB
}

// NewChatRepository 创建会话仓储
func NewChatRepository(db *gorm.DB) chat.Repository {
	return &chatRepo{db: db}
}

func (r *chatRepo) Create(ctx context.Context, c *chat.Chat) error {
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		// uk_chat_pair 唯一索引兜底并发建会话的冲突，由上层决定重查复用
		return errors.Wrap(err, "chatRepo.Create")
	}
	return nil
}

func (r *chatRepo) GetByChatID(ctx context.Context, chatID string) (*chat.Chat, error) {
	var c chat.Chat
	if err := r.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "chatRepo.GetByChatID")
	}
	return &c, nil
}

func (r *chatRepo) GetByID(ctx context.Context, id int64) (*chat.Chat, error) {
	var c chat.Chat
	if err := r.db.WithContext(ctx).First(&c, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "chatRepo.GetByID")
	}
	return &c, nil
}

func (r *chatRepo) GetByPair(ctx context.Context, a, b int64) (*chat.Chat, error) {
	low, high := chat.PairOf(a, b)
	var c chat.Chat
	err := r.db.WithContext(ctx).
		Where("user_low_id = ? AND user_high_id = ?", low, high).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "chatRepo.GetByPair")
	}
	return &c, nil
}

func (r *chatRepo) ListByUser(ctx context.Context, userID int64) ([]*chat.Chat, error) {
	var list []*chat.Chat
	err := r.db.WithContext(ctx).
		Where("user_low_id = ? OR user_high_id = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, errors.Wrap(err, "chatRepo.ListByUser")
	}
	return list, nil
}

func (r *chatRepo) UpdateLastMessage(ctx context.Context, id int64, at time.Time, preview string) error {
	err := r.db.WithContext(ctx).Model(&chat.Chat{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"last_message_at":      at,
			"last_message_preview": preview,
		}).Error
	if err != nil {
		return errors.Wrap(err, "chatRepo.UpdateLastMessage")
	}
	return nil
}
