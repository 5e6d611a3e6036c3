package mysql

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/RajashekarChelimala/comrade-backend/internal/datamodels/chat"
)

type messageRepo struct {
	db *gorm.DB
}

// NewMessageRepository 创建消息仓储
func NewMessageRepository(db *gorm.DB) chat.MessageRepository {
	return &messageRepo{db: db}
}

func (r *messageRepo) Create(ctx context.Context, m *chat.Message) error {
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return errors.Wrap(err, "messageRepo.Create")
	}
	return nil
}

func (r *messageRepo) GetByID(ctx context.Context, id int64) (*chat.Message, error) {
	var m chat.Message
	err := r.db.WithContext(ctx).
		Preload("Reactions").
		First(&m, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "messageRepo.GetByID")
	}
	return &m, nil
}

func (r *messageRepo) ListByChat(ctx context.Context, chatID int64, before *time.Time, limit int) ([]*chat.Message, error) {
	if limit <= 0 || limit > 100 {
		limit = 30
	}
	q := r.db.WithContext(ctx).
		Preload("Reactions").
		Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Limit(limit)
	if before != nil {
		q = q.Where("created_at < ?", *before)
	}
	var list []*chat.Message
	if err := q.Find(&list).Error; err != nil {
		return nil, errors.Wrap(err, "messageRepo.ListByChat")
	}
	return list, nil
}

func (r *messageRepo) UpsertReaction(ctx context.Context, reaction *chat.Reaction) error {
	// (message_id, user_id) 冲突时覆盖类型与时间：同用户 last-write-wins，
	// 不同用户的并发插入走各自的行，互不覆盖
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "message_id"}, {Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"kind", "reacted_at"}),
		}).
		Create(reaction).Error
	if err != nil {
		return errors.Wrap(err, "messageRepo.UpsertReaction")
	}
	return nil
}

func (r *messageRepo) RemoveReaction(ctx context.Context, messageID, userID int64) error {
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND user_id = ?", messageID, userID).
		Delete(&chat.Reaction{}).Error
	if err != nil {
		return errors.Wrap(err, "messageRepo.RemoveReaction")
	}
	return nil
}

func (r *messageRepo) ListReactions(ctx context.Context, messageID int64) ([]chat.Reaction, error) {
	var list []chat.Reaction
	err := r.db.WithContext(ctx).
		Where("message_id = ?", messageID).
		Order("reacted_at ASC").
		Find(&list).Error
	if err != nil {
		return nil, errors.Wrap(err, "messageRepo.ListReactions")
	}
	return list, nil
}

func (r *messageRepo) ListExpiredMedia(ctx context.Context, now time.Time, limit int) ([]*chat.Message, error) {
	if limit <= 0 {
		limit = 100
	}
	var list []*chat.Message
	err := r.db.WithContext(ctx).
		Where("type = ? AND is_saved = ? AND is_deleted = ? AND expires_at IS NOT NULL AND expires_at < ?",
			chat.TypeMedia, false, false, now).
		Order("expires_at ASC").
		Limit(limit).
		Find(&list).Error
	if err != nil {
		return nil, errors.Wrap(err, "messageRepo.ListExpiredMedia")
	}
	return list, nil
}

func (r *messageRepo) Tombstone(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).Model(&chat.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_deleted":      true,
			"media_url":       "",
			"media_public_id": "",
			"expires_at":      nil,
		}).Error
	if err != nil {
		return errors.Wrap(err, "messageRepo.Tombstone")
	}
	return nil
}

func (r *messageRepo) MarkSaved(ctx context.Context, id int64) error {
	err := r.db.WithContext(ctx).Model(&chat.Message{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_saved":   true,
			"expires_at": nil,
		}).Error
	if err != nil {
		return errors.Wrap(err, "messageRepo.MarkSaved")
	}
	return nil
}
