package mysql

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/RajashekarChelimala/comrade-backend/internal/datamodels/chatrequest"
)

type chatRequestRepo struct {
	db *gorm.DB
}

// NewChatRequestRepository 创建会话请求仓储
func NewChatRequestRepository(db *gorm.DB) chatrequest.Repository {
	return &chatRequestRepo{db: db}
}

func (r *chatRequestRepo) Create(ctx context.Context, req *chatrequest.ChatRequest) error {
	if err := r.db.WithContext(ctx).Create(req).Error; err != nil {
		return errors.Wrap(err, "chatRequestRepo.Create")
	}
	return nil
}

func (r *chatRequestRepo) GetByID(ctx context.Context, id int64) (*chatrequest.ChatRequest, error) {
	var req chatrequest.ChatRequest
	if err := r.db.WithContext(ctx).First(&req, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "chatRequestRepo.GetByID")
	}
	return &req, nil
}

func (r *chatRequestRepo) GetByPair(ctx context.Context, senderID, recipientID int64) (*chatrequest.ChatRequest, error) {
	var req chatrequest.ChatRequest
	err := r.db.WithContext(ctx).
		Where("sender_id = ? AND recipient_id = ?", senderID, recipientID).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "chatRequestRepo.GetByPair")
	}
	return &req, nil
}

func (r *chatRequestRepo) Update(ctx context.Context, req *chatrequest.ChatRequest) error {
	if err := r.db.WithContext(ctx).Save(req).Error; err != nil {
		return errors.Wrap(err, "chatRequestRepo.Update")
	}
	return nil
}

func (r *chatRequestRepo) ListIncoming(ctx context.Context, recipientID int64) ([]*chatrequest.ChatRequest, error) {
	var list []*chatrequest.ChatRequest
	err := r.db.WithContext(ctx).
		Where("recipient_id = ? AND status = ?", recipientID, chatrequest.StatusPending).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, errors.Wrap(err, "chatRequestRepo.ListIncoming")
	}
	return list, nil
}

func (r *chatRequestRepo) ListOutgoing(ctx context.Context, senderID int64) ([]*chatrequest.ChatRequest, error) {
	var list []*chatrequest.ChatRequest
	err := r.db.WithContext(ctx).
		Where("sender_id = ?", senderID).
		Order("created_at DESC").
		Find(&list).Error
	if err != nil {
		return nil, errors.Wrap(err, "chatRequestRepo.ListOutgoing")
	}
	return list, nil
}
