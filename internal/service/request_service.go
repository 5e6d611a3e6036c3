package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/RajashekarChelimala/comrade-backend/internal/apperrors"
	"github.com/RajashekarChelimala/comrade-backend/internal/crypto"
	"github.com/RajashekarChelimala/comrade-backend/internal/datamodels/chat"
	"github.com/RajashekarChelimala/comrade-backend/internal/datamodels/chatrequest"
	"github.com/RajashekarChelimala/comrade-backend/internal/datamodels/user"
)

// forUpdate 行锁；sqlite 方言不支持 FOR UPDATE（单连接串行，无需行锁）
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// RequestView 会话请求的对外视图
type RequestView struct {
	ID            int64      `json:"id"`
	SenderID      int64      `json:"sender_id"`
	SenderName    string     `json:"sender_name,omitempty"`
	RecipientID   int64      `json:"recipient_id"`
	RecipientName string     `json:"recipient_name,omitempty"`
	Status        string     `json:"status"`
	DeclineCount  int        `json:"decline_count"`
	CanResend     bool       `json:"can_resend"`
	LastActionAt  *time.Time `json:"last_action_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	// ChatID 仅在接受成功后返回
	ChatID string `json:"chat_id,omitempty"`
}

// RequestService 会话请求服务：状态机 PENDING → {ACCEPTED, REJECTED}，
// 接受时创建（或复用）会话并生成信封密钥。
type RequestService struct {
	db          *gorm.DB
	requestRepo chatrequest.Repository
	chatRepo    chat.Repository
	userRepo    user.Repository
	vault       *crypto.KeyVault
}

// NewRequestService 创建会话请求服务
func NewRequestService(
	db *gorm.DB,
	requestRepo chatrequest.Repository,
	chatRepo chat.Repository,
	userRepo user.Repository,
	vault *crypto.KeyVault,
) *RequestService {
	return &RequestService{
		db:          db,
		requestRepo: requestRepo,
		chatRepo:    chatRepo,
		userRepo:    userRepo,
		vault:       vault,
	}
}

// SendRequest 发起（或重发）会话请求
func (s *RequestService) SendRequest(ctx context.Context, senderID, recipientID int64) (*RequestView, error) {
	if senderID == recipientID {
		return nil, apperrors.ErrSelfRequest
	}

	// 收件人不存在与被拉黑返回同一个错误，不泄露用户是否存在
	recipient, err := s.userRepo.GetByID(ctx, recipientID)
	if err != nil {
		return nil, err
	}
	if recipient == nil {
		return nil, apperrors.ErrBlockedPair
	}
	blocked, err := s.userRepo.IsBlockedBetween(ctx, senderID, recipientID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, apperrors.ErrBlockedPair
	}

	var result *chatrequest.ChatRequest
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 已建会话的一对用户不再走请求流程
		low, high := chat.PairOf(senderID, recipientID)
		var existingChat chat.Chat
		if err := tx.Where("user_low_id = ? AND user_high_id = ?", low, high).
			First(&existingChat).Error; err == nil {
			return apperrors.ErrRequestAccepted
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		var r chatrequest.ChatRequest
		err := forUpdate(tx).
			Where("sender_id = ? AND recipient_id = ?", senderID, recipientID).
			First(&r).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// 首次请求
			now := time.Now()
			r = chatrequest.ChatRequest{
				SenderID:     senderID,
				RecipientID:  recipientID,
				Status:       chatrequest.StatusPending,
				LastActionAt: &now,
			}
			if err := tx.Create(&r).Error; err != nil {
				return err
			}
			result = &r
			return nil
		}
		if err != nil {
			return err
		}

		switch r.Status {
		case chatrequest.StatusPending:
			return apperrors.ErrRequestPending
		case chatrequest.StatusAccepted:
			return apperrors.ErrRequestAccepted
		case chatrequest.StatusRejected:
			// 被拒后可重发，累计拒绝次数达到上限则永久关闭
			if r.DeclineCount >= chatrequest.MaxDeclines {
				return apperrors.ErrRequestCapped
			}
			now := time.Now()
			r.Status = chatrequest.StatusPending
			r.LastActionAt = &now
			if err := tx.Save(&r).Error; err != nil {
				return err
			}
			result = &r
			return nil
		}
		return apperrors.Conflict("request in unknown state")
	})
	if err != nil {
		return nil, err
	}
	return s.toView(ctx, result), nil
}

// AcceptRequest 接受请求：状态置 ACCEPTED 并创建会话。
// 会话按无序对唯一，已存在时直接复用。
func (s *RequestService) AcceptRequest(ctx context.Context, requestID, userID int64) (*RequestView, error) {
	var (
		result *chatrequest.ChatRequest
		chatID string
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r chatrequest.ChatRequest
		if err := forUpdate(tx).First(&r, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrRequestNotFound
			}
			return err
		}
		if r.RecipientID != userID {
			return apperrors.ErrNotAllowed
		}
		if r.Status != chatrequest.StatusPending {
			return apperrors.ErrRequestNotPending
		}

		blocked, err := s.userRepo.IsBlockedBetween(ctx, r.SenderID, r.RecipientID)
		if err != nil {
			return err
		}
		if blocked {
			return apperrors.ErrBlockedPair
		}

		now := time.Now()
		r.Status = chatrequest.StatusAccepted
		r.LastActionAt = &now
		if err := tx.Save(&r).Error; err != nil {
			return err
		}

		c, err := s.ensureChat(tx, r.SenderID, r.RecipientID, userID)
		if err != nil {
			return err
		}
		chatID = c.ChatID
		result = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	v := s.toView(ctx, result)
	v.ChatID = chatID
	return v, nil
}

// RejectRequest 拒绝请求并累计拒绝次数
func (s *RequestService) RejectRequest(ctx context.Context, requestID, userID int64) (*RequestView, error) {
	var result *chatrequest.ChatRequest
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var r chatrequest.ChatRequest
		if err := forUpdate(tx).First(&r, requestID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrRequestNotFound
			}
			return err
		}
		if r.RecipientID != userID {
			return apperrors.ErrNotAllowed
		}
		if r.Status != chatrequest.StatusPending {
			return apperrors.ErrRequestNotPending
		}

		now := time.Now()
		r.Status = chatrequest.StatusRejected
		r.DeclineCount++
		r.LastActionAt = &now
		if err := tx.Save(&r).Error; err != nil {
			return err
		}
		result = &r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.toView(ctx, result), nil
}

// ensureChat 创建或复用一对用户的会话。并发双写时靠 uk_chat_pair
// 唯一索引兜底：创建失败后回查，拿到对方先建的那条。
func (s *RequestService) ensureChat(tx *gorm.DB, senderID, recipientID, createdBy int64) (*chat.Chat, error) {
	low, high := chat.PairOf(senderID, recipientID)

	var existing chat.Chat
	err := tx.Where("user_low_id = ? AND user_high_id = ?", low, high).
		First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	env, err := s.vault.WrapNewChatKey()
	if err != nil {
		return nil, err
	}
	c := chat.Chat{
		ChatID:           "chat_" + uuid.NewString(),
		UserLowID:        low,
		UserHighID:       high,
		CreatedBy:        createdBy,
		ChatKeyID:        env.ChatKeyID,
		EncryptedChatKey: env.EncryptedChatKey,
		Algorithm:        env.Algorithm,
	}
	if err := tx.Create(&c).Error; err != nil {
		// REPEATABLE READ 下快照读可能看不到并发提交的行，回查要加锁读
		if ferr := forUpdate(tx).Where("user_low_id = ? AND user_high_id = ?", low, high).
			First(&existing).Error; ferr == nil {
			return &existing, nil
		}
		return nil, err
	}
	return &c, nil
}

// ListIncoming 待处理的收到请求
func (s *RequestService) ListIncoming(ctx context.Context, userID int64) ([]*RequestView, error) {
	rs, err := s.requestRepo.ListIncoming(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*RequestView, 0, len(rs))
	for _, r := range rs {
		out = append(out, s.toView(ctx, r))
	}
	return out, nil
}

// ListOutgoing 发出的全部请求
func (s *RequestService) ListOutgoing(ctx context.Context, userID int64) ([]*RequestView, error) {
	rs, err := s.requestRepo.ListOutgoing(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*RequestView, 0, len(rs))
	for _, r := range rs {
		out = append(out, s.toView(ctx, r))
	}
	return out, nil
}

func (s *RequestService) toView(ctx context.Context, r *chatrequest.ChatRequest) *RequestView {
	v := &RequestView{
		ID:           r.ID,
		SenderID:     r.SenderID,
		RecipientID:  r.RecipientID,
		Status:       string(r.Status),
		DeclineCount: r.DeclineCount,
		CanResend:    r.Status == chatrequest.StatusRejected && r.DeclineCount < chatrequest.MaxDeclines,
		LastActionAt: r.LastActionAt,
		CreatedAt:    r.CreatedAt,
	}
	// 用户名查不到不影响主流程
	if u, err := s.userRepo.GetByID(ctx, r.SenderID); err == nil && u != nil {
		v.SenderName = u.Username
	} else if err != nil {
		zap.S().Warnw("load sender failed", "user_id", r.SenderID, "err", err)
	}
	if u, err := s.userRepo.GetByID(ctx, r.RecipientID); err == nil && u != nil {
		v.RecipientName = u.Username
	}
	return v
}
