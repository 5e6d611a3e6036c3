package mysql

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/RajashekarChelimala/comrade-backend/internal/datamodels/user"
)

type userRepo struct {
	db *gorm.DB
}

// NewUserRepository 创建用户仓储
func NewUserRepository(db *gorm.DB) user.Repository {
	return &userRepo{db: db}
}

func (r *userRepo) Create(ctx context.Context, u *user.User) error {
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return errors.Wrap(err, "userRepo.Create")
	}
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id int64) (*user.User, error) {
	var u user.User
	if err := r.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "userRepo.GetByID")
	}
	return &u, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	var u user.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "userRepo.GetByUsername")
	}
	return &u, nil
}

func (r *userRepo) Block(ctx context.Context, blockerID, blockedID int64) error {
	b := &user.Block{BlockerID: blockerID, BlockedID: blockedID}
	// 重复拉黑是无操作，不报错
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(b).Error
	if err != nil {
		return errors.Wrap(err, "userRepo.Block")
	}
	return nil
}

func (r *userRepo) Unblock(ctx context.Context, blockerID, blockedID int64) error {
	err := r.db.WithContext(ctx).
		Where("blocker_id = ? AND blocked_id = ?", blockerID, blockedID).
		Delete(&user.Block{}).Error
	if err != nil {
		return errors.Wrap(err, "userRepo.Unblock")
	}
	return nil
}

func (r *userRepo) IsBlockedBetween(ctx context.Context, a, b int64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&user.Block{}).
		Where("(blocker_id = ? AND blocked_id = ?) OR (blocker_id = ? AND blocked_id = ?)", a, b, b, a).
		Count(&count).Error
	if err != nil {
		return false, errors.Wrap(err, "userRepo.IsBlockedBetween")
	}
	return count > 0, nil
}
