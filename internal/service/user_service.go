package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"

	"github.com/RajashekarChelimala/comrade-backend/internal/apperrors"
	"github.com/RajashekarChelimala/comrade-backend/internal/auth"
	"github.com/RajashekarChelimala/comrade-backend/internal/config"
	"github.com/RajashekarChelimala/comrade-backend/internal/datamodels/user"
)

type UserService struct {
	repo user.Repository
	jwt  *config.JWTConfig
}

func NewUserService(repo user.Repository, jwt *config.JWTConfig) *UserService {
	return &UserService{repo: repo, jwt: jwt}
}

func hashPassword(raw, salt string) string {
	h := sha256.Sum256([]byte(raw + salt))
	return hex.EncodeToString(h[:])
}

func newSalt() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

// Register 注册新用户
func (s *UserService) Register(ctx context.Context, username, password, name string) (*user.User, error) {
	if username == "" || password == "" {
		return nil, apperrors.InvalidArg("username and password are required")
	}
	existing, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperrors.Conflict("username already taken")
	}
	u := &user.User{
		Username: username,
		Name:     name,
		Salt:     newSalt(),
	}
	u.Password = hashPassword(password, u.Salt)
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login 登录并返回 JWT
func (s *UserService) Login(ctx context.Context, username, password string) (string, *user.User, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return "", nil, err
	}
	if u == nil || hashPassword(password, u.Salt) != u.Password {
		// 用户名不存在与密码错误返回同一个错误
		return "", nil, apperrors.AuthFailure("invalid username or password")
	}
	token, err := auth.GenerateToken(s.jwt, u.ID, u.Username)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// GetByID 按 ID 取用户
func (s *UserService) GetByID(ctx context.Context, id int64) (*user.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperrors.ErrUserNotFound
	}
	return u, nil
}

// Block 拉黑某个用户；重复拉黑幂等
func (s *UserService) Block(ctx context.Context, blockerID, blockedID int64) error {
	if blockerID == blockedID {
		return apperrors.InvalidArg("cannot block yourself")
	}
	target, err := s.repo.GetByID(ctx, blockedID)
	if err != nil {
		return err
	}
	if target == nil {
		return apperrors.ErrUserNotFound
	}
	return s.repo.Block(ctx, blockerID, blockedID)
}

// Unblock 解除拉黑；本就没有拉黑也算成功
func (s *UserService) Unblock(ctx context.Context, blockerID, blockedID int64) error {
	return s.repo.Unblock(ctx, blockerID, blockedID)
}
