package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RajashekarChelimala/comrade-backend/internal/apperrors"
)

func TestUserService_RegisterAndLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.userSvc.Register(ctx, "alice", "password1", "Alice")
	require.NoError(t, err)
	assert.NotEqual(t, "password1", u.Password)
	assert.NotEmpty(t, u.Salt)

	t.Run("duplicate username", func(t *testing.T) {
		_, err := f.userSvc.Register(ctx, "alice", "other", "")
		assert.Equal(t, apperrors.CodeConflict, apperrors.CodeOf(err))
	})

	t.Run("login success", func(t *testing.T) {
		token, got, err := f.userSvc.Login(ctx, "alice", "password1")
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.Equal(t, u.ID, got.ID)
	})

	t.Run("wrong password and unknown user look alike", func(t *testing.T) {
		_, _, err1 := f.userSvc.Login(ctx, "alice", "wrong")
		_, _, err2 := f.userSvc.Login(ctx, "nobody", "wrong")
		require.Error(t, err1)
		require.Error(t, err2)
		assert.Equal(t, err1.Error(), err2.Error())
	})

	t.Run("salts differ between users", func(t *testing.T) {
		v, err := f.userSvc.Register(ctx, "bob", "password1", "")
		require.NoError(t, err)
		assert.NotEqual(t, u.Salt, v.Salt)
		assert.NotEqual(t, u.Password, v.Password)
	})
}

func TestUserService_BlockValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.mustUser(t, "alice")

	assert.Error(t, f.userSvc.Block(ctx, alice, alice))
	assert.ErrorIs(t, f.userSvc.Block(ctx, alice, 9999), apperrors.ErrUserNotFound)
	// 没拉黑过也能解除
	assert.NoError(t, f.userSvc.Unblock(ctx, alice, 9999))
}
