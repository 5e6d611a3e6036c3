package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/RajashekarChelimala/comrade-backend/internal/apperrors"
	"github.com/RajashekarChelimala/comrade-backend/internal/datamodels/chat"
	"github.com/RajashekarChelimala/comrade-backend/internal/datamodels/chatrequest"
)

func TestSendRequest_Basics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.mustUser(t, "alice")
	bob := f.mustUser(t, "bob")

	t.Run("self request rejected", func(t *testing.T) {
		_, err := f.requestSvc.SendRequest(ctx, alice, alice)
		assert.ErrorIs(t, err, apperrors.ErrSelfRequest)
	})

	t.Run("unknown recipient hidden behind blocked error", func(t *testing.T) {
		_, err := f.requestSvc.SendRequest(ctx, alice, 9999)
		assert.ErrorIs(t, err, apperrors.ErrBlockedPair)
	})

	t.Run("first request is pending", func(t *testing.T) {
		v, err := f.requestSvc.SendRequest(ctx, alice, bob)
		require.NoError(t, err)
		assert.Equal(t, string(chatrequest.StatusPending), v.Status)
		assert.Equal(t, "alice", v.SenderName)
		assert.Equal(t, "bob", v.RecipientName)
	})

	t.Run("duplicate while pending conflicts", func(t *testing.T) {
		_, err := f.requestSvc.SendRequest(ctx, alice, bob)
		assert.ErrorIs(t, err, apperrors.ErrRequestPending)
	})
}

func TestAcceptRequest_CreatesChatOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.mustUser(t, "alice")
	bob := f.mustUser(t, "bob")

	rv, err := f.requestSvc.SendRequest(ctx, alice, bob)
	require.NoError(t, err)

	t.Run("only recipient may accept", func(t *testing.T) {
		_, err := f.requestSvc.AcceptRequest(ctx, rv.ID, alice)
		assert.ErrorIs(t, err, apperrors.ErrNotAllowed)
	})

	av, err := f.requestSvc.AcceptRequest(ctx, rv.ID, bob)
	require.NoError(t, err)
	assert.Equal(t, string(chatrequest.StatusAccepted), av.Status)
	require.NotEmpty(t, av.ChatID)

	t.Run("accept is not repeatable", func(t *testing.T) {
		_, err := f.requestSvc.AcceptRequest(ctx, rv.ID, bob)
		assert.ErrorIs(t, err, apperrors.ErrRequestNotPending)
	})

	t.Run("new request between chatting pair conflicts", func(t *testing.T) {
		_, err := f.requestSvc.SendRequest(ctx, bob, alice)
		assert.ErrorIs(t, err, apperrors.ErrRequestAccepted)
	})

	t.Run("chat has usable envelope key", func(t *testing.T) {
		c, err := f.chatSvc.GetChat(ctx, av.ChatID, alice)
		require.NoError(t, err)
		key, err := f.vault.UnwrapChatKey(c.EncryptedChatKey)
		require.NoError(t, err)
		assert.Len(t, key, 32)
	})

	t.Run("reverse request accepted later reuses the chat", func(t *testing.T) {
		// 正常入口会拦住已建会话的新请求，这里直接造一条反向
		// PENDING 记录模拟并发窗口
		r := &chatrequest.ChatRequest{SenderID: bob, RecipientID: alice, Status: chatrequest.StatusPending}
		require.NoError(t, f.requestRepo.Create(ctx, r))
		v, err := f.requestSvc.AcceptRequest(ctx, r.ID, alice)
		require.NoError(t, err)
		assert.Equal(t, av.ChatID, v.ChatID)
	})
}

func TestAcceptRequest_PairRaceRecovery(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.mustUser(t, "alice")
	bob := f.mustUser(t, "bob")

	rv, err := f.requestSvc.SendRequest(ctx, alice, bob)
	require.NoError(t, err)

	// 在首查之后、落库之前插入竞争行，复现两个接受同时建会话的
	// 窗口：本次插入撞 uk_chat_pair，必须回查复用先建的那条
	low, high := chat.PairOf(alice, bob)
	env, err := f.vault.WrapNewChatKey()
	require.NoError(t, err)
	rival := &chat.Chat{
		ChatID:           "chat_rival",
		UserLowID:        low,
		UserHighID:       high,
		CreatedBy:        bob,
		ChatKeyID:        env.ChatKeyID,
		EncryptedChatKey: env.EncryptedChatKey,
		Algorithm:        env.Algorithm,
	}
	injected := false
	err = f.db.Callback().Create().Before("gorm:create").Register("inject_rival_chat", func(tx *gorm.DB) {
		if injected || tx.Statement.Schema == nil || tx.Statement.Schema.Table != "chats" {
			return
		}
		injected = true
		require.NoError(t, tx.Session(&gorm.Session{NewDB: true}).Create(rival).Error)
	})
	require.NoError(t, err)

	av, err := f.requestSvc.AcceptRequest(ctx, rv.ID, bob)
	require.NoError(t, err)
	require.True(t, injected)
	assert.Equal(t, "chat_rival", av.ChatID)

	var count int64
	require.NoError(t, f.db.Model(&chat.Chat{}).
		Where("user_low_id = ? AND user_high_id = ?", low, high).
		Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRejectResendAndCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.mustUser(t, "alice")
	bob := f.mustUser(t, "bob")

	rv, err := f.requestSvc.SendRequest(ctx, alice, bob)
	require.NoError(t, err)

	t.Run("only recipient may reject", func(t *testing.T) {
		_, err := f.requestSvc.RejectRequest(ctx, rv.ID, alice)
		assert.ErrorIs(t, err, apperrors.ErrNotAllowed)
	})

	for i := 1; i <= chatrequest.MaxDeclines; i++ {
		v, err := f.requestSvc.RejectRequest(ctx, rv.ID, bob)
		require.NoError(t, err)
		assert.Equal(t, string(chatrequest.StatusRejected), v.Status)
		assert.Equal(t, i, v.DeclineCount)

		if i < chatrequest.MaxDeclines {
			assert.True(t, v.CanResend)
			v, err = f.requestSvc.SendRequest(ctx, alice, bob)
			require.NoError(t, err)
			assert.Equal(t, string(chatrequest.StatusPending), v.Status)
			// 重发不清零已有的拒绝计数
			assert.Equal(t, i, v.DeclineCount)
		}
	}

	// 第三次拒绝后永久关闭
	_, err = f.requestSvc.SendRequest(ctx, alice, bob)
	assert.ErrorIs(t, err, apperrors.ErrRequestCapped)

	t.Run("missing request", func(t *testing.T) {
		_, err := f.requestSvc.AcceptRequest(ctx, 424242, bob)
		assert.ErrorIs(t, err, apperrors.ErrRequestNotFound)
	})
}

func TestRequests_BlockingGates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.mustUser(t, "alice")
	bob := f.mustUser(t, "bob")
	carol := f.mustUser(t, "carol")

	t.Run("blocked pair cannot start a request", func(t *testing.T) {
		require.NoError(t, f.userSvc.Block(ctx, bob, alice))
		_, err := f.requestSvc.SendRequest(ctx, alice, bob)
		assert.ErrorIs(t, err, apperrors.ErrBlockedPair)

		// 解除后恢复
		require.NoError(t, f.userSvc.Unblock(ctx, bob, alice))
		_, err = f.requestSvc.SendRequest(ctx, alice, bob)
		require.NoError(t, err)
	})

	t.Run("block landed between send and accept", func(t *testing.T) {
		rv, err := f.requestSvc.SendRequest(ctx, alice, carol)
		require.NoError(t, err)
		require.NoError(t, f.userSvc.Block(ctx, carol, alice))
		_, err = f.requestSvc.AcceptRequest(ctx, rv.ID, carol)
		assert.ErrorIs(t, err, apperrors.ErrBlockedPair)
	})
}

func TestRequestListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.mustUser(t, "alice")
	bob := f.mustUser(t, "bob")
	carol := f.mustUser(t, "carol")

	_, err := f.requestSvc.SendRequest(ctx, alice, carol)
	require.NoError(t, err)
	rv, err := f.requestSvc.SendRequest(ctx, bob, carol)
	require.NoError(t, err)
	_, err = f.requestSvc.RejectRequest(ctx, rv.ID, carol)
	require.NoError(t, err)

	incoming, err := f.requestSvc.ListIncoming(ctx, carol)
	require.NoError(t, err)
	require.Len(t, incoming, 1)
	assert.Equal(t, alice, incoming[0].SenderID)

	outgoing, err := f.requestSvc.ListOutgoing(ctx, bob)
	require.NoError(t, err)
	require.Len(t, outgoing, 1)
	assert.Equal(t, string(chatrequest.StatusRejected), outgoing[0].Status)
	assert.True(t, outgoing[0].CanResend)
}
