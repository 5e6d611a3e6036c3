package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RajashekarChelimala/comrade-backend/internal/datamodels/chat"
)

func expiredMedia(t *testing.T, f *fixture, chatID int64, publicID string) *chat.Message {
	t.Helper()
	past := time.Now().Add(-time.Hour)
	m := &chat.Message{
		ChatID:        chatID,
		SenderID:      1,
		Type:          chat.TypeMedia,
		MediaURL:      "http://cdn/" + publicID,
		MediaType:     "image",
		MediaPublicID: publicID,
		ExpiresAt:     &past,
	}
	require.NoError(t, f.messageRepo.Create(context.Background(), m))
	return m
}

func TestSweeper_ReclaimsExpiredMedia(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.mustUser(t, "alice")
	bob := f.mustUser(t, "bob")
	chatID := f.acceptedChat(t, alice, bob)
	c, err := f.chatRepo.GetByChatID(ctx, chatID)
	require.NoError(t, err)

	expired := expiredMedia(t, f, c.ID, "gone-1")
	text, err := f.messageSvc.Send(ctx, alice, SendInput{ChatID: chatID, Type: "text", Text: "stays"})
	require.NoError(t, err)
	saved, err := f.messageSvc.Send(ctx, alice, SendInput{ChatID: chatID, Type: "media", MediaURL: "http://cdn/keep", MediaType: "image", MediaPublicID: "keep-1"})
	require.NoError(t, err)
	_, err = f.messageSvc.SaveMedia(ctx, bob, saved.ID)
	require.NoError(t, err)

	storage := newFakeStorage()
	sweeper := NewSweeperService(f.messageRepo, storage, 100)

	report, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Reclaimed)
	assert.Equal(t, 0, report.Failed)
	assert.Equal(t, []string{"gone-1"}, storage.destroyed)

	// 记录墓碑化但保留在历史里
	got, err := f.messageRepo.GetByID(ctx, expired.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.IsDeleted)
	assert.Empty(t, got.MediaURL)

	// 列表里以墓碑形式出现
	list, err := f.messageSvc.ListMessages(ctx, bob, chatID, nil, 10)
	require.NoError(t, err)
	require.Len(t, list, 3)
	var tombstoned bool
	for _, v := range list {
		if v.ID == expired.ID {
			tombstoned = v.IsDeleted && v.MediaURL == ""
		}
		if v.ID == text.ID {
			assert.Equal(t, "stays", v.Text)
		}
	}
	assert.True(t, tombstoned)

	// 保存过的媒体与文本不受清理影响
	report, err = sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Scanned)
}

func TestSweeper_FailureIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	alice := f.mustUser(t, "alice")
	bob := f.mustUser(t, "bob")
	chatID := f.acceptedChat(t, alice, bob)
	c, err := f.chatRepo.GetByChatID(ctx, chatID)
	require.NoError(t, err)

	failing := expiredMedia(t, f, c.ID, "flaky-1")
	fine := expiredMedia(t, f, c.ID, "gone-2")

	storage := newFakeStorage()
	storage.failing["flaky-1"] = true
	sweeper := NewSweeperService(f.messageRepo, storage, 100)

	report, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Scanned)
	assert.Equal(t, 1, report.Reclaimed)
	assert.Equal(t, 1, report.Failed)

	// 删除失败的那条保持原状，外部资源引用还在
	got, err := f.messageRepo.GetByID(ctx, failing.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDeleted)
	assert.NotEmpty(t, got.MediaURL)

	got, err = f.messageRepo.GetByID(ctx, fine.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)

	// 故障恢复后的下一轮补上
	storage.failing = map[string]bool{}
	report, err = sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Scanned)
	assert.Equal(t, 1, report.Reclaimed)

	got, err = f.messageRepo.GetByID(ctx, failing.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDeleted)
}
