package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/RajashekarChelimala/comrade-backend/internal/config"
	"github.com/RajashekarChelimala/comrade-backend/internal/crypto"
	"github.com/RajashekarChelimala/comrade-backend/internal/datamodels/chat"
	"github.com/RajashekarChelimala/comrade-backend/internal/datamodels/chatrequest"
	"github.com/RajashekarChelimala/comrade-backend/internal/datamodels/user"
	"github.com/RajashekarChelimala/comrade-backend/internal/media"
	"github.com/RajashekarChelimala/comrade-backend/internal/repository/mysql"
)

type emitted struct {
	Topic   string
	Name    string
	Payload interface{}
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (f *fakeEmitter) Emit(topic, name string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, emitted{Topic: topic, Name: name, Payload: payload})
}

func (f *fakeEmitter) byName(name string) []emitted {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []emitted
	for _, e := range f.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// fakeStorage 可编程失败的对象存储替身
type fakeStorage struct {
	mu        sync.Mutex
	destroyed []string
	failing   map[string]bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{failing: make(map[string]bool)}
}

func (f *fakeStorage) Upload(ctx context.Context, base64Data, kind string) (*media.Asset, error) {
	return &media.Asset{URL: "http://cdn/fake", PublicID: "fake-id", Kind: kind}, nil
}

func (f *fakeStorage) Destroy(ctx context.Context, publicID, kind string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failing[publicID] {
		return fmt.Errorf("storage unavailable for %s", publicID)
	}
	f.destroyed = append(f.destroyed, publicID)
	return nil
}

type fixture struct {
	db          *gorm.DB
	userRepo    user.Repository
	requestRepo chatrequest.Repository
	chatRepo    chat.Repository
	messageRepo chat.MessageRepository
	vault       *crypto.KeyVault
	emitter     *fakeEmitter

	userSvc    *UserService
	requestSvc *RequestService
	chatSvc    *ChatService
	messageSvc *MessageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, mysql.Migrate(db))

	vault, err := crypto.NewKeyVault("unit-test-master-secret")
	require.NoError(t, err)

	f := &fixture{
		db:          db,
		userRepo:    mysql.NewUserRepository(db),
		requestRepo: mysql.NewChatRequestRepository(db),
		chatRepo:    mysql.NewChatRepository(db),
		messageRepo: mysql.NewMessageRepository(db),
		vault:       vault,
		emitter:     &fakeEmitter{},
	}
	unread := NewUnreadCounter(nil)
	f.userSvc = NewUserService(f.userRepo, &config.JWTConfig{Secret: "unit-test-secret"})
	f.requestSvc = NewRequestService(db, f.requestRepo, f.chatRepo, f.userRepo, vault)
	f.chatSvc = NewChatService(f.chatRepo, f.userRepo, unread)
	f.messageSvc = NewMessageService(f.chatRepo, f.messageRepo, f.userRepo, vault, unread, f.emitter, time.Hour)
	return f
}

func (f *fixture) mustUser(t *testing.T, username string) int64 {
	t.Helper()
	u := &user.User{Username: username, Password: "hashed", Salt: "salt"}
	require.NoError(t, f.userRepo.Create(context.Background(), u))
	return u.ID
}

// acceptedChat 走完整请求流程建好一个会话
func (f *fixture) acceptedChat(t *testing.T, senderID, recipientID int64) string {
	t.Helper()
	ctx := context.Background()
	rv, err := f.requestSvc.SendRequest(ctx, senderID, recipientID)
	require.NoError(t, err)
	av, err := f.requestSvc.AcceptRequest(ctx, rv.ID, recipientID)
	require.NoError(t, err)
	require.NotEmpty(t, av.ChatID)
	return av.ChatID
}
