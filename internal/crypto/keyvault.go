package crypto

import (
	"crypto/rand"
	"crypto/sha256"

	"github.com/google/uuid"

	"github.com/RajashekarChelimala/comrade-backend/internal/apperrors"
)

// ChatKeyEnvelope 会话密钥信封：数据密钥用主密钥封装后的落库形态
type ChatKeyEnvelope struct {
	ChatKeyID        string `json:"chatKeyId"`
	EncryptedChatKey string `json:"encryptedChatKey"`
	Algorithm        string `json:"algorithm"`
}

// KeyVault 信封加密：每个会话持有独立的 256 位数据密钥，数据密钥
// 用主密钥 AES-256-GCM 封装后存库。主密钥由配置的秘密字符串经
// SHA-256 派生为固定宽度，进程启动时确定，整个生命周期不变。
//
// 泄露一把解开的会话密钥只暴露该会话；拿到主密钥还需要窃取库中的
// 信封才有用。
type KeyVault struct {
	masterKey []byte
}

// NewKeyVault 派生主密钥；秘密缺失是配置级致命错误，进程不应继续服务
func NewKeyVault(masterSecret string) (*KeyVault, error) {
	if masterSecret == "" {
		return nil, apperrors.Fatal("CHAT_ENCRYPTION_MASTER_KEY is not configured")
	}
	sum := sha256.Sum256([]byte(masterSecret))
	return &KeyVault{masterKey: sum[:]}, nil
}

// WrapNewChatKey 生成一把新的随机会话密钥并封装
func (v *KeyVault) WrapNewChatKey() (*ChatKeyEnvelope, error) {
	key := make([]byte, keySize)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	defer zeroBytes(key)

	blob, err := seal(v.masterKey, key)
	if err != nil {
		return nil, err
	}

	return &ChatKeyEnvelope{
		ChatKeyID:        uuid.NewString(),
		EncryptedChatKey: blob,
		Algorithm:        Algorithm,
	}, nil
}

// UnwrapChatKey 解开信封取回会话密钥；认证失败返回 ErrAuthFailed
func (v *KeyVault) UnwrapChatKey(encryptedChatKey string) ([]byte, error) {
	return open(v.masterKey, encryptedChatKey)
}
