package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"

	"github.com/RajashekarChelimala/comrade-backend/internal/apperrors"
)

// Algorithm 信封与消息体共用的 AEAD 算法标识，随信封一起落库
const Algorithm = "aes-256-gcm"

const (
	nonceSize = 12
	tagSize   = 16
	keySize   = 32
)

// seal AEAD 加密并打包为 nonce‖tag‖密文 的存储布局，base64 编码。
// nonce 在函数内部从 crypto/rand 取新值，调用方无法复用。
func seal(key, plaintext []byte) (string, error) {
	aead, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	// Seal 的输出是 密文‖tag，存储布局要求 tag 在前
	sealed := aead.Seal(nil, nonce, plaintext, nil)
	body := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	buf := make([]byte, 0, nonceSize+tagSize+len(body))
	buf = append(buf, nonce...)
	buf = append(buf, tag...)
	buf = append(buf, body...)
	return base64.StdEncoding.EncodeToString(buf), nil
}

// open 解包 nonce‖tag‖密文 并解密；认证失败返回 ErrAuthFailed，
// 调用方绝不能把它当成功处理。
func open(key []byte, blob string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, apperrors.ErrAuthFailed
	}
	if len(raw) < nonceSize+tagSize {
		return nil, apperrors.ErrAuthFailed
	}

	nonce := raw[:nonceSize]
	tag := raw[nonceSize : nonceSize+tagSize]
	body := raw[nonceSize+tagSize:]

	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(body)+tagSize)
	sealed = append(sealed, body...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, apperrors.ErrAuthFailed
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
