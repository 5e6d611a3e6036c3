package crypto

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyVault_RequiresSecret(t *testing.T) {
	_, err := NewKeyVault("")
	require.Error(t, err)

	v, err := NewKeyVault("any memorable string works")
	require.NoError(t, err)
	require.NotNil(t, v)
}

func TestKeyVault_WrapUnwrapChatKey(t *testing.T) {
	v, err := NewKeyVault("master-secret")
	require.NoError(t, err)

	env, err := v.WrapNewChatKey()
	require.NoError(t, err)
	assert.NotEmpty(t, env.ChatKeyID)
	assert.Equal(t, Algorithm, env.Algorithm)

	key, err := v.UnwrapChatKey(env.EncryptedChatKey)
	require.NoError(t, err)
	assert.Len(t, key, 32)

	// 每个会话拿到的密钥各不相同
	env2, err := v.WrapNewChatKey()
	require.NoError(t, err)
	key2, err := v.UnwrapChatKey(env2.EncryptedChatKey)
	require.NoError(t, err)
	assert.NotEqual(t, key, key2)
	assert.NotEqual(t, env.ChatKeyID, env2.ChatKeyID)
}

func TestKeyVault_WrongMasterKey(t *testing.T) {
	v1, err := NewKeyVault("secret-one")
	require.NoError(t, err)
	v2, err := NewKeyVault("secret-two")
	require.NoError(t, err)

	env, err := v1.WrapNewChatKey()
	require.NoError(t, err)

	_, err = v2.UnwrapChatKey(env.EncryptedChatKey)
	require.Error(t, err)
}

func TestMessageCipher_RoundTrip(t *testing.T) {
	v, err := NewKeyVault("master-secret")
	require.NoError(t, err)
	env, err := v.WrapNewChatKey()
	require.NoError(t, err)
	key, err := v.UnwrapChatKey(env.EncryptedChatKey)
	require.NoError(t, err)

	cases := []string{
		"hello",
		"",
		"多字节字符 🎉 тоже работает",
		string([]byte{0, 1, 2, 255}),
	}
	for _, plain := range cases {
		blob, err := EncryptMessage(key, plain)
		require.NoError(t, err)

		got, err := DecryptMessage(key, blob)
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestMessageCipher_NonceIsFresh(t *testing.T) {
	v, _ := NewKeyVault("master-secret")
	env, _ := v.WrapNewChatKey()
	key, _ := v.UnwrapChatKey(env.EncryptedChatKey)

	a, err := EncryptMessage(key, "same plaintext")
	require.NoError(t, err)
	b, err := EncryptMessage(key, "same plaintext")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestMessageCipher_TamperDetected(t *testing.T) {
	v, _ := NewKeyVault("master-secret")
	env, _ := v.WrapNewChatKey()
	key, _ := v.UnwrapChatKey(env.EncryptedChatKey)

	blob, err := EncryptMessage(key, "authentic content")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(blob)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0x01
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = DecryptMessage(key, tampered)
	require.Error(t, err)
}

func TestMessageCipher_GarbageInput(t *testing.T) {
	v, _ := NewKeyVault("master-secret")
	env, _ := v.WrapNewChatKey()
	key, _ := v.UnwrapChatKey(env.EncryptedChatKey)

	for _, blob := range []string{"", "not base64 at all!!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		_, err := DecryptMessage(key, blob)
		assert.Error(t, err, "blob %q", blob)
	}
}
