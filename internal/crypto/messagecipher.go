package crypto

// EncryptMessage 用解开后的会话密钥加密一条文本消息体。
// 每次调用内部生成新 nonce，相同明文相同密钥也会得到不同的密文。
func EncryptMessage(chatKey []byte, plaintext string) (string, error) {
	return seal(chatKey, []byte(plaintext))
}

// DecryptMessage 解密消息体；认证失败返回 ErrAuthFailed。
// 列表读取路径的调用方应把失败降级为“内容不可读”，而不是让单条
// 损坏的消息拖垮整页请求。
func DecryptMessage(chatKey []byte, blob string) (string, error) {
	plaintext, err := open(chatKey, blob)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
