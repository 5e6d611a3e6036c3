package apperrors

var (
	// 业务层通用错误
	ErrUserNotFound    = NotFound("user not found")
	ErrChatNotFound    = NotFound("chat not found")
	ErrRequestNotFound = NotFound("request not found")
	ErrMessageNotFound = NotFound("message not found")

	ErrSelfRequest       = InvalidArg("cannot send request to yourself")
	ErrRequestPending    = Conflict("request already pending")
	ErrRequestAccepted   = Conflict("request already accepted")
	ErrRequestNotPending = Conflict("request is not pending")

	ErrBlockedPair   = Forbidden("you cannot contact this user")
	ErrRequestCapped = Forbidden("you cannot send more requests to this user")
	ErrNotAllowed    = Forbidden("not allowed")

	ErrTextRequired    = InvalidArg("text is required for text messages")
	ErrMediaRequired   = InvalidArg("media reference is required for media messages")
	ErrInvalidReaction = InvalidArg("invalid reaction type")
	ErrNotMedia        = InvalidArg("not a media message")

	// ErrAuthFailed AEAD 认证标签校验失败：数据被篡改或主密钥不匹配。
	// 写路径上视为致命错误；读路径按条目降级为“内容不可读”。
	ErrAuthFailed = AuthFailure("content authentication failed")
)
