package service

import (
	"fmt"

	radix "github.com/mediocregopher/radix/v3"
)

const (
	redisUnreadKey = "chat:unread:%s:%d" // chatID, userID
)

// UnreadCounter 基于 Redis 的会话未读数计数器。
// 计数只影响列表展示，Redis 出错时降级为 0，不阻塞收发。
type UnreadCounter struct {
	redis radix.Client
}

// NewUnreadCounter 创建未读数计数器
func NewUnreadCounter(redis radix.Client) *UnreadCounter {
	return &UnreadCounter{redis: redis}
}

// Incr 给某个用户在某会话中的未读数加一
func (c *UnreadCounter) Incr(chatID string, userID int64) {
	if c == nil || c.redis == nil {
		return
	}
	key := fmt.Sprintf(redisUnreadKey, chatID, userID)
	if err := c.redis.Do(radix.Cmd(nil, "INCR", key)); err != nil {
		GetMonitor().RecordRedisError()
	}
}

// Get 返回某个用户在某会话中的未读数
func (c *UnreadCounter) Get(chatID string, userID int64) int64 {
	if c == nil || c.redis == nil {
		return 0
	}
	key := fmt.Sprintf(redisUnreadKey, chatID, userID)
	var n int64
	if err := c.redis.Do(radix.Cmd(&n, "GET", key)); err != nil {
		GetMonitor().RecordRedisError()
		return 0
	}
	return n
}

// Reset 用户读取会话后清零未读数
func (c *UnreadCounter) Reset(chatID string, userID int64) {
	if c == nil || c.redis == nil {
		return
	}
	key := fmt.Sprintf(redisUnreadKey, chatID, userID)
	if err := c.redis.Do(radix.Cmd(nil, "DEL", key)); err != nil {
		GetMonitor().RecordRedisError()
	}
}
