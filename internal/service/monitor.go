package service

import (
	"sync"
	"time"
)

// Monitor 监控服务，用于统计错误和业务指标
type Monitor struct {
	mu sync.RWMutex

	// 错误统计
	RedisErrors   int64
	MQErrors      int64
	DBErrors      int64
	StorageErrors int64
	SweepErrors   int64

	// 业务统计
	SendRequests   int64
	SendSuccess    int64
	FanoutEvents   int64
	FanoutDropped  int64
	SweepReclaimed int64

	// 时间统计
	LastRedisError   time.Time
	LastMQError      time.Time
	LastDBError      time.Time
	LastStorageError time.Time
	LastSendTime     time.Time
	LastSweepTime    time.Time
}

var globalMonitor = &Monitor{}

// GetMonitor 获取全局监控实例
func GetMonitor() *Monitor {
	return globalMonitor
}

// RecordRedisError 记录Redis错误
func (m *Monitor) RecordRedisError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RedisErrors++
	m.LastRedisError = time.Now()
}

// RecordMQError 记录MQ错误
func (m *Monitor) RecordMQError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MQErrors++
	m.LastMQError = time.Now()
}

// RecordDBError 记录数据库错误
func (m *Monitor) RecordDBError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DBErrors++
	m.LastDBError = time.Now()
}

// RecordStorageError 记录对象存储错误
func (m *Monitor) RecordStorageError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StorageErrors++
	m.LastStorageError = time.Now()
}

// RecordSendRequest 记录发消息请求
func (m *Monitor) RecordSendRequest() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendRequests++
	m.LastSendTime = time.Now()
}

// RecordSendSuccess 记录发消息成功
func (m *Monitor) RecordSendSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SendSuccess++
}

// RecordFanoutEvent 记录实时事件广播
func (m *Monitor) RecordFanoutEvent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FanoutEvents++
}

// RecordFanoutDropped 记录因订阅方过慢被丢弃的事件
func (m *Monitor) RecordFanoutDropped() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FanoutDropped++
}

// RecordSweepReclaimed 记录清理任务回收的媒体数量
func (m *Monitor) RecordSweepReclaimed(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SweepReclaimed += n
	m.LastSweepTime = time.Now()
}

// RecordSweepError 记录清理任务失败
func (m *Monitor) RecordSweepError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SweepErrors++
	m.LastSweepTime = time.Now()
}

// GetStats 获取统计信息
func (m *Monitor) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sendSuccessRate := float64(0)
	if m.SendRequests > 0 {
		sendSuccessRate = float64(m.SendSuccess) / float64(m.SendRequests) * 100
	}

	return map[string]interface{}{
		"errors": map[string]interface{}{
			"redis":   m.RedisErrors,
			"mq":      m.MQErrors,
			"db":      m.DBErrors,
			"storage": m.StorageErrors,
			"sweep":   m.SweepErrors,
		},
		"performance": map[string]interface{}{
			"send_requests":     m.SendRequests,
			"send_success":      m.SendSuccess,
			"send_success_rate": sendSuccessRate,
			"fanout_events":     m.FanoutEvents,
			"fanout_dropped":    m.FanoutDropped,
			"sweep_reclaimed":   m.SweepReclaimed,
		},
		"last_events": map[string]interface{}{
			"redis_error":   m.LastRedisError,
			"mq_error":      m.LastMQError,
			"db_error":      m.LastDBError,
			"storage_error": m.LastStorageError,
			"last_send":     m.LastSendTime,
			"last_sweep":    m.LastSweepTime,
		},
	}
}

// Reset 重置统计（用于测试或定期清理）
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RedisErrors = 0
	m.MQErrors = 0
	m.DBErrors = 0
	m.StorageErrors = 0
	m.SweepErrors = 0
	m.SendRequests = 0
	m.SendSuccess = 0
	m.FanoutEvents = 0
	m.FanoutDropped = 0
	m.SweepReclaimed = 0
}
