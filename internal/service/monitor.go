package service

import (
	"sync"
	"time"
)

// Monitor 运行期计数，用于 /stats 接口和排障
type Monitor struct {
	mu sync.RWMutex

	// 业务统计
	RoomsCreated   int64
	MessagesSent   int64
	SystemMessages int64
	CursorAdvances int64

	// 错误统计
	RedisErrors int64
	MQErrors    int64
	DBErrors    int64

	// 时间统计
	LastMessageTime time.Time
	LastRedisError  time.Time
	LastMQError     time.Time
	LastDBError     time.Time
}

var globalMonitor = &Monitor{}

// GetMonitor 获取全局监控实例
func GetMonitor() *Monitor {
	return globalMonitor
}

// RecordRoomCreated 记录房间创建
func (m *Monitor) RecordRoomCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RoomsCreated++
}

// RecordMessageSent 记录普通消息发送
func (m *Monitor) RecordMessageSent() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.MessagesSent++
	m.LastMessageTime = time.Now()
}

// RecordSystemMessage 记录系统消息
func (m *Monitor) RecordSystemMessage() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SystemMessages++
}

// RecordCursorAdvance 记录读游标前移
func (m *Monitor) RecordCursorAdvance() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CursorAdvances++
}

// RecordRedisError 记录 Redis 错误
func (m *Monitor) RecordRedisError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RedisErrors++
	m.LastRedisError = time.Now()
}

// RecordMQError 记录 MQ 错误
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

// Snapshot 导出当前计数
func (m *Monitor) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]interface{}{
		"rooms_created":     m.RoomsCreated,
		"messages_sent":     m.MessagesSent,
		"system_messages":   m.SystemMessages,
		"cursor_advances":   m.CursorAdvances,
		"redis_errors":      m.RedisErrors,
		"mq_errors":         m.MQErrors,
		"db_errors":         m.DBErrors,
		"last_message_time": m.LastMessageTime,
	}
}
