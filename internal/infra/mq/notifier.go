package mq

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// NotifyQueue 新消息通知队列，推送分发由队列消费方负责
const NotifyQueue = "chat_notify"

// NewMessageEvent 新消息事件载荷：核心只暴露消息 ID 和房间编码，
// 实时推送是消费方的事
type NewMessageEvent struct {
	RoomCode  string `json:"room_code"`
	MessageID uint64 `json:"message_id"`
	SenderID  *int64 `json:"sender_id,omitempty"` // nil 表示系统消息
	Preview   string `json:"preview"`
	SentAt    int64  `json:"sent_at"` // unix 秒
}

// Notifier 把新消息事件写入 MQ
type Notifier struct {
	conn *amqp.Connection
}

// NewNotifier 构建通知器，conn 为 nil 时所有发布都静默跳过（测试用）
func NewNotifier(conn *amqp.Connection) *Notifier {
	return &Notifier{conn: conn}
}

// PublishNewMessage 发布新消息事件，失败只影响推送不影响已提交的消息
func (n *Notifier) PublishNewMessage(ctx context.Context, ev *NewMessageEvent) error {
	if n == nil || n.conn == nil {
		return nil
	}

	ch, err := n.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(NotifyQueue, true, false, false, false, nil); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(
		ctx,
		"",
		NotifyQueue,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        body,
		},
	)
}
