package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	radix "github.com/mediocregopher/radix/v3"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/example/gochatroom/internal/config"
	"github.com/example/gochatroom/internal/datamodels/chatroom"
	"github.com/example/gochatroom/internal/infra/mq"
	"github.com/example/gochatroom/internal/infra/redis"
	"github.com/example/gochatroom/internal/logger"
	"github.com/example/gochatroom/internal/repository/mysql"
	"github.com/example/gochatroom/internal/service"
)

func init() {
	// 初始化监控
	_ = service.GetMonitor()
}

const unreadCacheKey = "chat:unread:%d:%d" // memberID, roomID

func main() {
	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Server.Debug)

	db := mysql.Init(&cfg.MySQL)
	mqConn := mq.Init(&cfg.RabbitMQ)
	redisClient := redis.Init(&cfg.Redis)

	store := mysql.NewChatStore(db)

	ch, err := mqConn.Channel()
	if err != nil {
		log.Fatalf("failed to open channel: %v", err)
	}
	defer ch.Close()

	if _, err = ch.QueueDeclare(mq.NotifyQueue, true, false, false, false, nil); err != nil {
		log.Fatalf("failed to declare queue: %v", err)
	}

	// 手动确认模式（auto-ack=false）
	msgs, err := ch.Consume(mq.NotifyQueue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatalf("failed to consume: %v", err)
	}

	log.Println("notify worker started, waiting for messages...")

	for d := range msgs {
		var ev mq.NewMessageEvent
		if err := json.Unmarshal(d.Body, &ev); err != nil {
			log.Printf("invalid message: %v", err)
			// 消息格式错误，拒绝并丢弃
			_ = d.Nack(false, false)
			continue
		}
		handleEvent(context.Background(), store, redisClient, &ev, d)
	}
}

// handleEvent 新消息落库后：使收件人的未读数缓存失效，推送分发在这里接入
func handleEvent(ctx context.Context, store chatroom.Store, redisClient radix.Client, ev *mq.NewMessageEvent, d amqp.Delivery) {
	room, err := store.GetRoomByCode(ctx, ev.RoomCode)
	if err != nil {
		log.Printf("get room failed: %v", err)
		service.GetMonitor().RecordDBError()
		// 拒绝消息并重新入队
		_ = d.Nack(false, true)
		return
	}

	members, err := store.ListActiveMembers(ctx, room.ID)
	if err != nil {
		log.Printf("list members failed: %v", err)
		service.GetMonitor().RecordDBError()
		_ = d.Nack(false, true)
		return
	}

	for _, m := range members {
		if ev.SenderID != nil && m.MemberID == *ev.SenderID {
			continue
		}
		key := fmt.Sprintf(unreadCacheKey, m.MemberID, room.ID)
		if err := redisClient.Do(radix.Cmd(nil, "DEL", key)); err != nil {
			log.Printf("failed to invalidate unread cache: %v", err)
			service.GetMonitor().RecordRedisError()
		}
	}

	log.Printf("notified room=%s message=%d recipients=%d", ev.RoomCode, ev.MessageID, len(members))

	if err := d.Ack(false); err != nil {
		log.Printf("failed to ack message: %v", err)
	}
}
