package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/gochatroom/internal/datamodels/chatroom"
	"github.com/example/gochatroom/internal/datamodels/member"
	"github.com/example/gochatroom/internal/infra/mq"
)

// MessageService 普通聊天消息的读写。发送成功后把事件写入 MQ，
// 实时推送由队列消费方负责，发布失败不影响已提交的消息。
type MessageService struct {
	store    chatroom.Store
	members  member.Repository
	rooms    *RoomService
	notifier *mq.Notifier
}

// NewMessageService 创建消息服务
func NewMessageService(store chatroom.Store, members member.Repository, rooms *RoomService, notifier *mq.Notifier) *MessageService {
	return &MessageService{store: store, members: members, rooms: rooms, notifier: notifier}
}

// Send 发送一条 CHAT 消息
func (s *MessageService) Send(ctx context.Context, callerID int64, roomCode, content string) (*MessageDTO, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("%w: 메시지 내용은 필수 입니다", chatroom.ErrInvalidArgument)
	}

	room, err := s.store.GetRoomByCode(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	if !room.Active {
		return nil, fmt.Errorf("%w: 비활성화된 채팅방입니다", chatroom.ErrInvalidState)
	}
	sender, err := s.rooms.requireActiveMembership(ctx, room.ID, callerID)
	if err != nil {
		return nil, err
	}

	msg := chatroom.NewChatMessage(room.ID, callerID, content)
	if err := s.store.CreateMessage(ctx, msg); err != nil {
		GetMonitor().RecordDBError()
		return nil, err
	}
	GetMonitor().RecordMessageSent()

	// 发送者自己立即视为已读
	if _, err := s.store.AdvanceCursor(ctx, sender.ID, msg.ID); err != nil {
		zap.L().Warn("advance sender cursor failed", zap.Error(err))
	}

	ev := &mq.NewMessageEvent{
		RoomCode:  room.RoomCode,
		MessageID: msg.ID,
		SenderID:  msg.SenderID,
		Preview:   preview(content),
		SentAt:    msg.CreatedAt.Unix(),
	}
	if err := s.notifier.PublishNewMessage(ctx, ev); err != nil {
		GetMonitor().RecordMQError()
		zap.L().Warn("publish new message event failed",
			zap.String("room_code", roomCode), zap.Error(err))
	}

	info, err := s.members.GetByID(ctx, callerID)
	if err != nil {
		return nil, err
	}
	return &MessageDTO{
		ID:         msg.ID,
		Content:    msg.Content,
		Type:       string(msg.MessageType),
		SenderID:   msg.SenderID,
		SenderName: info.Name,
		SentAt:     msg.CreatedAt,
	}, nil
}

// List 分页返回房间消息，从新到旧
func (s *MessageService) List(ctx context.Context, callerID int64, roomCode string, page, size int) (*MessageListDTO, error) {
	room, err := s.store.GetRoomByCode(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	if _, err := s.rooms.requireActiveMembership(ctx, room.ID, callerID); err != nil {
		return nil, err
	}

	msgs, total, err := s.store.ListMessages(ctx, room.ID, page, size)
	if err != nil {
		return nil, err
	}
	dtos, err := s.rooms.messageDTOs(ctx, msgs, false)
	if err != nil {
		return nil, err
	}

	if page <= 0 {
		page = 1
	}
	return &MessageListDTO{Messages: dtos, Page: page, TotalCount: total}, nil
}

// preview 通知载荷里的内容摘要，避免把长消息整个塞进队列
func preview(content string) string {
	const max = 100
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max])
}
