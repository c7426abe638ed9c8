package service

import (
	"context"
	"fmt"

	"github.com/example/gochatroom/internal/datamodels/chatroom"
)

// SystemMessageService 负责把成员变动写成系统消息追加到房间里。
// 所有方法都必须拿触发变更的同一个事务内 Store 调用，
// 保证成员状态和审计消息要么同时落库要么都不落。
type SystemMessageService struct{}

// NewSystemMessageService 创建系统消息服务
func NewSystemMessageService() *SystemMessageService {
	return &SystemMessageService{}
}

func (s *SystemMessageService) emit(ctx context.Context, st chatroom.Store, roomID uint64, content string) error {
	msg := chatroom.NewSystemMessage(roomID, content)
	if err := st.CreateMessage(ctx, msg); err != nil {
		return err
	}
	GetMonitor().RecordSystemMessage()
	return nil
}

// MemberJoined 成员加入（邀请或重新加入）
func (s *SystemMessageService) MemberJoined(ctx context.Context, st chatroom.Store, roomID uint64, memberName string) error {
	return s.emit(ctx, st, roomID, fmt.Sprintf("%s 님이 입장했습니다", memberName))
}

// MemberLeft 成员退出
func (s *SystemMessageService) MemberLeft(ctx context.Context, st chatroom.Store, roomID uint64, memberName string) error {
	return s.emit(ctx, st, roomID, fmt.Sprintf("%s 님이 나갔습니다", memberName))
}

// OwnershipTransferred 房主权限转移给最早加入的活跃成员
func (s *SystemMessageService) OwnershipTransferred(ctx context.Context, st chatroom.Store, roomID uint64, newOwnerName string) error {
	return s.emit(ctx, st, roomID, fmt.Sprintf("방장 권한이 %s 님에게 이전되었습니다", newOwnerName))
}

// RoomRenamed 群房间改名
func (s *SystemMessageService) RoomRenamed(ctx context.Context, st chatroom.Store, roomID uint64, newName string) error {
	return s.emit(ctx, st, roomID, fmt.Sprintf("채팅방 이름이 '%s'(으)로 변경되었습니다", newName))
}
