package chatroom

import (
	"fmt"
	"time"
)

// MemberRole 聊天室成员角色
type MemberRole string

const (
	RoleOwner  MemberRole = "OWNER"  // 방장
	RoleAdmin  MemberRole = "ADMIN"  // 관리자
	RoleMember MemberRole = "MEMBER" // 일반 멤버
)

// CanInvite 是否有邀请/管理权限
func (r MemberRole) CanInvite() bool {
	return r == RoleOwner || r == RoleAdmin
}

// MemberStatus 聊天室成员状态
type MemberStatus string

const (
	StatusActive  MemberStatus = "ACTIVE"  // 활성
	StatusLeft    MemberStatus = "LEFT"    // 나감，可被重新邀请
	StatusKicked  MemberStatus = "KICKED"  // 추방，终态
	StatusBlocked MemberStatus = "BLOCKED" // 차단
)

// MemberEvent 成员状态机事件
type MemberEvent string

const (
	EventInvite  MemberEvent = "invite" // 邀请或重新加入
	EventLeave   MemberEvent = "leave"
	EventKick    MemberEvent = "kick"
	EventBlock   MemberEvent = "block"
	EventUnblock MemberEvent = "unblock"
)

// Transition 成员状态机：给定当前状态与事件，返回下一状态。
// 非法迁移统一返回 ErrInvalidState，调用方不做任何写入。
func Transition(current MemberStatus, event MemberEvent) (MemberStatus, error) {
	switch current {
	case StatusActive:
		switch event {
		case EventLeave:
			return StatusLeft, nil
		case EventKick:
			return StatusKicked, nil
		case EventBlock:
			return StatusBlocked, nil
		case EventInvite:
			return current, fmt.Errorf("%w: 이미 참여 중인 멤버입니다", ErrInvalidState)
		}
	case StatusLeft:
		if event == EventInvite {
			return StatusActive, nil
		}
	case StatusBlocked:
		if event == EventUnblock {
			return StatusActive, nil
		}
	case StatusKicked:
		// KICKED 是终态，没有任何出边
	}
	return current, fmt.Errorf("%w: 상태 %s 에서 이벤트 %s 를 처리할 수 없습니다", ErrInvalidState, current, event)
}

// RoomMember 聊天室成员关系。(room, member) 组合唯一，
// 退出后重新邀请复用同一行而不是插入新行。
type RoomMember struct {
	ID                   uint64       `gorm:"primaryKey"`
	RoomID               uint64       `gorm:"not null;uniqueIndex:idx_room_member"`
	MemberID             int64        `gorm:"not null;uniqueIndex:idx_room_member"`
	Role                 MemberRole   `gorm:"size:16;not null"`
	Status               MemberStatus `gorm:"size:16;not null"`
	LastReadMessageID    *uint64      // 读游标：最后一条已读消息 ID，只增不减
	Nickname             *string      `gorm:"size:100"` // 成员个人对房间的备注名
	NotificationsEnabled bool         `gorm:"not null;default:true"`
	JoinedAt             time.Time    `gorm:"not null"`
	LeftAt               *time.Time
	Times
}

func (RoomMember) TableName() string { return "chat_room_members" }

// NewRoomMember 以 ACTIVE 状态创建成员关系
func NewRoomMember(roomID uint64, memberID int64, role MemberRole) *RoomMember {
	now := time.Now()
	return &RoomMember{
		RoomID:               roomID,
		MemberID:             memberID,
		Role:                 role,
		Status:               StatusActive,
		NotificationsEnabled: true,
		JoinedAt:             now,
		Times:                Times{CreatedAt: now, UpdatedAt: now},
	}
}

// IsActive 是否活跃成员
func (m *RoomMember) IsActive() bool { return m.Status == StatusActive }

// Apply 对成员执行状态机事件并维护 leftAt
func (m *RoomMember) Apply(event MemberEvent) error {
	next, err := Transition(m.Status, event)
	if err != nil {
		return err
	}
	m.Status = next
	switch event {
	case EventLeave, EventKick:
		now := time.Now()
		m.LeftAt = &now
	case EventInvite:
		m.LeftAt = nil
	}
	m.Touch()
	return nil
}

// CursorBehind 判断 messageID 是否落后于当前读游标
func (m *RoomMember) CursorBehind(messageID uint64) bool {
	return m.LastReadMessageID != nil && messageID < *m.LastReadMessageID
}
