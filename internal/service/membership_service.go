package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/gochatroom/internal/datamodels/chatroom"
	"github.com/example/gochatroom/internal/datamodels/member"
)

// MembershipService 拥有房间内成员状态机的全部变更入口：
// 邀请/退出/强退/拉黑，以及房主继任和房间改名。
// 每个操作都在单个事务里完成校验、写入和系统消息追加，
// 涉及的成员行全部加行锁，保证并发下不会出现撕裂状态。
type MembershipService struct {
	store   chatroom.Store
	members member.Repository
	sysmsg  *SystemMessageService
}

// NewMembershipService 创建成员管理服务
func NewMembershipService(store chatroom.Store, members member.Repository, sysmsg *SystemMessageService) *MembershipService {
	return &MembershipService{store: store, members: members, sysmsg: sysmsg}
}

// Invite 把成员拉进群聊天室。只有 OWNER/ADMIN 能邀请；
// 退出过的成员复用原有成员行重新激活，不会产生重复行。
func (s *MembershipService) Invite(ctx context.Context, callerID int64, roomCode string, inviteeID int64) error {
	invitee, err := s.members.GetByID(ctx, inviteeID)
	if err != nil {
		return err
	}

	err = s.store.Atomic(ctx, func(st chatroom.Store) error {
		room, err := s.mutableRoom(ctx, st, roomCode)
		if err != nil {
			return err
		}
		if room.IsDirect() {
			return fmt.Errorf("%w: 1:1 채팅방에는 초대할 수 없습니다", chatroom.ErrInvalidState)
		}

		caller, err := s.requireActiveForUpdate(ctx, st, room.ID, callerID)
		if err != nil {
			return err
		}
		if !caller.Role.CanInvite() {
			return fmt.Errorf("%w: 초대 권한이 없습니다", chatroom.ErrUnauthorized)
		}

		existing, err := st.GetMembershipForUpdate(ctx, room.ID, inviteeID)
		if err != nil {
			return err
		}
		if existing == nil {
			m := chatroom.NewRoomMember(room.ID, inviteeID, chatroom.RoleMember)
			if err := st.CreateMembership(ctx, m); err != nil {
				if errors.Is(err, chatroom.ErrDuplicateKey) {
					// 并发双邀请：另一个事务先插了同一行
					return fmt.Errorf("%w: 이미 참여 중인 멤버입니다", chatroom.ErrInvalidState)
				}
				return err
			}
		} else {
			if err := existing.Apply(chatroom.EventInvite); err != nil {
				return err
			}
			if err := st.SaveMembership(ctx, existing); err != nil {
				return err
			}
		}

		return s.sysmsg.MemberJoined(ctx, st, room.ID, invitee.Name)
	})
	if err != nil {
		return err
	}

	zap.L().Info("member invited",
		zap.String("room_code", roomCode),
		zap.Int64("inviter", callerID),
		zap.Int64("invitee", inviteeID))
	return nil
}

// Leave 退出群聊天室。房主退出且仍有其他活跃成员时，
// 把房主权限转给最早加入的活跃成员；最后一人退出后房间关闭。
// 1:1 房间的两名固定成员不允许退出。
func (s *MembershipService) Leave(ctx context.Context, callerID int64, roomCode string) error {
	caller, err := s.members.GetByID(ctx, callerID)
	if err != nil {
		return err
	}

	err = s.store.Atomic(ctx, func(st chatroom.Store) error {
		room, err := s.mutableRoom(ctx, st, roomCode)
		if err != nil {
			return err
		}
		if room.IsDirect() {
			return fmt.Errorf("%w: 1:1 채팅방은 나갈 수 없습니다", chatroom.ErrInvalidState)
		}

		m, err := st.GetMembershipForUpdate(ctx, room.ID, callerID)
		if err != nil {
			return err
		}
		if m == nil {
			return fmt.Errorf("%w: 채팅방에 접근 권한이 없습니다", chatroom.ErrUnauthorized)
		}

		// 房主先移交权限再退出，继任顺序由加入时间决定
		if m.IsActive() && m.Role == chatroom.RoleOwner {
			if err := s.transferOwnership(ctx, st, room.ID, m); err != nil {
				return err
			}
		}

		if err := m.Apply(chatroom.EventLeave); err != nil {
			return err
		}
		if err := st.SaveMembership(ctx, m); err != nil {
			return err
		}

		if err := s.sysmsg.MemberLeft(ctx, st, room.ID, caller.Name); err != nil {
			return err
		}

		remaining, err := st.CountActiveMembers(ctx, room.ID)
		if err != nil {
			return err
		}
		if remaining == 0 {
			room.Deactivate()
			if err := st.SaveRoom(ctx, room); err != nil {
				return err
			}
			zap.L().Info("room deactivated, no active members left",
				zap.String("room_code", roomCode))
		}
		return nil
	})
	if err != nil {
		return err
	}

	zap.L().Info("member left room",
		zap.String("room_code", roomCode),
		zap.Int64("member", callerID))
	return nil
}

// transferOwnership 在退出事务内完成房主继任：候选人是除退出者外
// 按加入时间升序的活跃成员，最早的一个接任；没有候选人时不转移
// （房间随后会被关闭）。
func (s *MembershipService) transferOwnership(ctx context.Context, st chatroom.Store, roomID uint64, departing *chatroom.RoomMember) error {
	active, err := st.ListActiveMembersForUpdate(ctx, roomID)
	if err != nil {
		return err
	}
	var successor *chatroom.RoomMember
	for _, m := range active {
		if m.ID != departing.ID {
			successor = m
			break
		}
	}
	if successor == nil {
		return nil
	}

	successor.Role = chatroom.RoleOwner
	successor.Touch()
	if err := st.SaveMembership(ctx, successor); err != nil {
		return err
	}

	// 退出者先降级，再完成退出
	departing.Role = chatroom.RoleMember
	departing.Touch()

	newOwner, err := s.members.GetByID(ctx, successor.MemberID)
	if err != nil {
		return err
	}
	return s.sysmsg.OwnershipTransferred(ctx, st, roomID, newOwner.Name)
}

// Kick 强退：OWNER/ADMIN 权限，被强退的成员进入终态，不能再被邀请
func (s *MembershipService) Kick(ctx context.Context, callerID int64, roomCode string, targetID int64) error {
	if callerID == targetID {
		return fmt.Errorf("%w: 자기 자신은 강퇴할 수 없습니다", chatroom.ErrInvalidArgument)
	}

	return s.store.Atomic(ctx, func(st chatroom.Store) error {
		room, err := s.mutableRoom(ctx, st, roomCode)
		if err != nil {
			return err
		}
		if room.IsDirect() {
			return fmt.Errorf("%w: 1:1 채팅방에서는 강퇴할 수 없습니다", chatroom.ErrInvalidState)
		}

		caller, err := s.requireActiveForUpdate(ctx, st, room.ID, callerID)
		if err != nil {
			return err
		}
		if !caller.Role.CanInvite() {
			return fmt.Errorf("%w: 강퇴 권한이 없습니다", chatroom.ErrUnauthorized)
		}

		target, err := st.GetMembershipForUpdate(ctx, room.ID, targetID)
		if err != nil {
			return err
		}
		if target == nil {
			return fmt.Errorf("%w: 해당 멤버를 찾을 수 없습니다: %d", chatroom.ErrNotFound, targetID)
		}
		if target.Role == chatroom.RoleOwner {
			return fmt.Errorf("%w: 방장은 강퇴할 수 없습니다", chatroom.ErrUnauthorized)
		}

		if err := target.Apply(chatroom.EventKick); err != nil {
			return err
		}
		return st.SaveMembership(ctx, target)
	})
}

// Block 拉黑：成员保留在房间但进入 BLOCKED 状态
func (s *MembershipService) Block(ctx context.Context, callerID int64, roomCode string, targetID int64) error {
	return s.applyModeration(ctx, callerID, roomCode, targetID, chatroom.EventBlock)
}

// Unblock 解除拉黑：BLOCKED 成员恢复 ACTIVE
func (s *MembershipService) Unblock(ctx context.Context, callerID int64, roomCode string, targetID int64) error {
	return s.applyModeration(ctx, callerID, roomCode, targetID, chatroom.EventUnblock)
}

func (s *MembershipService) applyModeration(ctx context.Context, callerID int64, roomCode string, targetID int64, event chatroom.MemberEvent) error {
	if callerID == targetID {
		return fmt.Errorf("%w: 자기 자신에게는 적용할 수 없습니다", chatroom.ErrInvalidArgument)
	}

	return s.store.Atomic(ctx, func(st chatroom.Store) error {
		room, err := s.mutableRoom(ctx, st, roomCode)
		if err != nil {
			return err
		}

		caller, err := s.requireActiveForUpdate(ctx, st, room.ID, callerID)
		if err != nil {
			return err
		}
		if !caller.Role.CanInvite() {
			return fmt.Errorf("%w: 권한이 없습니다", chatroom.ErrUnauthorized)
		}

		target, err := st.GetMembershipForUpdate(ctx, room.ID, targetID)
		if err != nil {
			return err
		}
		if target == nil {
			return fmt.Errorf("%w: 해당 멤버를 찾을 수 없습니다: %d", chatroom.ErrNotFound, targetID)
		}
		if target.Role == chatroom.RoleOwner {
			return fmt.Errorf("%w: 방장에게는 적용할 수 없습니다", chatroom.ErrUnauthorized)
		}

		if err := target.Apply(event); err != nil {
			return err
		}
		return st.SaveMembership(ctx, target)
	})
}

// Rename 改名。1:1 房间只改请求者自己的备注名；
// 群房间需要 OWNER/ADMIN，改共享的自定义名并追加系统消息，
// 传空串则清掉自定义名、回退到重新计算的默认名。
func (s *MembershipService) Rename(ctx context.Context, callerID int64, roomCode, name string) error {
	name = strings.TrimSpace(name)

	return s.store.Atomic(ctx, func(st chatroom.Store) error {
		room, err := s.mutableRoom(ctx, st, roomCode)
		if err != nil {
			return err
		}

		m, err := s.requireActiveForUpdate(ctx, st, room.ID, callerID)
		if err != nil {
			return err
		}

		if room.IsDirect() {
			// 个人备注名，不动共享的房间标识
			if name == "" {
				m.Nickname = nil
			} else {
				m.Nickname = &name
			}
			m.Touch()
			return st.SaveMembership(ctx, m)
		}

		if !m.Role.CanInvite() {
			return fmt.Errorf("%w: 채팅방 이름 변경 권한이 없습니다", chatroom.ErrUnauthorized)
		}

		newName := name
		if name == "" {
			room.CustomName = nil
			def, err := defaultRoomName(ctx, st, s.members, room)
			if err != nil {
				return err
			}
			room.Name = def
			newName = def
		} else {
			room.CustomName = &name
		}
		room.Touch()
		if err := st.SaveRoom(ctx, room); err != nil {
			return err
		}

		return s.sysmsg.RoomRenamed(ctx, st, room.ID, newName)
	})
}

// ToggleNotifications 切换成员对房间的通知开关
func (s *MembershipService) ToggleNotifications(ctx context.Context, callerID int64, roomCode string) error {
	return s.store.Atomic(ctx, func(st chatroom.Store) error {
		room, err := st.GetRoomByCodeForUpdate(ctx, roomCode)
		if err != nil {
			return err
		}
		m, err := s.requireActiveForUpdate(ctx, st, room.ID, callerID)
		if err != nil {
			return err
		}
		m.NotificationsEnabled = !m.NotificationsEnabled
		m.Touch()
		return st.SaveMembership(ctx, m)
	})
}

// ---------- 内部辅助 ----------

// mutableRoom 取出加了行锁的房间，关闭的房间拒绝一切变更
func (s *MembershipService) mutableRoom(ctx context.Context, st chatroom.Store, roomCode string) (*chatroom.Room, error) {
	room, err := st.GetRoomByCodeForUpdate(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	if !room.Active {
		return nil, fmt.Errorf("%w: 비활성화된 채팅방입니다", chatroom.ErrInvalidState)
	}
	return room, nil
}

func (s *MembershipService) requireActiveForUpdate(ctx context.Context, st chatroom.Store, roomID uint64, memberID int64) (*chatroom.RoomMember, error) {
	m, err := st.GetMembershipForUpdate(ctx, roomID, memberID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%w: 채팅방에 접근 권한이 없습니다", chatroom.ErrUnauthorized)
	}
	if !m.IsActive() {
		return nil, fmt.Errorf("%w: 채팅방을 나갔거나 강퇴되었습니다", chatroom.ErrUnauthorized)
	}
	return m, nil
}
