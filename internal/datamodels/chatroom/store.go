package chatroom

import "context"

// Store 聊天室聚合的持久化接口，mysql 实现见 repository/mysql。
// Atomic 在单个事务里执行 fn，fn 收到的 Store 绑定在该事务上；
// 所有涉及房间结构变更的写操作都必须经由 Atomic。
type Store interface {
	Atomic(ctx context.Context, fn func(Store) error) error

	// 房间
	CreateRoom(ctx context.Context, r *Room) error
	GetRoomByCode(ctx context.Context, roomCode string) (*Room, error)
	GetRoomsByIDs(ctx context.Context, ids []uint64) ([]*Room, error)
	GetRoomByCodeForUpdate(ctx context.Context, roomCode string) (*Room, error)
	FindDirectRoom(ctx context.Context, pairKey string) (*Room, error)
	SaveRoom(ctx context.Context, r *Room) error

	// 成员关系
	GetMembership(ctx context.Context, roomID uint64, memberID int64) (*RoomMember, error)
	GetMembershipForUpdate(ctx context.Context, roomID uint64, memberID int64) (*RoomMember, error)
	CreateMembership(ctx context.Context, m *RoomMember) error
	SaveMembership(ctx context.Context, m *RoomMember) error
	ListActiveMembers(ctx context.Context, roomID uint64) ([]*RoomMember, error)
	ListActiveMembersForUpdate(ctx context.Context, roomID uint64) ([]*RoomMember, error)
	CountActiveMembers(ctx context.Context, roomID uint64) (int64, error)
	ListMemberships(ctx context.Context, memberID int64) ([]*RoomMember, error)
	ListMemberRooms(ctx context.Context, memberID int64, page, size int) ([]*RoomMember, int64, error)
	// AdvanceCursor 条件更新读游标（仅当新值更大时写入），返回是否产生写入
	AdvanceCursor(ctx context.Context, membershipID, messageID uint64) (bool, error)

	// 消息
	CreateMessage(ctx context.Context, m *Message) error
	GetMessage(ctx context.Context, id uint64) (*Message, error)
	LatestMessage(ctx context.Context, roomID uint64) (*Message, error)
	ListMessages(ctx context.Context, roomID uint64, page, size int) ([]*Message, int64, error)
	// CountChatAfter 统计 ID 大于 afterID 的 CHAT 消息数，afterID 为 0 时统计全部
	CountChatAfter(ctx context.Context, roomID, afterID uint64) (int64, error)
}
