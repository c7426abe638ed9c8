package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/gochatroom/internal/datamodels/chatroom"
)

type chatStore struct {
	db *gorm.DB
}

// NewChatStore 创建聊天室聚合仓储
func NewChatStore(db *gorm.DB) chatroom.Store {
	return &chatStore{db: db}
}

// Atomic 在单个事务内执行 fn，fn 拿到的 Store 绑定在事务上
func (s *chatStore) Atomic(ctx context.Context, fn func(chatroom.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&chatStore{db: tx})
	})
}

// ---------- 房间 ----------

func (s *chatStore) CreateRoom(ctx context.Context, r *chatroom.Room) error {
	return translateDuplicate(s.db.WithContext(ctx).Create(r).Error)
}

// translateDuplicate 把驱动层的唯一索引冲突翻译成领域错误
func translateDuplicate(err error) error {
	if err != nil && errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", chatroom.ErrDuplicateKey, err)
	}
	return err
}

func (s *chatStore) GetRoomByCode(ctx context.Context, roomCode string) (*chatroom.Room, error) {
	return s.getRoomByCode(ctx, roomCode, false)
}

func (s *chatStore) GetRoomByCodeForUpdate(ctx context.Context, roomCode string) (*chatroom.Room, error) {
	return s.getRoomByCode(ctx, roomCode, true)
}

func (s *chatStore) getRoomByCode(ctx context.Context, roomCode string, lock bool) (*chatroom.Room, error) {
	q := s.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var r chatroom.Room
	if err := q.Where("room_code = ?", roomCode).First(&r).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 채팅방을 찾을 수 없습니다: %s", chatroom.ErrNotFound, roomCode)
		}
		return nil, err
	}
	return &r, nil
}

func (s *chatStore) GetRoomsByIDs(ctx context.Context, ids []uint64) ([]*chatroom.Room, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var list []*chatroom.Room
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// FindDirectRoom 按无序成员对查找 1:1 聊天室，不存在时返回 (nil, nil)
func (s *chatStore) FindDirectRoom(ctx context.Context, pairKey string) (*chatroom.Room, error) {
	var r chatroom.Room
	err := s.db.WithContext(ctx).
		Where("pair_key = ? AND room_type = ?", pairKey, chatroom.RoomTypeDirect).
		First(&r).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &r, nil
}

func (s *chatStore) SaveRoom(ctx context.Context, r *chatroom.Room) error {
	return s.db.WithContext(ctx).Save(r).Error
}

// ---------- 成员关系 ----------

func (s *chatStore) GetMembership(ctx context.Context, roomID uint64, memberID int64) (*chatroom.RoomMember, error) {
	return s.getMembership(ctx, roomID, memberID, false)
}

func (s *chatStore) GetMembershipForUpdate(ctx context.Context, roomID uint64, memberID int64) (*chatroom.RoomMember, error) {
	return s.getMembership(ctx, roomID, memberID, true)
}

// getMembership 不存在时返回 (nil, nil)，由服务层决定语义
func (s *chatStore) getMembership(ctx context.Context, roomID uint64, memberID int64, lock bool) (*chatroom.RoomMember, error) {
	q := s.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var m chatroom.RoomMember
	err := q.Where("room_id = ? AND member_id = ?", roomID, memberID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (s *chatStore) CreateMembership(ctx context.Context, m *chatroom.RoomMember) error {
	return translateDuplicate(s.db.WithContext(ctx).Create(m).Error)
}

func (s *chatStore) SaveMembership(ctx context.Context, m *chatroom.RoomMember) error {
	return s.db.WithContext(ctx).Save(m).Error
}

func (s *chatStore) ListActiveMembers(ctx context.Context, roomID uint64) ([]*chatroom.RoomMember, error) {
	return s.listActiveMembers(ctx, roomID, false)
}

func (s *chatStore) ListActiveMembersForUpdate(ctx context.Context, roomID uint64) ([]*chatroom.RoomMember, error) {
	return s.listActiveMembers(ctx, roomID, true)
}

// listActiveMembers 按加入时间升序返回活跃成员，房主继任依赖该顺序
func (s *chatStore) listActiveMembers(ctx context.Context, roomID uint64, lock bool) ([]*chatroom.RoomMember, error) {
	q := s.db.WithContext(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var list []*chatroom.RoomMember
	err := q.Where("room_id = ? AND status = ?", roomID, chatroom.StatusActive).
		Order("joined_at ASC, id ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (s *chatStore) CountActiveMembers(ctx context.Context, roomID uint64) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&chatroom.RoomMember{}).
		Where("room_id = ? AND status = ?", roomID, chatroom.StatusActive).
		Count(&n).Error
	return n, err
}

func (s *chatStore) ListMemberships(ctx context.Context, memberID int64) ([]*chatroom.RoomMember, error) {
	var list []*chatroom.RoomMember
	err := s.db.WithContext(ctx).
		Where("member_id = ? AND status = ?", memberID, chatroom.StatusActive).
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// ListMemberRooms 房间列表视图：按房间内最新消息从新到旧排序
func (s *chatStore) ListMemberRooms(ctx context.Context, memberID int64, page, size int) ([]*chatroom.RoomMember, int64, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	base := s.db.WithContext(ctx).Model(&chatroom.RoomMember{}).
		Where("member_id = ? AND status = ?", memberID, chatroom.StatusActive)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []*chatroom.RoomMember
	err := s.db.WithContext(ctx).
		Where("member_id = ? AND status = ?", memberID, chatroom.StatusActive).
		Order("(SELECT MAX(m.id) FROM chat_messages m WHERE m.room_id = chat_room_members.room_id) DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// AdvanceCursor 读游标只增不减：仅当新值更大时写入，并发下按 CAS 语义收敛
func (s *chatStore) AdvanceCursor(ctx context.Context, membershipID, messageID uint64) (bool, error) {
	res := s.db.WithContext(ctx).Model(&chatroom.RoomMember{}).
		Where("id = ? AND (last_read_message_id IS NULL OR last_read_message_id < ?)", membershipID, messageID).
		Update("last_read_message_id", messageID)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ---------- 消息 ----------

func (s *chatStore) CreateMessage(ctx context.Context, m *chatroom.Message) error {
	return s.db.WithContext(ctx).Create(m).Error
}

func (s *chatStore) GetMessage(ctx context.Context, id uint64) (*chatroom.Message, error) {
	var m chatroom.Message
	if err := s.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 메시지를 찾을 수 없습니다: %d", chatroom.ErrNotFound, id)
		}
		return nil, err
	}
	return &m, nil
}

// LatestMessage 房间内最新一条消息，空房间返回 (nil, nil)
func (s *chatStore) LatestMessage(ctx context.Context, roomID uint64) (*chatroom.Message, error) {
	var m chatroom.Message
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("id DESC").
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// ListMessages 分页返回房间消息，从新到旧
func (s *chatStore) ListMessages(ctx context.Context, roomID uint64, page, size int) ([]*chatroom.Message, int64, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	var total int64
	if err := s.db.WithContext(ctx).Model(&chatroom.Message{}).
		Where("room_id = ?", roomID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var list []*chatroom.Message
	err := s.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("id DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&list).Error
	if err != nil {
		return nil, 0, err
	}
	return list, total, nil
}

// CountChatAfter 未读数只统计 CHAT 消息，系统消息不计
func (s *chatStore) CountChatAfter(ctx context.Context, roomID, afterID uint64) (int64, error) {
	q := s.db.WithContext(ctx).Model(&chatroom.Message{}).
		Where("room_id = ? AND message_type = ?", roomID, chatroom.MessageTypeChat)
	if afterID > 0 {
		q = q.Where("id > ?", afterID)
	}
	var n int64
	err := q.Count(&n).Error
	return n, err
}
