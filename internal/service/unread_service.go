package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	radix "github.com/mediocregopher/radix/v3"
	"go.uber.org/zap"

	"github.com/example/gochatroom/internal/datamodels/chatroom"
)

const unreadCacheKey = "chat:unread:%d:%d" // memberID, roomID

// UnreadService 维护每个成员的读游标并计算未读数。
// 游标只增不减：写入用条件 UPDATE（仅当新值更大），并发调用按 CAS 收敛。
type UnreadService struct {
	store chatroom.Store
	redis radix.Client // 可为 nil，此时不走缓存
	ttl   time.Duration
}

// NewUnreadService 创建未读服务，ttlSeconds <= 0 时关闭缓存
func NewUnreadService(store chatroom.Store, redis radix.Client, ttlSeconds int) *UnreadService {
	var ttl time.Duration
	if ttlSeconds > 0 {
		ttl = time.Duration(ttlSeconds) * time.Second
	}
	return &UnreadService{store: store, redis: redis, ttl: ttl}
}

// MarkRead 显式把读游标推进到 messageID。
// messageID 为 0、不属于该房间或落后于当前游标时拒绝。
func (s *UnreadService) MarkRead(ctx context.Context, callerID int64, roomCode string, messageID uint64) error {
	if messageID == 0 {
		return fmt.Errorf("%w: 메시지 ID는 필수 입니다", chatroom.ErrInvalidArgument)
	}

	room, err := s.store.GetRoomByCode(ctx, roomCode)
	if err != nil {
		return err
	}
	m, err := s.activeMembership(ctx, room.ID, callerID)
	if err != nil {
		return err
	}

	msg, err := s.store.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.RoomID != room.ID {
		return fmt.Errorf("%w: 해당 채팅방의 메시지가 아닙니다: %d", chatroom.ErrNotFound, messageID)
	}

	if m.CursorBehind(messageID) {
		return fmt.Errorf("%w: 읽음 커서는 되돌릴 수 없습니다", chatroom.ErrInvalidArgument)
	}

	return s.advance(ctx, m, messageID)
}

// MarkAllRead 把游标推进到房间最新一条消息，空房间是 no-op
func (s *UnreadService) MarkAllRead(ctx context.Context, callerID int64, roomCode string) error {
	room, err := s.store.GetRoomByCode(ctx, roomCode)
	if err != nil {
		return err
	}
	m, err := s.activeMembership(ctx, room.ID, callerID)
	if err != nil {
		return err
	}

	latest, err := s.store.LatestMessage(ctx, room.ID)
	if err != nil {
		return err
	}
	if latest == nil || m.CursorBehind(latest.ID) {
		return nil
	}
	return s.advance(ctx, m, latest.ID)
}

// AutoAdvance 查看房间时的隐式读游标推进，只前进不报错
func (s *UnreadService) AutoAdvance(ctx context.Context, m *chatroom.RoomMember, latestID uint64) error {
	if latestID == 0 || m.CursorBehind(latestID) {
		return nil
	}
	if m.LastReadMessageID != nil && *m.LastReadMessageID == latestID {
		return nil
	}
	return s.advance(ctx, m, latestID)
}

func (s *UnreadService) advance(ctx context.Context, m *chatroom.RoomMember, messageID uint64) error {
	moved, err := s.store.AdvanceCursor(ctx, m.ID, messageID)
	if err != nil {
		GetMonitor().RecordDBError()
		return err
	}
	if moved {
		m.LastReadMessageID = &messageID
		GetMonitor().RecordCursorAdvance()
		s.invalidate(m.MemberID, m.RoomID)
	}
	return nil
}

// CountFor 单个成员关系的未读数：游标之后的 CHAT 消息数，
// 游标未设置时统计全部 CHAT 消息
func (s *UnreadService) CountFor(ctx context.Context, m *chatroom.RoomMember) (int64, error) {
	if n, ok := s.cacheGet(m.MemberID, m.RoomID); ok {
		return n, nil
	}

	var after uint64
	if m.LastReadMessageID != nil {
		after = *m.LastReadMessageID
	}
	n, err := s.store.CountChatAfter(ctx, m.RoomID, after)
	if err != nil {
		return 0, err
	}
	s.cacheSet(m.MemberID, m.RoomID, n)
	return n, nil
}

// UnreadCounts 某成员全部活跃房间的未读数汇总，key 为 roomCode
func (s *UnreadService) UnreadCounts(ctx context.Context, memberID int64) (map[string]int64, error) {
	memberships, err := s.store.ListMemberships(ctx, memberID)
	if err != nil {
		return nil, err
	}

	roomIDs := make([]uint64, 0, len(memberships))
	for _, m := range memberships {
		roomIDs = append(roomIDs, m.RoomID)
	}
	rooms, err := s.store.GetRoomsByIDs(ctx, roomIDs)
	if err != nil {
		return nil, err
	}
	codeByID := make(map[uint64]string, len(rooms))
	for _, r := range rooms {
		codeByID[r.ID] = r.RoomCode
	}

	counts := make(map[string]int64, len(memberships))
	for _, m := range memberships {
		code, ok := codeByID[m.RoomID]
		if !ok {
			continue
		}
		n, err := s.CountFor(ctx, m)
		if err != nil {
			return nil, err
		}
		counts[code] = n
	}
	return counts, nil
}

func (s *UnreadService) activeMembership(ctx context.Context, roomID uint64, memberID int64) (*chatroom.RoomMember, error) {
	m, err := s.store.GetMembership(ctx, roomID, memberID)
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

// ---------- 未读数缓存 ----------
// 消息写入不主动失效，靠短 TTL 过期；游标前移时删掉自己的 key。

func (s *UnreadService) cacheGet(memberID int64, roomID uint64) (int64, bool) {
	if s.redis == nil || s.ttl <= 0 {
		return 0, false
	}
	key := fmt.Sprintf(unreadCacheKey, memberID, roomID)
	var raw string
	if err := s.redis.Do(radix.Cmd(&raw, "GET", key)); err != nil {
		GetMonitor().RecordRedisError()
		return 0, false
	}
	if raw == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func (s *UnreadService) cacheSet(memberID int64, roomID uint64, n int64) {
	if s.redis == nil || s.ttl <= 0 {
		return
	}
	key := fmt.Sprintf(unreadCacheKey, memberID, roomID)
	if err := s.redis.Do(radix.FlatCmd(nil, "SETEX", key, int64(s.ttl/time.Second), n)); err != nil {
		GetMonitor().RecordRedisError()
		zap.L().Warn("failed to cache unread count", zap.Error(err))
	}
}

func (s *UnreadService) invalidate(memberID int64, roomID uint64) {
	if s.redis == nil || s.ttl <= 0 {
		return
	}
	key := fmt.Sprintf(unreadCacheKey, memberID, roomID)
	if err := s.redis.Do(radix.Cmd(nil, "DEL", key)); err != nil {
		GetMonitor().RecordRedisError()
	}
}
