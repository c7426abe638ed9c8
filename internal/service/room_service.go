package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/gochatroom/internal/config"
	"github.com/example/gochatroom/internal/datamodels/chatroom"
	"github.com/example/gochatroom/internal/datamodels/member"
)

// RoomService 负责房间的创建/查找与视图组装。
// 1:1 房间按无序成员对去重，重复创建是幂等的。
type RoomService struct {
	store   chatroom.Store
	members member.Repository
	unread  *UnreadService
	cfg     *config.ChatConfig
}

// NewRoomService 创建房间服务
func NewRoomService(store chatroom.Store, members member.Repository, unread *UnreadService, cfg *config.ChatConfig) *RoomService {
	if cfg == nil {
		cfg = &config.DefaultConfig().Chat
	}
	return &RoomService{store: store, members: members, unread: unread, cfg: cfg}
}

// CreateDirectRoom 创建（或复用）1:1 聊天室。
// 已存在同一成员对的活跃房间时直接返回，包括并发创建时输掉唯一索引竞争的一方。
func (s *RoomService) CreateDirectRoom(ctx context.Context, callerID, userA, userB int64) (*RoomDTO, error) {
	if callerID != userA && callerID != userB {
		return nil, fmt.Errorf("%w: 채팅방 생성 권한이 없습니다", chatroom.ErrUnauthorized)
	}
	if userA == userB {
		return nil, fmt.Errorf("%w: 자기 자신과의 대화방은 만들 수 없습니다", chatroom.ErrInvalidArgument)
	}

	pairKey := chatroom.DirectPairKey(userA, userB)
	if existing, err := s.store.FindDirectRoom(ctx, pairKey); err != nil {
		return nil, err
	} else if existing != nil {
		return s.roomDTO(ctx, existing, callerID)
	}

	// 两名成员都必须存在
	names, err := memberNames(ctx, s.members, []int64{userA, userB})
	if err != nil {
		return nil, err
	}

	room := &chatroom.Room{
		RoomCode: uuid.NewString(),
		Name:     chatroom.DirectRoomName(names[0], names[1]),
		RoomType: chatroom.RoomTypeDirect,
		Active:   true,
		PairKey:  &pairKey,
		Times:    chatroom.NewTimes(),
	}
	err = s.store.Atomic(ctx, func(st chatroom.Store) error {
		if err := st.CreateRoom(ctx, room); err != nil {
			return err
		}
		for _, id := range []int64{userA, userB} {
			if err := st.CreateMembership(ctx, chatroom.NewRoomMember(room.ID, id, chatroom.RoleMember)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, chatroom.ErrDuplicateKey) {
			// 竞争输家：回读赢家的房间
			winner, ferr := s.store.FindDirectRoom(ctx, pairKey)
			if ferr == nil && winner != nil {
				zap.L().Info("direct room already created concurrently",
					zap.String("room_code", winner.RoomCode))
				return s.roomDTO(ctx, winner, callerID)
			}
		}
		return nil, err
	}

	GetMonitor().RecordRoomCreated()
	zap.L().Info("direct room created",
		zap.String("room_code", room.RoomCode),
		zap.Int64("user_a", userA),
		zap.Int64("user_b", userB))
	return s.roomDTO(ctx, room, callerID)
}

// CreateGroupRoom 创建群聊天室：创建者为 OWNER，受邀者为 MEMBER。
// 受邀列表去重并剔除创建者后必须非空。
func (s *RoomService) CreateGroupRoom(ctx context.Context, callerID, creatorID int64, inviteeIDs []int64, customName string) (*RoomDTO, error) {
	if callerID != creatorID {
		return nil, fmt.Errorf("%w: 채팅방 생성 권한이 없습니다", chatroom.ErrUnauthorized)
	}

	seen := map[int64]struct{}{creatorID: {}}
	invitees := make([]int64, 0, len(inviteeIDs))
	for _, id := range inviteeIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		invitees = append(invitees, id)
	}
	if len(invitees) == 0 {
		return nil, fmt.Errorf("%w: 그룹 채팅방은 최소 1명 이상의 멤버가 필요합니다", chatroom.ErrInvalidArgument)
	}

	all := append([]int64{creatorID}, invitees...)
	names, err := memberNames(ctx, s.members, all)
	if err != nil {
		return nil, err
	}

	room := &chatroom.Room{
		RoomCode: uuid.NewString(),
		Name:     chatroom.GroupRoomName(names, len(names)),
		RoomType: chatroom.RoomTypeGroup,
		Active:   true,
		Times:    chatroom.NewTimes(),
	}
	if custom := strings.TrimSpace(customName); custom != "" {
		room.CustomName = &custom
	}

	err = s.store.Atomic(ctx, func(st chatroom.Store) error {
		if err := st.CreateRoom(ctx, room); err != nil {
			return err
		}
		if err := st.CreateMembership(ctx, chatroom.NewRoomMember(room.ID, creatorID, chatroom.RoleOwner)); err != nil {
			return err
		}
		for _, id := range invitees {
			if err := st.CreateMembership(ctx, chatroom.NewRoomMember(room.ID, id, chatroom.RoleMember)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	GetMonitor().RecordRoomCreated()
	zap.L().Info("group room created",
		zap.String("room_code", room.RoomCode),
		zap.Int64("creator", creatorID),
		zap.Int("member_count", len(all)))
	return s.roomDTO(ctx, room, callerID)
}

// DisplayName 以 viewer 视角解析房间展示名
func (s *RoomService) DisplayName(ctx context.Context, room *chatroom.Room, viewer *chatroom.RoomMember) (string, error) {
	return displayName(ctx, s.store, s.members, room, viewer)
}

// RoomDetail 房间详情：成员列表 + 最近消息，并把读游标隐式推进到
// 本次取到的最新消息（查看即已读）。
func (s *RoomService) RoomDetail(ctx context.Context, callerID int64, roomCode string) (*RoomDetailDTO, error) {
	room, err := s.store.GetRoomByCode(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	viewer, err := s.requireActiveMembership(ctx, room.ID, callerID)
	if err != nil {
		return nil, err
	}

	memberDTOs, err := s.listMemberDTOs(ctx, room.ID)
	if err != nil {
		return nil, err
	}

	msgs, _, err := s.store.ListMessages(ctx, room.ID, 1, s.cfg.RecentMessageCount)
	if err != nil {
		return nil, err
	}
	messageDTOs, err := s.messageDTOs(ctx, msgs, true)
	if err != nil {
		return nil, err
	}

	// 查看即已读：这是唯一的隐式游标推进
	if len(msgs) > 0 {
		var latestID uint64
		for _, m := range msgs {
			if m.ID > latestID {
				latestID = m.ID
			}
		}
		if err := s.unread.AutoAdvance(ctx, viewer, latestID); err != nil {
			zap.L().Warn("auto advance cursor failed",
				zap.String("room_code", roomCode), zap.Error(err))
		}
	}

	dn, err := displayName(ctx, s.store, s.members, room, viewer)
	if err != nil {
		return nil, err
	}

	return &RoomDetailDTO{
		RoomCode:    room.RoomCode,
		DisplayName: dn,
		RoomType:    string(room.RoomType),
		CreatedAt:   room.CreatedAt,
		Members:     memberDTOs,
		Messages:    messageDTOs,
	}, nil
}

// RoomList 成员的房间列表，按最新消息从新到旧排序，附带未读数汇总
func (s *RoomService) RoomList(ctx context.Context, callerID int64, page, size int) (*RoomListDTO, error) {
	if size <= 0 {
		size = s.cfg.RoomListPageSize
	}
	memberships, total, err := s.store.ListMemberRooms(ctx, callerID, page, size)
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
	roomByID := make(map[uint64]*chatroom.Room, len(rooms))
	for _, r := range rooms {
		roomByID[r.ID] = r
	}

	dtos := make([]*RoomDTO, 0, len(memberships))
	for _, m := range memberships {
		room, ok := roomByID[m.RoomID]
		if !ok {
			continue
		}
		dto, err := s.roomDTO(ctx, room, callerID)
		if err != nil {
			return nil, err
		}
		dtos = append(dtos, dto)
	}

	unreadCounts, err := s.unread.UnreadCounts(ctx, callerID)
	if err != nil {
		return nil, err
	}

	if page <= 0 {
		page = 1
	}
	return &RoomListDTO{
		Rooms:        dtos,
		Page:         page,
		TotalCount:   total,
		UnreadCounts: unreadCounts,
	}, nil
}

// ListRoomMembers 房间活跃成员列表（按加入时间升序）
func (s *RoomService) ListRoomMembers(ctx context.Context, callerID int64, roomCode string) ([]*RoomMemberDTO, error) {
	room, err := s.store.GetRoomByCode(ctx, roomCode)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireActiveMembership(ctx, room.ID, callerID); err != nil {
		return nil, err
	}
	return s.listMemberDTOs(ctx, room.ID)
}

// ---------- 内部辅助 ----------

func (s *RoomService) requireActiveMembership(ctx context.Context, roomID uint64, memberID int64) (*chatroom.RoomMember, error) {
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

func (s *RoomService) listMemberDTOs(ctx context.Context, roomID uint64) ([]*RoomMemberDTO, error) {
	active, err := s.store.ListActiveMembers(ctx, roomID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(active))
	for _, m := range active {
		ids = append(ids, m.MemberID)
	}
	list, err := s.members.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*member.Member, len(list))
	for _, m := range list {
		byID[m.ID] = m
	}

	dtos := make([]*RoomMemberDTO, 0, len(active))
	for _, m := range active {
		info := byID[m.MemberID]
		if info == nil {
			continue
		}
		dtos = append(dtos, &RoomMemberDTO{
			MemberID: m.MemberID,
			Name:     info.Name,
			ImageURL: info.ImageURL,
			Role:     string(m.Role),
			JoinedAt: m.JoinedAt,
		})
	}
	return dtos, nil
}

// messageDTOs 把消息转成视图；ascending 为 true 时按时间升序返回
func (s *RoomService) messageDTOs(ctx context.Context, msgs []*chatroom.Message, ascending bool) ([]*MessageDTO, error) {
	senderIDs := make([]int64, 0, len(msgs))
	for _, m := range msgs {
		if id, ok := m.Sender().MemberID(); ok {
			senderIDs = append(senderIDs, id)
		}
	}
	list, err := s.members.ListByIDs(ctx, senderIDs)
	if err != nil {
		return nil, err
	}
	nameByID := make(map[int64]string, len(list))
	for _, m := range list {
		nameByID[m.ID] = m.Name
	}

	dtos := make([]*MessageDTO, 0, len(msgs))
	for _, m := range msgs {
		dto := &MessageDTO{
			ID:      m.ID,
			Content: m.Content,
			Type:    string(m.MessageType),
			SentAt:  m.CreatedAt,
		}
		if id, ok := m.Sender().MemberID(); ok {
			dto.SenderID = &id
			dto.SenderName = nameByID[id]
		}
		dtos = append(dtos, dto)
	}
	if ascending {
		sort.Slice(dtos, func(i, j int) bool { return dtos[i].ID < dtos[j].ID })
	}
	return dtos, nil
}

func (s *RoomService) roomDTO(ctx context.Context, room *chatroom.Room, viewerID int64) (*RoomDTO, error) {
	viewer, err := s.store.GetMembership(ctx, room.ID, viewerID)
	if err != nil {
		return nil, err
	}
	dn, err := displayName(ctx, s.store, s.members, room, viewer)
	if err != nil {
		return nil, err
	}
	count, err := s.store.CountActiveMembers(ctx, room.ID)
	if err != nil {
		return nil, err
	}

	dto := &RoomDTO{
		RoomCode:    room.RoomCode,
		DisplayName: dn,
		RoomType:    string(room.RoomType),
		MemberCount: count,
	}

	if viewer != nil && viewer.IsActive() {
		n, err := s.unread.CountFor(ctx, viewer)
		if err != nil {
			return nil, err
		}
		dto.UnreadCount = n
	}

	latest, err := s.store.LatestMessage(ctx, room.ID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		dto.LatestMessage = latest.Content
		t := latest.CreatedAt
		dto.LatestMessageAt = &t
		if id, ok := latest.Sender().MemberID(); ok {
			dto.LatestSenderID = &id
			if sender, err := s.members.GetByID(ctx, id); err == nil {
				dto.LatestSenderName = sender.Name
			}
		}
	}
	return dto, nil
}
