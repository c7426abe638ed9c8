package service

import (
	"context"
	"fmt"

	"github.com/example/gochatroom/internal/datamodels/chatroom"
	"github.com/example/gochatroom/internal/datamodels/member"
)

// memberNames 按 ids 顺序取成员名
func memberNames(ctx context.Context, members member.Repository, ids []int64) ([]string, error) {
	list, err := members.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]string, len(list))
	for _, m := range list {
		byID[m.ID] = m.Name
	}
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		name, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: 사용자를 찾을 수 없습니다: %d", chatroom.ErrNotFound, id)
		}
		names = append(names, name)
	}
	return names, nil
}

// defaultRoomName 重新计算房间默认名：两人 DIRECT 房用成对公式，
// 其余按当前活跃成员套群聊公式。
func defaultRoomName(ctx context.Context, st chatroom.Store, members member.Repository, room *chatroom.Room) (string, error) {
	active, err := st.ListActiveMembers(ctx, room.ID)
	if err != nil {
		return "", err
	}
	ids := make([]int64, 0, len(active))
	for _, m := range active {
		ids = append(ids, m.MemberID)
	}
	names, err := memberNames(ctx, members, ids)
	if err != nil {
		return "", err
	}

	if room.IsDirect() && len(names) == 2 {
		return chatroom.DirectRoomName(names[0], names[1]), nil
	}
	return chatroom.GroupRoomName(names, len(names)), nil
}

// displayName 以 viewer 视角解析房间展示名，优先级：
// 个人备注名 > 房间自定义名 > DIRECT 对方名 > 默认名。
func displayName(ctx context.Context, st chatroom.Store, members member.Repository, room *chatroom.Room, viewer *chatroom.RoomMember) (string, error) {
	if viewer != nil && viewer.Nickname != nil && *viewer.Nickname != "" {
		return *viewer.Nickname, nil
	}
	if room.CustomName != nil && *room.CustomName != "" {
		return *room.CustomName, nil
	}

	if room.IsDirect() && viewer != nil {
		active, err := st.ListActiveMembers(ctx, room.ID)
		if err != nil {
			return "", err
		}
		if len(active) == 2 {
			for _, m := range active {
				if m.MemberID != viewer.MemberID {
					other, err := members.GetByID(ctx, m.MemberID)
					if err != nil {
						return "", err
					}
					return chatroom.DirectPartnerName(other.Name), nil
				}
			}
		}
	}

	return room.Name, nil
}
