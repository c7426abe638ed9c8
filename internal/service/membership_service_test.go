package service

import (
	"context"
	"errors"
	"testing"

	"github.com/example/gochatroom/internal/datamodels/chatroom"
)

// groupFixture 철수(OWNER) + 영희, 민수(MEMBER) 的群房间
func groupFixture(t *testing.T, env *testEnv) (owner, memberB, memberC int64, roomCode string) {
	t.Helper()
	ctx := context.Background()
	a := seedMember(t, env, "chulsoo", "철수")
	b := seedMember(t, env, "younghee", "영희")
	c := seedMember(t, env, "minsoo", "민수")

	dto, err := env.rooms.CreateGroupRoom(ctx, a.ID, a.ID, []int64{b.ID, c.ID}, "")
	if err != nil {
		t.Fatal(err)
	}
	return a.ID, b.ID, c.ID, dto.RoomCode
}

func latestSystemMessage(t *testing.T, env *testEnv, roomCode string) string {
	t.Helper()
	room := mustRoom(t, env, roomCode)
	latest, err := env.store.LatestMessage(context.Background(), room.ID)
	if err != nil {
		t.Fatal(err)
	}
	if latest == nil {
		t.Fatal("expected a message in room")
	}
	if latest.MessageType != chatroom.MessageTypeSystem {
		t.Fatalf("expected SYSTEM message, got %s: %q", latest.MessageType, latest.Content)
	}
	if latest.SenderID != nil {
		t.Fatal("system message must have no sender")
	}
	return latest.Content
}

func TestInviteRejoinReusesMembershipRow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, b, _, roomCode := groupFixture(t, env)
	room := mustRoom(t, env, roomCode)

	if err := env.membership.Leave(ctx, b, roomCode); err != nil {
		t.Fatal(err)
	}
	left := mustMembership(t, env, room.ID, b)
	if left.Status != chatroom.StatusLeft || left.LeftAt == nil {
		t.Fatalf("expected LEFT with leftAt, got %s", left.Status)
	}

	if err := env.membership.Invite(ctx, owner, roomCode, b); err != nil {
		t.Fatal(err)
	}
	rejoined := mustMembership(t, env, room.ID, b)
	if rejoined.ID != left.ID {
		t.Fatalf("rejoin must reuse row %d, got %d", left.ID, rejoined.ID)
	}
	if rejoined.Status != chatroom.StatusActive || rejoined.LeftAt != nil {
		t.Fatalf("expected ACTIVE without leftAt, got %s", rejoined.Status)
	}
	if got := latestSystemMessage(t, env, roomCode); got != "영희 님이 입장했습니다" {
		t.Fatalf("unexpected join message: %q", got)
	}
}

func TestInviteActiveMemberRejected(t *testing.T) {
	env := newTestEnv(t)
	owner, b, _, roomCode := groupFixture(t, env)

	err := env.membership.Invite(context.Background(), owner, roomCode, b)
	if !errors.Is(err, chatroom.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestInviteRequiresPrivilege(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, b, _, roomCode := groupFixture(t, env)
	d := seedMember(t, env, "jiyoung", "지영")

	err := env.membership.Invite(ctx, b, roomCode, d.ID)
	if !errors.Is(err, chatroom.ErrUnauthorized) {
		t.Fatalf("plain member must not invite, got %v", err)
	}
}

func TestInviteIntoDirectRoomRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := seedMember(t, env, "chulsoo", "철수")
	b := seedMember(t, env, "younghee", "영희")
	c := seedMember(t, env, "minsoo", "민수")

	dto, err := env.rooms.CreateDirectRoom(ctx, a.ID, a.ID, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	err = env.membership.Invite(ctx, a.ID, dto.RoomCode, c.ID)
	if !errors.Is(err, chatroom.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestLeaveDirectRoomRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := seedMember(t, env, "chulsoo", "철수")
	b := seedMember(t, env, "younghee", "영희")

	dto, err := env.rooms.CreateDirectRoom(ctx, a.ID, a.ID, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	err = env.membership.Leave(ctx, a.ID, dto.RoomCode)
	if !errors.Is(err, chatroom.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestOwnerLeaveTransfersOwnership(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, b, c, roomCode := groupFixture(t, env)
	room := mustRoom(t, env, roomCode)

	if err := env.membership.Leave(ctx, owner, roomCode); err != nil {
		t.Fatal(err)
	}

	// 最早加入的活跃成员接任
	successor := mustMembership(t, env, room.ID, b)
	if successor.Role != chatroom.RoleOwner {
		t.Fatalf("earliest joined member must become OWNER, got %s", successor.Role)
	}
	other := mustMembership(t, env, room.ID, c)
	if other.Role != chatroom.RoleMember {
		t.Fatalf("third member must stay MEMBER, got %s", other.Role)
	}
	departed := mustMembership(t, env, room.ID, owner)
	if departed.Status != chatroom.StatusLeft || departed.Role != chatroom.RoleMember {
		t.Fatalf("departed owner should be LEFT/MEMBER, got %s/%s", departed.Status, departed.Role)
	}

	// 退出消息在转移消息之后
	if got := latestSystemMessage(t, env, roomCode); got != "철수 님이 나갔습니다" {
		t.Fatalf("unexpected leave message: %q", got)
	}
	msgs, _, err := env.store.ListMessages(ctx, room.ID, 1, 10)
	if err != nil {
		t.Fatal(err)
	}
	var sawTransfer bool
	for _, m := range msgs {
		if m.Content == "방장 권한이 영희 님에게 이전되었습니다" {
			sawTransfer = true
		}
	}
	if !sawTransfer {
		t.Fatal("expected ownership transfer system message")
	}
}

func TestLastMemberLeaveDeactivatesRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, b, c, roomCode := groupFixture(t, env)

	for _, id := range []int64{b, c, owner} {
		if err := env.membership.Leave(ctx, id, roomCode); err != nil {
			t.Fatalf("leave %d: %v", id, err)
		}
	}
	room := mustRoom(t, env, roomCode)
	if room.Active {
		t.Fatal("room must deactivate after last member leaves")
	}

	// 关闭后的房间拒绝一切变更
	err := env.membership.Invite(ctx, owner, roomCode, b)
	if !errors.Is(err, chatroom.ErrInvalidState) {
		t.Fatalf("inactive room must reject changes, got %v", err)
	}
}

func TestKickIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, b, _, roomCode := groupFixture(t, env)
	room := mustRoom(t, env, roomCode)

	if err := env.membership.Kick(ctx, owner, roomCode, b); err != nil {
		t.Fatal(err)
	}
	kicked := mustMembership(t, env, room.ID, b)
	if kicked.Status != chatroom.StatusKicked {
		t.Fatalf("expected KICKED, got %s", kicked.Status)
	}

	err := env.membership.Invite(ctx, owner, roomCode, b)
	if !errors.Is(err, chatroom.ErrInvalidState) {
		t.Fatalf("kicked member must not be re-invitable, got %v", err)
	}
}

func TestKickOwnerRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, b, _, roomCode := groupFixture(t, env)
	room := mustRoom(t, env, roomCode)

	// 先把 b 提成 ADMIN 才有强退权限
	m := mustMembership(t, env, room.ID, b)
	m.Role = chatroom.RoleAdmin
	if err := env.store.SaveMembership(ctx, m); err != nil {
		t.Fatal(err)
	}

	err := env.membership.Kick(ctx, b, roomCode, owner)
	if !errors.Is(err, chatroom.ErrUnauthorized) {
		t.Fatalf("owner must not be kickable, got %v", err)
	}

	if err := env.membership.Kick(ctx, owner, roomCode, owner); !errors.Is(err, chatroom.ErrInvalidArgument) {
		t.Fatalf("self kick must be rejected, got %v", err)
	}
}

func TestBlockUnblockRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, b, _, roomCode := groupFixture(t, env)
	room := mustRoom(t, env, roomCode)

	if err := env.membership.Block(ctx, owner, roomCode, b); err != nil {
		t.Fatal(err)
	}
	blocked := mustMembership(t, env, room.ID, b)
	if blocked.Status != chatroom.StatusBlocked {
		t.Fatalf("expected BLOCKED, got %s", blocked.Status)
	}

	// 被拉黑的成员不能发消息
	if _, err := env.messages.Send(ctx, b, roomCode, "말해도 돼?"); !errors.Is(err, chatroom.ErrUnauthorized) {
		t.Fatalf("blocked member must not send, got %v", err)
	}

	if err := env.membership.Unblock(ctx, owner, roomCode, b); err != nil {
		t.Fatal(err)
	}
	restored := mustMembership(t, env, room.ID, b)
	if restored.Status != chatroom.StatusActive {
		t.Fatalf("expected ACTIVE after unblock, got %s", restored.Status)
	}
}

func TestRenameGroupRoom(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, b, _, roomCode := groupFixture(t, env)

	if err := env.membership.Rename(ctx, owner, roomCode, "주말 모임"); err != nil {
		t.Fatal(err)
	}
	room := mustRoom(t, env, roomCode)
	if room.CustomName == nil || *room.CustomName != "주말 모임" {
		t.Fatalf("unexpected custom name: %v", room.CustomName)
	}
	if got := latestSystemMessage(t, env, roomCode); got != "채팅방 이름이 '주말 모임'(으)로 변경되었습니다" {
		t.Fatalf("unexpected rename message: %q", got)
	}

	// 普通成员无权改群名
	err := env.membership.Rename(ctx, b, roomCode, "내맘대로")
	if !errors.Is(err, chatroom.ErrUnauthorized) {
		t.Fatalf("plain member must not rename group, got %v", err)
	}

	// 清空自定义名：回退到重新计算的默认名
	if err := env.membership.Rename(ctx, owner, roomCode, "  "); err != nil {
		t.Fatal(err)
	}
	room = mustRoom(t, env, roomCode)
	if room.CustomName != nil {
		t.Fatalf("custom name should be cleared, got %v", *room.CustomName)
	}
	if room.Name != "철수, 영희, 민수 님의 대화방" {
		t.Fatalf("unexpected recomputed default name: %s", room.Name)
	}
}

func TestRenameDirectRoomSetsNickname(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	a := seedMember(t, env, "chulsoo", "철수")
	b := seedMember(t, env, "younghee", "영희")

	dto, err := env.rooms.CreateDirectRoom(ctx, a.ID, a.ID, b.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := env.membership.Rename(ctx, a.ID, dto.RoomCode, "우리 영희"); err != nil {
		t.Fatal(err)
	}

	room := mustRoom(t, env, dto.RoomCode)
	if room.CustomName != nil {
		t.Fatal("direct rename must not touch shared room name")
	}

	viewerA := mustMembership(t, env, room.ID, a.ID)
	dn, err := env.rooms.DisplayName(ctx, room, viewerA)
	if err != nil {
		t.Fatal(err)
	}
	if dn != "우리 영희" {
		t.Fatalf("nickname should win for its owner, got %q", dn)
	}

	// 对方视角不受影响
	viewerB := mustMembership(t, env, room.ID, b.ID)
	dn, err = env.rooms.DisplayName(ctx, room, viewerB)
	if err != nil {
		t.Fatal(err)
	}
	if dn != "철수 님과의 대화" {
		t.Fatalf("partner view must be unchanged, got %q", dn)
	}
}

func TestToggleNotifications(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	owner, _, _, roomCode := groupFixture(t, env)
	room := mustRoom(t, env, roomCode)

	if err := env.membership.ToggleNotifications(ctx, owner, roomCode); err != nil {
		t.Fatal(err)
	}
	m := mustMembership(t, env, room.ID, owner)
	if m.NotificationsEnabled {
		t.Fatal("expected notifications off after first toggle")
	}
	if err := env.membership.ToggleNotifications(ctx, owner, roomCode); err != nil {
		t.Fatal(err)
	}
	m = mustMembership(t, env, room.ID, owner)
	if !m.NotificationsEnabled {
		t.Fatal("expected notifications back on")
	}
}
