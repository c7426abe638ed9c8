package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/example/gochatroom/internal/config"
	"github.com/example/gochatroom/internal/datamodels/chatroom"
	"github.com/example/gochatroom/internal/datamodels/member"
	"github.com/example/gochatroom/internal/infra/mq"
	"github.com/example/gochatroom/internal/repository/mysql"
)

// testEnv 每个测试独立的内存数据库和全套服务，redis/mq 置空
type testEnv struct {
	store      chatroom.Store
	members    member.Repository
	unread     *UnreadService
	rooms      *RoomService
	membership *MembershipService
	messages   *MessageService
	memberSvc  *MemberService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := mysql.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	store := mysql.NewChatStore(db)
	members := mysql.NewMemberRepository(db)
	unread := NewUnreadService(store, nil, 0)
	rooms := NewRoomService(store, members, unread, nil)
	return &testEnv{
		store:      store,
		members:    members,
		unread:     unread,
		rooms:      rooms,
		membership: NewMembershipService(store, members, NewSystemMessageService()),
		messages:   NewMessageService(store, members, rooms, mq.NewNotifier(nil)),
		memberSvc:  NewMemberService(members, &config.JWTConfig{Secret: "test-secret"}),
	}
}

func seedMember(t *testing.T, env *testEnv, userID, name string) *member.Member {
	t.Helper()
	m := &member.Member{UserID: userID, Name: name, Password: "x"}
	if err := env.members.Create(context.Background(), m); err != nil {
		t.Fatalf("seed member %s: %v", userID, err)
	}
	return m
}

func mustRoom(t *testing.T, env *testEnv, roomCode string) *chatroom.Room {
	t.Helper()
	room, err := env.store.GetRoomByCode(context.Background(), roomCode)
	if err != nil {
		t.Fatalf("get room %s: %v", roomCode, err)
	}
	return room
}

func mustMembership(t *testing.T, env *testEnv, roomID uint64, memberID int64) *chatroom.RoomMember {
	t.Helper()
	m, err := env.store.GetMembership(context.Background(), roomID, memberID)
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if m == nil {
		t.Fatalf("membership (%d, %d) not found", roomID, memberID)
	}
	return m
}

func sendChat(t *testing.T, env *testEnv, senderID int64, roomCode, content string) *MessageDTO {
	t.Helper()
	msg, err := env.messages.Send(context.Background(), senderID, roomCode, content)
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	return msg
}
