package chatroom

import (
	"errors"
	"testing"
)

func TestTransition(t *testing.T) {
	cases := []struct {
		current MemberStatus
		event   MemberEvent
		want    MemberStatus
		wantErr bool
	}{
		{StatusActive, EventLeave, StatusLeft, false},
		{StatusActive, EventKick, StatusKicked, false},
		{StatusActive, EventBlock, StatusBlocked, false},
		{StatusActive, EventInvite, StatusActive, true},
		{StatusLeft, EventInvite, StatusActive, false},
		{StatusLeft, EventLeave, StatusLeft, true},
		{StatusLeft, EventKick, StatusLeft, true},
		{StatusBlocked, EventUnblock, StatusActive, false},
		{StatusBlocked, EventInvite, StatusBlocked, true},
		{StatusBlocked, EventLeave, StatusBlocked, true},
		{StatusKicked, EventInvite, StatusKicked, true},
		{StatusKicked, EventLeave, StatusKicked, true},
		{StatusKicked, EventUnblock, StatusKicked, true},
	}
	for _, c := range cases {
		got, err := Transition(c.current, c.event)
		if c.wantErr {
			if err == nil {
				t.Errorf("Transition(%s, %s): expected error", c.current, c.event)
			} else if !errors.Is(err, ErrInvalidState) {
				t.Errorf("Transition(%s, %s): expected ErrInvalidState, got %v", c.current, c.event, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Transition(%s, %s): unexpected error %v", c.current, c.event, err)
			continue
		}
		if got != c.want {
			t.Errorf("Transition(%s, %s) = %s, want %s", c.current, c.event, got, c.want)
		}
	}
}

func TestApplyMaintainsLeftAt(t *testing.T) {
	m := NewRoomMember(1, 100, RoleMember)
	if m.Status != StatusActive || m.LeftAt != nil {
		t.Fatalf("new member should be active without leftAt")
	}

	if err := m.Apply(EventLeave); err != nil {
		t.Fatal(err)
	}
	if m.Status != StatusLeft || m.LeftAt == nil {
		t.Fatalf("leave should set leftAt, got status=%s leftAt=%v", m.Status, m.LeftAt)
	}

	if err := m.Apply(EventInvite); err != nil {
		t.Fatal(err)
	}
	if m.Status != StatusActive || m.LeftAt != nil {
		t.Fatalf("rejoin should clear leftAt, got status=%s leftAt=%v", m.Status, m.LeftAt)
	}
}

func TestApplyKickIsTerminal(t *testing.T) {
	m := NewRoomMember(1, 100, RoleMember)
	if err := m.Apply(EventKick); err != nil {
		t.Fatal(err)
	}
	if m.Status != StatusKicked {
		t.Fatalf("expected KICKED, got %s", m.Status)
	}
	if err := m.Apply(EventInvite); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("kicked member should not be invitable, got %v", err)
	}
}

func TestCursorBehind(t *testing.T) {
	m := NewRoomMember(1, 100, RoleMember)
	if m.CursorBehind(5) {
		t.Fatal("unset cursor is never behind")
	}
	cur := uint64(10)
	m.LastReadMessageID = &cur
	if !m.CursorBehind(5) {
		t.Fatal("5 should be behind cursor 10")
	}
	if m.CursorBehind(10) {
		t.Fatal("equal message is not behind")
	}
	if m.CursorBehind(11) {
		t.Fatal("11 should not be behind cursor 10")
	}
}

func TestRoleCanInvite(t *testing.T) {
	if !RoleOwner.CanInvite() || !RoleAdmin.CanInvite() {
		t.Fatal("owner and admin can invite")
	}
	if RoleMember.CanInvite() {
		t.Fatal("plain member cannot invite")
	}
}
