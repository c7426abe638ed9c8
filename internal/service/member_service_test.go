package service

import (
	"context"
	"errors"
	"testing"

	"github.com/example/gochatroom/internal/datamodels/chatroom"
)

func TestRegisterAndLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m, err := env.memberSvc.Register(ctx, "chulsoo", "철수", "secret", "chulsoo@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if m.ID == 0 {
		t.Fatal("expected assigned id")
	}
	if m.Password == "secret" {
		t.Fatal("password must be hashed")
	}

	token, got, err := env.memberSvc.Login(ctx, "chulsoo", "secret")
	if err != nil {
		t.Fatal(err)
	}
	if token == "" || got.ID != m.ID {
		t.Fatalf("unexpected login result: token=%q id=%d", token, got.ID)
	}
}

func TestRegisterDuplicateUserID(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.memberSvc.Register(ctx, "chulsoo", "철수", "secret", ""); err != nil {
		t.Fatal(err)
	}
	_, err := env.memberSvc.Register(ctx, "chulsoo", "다른철수", "secret2", "")
	if !errors.Is(err, chatroom.ErrInvalidState) {
		t.Fatalf("duplicate user id must be rejected, got %v", err)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	if _, err := env.memberSvc.Register(ctx, "chulsoo", "철수", "secret", ""); err != nil {
		t.Fatal(err)
	}
	_, _, err := env.memberSvc.Login(ctx, "chulsoo", "wrong")
	if !errors.Is(err, chatroom.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	_, _, err = env.memberSvc.Login(ctx, "nobody", "secret")
	if !errors.Is(err, chatroom.ErrUnauthorized) {
		t.Fatalf("unknown user must look the same as wrong password, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.memberSvc.Register(context.Background(), "  ", "철수", "secret", "")
	if !errors.Is(err, chatroom.ErrInvalidArgument) {
		t.Fatalf("blank user id must be rejected, got %v", err)
	}
}
