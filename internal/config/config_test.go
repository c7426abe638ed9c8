package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	def := DefaultConfig()
	if cfg.Server.Port != def.Server.Port {
		t.Fatalf("expected default port %d, got %d", def.Server.Port, cfg.Server.Port)
	}
	if cfg.Chat.RecentMessageCount != def.Chat.RecentMessageCount {
		t.Fatalf("expected default recent message count, got %d", cfg.Chat.RecentMessageCount)
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	body := []byte("server:\n  port: 9000\nchat:\n  recentmessagecount: 50\n")
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), body, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 9000 {
		t.Fatalf("expected port 9000, got %d", cfg.Server.Port)
	}
	if cfg.Chat.RecentMessageCount != 50 {
		t.Fatalf("expected recent message count 50, got %d", cfg.Chat.RecentMessageCount)
	}
	// 未覆盖的项保持默认
	if cfg.Chat.RoomListPageSize != DefaultConfig().Chat.RoomListPageSize {
		t.Fatalf("untouched fields must keep defaults, got %d", cfg.Chat.RoomListPageSize)
	}
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Port: 8080}
	if got := s.Addr(); got != "0.0.0.0:8080" {
		t.Fatalf("unexpected addr: %s", got)
	}
	s = ServerConfig{Host: "127.0.0.1", Port: 8081}
	if got := s.Addr(); got != "127.0.0.1:8081" {
		t.Fatalf("unexpected addr: %s", got)
	}
}
