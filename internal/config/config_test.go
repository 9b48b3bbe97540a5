package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// chdir moves the test into an empty directory so a developer's local
// config.toml cannot leak into assertions.
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Addr != ":8080" {
		t.Errorf("default addr = %q, want :8080", cfg.App.Addr)
	}
	if cfg.Handshake.Timeout != 10*time.Second {
		t.Errorf("default handshake timeout = %s, want 10s", cfg.Handshake.Timeout)
	}
	if cfg.Socket.SendBuffer != 64 {
		t.Errorf("default send buffer = %d, want 64", cfg.Socket.SendBuffer)
	}
	if !cfg.IsDev() {
		t.Errorf("default env should be dev")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("RELAY_APP_ADDR", ":9191")
	t.Setenv("RELAY_JWT_SECRET", "env-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Addr != ":9191" {
		t.Errorf("addr = %q, want env override :9191", cfg.App.Addr)
	}
	if cfg.JWT.Secret != "env-secret" {
		t.Errorf("secret = %q, want env override", cfg.JWT.Secret)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	toml := `
[app]
addr = ":7070"

[socket]
send_buffer = 8
`
	if err := os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	chdir(t, dir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.App.Addr != ":7070" {
		t.Errorf("addr = %q, want :7070 from config.toml", cfg.App.Addr)
	}
	if cfg.Socket.SendBuffer != 8 {
		t.Errorf("send buffer = %d, want 8 from config.toml", cfg.Socket.SendBuffer)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			App:       AppConfig{Env: "dev", Addr: ":8080"},
			Handshake: HandshakeConfig{Timeout: time.Second},
			Socket: SocketConfig{
				SendBuffer:   16,
				WriteTimeout: time.Second,
				MessageRate:  5,
				MessageBurst: 10,
			},
		}
	}

	t.Run("ok", func(t *testing.T) {
		if err := base().Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}
	})

	t.Run("production requires secret", func(t *testing.T) {
		cfg := base()
		cfg.App.Env = "production"
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for empty secret in production")
		}
	})

	t.Run("zero handshake timeout", func(t *testing.T) {
		cfg := base()
		cfg.Handshake.Timeout = 0
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for zero handshake timeout")
		}
	})

	t.Run("zero send buffer", func(t *testing.T) {
		cfg := base()
		cfg.Socket.SendBuffer = 0
		if err := cfg.Validate(); err == nil {
			t.Fatal("expected error for zero send buffer")
		}
	})
}
