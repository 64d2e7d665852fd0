package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadAPIFromEnv_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/realm")
	t.Setenv("REALM_JWT_SECRET", "s3cret")
	t.Setenv("PORT", "")

	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("addr = %q, want :8080", cfg.Addr)
	}
	if cfg.TokenTTL != 168*time.Hour {
		t.Fatalf("token ttl = %v, want 168h", cfg.TokenTTL)
	}
	if cfg.RateLimitBurst != 20 {
		t.Fatalf("burst = %d, want 20", cfg.RateLimitBurst)
	}
}

func TestLoadAPIFromEnv_PortOverridesAddr(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/realm")
	t.Setenv("REALM_JWT_SECRET", "s3cret")
	t.Setenv("REALM_API_ADDR", ":9999")
	t.Setenv("PORT", "7070")

	cfg, err := LoadAPIFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Addr != ":7070" {
		t.Fatalf("addr = %q, want :7070", cfg.Addr)
	}
}

func TestLoadAPIFromEnv_RequiresSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REALM_JWT_SECRET", "")
	if _, err := LoadAPIFromEnv(); err == nil {
		t.Fatalf("expected missing DATABASE_URL error")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/realm")
	if _, err := LoadAPIFromEnv(); err == nil {
		t.Fatalf("expected missing REALM_JWT_SECRET error")
	}
}

func TestLoadWorkerFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/realm")
	t.Setenv("REALM_WORLD_TICK_EVERY", "30m")
	t.Setenv("REALM_WORKER_RUN_ONCE", "true")

	cfg, err := LoadWorkerFromEnv()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.WorldTickEvery != 30*time.Minute {
		t.Fatalf("tick every = %v, want 30m", cfg.WorldTickEvery)
	}
	if cfg.ActionPollEvery != 2*time.Second {
		t.Fatalf("poll every = %v, want 2s", cfg.ActionPollEvery)
	}
	if !cfg.RunOnce {
		t.Fatalf("expected run once")
	}
	if cfg.ChronicleDir != "data/chronicle" {
		t.Fatalf("chronicle dir = %q", cfg.ChronicleDir)
	}
}

func TestLoadWorkerFromEnv_RejectsBadInterval(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/realm")
	t.Setenv("REALM_REGEN_EVERY", "0s")
	if _, err := LoadWorkerFromEnv(); err == nil {
		t.Fatalf("expected interval error")
	}
}

func TestLoadCLIFromEnv_TrimsSlash(t *testing.T) {
	t.Setenv("REALM_API_BASE_URL", "https://realm.example/ ")
	if got := LoadCLIFromEnv().APIBaseURL; got != "https://realm.example" {
		t.Fatalf("base url = %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":      slog.LevelInfo,
		"DEBUG": slog.LevelDebug,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}
