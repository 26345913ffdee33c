package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"BLIND_CONFIG_FILE", "IRIS_BASE_URL", "IRIS_WS_URL", "EGRESS_MODE", "BOT_PREFIX",
		"X_USER_ID", "X_USER_EMAIL", "X_SESSION_ID", "REDIS_URL", "DATABASE_URL",
		"ALLOWED_ROOMS", "HTTP_ADDR", "BLIND_DEFAULT_POLICY", "BLIND_SESSION_TTL",
		"BLIND_MATCH_TTL", "BLIND_LANG", "MSG_OVERRIDE_DIR", "BLIND_RENDER_SIZE",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DefaultPolicy != "seek-next" || cfg.SessionTTL != 24*time.Hour || cfg.Lang != "ko" || cfg.EgressMode != "auto" {
		t.Fatalf("defaults = %+v", cfg)
	}
	if err := cfg.ValidateBot(); err == nil {
		t.Fatal("bot validation should require IRIS_BASE_URL")
	}
	if err := cfg.ValidateAPI(); err == nil {
		t.Fatal("api validation should require HTTP_ADDR")
	}
	if !cfg.RoomAllowed("any") {
		t.Fatal("empty allow list should allow every room")
	}
}

func TestFileThenEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "blind.yaml")
	body := "iris_base_url: http://iris:3000\niris_ws_url: ws://iris:3000/ws\nallowed_rooms: [a, b]\nsession_ttl: 90m\nmatch_ttl: \"600\"\nlang: en\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BLIND_CONFIG_FILE", path)
	t.Setenv("BLIND_LANG", "ko")
	t.Setenv("EGRESS_MODE", "WS")
	t.Setenv("BLIND_RENDER_SIZE", "64")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.IrisBaseURL != "http://iris:3000" || !reflect.DeepEqual(cfg.AllowedRooms, []string{"a", "b"}) {
		t.Fatalf("file values lost: %+v", cfg)
	}
	if cfg.SessionTTL != 90*time.Minute || cfg.MatchTTL != 10*time.Minute {
		t.Fatalf("ttl = %s / %s", cfg.SessionTTL, cfg.MatchTTL)
	}
	if cfg.Lang != "ko" || cfg.EgressMode != "ws" {
		t.Fatalf("env should win: lang=%s egress=%s", cfg.Lang, cfg.EgressMode)
	}
	if cfg.RenderSize != 480 {
		t.Fatalf("render size below minimum should be ignored, got %d", cfg.RenderSize)
	}
	if err := cfg.ValidateBot(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.RoomAllowed("c") {
		t.Fatal("room c is not allowed")
	}
}

func TestBadDurations(t *testing.T) {
	clearEnv(t)
	t.Setenv("BLIND_SESSION_TTL", "-5")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative ttl")
	}
	t.Setenv("BLIND_SESSION_TTL", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for garbage ttl")
	}
}
