package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type AppConfig struct {
	IrisBaseURL string `yaml:"iris_base_url"`
	IrisWSURL   string `yaml:"iris_ws_url"`
	EgressMode  string `yaml:"egress_mode"`

	BotPrefix string `yaml:"bot_prefix"`

	XUserID    string `yaml:"x_user_id"`
	XUserEmail string `yaml:"x_user_email"`
	XSessionID string `yaml:"x_session_id"`

	RedisURL    string `yaml:"redis_url"`
	DatabaseURL string `yaml:"database_url"`

	AllowedRooms []string `yaml:"allowed_rooms"`

	HTTPAddr string `yaml:"http_addr"`

	DefaultPolicy  string        `yaml:"default_policy"`
	SessionTTL     time.Duration `yaml:"-"`
	MatchTTL       time.Duration `yaml:"-"`
	Lang           string        `yaml:"lang"`
	MsgOverrideDir string        `yaml:"msg_override_dir"`
	RenderSize     int           `yaml:"render_size"`
}

// fileOverlay carries the duration keys as text so "90m" and "5400" both work.
type fileOverlay struct {
	AppConfig  `yaml:",inline"`
	SessionTTL string `yaml:"session_ttl"`
	MatchTTL   string `yaml:"match_ttl"`
}

func defaults() *AppConfig {
	return &AppConfig{
		EgressMode:    "auto",
		BotPrefix:     "!",
		DefaultPolicy: "seek-next",
		SessionTTL:    24 * time.Hour,
		MatchTTL:      24 * time.Hour,
		Lang:          "ko",
		RenderSize:    480,
	}
}

// Load builds the config from defaults, then BLIND_CONFIG_FILE, then env.
// Required keys are checked by ValidateBot / ValidateAPI.
func Load() (*AppConfig, error) {
	cfg := defaults()
	if path := strings.TrimSpace(os.Getenv("BLIND_CONFIG_FILE")); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.overlayEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *AppConfig) overlayFile(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	ov := fileOverlay{AppConfig: *cfg}
	if err := yaml.Unmarshal(raw, &ov); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	*cfg = ov.AppConfig
	if ov.SessionTTL != "" {
		d, err := parseDuration(ov.SessionTTL)
		if err != nil {
			return fmt.Errorf("session_ttl: %w", err)
		}
		cfg.SessionTTL = d
	}
	if ov.MatchTTL != "" {
		d, err := parseDuration(ov.MatchTTL)
		if err != nil {
			return fmt.Errorf("match_ttl: %w", err)
		}
		cfg.MatchTTL = d
	}
	return nil
}

func (cfg *AppConfig) overlayEnv() error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	str("IRIS_BASE_URL", &cfg.IrisBaseURL)
	str("IRIS_WS_URL", &cfg.IrisWSURL)
	str("EGRESS_MODE", &cfg.EgressMode)
	str("BOT_PREFIX", &cfg.BotPrefix)
	str("X_USER_ID", &cfg.XUserID)
	str("X_USER_EMAIL", &cfg.XUserEmail)
	str("X_SESSION_ID", &cfg.XSessionID)
	str("REDIS_URL", &cfg.RedisURL)
	str("DATABASE_URL", &cfg.DatabaseURL)
	str("HTTP_ADDR", &cfg.HTTPAddr)
	str("BLIND_DEFAULT_POLICY", &cfg.DefaultPolicy)
	str("BLIND_LANG", &cfg.Lang)
	str("MSG_OVERRIDE_DIR", &cfg.MsgOverrideDir)

	if v := strings.TrimSpace(os.Getenv("ALLOWED_ROOMS")); v != "" {
		cfg.AllowedRooms = splitList(v)
	}
	if v := strings.TrimSpace(os.Getenv("BLIND_SESSION_TTL")); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("BLIND_SESSION_TTL: %w", err)
		}
		cfg.SessionTTL = d
	}
	if v := strings.TrimSpace(os.Getenv("BLIND_MATCH_TTL")); v != "" {
		d, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("BLIND_MATCH_TTL: %w", err)
		}
		cfg.MatchTTL = d
	}
	if v := strings.TrimSpace(os.Getenv("BLIND_RENDER_SIZE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 160 {
			cfg.RenderSize = n
		}
	}
	cfg.EgressMode = strings.ToLower(cfg.EgressMode)
	return nil
}

// ValidateBot checks the keys the Kakao bot cannot run without.
func (cfg *AppConfig) ValidateBot() error {
	if cfg.IrisBaseURL == "" {
		return errors.New("IRIS_BASE_URL is required")
	}
	if cfg.IrisWSURL == "" {
		return errors.New("IRIS_WS_URL is required")
	}
	if cfg.BotPrefix == "" {
		return errors.New("BOT_PREFIX is required")
	}
	switch cfg.EgressMode {
	case "http", "ws", "auto":
	default:
		return fmt.Errorf("EGRESS_MODE must be http, ws or auto, got %q", cfg.EgressMode)
	}
	return nil
}

// ValidateAPI checks the keys the standalone HTTP API needs.
func (cfg *AppConfig) ValidateAPI() error {
	if cfg.HTTPAddr == "" {
		return errors.New("HTTP_ADDR is required")
	}
	return nil
}

// RoomAllowed reports whether the bot answers in room; an empty list allows all.
func (cfg *AppConfig) RoomAllowed(room string) bool {
	if len(cfg.AllowedRooms) == 0 {
		return true
	}
	for _, r := range cfg.AllowedRooms {
		if r == room {
			return true
		}
	}
	return false
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// parseDuration accepts plain seconds or a Go duration string.
func parseDuration(v string) (time.Duration, error) {
	v = strings.TrimSpace(v)
	if n, err := strconv.Atoi(v); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("must be positive, got %d", n)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}
