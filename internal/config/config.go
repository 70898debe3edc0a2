package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// AppConfig is the relay server configuration.
type AppConfig struct {
	ListenAddr string

	RedisURL    string
	DatabaseURL string

	OutcomeBaseURL string
	OutcomeRetry   int

	PublicBaseURL   string
	OriginAllowlist []string

	RoomTTL        time.Duration
	StrictMoves    bool
	SendQueueSize  int
	PingInterval   time.Duration
	MsgOverrideDir string
}

// ClientConfig drives the diagnostic relay client.
type ClientConfig struct {
	RelayWSURL string
	RoomAPIURL string
	Identity   string
	Name       string
	SessionID  string
	CachePath  string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		ListenAddr:    ":8080",
		OutcomeRetry:  3,
		RoomTTL:       24 * time.Hour,
		SendQueueSize: 64,
		PingInterval:  15 * time.Second,
	}

	if v := strings.TrimSpace(os.Getenv("LISTEN_ADDR")); v != "" {
		cfg.ListenAddr = v
	}
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.OutcomeBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("OUTCOME_BASE_URL")), "/")
	cfg.PublicBaseURL = strings.TrimRight(strings.TrimSpace(os.Getenv("PUBLIC_BASE_URL")), "/")
	cfg.MsgOverrideDir = strings.TrimSpace(os.Getenv("MSG_OVERRIDE_DIR"))
	cfg.OriginAllowlist = splitList(os.Getenv("ORIGIN_ALLOWLIST"))

	if v := strings.TrimSpace(os.Getenv("OUTCOME_RETRY")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.OutcomeRetry = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("ROOM_TTL_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RoomTTL = time.Duration(n) * time.Second
		}
	}
	if v := strings.TrimSpace(os.Getenv("RELAY_STRICT_MOVES")); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			cfg.StrictMoves = b
		}
	}
	if v := strings.TrimSpace(os.Getenv("RELAY_SEND_QUEUE")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SendQueueSize = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("RELAY_PING_SEC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PingInterval = time.Duration(n) * time.Second
		}
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	return cfg, nil
}

// LoadClient reads the relay client settings. Flags may override them later.
func LoadClient() (*ClientConfig, error) {
	cfg := &ClientConfig{
		RelayWSURL: strings.TrimSpace(os.Getenv("RELAY_WS_URL")),
		RoomAPIURL: strings.TrimRight(strings.TrimSpace(os.Getenv("ROOM_API_URL")), "/"),
		Identity:   strings.TrimSpace(os.Getenv("PLAYER_UUID")),
		Name:       strings.TrimSpace(os.Getenv("PLAYER_NAME")),
		SessionID:  strings.TrimSpace(os.Getenv("GAME_SESSION_UUID")),
		CachePath:  strings.TrimSpace(os.Getenv("IDENTITY_CACHE_FILE")),
	}
	if cfg.RelayWSURL == "" {
		return nil, errors.New("RELAY_WS_URL is required")
	}
	if cfg.RoomAPIURL == "" {
		return nil, errors.New("ROOM_API_URL is required")
	}
	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
