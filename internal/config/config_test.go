package config

import (
    "testing"
    "time"
)

func TestLoadRequiresRedis(t *testing.T) {
    t.Setenv("REDIS_URL", "")
    if _, err := Load(); err == nil { t.Fatalf("expected error without REDIS_URL") }
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
    t.Setenv("REDIS_URL", "redis://localhost:6379/0")
    t.Setenv("LISTEN_ADDR", "")
    t.Setenv("ROOM_TTL_SEC", "")
    t.Setenv("RELAY_STRICT_MOVES", "")
    t.Setenv("ORIGIN_ALLOWLIST", "")
    cfg, err := Load()
    if err != nil { t.Fatalf("Load: %v", err) }
    if cfg.ListenAddr != ":8080" || cfg.RoomTTL != 24*time.Hour || cfg.StrictMoves { t.Fatalf("defaults: %+v", cfg) }

    t.Setenv("LISTEN_ADDR", ":9000")
    t.Setenv("ROOM_TTL_SEC", "600")
    t.Setenv("RELAY_STRICT_MOVES", "true")
    t.Setenv("ORIGIN_ALLOWLIST", " http://a.test , ,http://b.test")
    t.Setenv("OUTCOME_BASE_URL", "https://backend.test/")
    cfg, err = Load()
    if err != nil { t.Fatalf("Load: %v", err) }
    if cfg.ListenAddr != ":9000" { t.Fatalf("listen %q", cfg.ListenAddr) }
    if cfg.RoomTTL != 10*time.Minute { t.Fatalf("ttl %v", cfg.RoomTTL) }
    if !cfg.StrictMoves { t.Fatalf("strict moves not enabled") }
    if len(cfg.OriginAllowlist) != 2 || cfg.OriginAllowlist[1] != "http://b.test" { t.Fatalf("allowlist %v", cfg.OriginAllowlist) }
    if cfg.OutcomeBaseURL != "https://backend.test" { t.Fatalf("outcome base %q", cfg.OutcomeBaseURL) }
}

func TestLoadClient(t *testing.T) {
    t.Setenv("RELAY_WS_URL", "")
    t.Setenv("ROOM_API_URL", "http://api.test")
    if _, err := LoadClient(); err == nil { t.Fatalf("expected error without RELAY_WS_URL") }
    t.Setenv("RELAY_WS_URL", "ws://relay.test/ws")
    cfg, err := LoadClient()
    if err != nil { t.Fatalf("LoadClient: %v", err) }
    if cfg.RoomAPIURL != "http://api.test" { t.Fatalf("api url %q", cfg.RoomAPIURL) }
}
