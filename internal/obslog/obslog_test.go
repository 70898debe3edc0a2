package obslog

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRoomScopedFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(nil) })

	Room("s1").Info("room_join", Identity("u1"), Move("a1-b2"))
	Peer("p7").Warn("relay_write_error")

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("entries %d", len(entries))
	}
	f := entries[0].ContextMap()
	if f["session_id"] != "s1" || f["identity"] != "u1" || f["move"] != "a1-b2" {
		t.Fatalf("room fields %v", f)
	}
	if entries[1].ContextMap()["peer"] != "p7" {
		t.Fatalf("peer fields %v", entries[1].ContextMap())
	}
}

func TestSetNilRestoresNop(t *testing.T) {
	Set(nil)
	if L() == nil {
		t.Fatalf("nil logger")
	}
	Room("s1").Info("dropped")
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_TO_CONSOLE", "false")
	t.Setenv("LOG_TO_FILE", "true")
	t.Setenv("LOG_FILE", filepath.Join(t.TempDir(), "nested", "relay.log"))
	t.Setenv("LOG_FORMAT", "json")

	cfg := ConfigFromEnv()
	if cfg.Level != zapcore.WarnLevel || cfg.Console || cfg.File == "" || cfg.Format != "json" {
		t.Fatalf("config %+v", cfg)
	}
	l, err := Build(cfg)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if l.Core().Enabled(zapcore.InfoLevel) || !l.Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("level not applied")
	}
	_ = l.Sync()
}
