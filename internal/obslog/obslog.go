package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var global atomic.Pointer[zap.Logger]

func init() { global.Store(zap.NewNop()) }

// L returns the process logger; a no-op until Init or Set runs.
func L() *zap.Logger { return global.Load() }

// Set replaces the process logger. A nil logger restores the no-op logger.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	global.Store(l)
}

// Sync flushes buffered entries; errors from console sinks are ignored.
func Sync() { _ = L().Sync() }

// Room returns the process logger scoped to one game session.
func Room(sessionID string) *zap.Logger {
	return L().With(Session(sessionID))
}

// Peer returns the process logger scoped to one relay connection.
func Peer(peerID string) *zap.Logger {
	return L().With(zap.String("peer", peerID))
}

func Session(id string) zap.Field { return zap.String("session_id", id) }

func Identity(id string) zap.Field { return zap.String("identity", id) }

func Move(notation string) zap.Field { return zap.String("move", notation) }

// Config selects sinks, level and encoding.
type Config struct {
	Level   zapcore.Level
	Console bool
	File    string // empty disables the file sink
	Format  string // legacy, json or console
	Caller  bool
}

// ConfigFromEnv reads LOG_LEVEL, LOG_TO_CONSOLE, LOG_TO_FILE, LOG_FILE,
// LOG_FORMAT and LOG_CALLER.
func ConfigFromEnv() Config {
	cfg := Config{
		Level:   parseLevel(getenv("LOG_LEVEL", "info")),
		Console: envBool("LOG_TO_CONSOLE", true),
		Format:  strings.ToLower(strings.TrimSpace(getenv("LOG_FORMAT", "legacy"))),
		Caller:  envBool("LOG_CALLER", false),
	}
	if envBool("LOG_TO_FILE", false) {
		cfg.File = strings.TrimSpace(getenv("LOG_FILE", filepath.Join("logs", "hopchess.log")))
	}
	return cfg
}

// Build constructs a logger for cfg.
func Build(cfg Config) (*zap.Logger, error) {
	var cores []zapcore.Core
	if cfg.Console {
		cores = append(cores, zapcore.NewCore(encoder(cfg.Format), zapcore.AddSync(os.Stdout), cfg.Level))
	}
	if cfg.File != "" {
		if dir := filepath.Dir(cfg.File); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create log dir: %w", err)
			}
		}
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoder(cfg.Format), zapcore.AddSync(f), cfg.Level))
	}
	if len(cores) == 0 {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores = append(cores, zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), cfg.Level))
	}

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.Caller || normalizeFormat(cfg.Format) == "legacy" {
		opts = append(opts, zap.AddCaller())
	}
	return zap.New(zapcore.NewTee(cores...), opts...), nil
}

// InitFromEnv builds the logger from LOG_* variables and installs it.
func InitFromEnv() error {
	l, err := Build(ConfigFromEnv())
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

func normalizeFormat(f string) string {
	switch f {
	case "json", "console":
		return f
	}
	return "legacy"
}

func encoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	switch normalizeFormat(format) {
	case "json":
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	case "console":
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(cfg)
	}
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " | "
	return zapcore.NewConsoleEncoder(cfg)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	}
	return zapcore.InfoLevel
}

func envBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1"
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}
