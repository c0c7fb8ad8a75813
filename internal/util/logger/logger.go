package logger

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global *zap.SugaredLogger
	mu     sync.RWMutex
)

// Config defines logging configuration.
type Config struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// DefaultConfig returns the default logger config.
func DefaultConfig() *Config {
	return &Config{Level: "info", Format: "console"}
}

// Init builds the global zap logger from cfg. Safe to call more than once;
// the last call wins.
func Init(cfg *Config) {
	mu.Lock()
	defer mu.Unlock()
	global = build(cfg)
}

func build(cfg *Config) *zap.SugaredLogger {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.MessageKey = "msg"
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder

	var enc zapcore.Encoder
	if cfg.Format == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}

	core := zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

func get() *zap.SugaredLogger {
	mu.RLock()
	l := global
	mu.RUnlock()
	if l != nil {
		return l
	}
	mu.Lock()
	defer mu.Unlock()
	if global == nil {
		global = build(DefaultConfig())
	}
	return global
}

// Sync flushes any buffered log entries.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if global != nil {
		_ = global.Sync()
	}
}

func Debugf(msg string, args ...interface{}) { get().Debugf(msg, args...) }
func Infof(msg string, args ...interface{})  { get().Infof(msg, args...) }
func Warnf(msg string, args ...interface{})  { get().Warnf(msg, args...) }
func Errorf(msg string, args ...interface{}) { get().Errorf(msg, args...) }
func Fatalf(msg string, args ...interface{}) { get().Fatalf(msg, args...) }
