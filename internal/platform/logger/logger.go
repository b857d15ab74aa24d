package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls the process logger.
type Config struct {
	Level       string // debug, info, warn, error
	Format      string // json or console
	EnableColor bool   // console only
}

var (
	globalLogger *zap.Logger
	level        = zap.NewAtomicLevel()
	once         sync.Once
)

// DefaultConfig reads LOG_LEVEL and LOG_FORMAT, falling back to info/console.
func DefaultConfig() Config {
	return Config{
		Level:       envOr("LOG_LEVEL", "info"),
		Format:      envOr("LOG_FORMAT", "console"),
		EnableColor: colorEnabled(),
	}
}

// Initialize builds the global logger. Only the first call has any effect;
// use SetLevel to change verbosity afterwards.
func Initialize(cfg Config) {
	once.Do(func() {
		globalLogger = build(cfg)
	})
}

func build(cfg Config) *zap.Logger {
	format := strings.ToLower(cfg.Format)
	if format != "json" {
		format = "console"
	}

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder
	enc.EncodeLevel = zapcore.CapitalLevelEncoder

	if format == "console" {
		enc.EncodeCaller = zapcore.ShortCallerEncoder
		enc.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		if cfg.EnableColor {
			enc.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
	}

	level.SetLevel(ParseLevel(cfg.Level))

	zc := zap.Config{
		Level:             level,
		Encoding:          format,
		EncoderConfig:     enc,
		OutputPaths:       []string{"stdout"},
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: level.Level() > zapcore.DebugLevel && level.Level() < zapcore.ErrorLevel,
	}

	l, err := zc.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	return l
}

// SetLevel changes the level of the global logger at runtime. Unknown names
// fall back to info.
func SetLevel(name string) {
	level.SetLevel(ParseLevel(name))
}

// Level reports the current global level.
func Level() zapcore.Level {
	return level.Level()
}

// Get returns the global logger, initializing it with DefaultConfig if needed.
func Get() *zap.Logger {
	Initialize(DefaultConfig())
	return globalLogger
}

// With returns a child of the global logger carrying fields.
func With(fields ...zap.Field) *zap.Logger {
	return Get().With(fields...)
}

// Named returns a child of the global logger for a component. The caller skip
// is removed so call sites are reported correctly outside this package.
func Named(name string) *zap.Logger {
	return Get().WithOptions(zap.AddCallerSkip(-1)).Named(name)
}

func Info(msg string, fields ...zap.Field)  { Get().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Get().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Get().Error(msg, fields...) }
func Debug(msg string, fields ...zap.Field) { Get().Debug(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { Get().Fatal(msg, fields...) }

func Sync() {
	if globalLogger != nil {
		_ = globalLogger.Sync()
	}
}

// ParseLevel maps a level name to its zap level.
func ParseLevel(name string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	case "fatal":
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return strings.ToLower(v)
	}
	return fallback
}

// colorEnabled honours NO_COLOR (https://no-color.org/) and LOG_COLOR.
func colorEnabled() bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if v := os.Getenv("LOG_COLOR"); v != "" {
		return v == "true" || v == "1"
	}
	return true
}
