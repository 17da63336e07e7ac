package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}

var (
	globalLogger *Logger
	once         sync.Once
	mu           sync.RWMutex

	defaultConfig = Config{
		Level:      "info",
		Format:     FormatConsole,
		TimeFormat: time.RFC3339,
		Output:     os.Stderr,
	}
)

// Logger wraps zerolog.Logger with a map-based field API
type Logger struct {
	zerolog.Logger
	level zerolog.Level
}

// LogFormat is the output encoding of a logger
type LogFormat string

const (
	// FormatJSON writes one JSON object per line
	FormatJSON LogFormat = "json"
	// FormatConsole writes human readable lines
	FormatConsole LogFormat = "console"
)

func (f LogFormat) String() string {
	return string(f)
}

// ParseLogFormat maps a config string to a LogFormat, defaulting to JSON
func ParseLogFormat(format string) LogFormat {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "console", "pretty", "text":
		return FormatConsole
	default:
		return FormatJSON
	}
}

// Config holds the configuration for the logger
type Config struct {
	// Level is one of debug, info, warn, error, fatal, panic
	Level string
	// Format is json or console
	Format LogFormat
	// Output defaults to os.Stderr so stdout stays free for command output
	Output io.Writer
	// TimeFormat is used by the console writer
	TimeFormat string
}

// GetLevel returns the level the logger was built with
func (l *Logger) GetLevel() zerolog.Level {
	if l == nil {
		return zerolog.NoLevel
	}
	if l.level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l.level
}

// Get returns the global logger, building a default one on first use
func Get() *Logger {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if globalLogger == nil {
			globalLogger = build(defaultConfig)
		}
	})
	mu.RLock()
	defer mu.RUnlock()
	return globalLogger
}

// Setup initializes the global logger. Only the first call has an effect.
func Setup(cfg Config) {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		globalLogger = build(cfg)
	})
}

// ForceSetup replaces the global logger regardless of earlier setup
func ForceSetup(cfg Config) {
	l := build(cfg)
	once.Do(func() {})
	mu.Lock()
	globalLogger = l
	mu.Unlock()
	l.Debug("Logger re-initialized", map[string]interface{}{
		"format": string(cfg.Format),
		"level":  l.GetLevel().String(),
	})
}

// ResetForTesting clears the global logger so Setup can run again
func ResetForTesting() {
	mu.Lock()
	defer mu.Unlock()
	globalLogger = nil
	once = sync.Once{}
}

// New builds a standalone logger without touching the global one
func New(cfg Config) *Logger {
	return build(cfg)
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop(), level: zerolog.Disabled}
}

func build(cfg Config) *Logger {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err == nil && parsed != zerolog.NoLevel {
			level = parsed
		}
	}
	if cfg.Format == "" {
		cfg.Format = FormatJSON
	}
	if cfg.TimeFormat == "" {
		cfg.TimeFormat = time.RFC3339
	}
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	var zl zerolog.Logger
	switch cfg.Format {
	case FormatConsole:
		zl = zerolog.New(zerolog.ConsoleWriter{Out: output, TimeFormat: cfg.TimeFormat})
	default:
		zl = zerolog.New(output)
	}
	zl = zl.Level(level).With().Timestamp().Logger()

	return &Logger{Logger: zl, level: level}
}

type loggerKey struct{}

// NewContext stores the logger in ctx. A nil logger leaves ctx unchanged.
func NewContext(ctx context.Context, l *Logger) context.Context {
	if l == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey{}, l)
}

// FromContext returns the logger stored in ctx, or nil
func FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return nil
	}
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return l
	}
	return nil
}

// Ctx returns the logger stored in ctx, falling back to the global logger
func Ctx(ctx context.Context) *Logger {
	if l := FromContext(ctx); l != nil {
		return l
	}
	return Get()
}

// WithFields returns a child logger carrying the given fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	if l == nil {
		return Get().WithFields(fields)
	}
	if len(fields) == 0 {
		return l
	}
	zctx := l.Logger.With()
	for k, v := range fields {
		zctx = zctx.Interface(k, v)
	}
	return &Logger{Logger: zctx.Logger(), level: l.level}
}

// With is an alias of WithFields
func (l *Logger) With(fields map[string]interface{}) *Logger {
	return l.WithFields(fields)
}

// Component returns a child logger tagged with a component name
func (l *Logger) Component(name string) *Logger {
	return l.WithFields(map[string]interface{}{"component": name})
}

func (l *Logger) emit(ev *zerolog.Event, msg string, fields []map[string]interface{}) {
	if ev == nil {
		return
	}
	if len(fields) > 0 && len(fields[0]) > 0 {
		ev = ev.Fields(fields[0])
	}
	ev.Msg(msg)
}

// Debug logs at debug level with optional fields
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	if l == nil {
		return
	}
	l.emit(l.Logger.Debug(), msg, fields)
}

// Info logs at info level with optional fields
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	if l == nil {
		return
	}
	l.emit(l.Logger.Info(), msg, fields)
}

// Warn logs at warn level with optional fields
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	if l == nil {
		return
	}
	l.emit(l.Logger.Warn(), msg, fields)
}

// Error logs at error level with optional fields
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	if l == nil {
		return
	}
	l.emit(l.Logger.Error(), msg, fields)
}

// Infof logs a formatted message at info level
func (l *Logger) Infof(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.Logger.Info().Msgf(format, args...)
}

// Debugf logs a formatted message at debug level
func (l *Logger) Debugf(format string, args ...interface{}) {
	if l == nil {
		return
	}
	l.Logger.Debug().Msgf(format, args...)
}
