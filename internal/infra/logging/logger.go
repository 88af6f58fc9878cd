package logging

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// Constants for log levels that match slog.Level values.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// Type aliases for commonly used slog types.
type (
	Logger  = *slog.Logger
	Handler = slog.Handler
	Level   = slog.Level
)

// LoggerConfig holds configuration parameters for logging.
type LoggerConfig struct {
	// Output specifies where logs are written ("stdout", "stderr", "discard" or a file path)
	Output string `env:"OUTPUT" envDefault:"stderr"`

	// Level sets the minimum log level ("debug", "info", "warn", "error")
	Level string `env:"LEVEL" envDefault:"info"`

	// Filter overrides the level per logger name prefix ("svc.usersvc:debug,infra:warn")
	Filter string `env:"FILTER"`

	// JSON enables JSON-formatted output instead of human-readable console output
	JSON bool `env:"JSON" envDefault:"false"`
}

//nolint:gochecknoglobals
var (
	Group = slog.Group

	global = &registry{out: io.Discard}
)

type registry struct {
	mu      sync.RWMutex
	appName string
	cfg     LoggerConfig
	out     io.Writer
	filters map[string]Level
}

// Configure sets up global logging configuration for the application.
// Loggers obtained before the call keep their previous configuration.
func Configure(ctx context.Context, cfg LoggerConfig, appName string) error {
	out, err := openOutput(cfg.Output)
	if err != nil {
		return fmt.Errorf("open log output: %w", err)
	}

	ConfigureWriter(out, cfg, appName)

	GetLogger("infra.logging").DebugContext(ctx, "logging configured", Group("config",
		"app", appName,
		"output", cfg.Output,
		"level", cfg.Level,
		"filter", cfg.Filter,
		"json", cfg.JSON,
	))

	return nil
}

// ConfigureWriter is Configure with an explicit destination, ignoring cfg.Output.
func ConfigureWriter(out io.Writer, cfg LoggerConfig, appName string) {
	global.mu.Lock()
	defer global.mu.Unlock()

	global.appName = appName
	global.cfg = cfg
	global.out = out
	global.filters = parseFilter(cfg.Filter)

	slog.SetLogLoggerLevel(parseLevel(cfg.Level, LevelInfo))
}

// GetLogger returns a logger tagged with the given name.
// The name is matched against the configured filter to pick its level.
func GetLogger(name string) Logger {
	global.mu.RLock()
	out, cfg, appName := global.out, global.cfg, global.appName
	level := global.levelFor(name)
	global.mu.RUnlock()

	if out == io.Discard {
		return Discard()
	}

	var handler Handler

	if cfg.JSON {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{AddSource: true, Level: level})
	} else {
		handler = NewConsoleHandler(out, level)
	}

	logger := slog.New(NewTracingHandler(handler))

	if appName != "" {
		logger = logger.With("app", appName)
	}

	return logger.With("logger", name)
}

// GetLogLogger adapts a Logger to a standard library *log.Logger, e.g. for http.Server.ErrorLog.
func GetLogLogger(logger Logger, level Level) *log.Logger {
	return slog.NewLogLogger(logger.With("stdlog", true).Handler(), level)
}

// Discard returns a logger that drops every record.
func Discard() Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: LevelError + 1}))
}

func (r *registry) levelFor(name string) Level {
	fallback := parseLevel(r.cfg.Level, LevelInfo)

	// longest matching dotted prefix wins
	for prefix := name; prefix != ""; {
		if level, ok := r.filters[prefix]; ok {
			return level
		}

		i := strings.LastIndexByte(prefix, '.')
		if i < 0 {
			break
		}

		prefix = prefix[:i]
	}

	return fallback
}

func openOutput(output string) (io.Writer, error) {
	switch output {
	case "", "discard":
		return io.Discard, nil
	case "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	}

	file, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	return file, nil
}

func parseFilter(filter string) map[string]Level {
	filters := make(map[string]Level)

	for _, entry := range strings.Split(filter, ",") {
		name, level, ok := strings.Cut(strings.TrimSpace(entry), ":")
		if !ok || name == "" {
			continue
		}

		filters[name] = parseLevel(level, LevelDebug)
	}

	return filters
}

func parseLevel(s string, fallback Level) Level {
	var level Level

	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return fallback
	}

	return level
}
