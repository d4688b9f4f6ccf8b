package logger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// instanceID identifies this relay process in aggregated logs.
var instanceID string

func init() {
	for _, key := range []string{"INSTANCE_ID", "HOSTNAME"} {
		if v := os.Getenv(key); v != "" {
			instanceID = v
			return
		}
	}
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	instanceID = hex.EncodeToString(b)
}

// InstanceID returns the identifier attached to every log line.
func InstanceID() string {
	return instanceID
}

// Config holds the configuration of the logger.
type Config struct {
	Level  slog.Level
	Format string
	// Output defaults to os.Stdout.
	Output io.Writer
}

// contextKey is used for context values.
type contextKey string

const (
	// ContextKeyCycleID is the key for the poll cycle ID in the context.
	ContextKeyCycleID contextKey = "cycle_id"
	// ContextKeyAssignmentID is the key for the assignment being handled.
	ContextKeyAssignmentID contextKey = "assignment_id"
)

// Logger wraps slog.Logger.
type Logger struct {
	*slog.Logger
}

// New builds a logger for the relay process. Every line carries instance_id.
func New(config Config) *Logger {
	out := config.Output
	if out == nil {
		out = os.Stdout
	}

	return &Logger{
		Logger: slog.New(newHandler(out, config)).With(slog.String("instance_id", instanceID)),
	}
}

// newHandler returns the slog JSON handler for "json" and a tint console
// handler for anything else.
func newHandler(out io.Writer, config Config) slog.Handler {
	if config.Format == "json" {
		return slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:       config.Level,
			AddSource:   true,
			ReplaceAttr: rfc3339Time,
		})
	}

	return tint.NewHandler(out, &tint.Options{
		Level:      config.Level,
		AddSource:  true,
		TimeFormat: time.Kitchen,
	})
}

func rfc3339Time(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339))
	}
	return a
}

// FromConfig maps the LOG_LEVEL / LOG_FORMAT settings to a logger Config.
// Unknown levels fall back to info. APP_ENV=production forces JSON.
func FromConfig(logLevel, logFormat string) Config {
	config := Config{
		Level:  slog.LevelInfo,
		Format: "text",
	}

	if logLevel != "" {
		var level slog.Level
		if err := level.UnmarshalText([]byte(logLevel)); err == nil {
			config.Level = level
		}
	}

	if logFormat != "" {
		config.Format = logFormat
	}

	if os.Getenv("APP_ENV") == "production" {
		config.Format = "json"
	}

	return config
}

// WithContext returns a logger carrying the correlation ids found in ctx.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	var attrs []any
	for _, key := range []contextKey{ContextKeyCycleID, ContextKeyAssignmentID} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	if len(attrs) == 0 {
		return l
	}
	return &Logger{Logger: l.With(attrs...)}
}

// WithComponent tags every line with the emitting component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.With(slog.String("component", component))}
}

// LogError logs err at error level with the correlation ids found in ctx.
func (l *Logger) LogError(ctx context.Context, err error, msg string, attrs ...slog.Attr) {
	attrs = append([]slog.Attr{slog.String("error", err.Error())}, attrs...)
	l.WithContext(ctx).LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

// LogOperation runs fn and logs its outcome and duration under operation.
func (l *Logger) LogOperation(ctx context.Context, operation string, fn func() error) error {
	log := l.WithContext(ctx).With(slog.String("operation", operation))
	log.Debug("operation started")

	start := time.Now()
	err := fn()
	elapsed := slog.Duration("duration", time.Since(start))

	if err != nil {
		log.Error("operation failed", elapsed, slog.String("error", err.Error()))
		return err
	}
	log.Info("operation completed", elapsed)
	return nil
}
