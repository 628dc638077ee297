// Package logger is the structured logging layer of the bot: a slog handler with a
// stable key order, an asynchronous writer and per-component loggers.
package logger

import (
	"context"
	"errors"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/m3rciful/remindbot/core/buildinfo"
	coreconfig "github.com/m3rciful/remindbot/core/config"
)

var (
	initOnce   sync.Once
	shutdownMu sync.Mutex
	shutDown   bool

	logWriter  *asyncWriter
	logClosers []io.Closer

	levelVar slog.LevelVar

	debugSampler  = newRatioSampler(1, 50)
	traceOverride bool

	// L is the base logger. Prefer the context-first helpers (Info, Warn, ...) in new code.
	L = slog.Default()

	// TG logs Telegram transport events.
	TG = L
	// TWire logs Telegram wiring steps.
	TWire = L
	// DB logs database events of the reminder journal.
	DB = L
	// MIG logs database migration events.
	MIG = L
	// SCHED logs reminder scheduler events.
	SCHED = L
	// PRICE logs price lookup events.
	PRICE = L
)

// components binds each package-level logger to its "component" value.
var components = []struct {
	name string
	dst  **slog.Logger
}{
	{"tg", &TG},
	{"tg.wire", &TWire},
	{"db", &DB},
	{"db.migrate", &MIG},
	{"reminder.scheduler", &SCHED},
	{"price", &PRICE},
}

// settings is the logging section of the config resolved to concrete values.
type settings struct {
	level    slog.Level
	format   logFormat
	keyOrder []string
	profile  string
	sampleN  int
	sampleD  int
	filePath string
}

func resolveSettings(cfg *coreconfig.Config) settings {
	s := settings{
		level:    slog.LevelInfo,
		format:   formatJSON,
		keyOrder: append([]string(nil), defaultKeyOrder...),
		sampleN:  1,
		sampleD:  50,
	}
	if cfg == nil {
		return s
	}
	lc := cfg.Logging

	s.profile = "prod"
	if p := strings.TrimSpace(lc.Profile); p != "" {
		s.profile = strings.ToLower(p)
	}

	switch strings.ToLower(strings.TrimSpace(lc.Level)) {
	case "debug":
		s.level = slog.LevelDebug
	case "warn", "warning":
		s.level = slog.LevelWarn
	case "error":
		s.level = slog.LevelError
	}

	switch strings.ToLower(strings.TrimSpace(lc.Format)) {
	case "kv", "text", "pretty":
		s.format = formatKV
	case "json":
	default:
		if s.profile == "debug" || s.profile == "dev" {
			s.format = formatKV
		}
	}

	if order := splitList(lc.KeysOrder); len(order) > 0 && strings.TrimSpace(lc.KeysOrder) != "default" {
		s.keyOrder = order
	}

	if strings.TrimSpace(lc.DebugSample) != "" {
		switch n, d := parseRatioSpec(lc.DebugSample); {
		case n == 0 && d == 0:
			s.sampleN, s.sampleD = 0, 0
		case n > 0 && d > 0:
			s.sampleN, s.sampleD = n, d
		}
	}

	if dir, file := strings.TrimSpace(lc.Dir), strings.TrimSpace(lc.BotFile); dir != "" && file != "" {
		s.filePath = filepath.Join(dir, file)
	}
	return s
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// InitLogger configures the global structured logger. Only the first call has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	initOnce.Do(func() {
		s := resolveSettings(cfg)
		levelVar.Set(s.level)
		debugSampler.Set(s.sampleN, s.sampleD)
		traceOverride = isTruthy(os.Getenv("TRACE")) || isTruthy(os.Getenv("LOG_TRACE"))

		sinks := []io.Writer{os.Stdout}
		if f := openLogFile(s.filePath); f != nil {
			sinks = append(sinks, f)
			logClosers = append(logClosers, f)
		}
		logWriter = newAsyncWriter(sinks, 64*1024)

		L = slog.New(newStructuredHandler(handlerConfig{
			level:    &levelVar,
			writer:   logWriter,
			format:   s.format,
			keyOrder: s.keyOrder,
		}))
		slog.SetDefault(L)
		for _, c := range components {
			*c.dst = L.With("component", c.name)
		}

		LogEvent(context.Background(), L, slog.LevelInfo, "startup",
			slog.String("component", "app"),
			slog.String("go_version", runtime.Version()),
			slog.String("build_version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", s.profile),
		)
	})
	return nil
}

// openLogFile opens path for appending. Failures are reported on the standard logger
// and leave stdout as the only sink.
func openLogFile(path string) *os.File {
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		log.Printf("logger: failed to create log dir for %s: %v", path, err)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		log.Printf("logger: failed to open log file %s: %v", path, err)
		return nil
	}
	return f
}

// Shutdown flushes buffered log output and closes opened sinks.
func Shutdown() error {
	shutdownMu.Lock()
	defer shutdownMu.Unlock()
	if shutDown {
		return nil
	}
	shutDown = true

	var errs []error
	if logWriter != nil {
		errs = append(errs, logWriter.Flush(), logWriter.Close())
	}
	for _, c := range logClosers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// LogEvent writes a record whose "event" attribute is set to event. A nil logg means
// the logger carried by ctx.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Component returns L scoped to the given component.
func Component(name string) *slog.Logger {
	if name = strings.TrimSpace(name); name == "" {
		return L
	}
	return L.With("component", name)
}

// Event logs with component scope resolved automatically.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

func isTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

// ShouldSampleDebug reports whether a high-volume debug line should be written.
func ShouldSampleDebug() bool {
	return traceOverride || debugSampler.Allow()
}

// RoundMS rounds d to whole milliseconds; negative durations become zero.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}

// Status is "fail" for a non-nil err and "ok" otherwise.
func Status(err error) string {
	if err != nil {
		return "fail"
	}
	return "ok"
}

// SummarizeStrings joins up to limit elements and reports whether truncation happened.
func SummarizeStrings(values []string, limit int) (string, bool) {
	if limit <= 0 {
		return "", len(values) > 0
	}
	if len(values) <= limit {
		return strings.Join(values, ", "), false
	}
	return strings.Join(values[:limit], ", "), true
}
