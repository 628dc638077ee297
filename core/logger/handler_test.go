package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/remindbot/core/config"
)

func captureLine(t *testing.T, format logFormat, emit func(*slog.Logger)) string {
	t.Helper()
	buf := &bytes.Buffer{}
	aw := newAsyncWriter([]io.Writer{buf}, 1024)
	handler := newStructuredHandler(handlerConfig{
		level:  slog.LevelInfo,
		writer: aw,
		format: format,
	})
	emit(slog.New(handler))
	require.NoError(t, aw.Flush())
	require.NoError(t, aw.Close())
	line := strings.TrimSpace(buf.String())
	require.NotEmpty(t, line)
	return line
}

func TestStructuredHandlerKVOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "rid-123"), 42, 7, 9)
	line := captureLine(t, formatKV, func(l *slog.Logger) {
		LogEvent(ctx, l.With("component", "reminder.scheduler"), slog.LevelInfo, "reminder.scheduled",
			slog.String("status", "OK"),
			slog.String("job_id", "j-1"),
		)
	})

	tokens := strings.Split(line, " ")
	require.GreaterOrEqual(t, len(tokens), 6, line)
	expected := []string{"ts=", "level=INFO", "component=reminder.scheduler", "event=reminder.scheduled", "status=ok", "rid=rid-123"}
	for i, prefix := range expected {
		assert.Truef(t, strings.HasPrefix(tokens[i], prefix), "token %d = %s, want prefix %s", i, tokens[i], prefix)
	}
	assert.Contains(t, line, "chat_id=9")
	assert.Contains(t, line, "job_id=j-1")
}

func TestStructuredHandlerJSONOrder(t *testing.T) {
	ctx := WithUpdateMeta(WithRID(context.Background(), "rid-json"), 11, 22, 33)
	line := captureLine(t, formatJSON, func(l *slog.Logger) {
		LogEvent(ctx, l.With("component", "price"), slog.LevelError, "price.fetch",
			slog.String("status", "fail"),
			slog.String("err", "boom"),
		)
	})

	require.True(t, strings.HasPrefix(line, "{"), line)
	prefixes := []string{`{"ts":`, `"level":"ERROR"`, `"component":"price"`, `"event":"price.fetch"`, `"status":"fail"`, `"rid":"rid-json"`}
	pos := -1
	for _, pref := range prefixes {
		idx := strings.Index(line, pref)
		require.Greaterf(t, idx, pos, "prefix %s out of order in %s", pref, line)
		pos = idx
	}
}

func TestStructuredHandlerCompactRID(t *testing.T) {
	raw := "123:456:789"
	ctx := WithRID(context.Background(), raw)

	kv := captureLine(t, formatKV, func(l *slog.Logger) {
		LogEvent(ctx, l, slog.LevelInfo, "rid.test")
	})
	assert.Contains(t, kv, "rid="+CompactRID(raw))
	assert.NotContains(t, kv, "rid_full=")

	js := captureLine(t, formatJSON, func(l *slog.Logger) {
		LogEvent(ctx, l, slog.LevelInfo, "rid.test")
	})
	assert.Contains(t, js, `"rid":"`+CompactRID(raw)+`"`)
	assert.Contains(t, js, `"rid_full":"`+raw+`"`)
	assert.Contains(t, js, `"ts_unix_nano"`)
}

func TestStructuredHandlerDurationKeys(t *testing.T) {
	ctx := context.Background()
	line := captureLine(t, formatKV, func(l *slog.Logger) {
		LogEvent(ctx, l, slog.LevelInfo, "reminder.scheduled",
			slog.Duration("delay", 1500*time.Millisecond),
			slog.Duration("duration", 20*time.Millisecond),
		)
	})
	assert.Contains(t, line, "delay_ms=1500")
	assert.Contains(t, line, "duration_ms=20")
	assert.Contains(t, line, "component=app")
}

func TestStructuredHandlerDropsUnknownOutcome(t *testing.T) {
	ctx := context.Background()
	line := captureLine(t, formatKV, func(l *slog.Logger) {
		LogEvent(ctx, l, slog.LevelInfo, "x", slog.String("outcome", "weird"), slog.String("msg_text", "a b"))
	})
	assert.NotContains(t, line, "outcome=")
	assert.Contains(t, line, `msg_text="a b"`)
}

func TestCompactRIDKeepsForeignFormat(t *testing.T) {
	assert.Equal(t, "c.y.1k", CompactRID("12:34:56"))
	assert.Equal(t, "not-a-rid", CompactRID("not-a-rid"))
}

func TestRatioSampler(t *testing.T) {
	s := newRatioSampler(1, 3)
	got := []bool{s.Allow(), s.Allow(), s.Allow(), s.Allow()}
	assert.Equal(t, []bool{true, false, false, true}, got)

	s.Set(0, 10)
	assert.True(t, s.Allow())
	assert.True(t, s.Allow())

	cases := map[string][2]int{
		"10":  {1, 10},
		"2/5": {2, 5},
		"off": {0, 0},
		"":    {0, 0},
		"x/5": {0, 0},
		"-1":  {0, 0},
		" 3 ": {1, 3},
	}
	for spec, want := range cases {
		n, d := parseRatioSpec(spec)
		assert.Equal(t, want, [2]int{n, d}, spec)
	}
}

type failingSink struct{}

func (failingSink) Write([]byte) (int, error) { return 0, io.ErrShortWrite }

func TestAsyncWriterFansOutAndCloses(t *testing.T) {
	a, b := &bytes.Buffer{}, &bytes.Buffer{}
	w := newAsyncWriter([]io.Writer{a, nil, b}, 16)

	for _, line := range []string{"one\n", "two\n"} {
		n, err := w.Write([]byte(line))
		require.NoError(t, err)
		assert.Equal(t, len(line), n)
	}
	require.NoError(t, w.Flush())
	assert.Equal(t, "one\ntwo\n", a.String())
	assert.Equal(t, a.String(), b.String())

	require.NoError(t, w.Close())
	require.NoError(t, w.Close())
	_, err := w.Write([]byte("late\n"))
	assert.ErrorIs(t, err, io.ErrClosedPipe)
	require.NoError(t, w.Flush())
}

func TestAsyncWriterReportsSinkError(t *testing.T) {
	w := newAsyncWriter([]io.Writer{failingSink{}}, 1)
	_, err := w.Write([]byte("boom\n"))
	require.NoError(t, err)
	assert.Error(t, w.Close())
}

func TestResolveSettings(t *testing.T) {
	def := resolveSettings(nil)
	assert.Equal(t, slog.LevelInfo, def.level)
	assert.Equal(t, formatJSON, def.format)
	assert.Equal(t, 1, def.sampleN)
	assert.Equal(t, 50, def.sampleD)

	cfg := &coreconfig.Config{Logging: coreconfig.LoggingConfig{
		Level:       "Warning",
		Profile:     "dev",
		KeysOrder:   "event, level ,,msg",
		DebugSample: "off",
		Dir:         "/var/log/remindbot",
		BotFile:     "bot.log",
	}}
	s := resolveSettings(cfg)
	assert.Equal(t, slog.LevelWarn, s.level)
	assert.Equal(t, formatKV, s.format)
	assert.Equal(t, []string{"event", "level", "msg"}, s.keyOrder)
	assert.Zero(t, s.sampleN)
	assert.Equal(t, "/var/log/remindbot/bot.log", s.filePath)

	cfg.Logging.Format = "json"
	cfg.Logging.DebugSample = "1/4"
	s = resolveSettings(cfg)
	assert.Equal(t, formatJSON, s.format)
	assert.Equal(t, 4, s.sampleD)
}
