package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/getsentry/sentry-go"
)

type captureRecorder struct {
	events []*sentry.Event
}

func (c *captureRecorder) CaptureEvent(event *sentry.Event) *sentry.EventID {
	c.events = append(c.events, event)
	id := sentry.EventID("test")
	return &id
}

func TestSentryHandler_ForwardsOnlyErrors(t *testing.T) {
	rec := &captureRecorder{}
	l := slog.New(NewSentryHandler(rec, slog.LevelError))

	l.Info("通常ログ")
	l.Warn("警告ログ")
	l.Error("送信に失敗しました", slog.Any("error", errors.New("flood wait")), slog.Int64("user_id", 42))

	if len(rec.events) != 1 {
		t.Fatalf("イベント数 = %d, want 1", len(rec.events))
	}
	ev := rec.events[0]
	if ev.Message != "送信に失敗しました" {
		t.Errorf("Message = %q", ev.Message)
	}
	if ev.Level != sentry.LevelError {
		t.Errorf("Level = %q, want %q", ev.Level, sentry.LevelError)
	}
	if len(ev.Exception) != 1 || ev.Exception[0].Value != "flood wait" {
		t.Errorf("Exception = %+v", ev.Exception)
	}
	if ev.Extra["user_id"] != "42" {
		t.Errorf("Extra[user_id] = %v, want %q", ev.Extra["user_id"], "42")
	}
}

func TestSentryHandler_WithAttrsAndGroup(t *testing.T) {
	rec := &captureRecorder{}
	l := slog.New(NewSentryHandler(rec, slog.LevelError)).
		With(slog.String("component", "sweeper")).
		WithGroup("reminder")

	l.Error("失敗", slog.Int("id", 7))

	if len(rec.events) != 1 {
		t.Fatalf("イベント数 = %d, want 1", len(rec.events))
	}
	if rec.events[0].Extra["reminder.component"] != "sweeper" {
		t.Errorf("Extra = %v", rec.events[0].Extra)
	}
	if rec.events[0].Extra["reminder.id"] != "7" {
		t.Errorf("Extra = %v", rec.events[0].Extra)
	}
}

func TestSetupDefaultWithSentry_WritesJSONAndCaptures(t *testing.T) {
	var buf bytes.Buffer
	rec := &captureRecorder{}
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	l := SetupDefaultWithSentry(&buf, rec)
	l.Info("起動しました")
	l.Error("DB接続に失敗しました")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("JSON行数 = %d, want 2\nraw: %s", len(lines), buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[1]), &entry); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if entry["level"] != "ERROR" {
		t.Errorf("level = %v, want ERROR", entry["level"])
	}
	if len(rec.events) != 1 {
		t.Errorf("Sentryイベント数 = %d, want 1", len(rec.events))
	}
}

func TestMultiHandler_EnabledIfAnyEnabled(t *testing.T) {
	var buf bytes.Buffer
	h := NewMultiHandler(
		slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError}),
		NewSentryHandler(&captureRecorder{}, slog.LevelWarn),
	)
	if h.Enabled(t.Context(), slog.LevelInfo) {
		t.Error("INFOはどのハンドラでも無効であるべき")
	}
	if !h.Enabled(t.Context(), slog.LevelWarn) {
		t.Error("WARNはSentryHandlerで有効であるべき")
	}
}
