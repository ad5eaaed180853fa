package timeline

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/loqalabs/loqa-caption/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenEphemeralIsNoOp(t *testing.T) {
	ctx := context.Background()
	cfg := config.TimelineConfig{RetentionMode: "ephemeral"}
	s, err := Open(ctx, cfg, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Append(ctx, Entry{SessionID: "s-1", Kind: KindSessionStarted}); err != nil {
		t.Fatalf("append: %v", err)
	}
	entries, err := s.SessionEntries(ctx, "s-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if entries != nil {
		t.Fatalf("expected no entries from ephemeral store, got %d", len(entries))
	}
}

func TestAppendAndQuery(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.TimelineConfig{Path: filepath.Join(tmp, "timeline.db"), RetentionMode: "session"}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open timeline: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	sessionID := "session-123"
	if err := s.Append(context.Background(), Entry{SessionID: sessionID, Kind: KindSessionStarted}); err != nil {
		t.Fatalf("append start: %v", err)
	}
	if err := s.Append(context.Background(), Entry{SessionID: sessionID, Kind: KindMessageAppended, Detail: "5"}); err != nil {
		t.Fatalf("append message: %v", err)
	}
	entries, err := s.SessionEntries(context.Background(), sessionID, 10)
	if err != nil {
		t.Fatalf("list entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Kind != KindSessionStarted || entries[1].Kind != KindMessageAppended {
		t.Fatalf("unexpected order: %s then %s", entries[0].Kind, entries[1].Kind)
	}
	if entries[1].Detail != "5" {
		t.Fatalf("unexpected detail: %q", entries[1].Detail)
	}
}

func TestPruneByDaysAndSessions(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.TimelineConfig{Path: filepath.Join(tmp, "timeline.db"), RetentionMode: "persistent", RetentionDays: 1, MaxSessions: 1}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open timeline: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	s.clock = func() time.Time { return time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC) }
	if err := s.Append(context.Background(), Entry{SessionID: "old-session", Kind: KindSessionStarted}); err != nil {
		t.Fatalf("append old: %v", err)
	}

	s.clock = func() time.Time { return time.Date(2026, 8, 3, 0, 0, 0, 0, time.UTC) }
	if err := s.Append(context.Background(), Entry{SessionID: "new-session", Kind: KindSessionStarted}); err != nil {
		t.Fatalf("append new: %v", err)
	}
	if err := s.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	old, err := s.SessionEntries(context.Background(), "old-session", 10)
	if err != nil {
		t.Fatalf("list old: %v", err)
	}
	if len(old) != 0 {
		t.Fatalf("expected old session pruned, got %d entries", len(old))
	}
	kept, err := s.SessionEntries(context.Background(), "new-session", 10)
	if err != nil {
		t.Fatalf("list new: %v", err)
	}
	if len(kept) != 1 {
		t.Fatalf("expected new session kept, got %d entries", len(kept))
	}
}
