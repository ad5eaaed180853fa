package tui

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/loqalabs/loqa-caption/internal/config"
	"github.com/loqalabs/loqa-caption/internal/protocol"
	"github.com/loqalabs/loqa-caption/internal/recognizer"
	"github.com/loqalabs/loqa-caption/internal/session"
)

func newTestModel(t *testing.T) (Model, *recognizer.Mock) {
	t.Helper()
	mock := recognizer.NewMock()
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	ctrl := session.New(mock, log)
	cfg := config.Default().Display
	return New(ctrl, cfg), mock
}

func TestNewModelIdle(t *testing.T) {
	m, _ := newTestModel(t)
	if m.listening {
		t.Error("new model should not be listening")
	}
	if m.live != "" {
		t.Errorf("live = %q, want empty", m.live)
	}
	if m.fontSize < 10 || m.fontSize > 150 {
		t.Errorf("fontSize = %d, want within [10,150]", m.fontSize)
	}
}

func TestSpaceTogglesSession(t *testing.T) {
	m, mock := newTestModel(t)
	m.width = 80
	m.height = 24

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{' '}})
	if cmd == nil {
		t.Fatal("space should produce a toggle command")
	}
	if msg := cmd(); msg != nil {
		t.Fatalf("toggle failed: %v", msg)
	}
	if mock.Starts() != 1 {
		t.Fatalf("starts = %d, want 1", mock.Starts())
	}
}

func TestSessionUpdatePullsSnapshot(t *testing.T) {
	m, mock := newTestModel(t)
	m.width = 80
	m.height = 24

	if msg := toggleCmd(m.ctrl)(); msg != nil {
		t.Fatalf("toggle failed: %v", msg)
	}
	mock.EmitResult(protocol.TranscriptEvent{Results: []protocol.ResultSlot{
		{Transcript: "hello there", Final: false},
	}})

	updated, cmd := m.Update(sessionUpdateMsg{})
	model := updated.(Model)

	if !model.listening {
		t.Error("should be listening after update")
	}
	if model.live != "hello there" {
		t.Errorf("live = %q, want %q", model.live, "hello there")
	}
	if cmd == nil {
		t.Error("update should re-arm the wait command")
	}
}

func TestHistoryShownAfterEnd(t *testing.T) {
	m, mock := newTestModel(t)
	m.width = 80
	m.height = 24

	if msg := toggleCmd(m.ctrl)(); msg != nil {
		t.Fatalf("toggle failed: %v", msg)
	}
	mock.EmitResult(protocol.TranscriptEvent{Results: []protocol.ResultSlot{
		{Transcript: "done deal", Final: true},
	}})
	mock.EmitEnd()

	updated, _ := m.Update(sessionUpdateMsg{})
	model := updated.(Model)

	if model.listening {
		t.Error("should be idle after end")
	}
	if model.live != "" {
		t.Errorf("live = %q, want cleared", model.live)
	}
	if len(model.entries) != 1 || model.entries[0].Text != "done deal" {
		t.Fatalf("entries = %+v, want one finished message", model.entries)
	}
}

func TestWindowResizeRecomputesFit(t *testing.T) {
	m, mock := newTestModel(t)

	if msg := toggleCmd(m.ctrl)(); msg != nil {
		t.Fatalf("toggle failed: %v", msg)
	}
	mock.EmitResult(protocol.TranscriptEvent{Results: []protocol.ResultSlot{
		{Transcript: "a reasonably long caption to fit", Final: false},
	}})
	updated, _ := m.Update(sessionUpdateMsg{})
	m = updated.(Model)

	updated, _ = m.Update(tea.WindowSizeMsg{Width: 200, Height: 50})
	wide := updated.(Model)

	updated, _ = wide.Update(tea.WindowSizeMsg{Width: 20, Height: 10})
	narrow := updated.(Model)

	if narrow.fontSize > wide.fontSize {
		t.Fatalf("narrow fit %d should not exceed wide fit %d", narrow.fontSize, wide.fontSize)
	}
}

func TestToggleFailedSurfacesError(t *testing.T) {
	log := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	ctrl := session.New(nil, log)
	m := New(ctrl, config.Default().Display)
	m.width = 80
	m.height = 24

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{' '}})
	msg := cmd()
	failed, ok := msg.(toggleFailedMsg)
	if !ok {
		t.Fatalf("msg = %T, want toggleFailedMsg without a capability", msg)
	}
	updated, _ := m.Update(failed)
	if updated.(Model).lastError == "" {
		t.Error("toggle failure should surface in the error bar")
	}
}

func TestViewRendersWithSize(t *testing.T) {
	m, _ := newTestModel(t)
	m.width = 80
	m.height = 24

	view := m.View()
	if view == "" {
		t.Error("view should not be empty")
	}
	if view == "Initializing..." {
		t.Error("view should not show initializing with size set")
	}
}

func TestTruncateDoubleWidthStaysInRow(t *testing.T) {
	line := strings.Repeat("안", 10) // 20 cells wide
	got := truncateToWidth(line, 8)
	if w := lipgloss.Width(got); w > 8 {
		t.Fatalf("truncated width = %d, want <= 8", w)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncated line %q should carry the ellipsis tail", got)
	}
}

func TestTruncateLeavesFittingLineAlone(t *testing.T) {
	line := "short line"
	if got := truncateToWidth(line, 40); got != line {
		t.Errorf("truncateToWidth(%q, 40) = %q, want unchanged", line, got)
	}
}

func TestViewWithoutSize(t *testing.T) {
	m, _ := newTestModel(t)
	view := m.View()
	if view != "Initializing..." {
		t.Errorf("view without size = %q, want 'Initializing...'", view)
	}
}
