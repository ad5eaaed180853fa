package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/loqalabs/loqa-caption/internal/config"
	"github.com/loqalabs/loqa-caption/internal/display"
	"github.com/loqalabs/loqa-caption/internal/session"

	tea "github.com/charmbracelet/bubbletea"
)

// Model is the root bubbletea model: one large live-caption panel on top, the
// conversation history below, space toggles the session.
type Model struct {
	ctrl   *session.Controller
	engine *display.Engine
	cfg    config.DisplayConfig

	width  int
	height int

	listening bool
	live      string
	lastError string
	entries   []session.Message
	fontSize  int
}

// New builds the model around an existing controller. The engine maps
// terminal cells to the configured pixel viewport.
func New(ctrl *session.Controller, cfg config.DisplayConfig) Model {
	engine := display.NewEngine(display.DefaultMetrics(), cfg.ViewportWidth, cfg.ViewportHeight)
	return Model{
		ctrl:     ctrl,
		engine:   engine,
		cfg:      cfg,
		fontSize: engine.Current().FontSizePx,
	}
}

// Init starts waiting on controller updates.
func (m Model) Init() tea.Cmd {
	return waitForUpdate(m.ctrl)
}

// waitForUpdate blocks on the controller's coalesced update channel.
func waitForUpdate(ctrl *session.Controller) tea.Cmd {
	return func() tea.Msg {
		<-ctrl.Updates()
		return sessionUpdateMsg{}
	}
}

// toggleCmd flips the session on the controller.
func toggleCmd(ctrl *session.Controller) tea.Cmd {
	return func() tea.Msg {
		if err := ctrl.Toggle(context.Background()); err != nil {
			return toggleFailedMsg{Err: err}
		}
		return nil
	}
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "ctrl+c":
			return m, tea.Quit
		case " ":
			return m, toggleCmd(m.ctrl)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// Terminal resize is a container resize for the fit engine.
		box := m.engine.Resize(
			msg.Width*m.cfg.CellWidth,
			m.liveViewLines()*m.cfg.CellHeight,
		)
		m.fontSize = box.FontSizePx
		return m, nil

	case sessionUpdateMsg:
		snap := m.ctrl.Snapshot()
		m.listening = snap.Listening
		m.live = snap.LiveTranscript
		m.lastError = snap.LastError
		m.entries = m.ctrl.History()
		m.fontSize = m.engine.SetText(snap.LiveTranscript).FontSizePx
		return m, waitForUpdate(m.ctrl)

	case toggleFailedMsg:
		m.lastError = msg.Err.Error()
		return m, nil
	}

	return m, nil
}

// liveViewLines is the height of the live-caption panel in rows.
func (m Model) liveViewLines() int {
	if m.height == 0 {
		return 10
	}
	// Reserve: header(1) + status(1) + divider(1) + history header(1) +
	// history(6) + error(1) + footer(1).
	return max(3, m.height-12)
}

func (m Model) historyLines() int {
	return 6
}

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	var sections []string
	sections = append(sections, titleStyle.Render("LOQA CAPTION"))
	sections = append(sections, m.renderStatusBar())
	sections = append(sections, dividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderLivePanel())
	sections = append(sections, dividerStyle.Render(strings.Repeat("─", m.width)))
	sections = append(sections, m.renderHistory())
	if m.lastError != "" {
		sections = append(sections, errorStyle.Render("! ")+errorTextStyle.Render(m.lastError))
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderStatusBar() string {
	var dot string
	if m.listening {
		dot = listeningDotStyle.Render("● LISTENING")
	} else {
		dot = idleDotStyle.Render("○ IDLE")
	}
	size := dimStyle.Render(fmt.Sprintf("  fit %dpx", m.fontSize))
	return dot + size
}

func (m Model) renderLivePanel() string {
	height := m.liveViewLines()

	var content []string
	if m.live == "" {
		hint := "Press Space and start speaking"
		if m.listening {
			hint = "Listening..."
		}
		content = []string{dimStyle.Render(hint)}
	} else {
		style := liveTextStyle
		if m.listening {
			style = interimHintStyle
		}
		for _, line := range wrapText(m.live, max(10, m.width-4)) {
			content = append(content, style.Render(line))
		}
		if len(content) > height {
			content = content[len(content)-height:]
		}
	}

	// Center vertically and horizontally, big-caption style.
	pad := (height - len(content)) / 2
	var lines []string
	for i := 0; i < pad; i++ {
		lines = append(lines, "")
	}
	for _, c := range content {
		lines = append(lines, centerLine(c, m.width))
	}
	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines[:height], "\n")
}

func (m Model) renderHistory() string {
	var lines []string
	lines = append(lines, dimStyle.Render(fmt.Sprintf("HISTORY (%d)", len(m.entries))))

	visible := m.historyLines()
	start := 0
	if len(m.entries) > visible {
		start = len(m.entries) - visible
	}
	for _, e := range m.entries[start:] {
		ts := timestampStyle.Render(e.Timestamp.Format("[15:04:05]"))
		lines = append(lines, truncateToWidth("  "+ts+" "+e.Text, m.width))
	}
	for len(lines) < visible+1 {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	var parts []string
	if m.listening {
		parts = append(parts, footerKeyStyle.Render("Space")+footerDescStyle.Render(" Stop"))
	} else {
		parts = append(parts, footerKeyStyle.Render("Space")+footerDescStyle.Render(" Listen"))
	}
	parts = append(parts, footerKeyStyle.Render("q")+footerDescStyle.Render(" Quit"))
	return strings.Join(parts, "  ")
}

// Helpers

func centerLine(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return strings.Repeat(" ", (width-visible)/2) + s
}

func truncateToWidth(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	// Truncate by cell width, not rune count: double-width glyphs would
	// otherwise still overflow the row.
	return ansi.Truncate(s, width, "…")
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if lipgloss.Width(current)+1+lipgloss.Width(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		} else {
			lines = append(lines, "")
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
