package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/loqalabs/loqa-caption/internal/bus"
	"github.com/loqalabs/loqa-caption/internal/config"
	"github.com/loqalabs/loqa-caption/internal/protocol"
	"github.com/loqalabs/loqa-caption/internal/recognizer"
	"github.com/loqalabs/loqa-caption/internal/session"
	"github.com/loqalabs/loqa-caption/internal/tui"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "caption.yaml", "Path to configuration file")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	var busClient *bus.Client
	if cfg.Recognizer.Mode == "bus" {
		busClient, err = bus.Connect(cfg.Bus, logger)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to connect to bus: %v\n", err)
			os.Exit(1)
		}
		defer busClient.Close()
	}

	capability, err := recognizer.New(cfg.Recognizer, busClient, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build recognizer capability: %v\n", err)
		os.Exit(1)
	}
	ctrl := session.New(capability, logger)

	if mock, ok := capability.(*recognizer.Mock); ok {
		go runDemoFeed(mock)
	}

	p := tea.NewProgram(tui.New(ctrl, cfg.Display), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "tui exited with error: %v\n", err)
		os.Exit(1)
	}
}

// runDemoFeed makes mock mode usable: while a session is active it streams a
// canned utterance, growing interim fragments first, then finalizes and ends.
func runDemoFeed(mock *recognizer.Mock) {
	phrase := []string{"안녕하세요", "안녕하세요 잘", "안녕하세요 잘 지내세요"}
	for {
		time.Sleep(300 * time.Millisecond)
		if !mock.Started() {
			continue
		}
		for _, interim := range phrase {
			if !mock.Started() {
				break
			}
			mock.EmitResult(protocol.TranscriptEvent{Results: []protocol.ResultSlot{
				{Transcript: interim, Final: false},
			}})
			time.Sleep(700 * time.Millisecond)
		}
		if mock.Started() {
			mock.EmitResult(protocol.TranscriptEvent{Results: []protocol.ResultSlot{
				{Transcript: phrase[len(phrase)-1], Final: true},
			}})
			time.Sleep(500 * time.Millisecond)
			mock.EmitEnd()
		}
	}
}
