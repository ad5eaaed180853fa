package recognizer

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/loqalabs/loqa-caption/internal/config"
	"github.com/loqalabs/loqa-caption/internal/protocol"
	"github.com/mattn/go-shellwords"
)

// Exec runs an external recognizer command per session and streams
// newline-delimited JSON events from its stdout. Process exit is treated as
// the end-of-session signal when the command never emits one itself.
type Exec struct {
	cfg      config.RecognizerConfig
	log      *slog.Logger
	args     []string
	mu       sync.Mutex
	handlers Handlers
	cmd      *exec.Cmd
	cancel   context.CancelFunc
	ended    bool
	wg       sync.WaitGroup
}

type execEvent struct {
	Type        string                `json:"type"` // result, end, error
	ResultIndex int                   `json:"result_index"`
	Results     []protocol.ResultSlot `json:"results"`
	Code        string                `json:"code"`
}

func NewExec(cfg config.RecognizerConfig, log *slog.Logger) (*Exec, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse recognizer command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("recognizer command is empty")
	}
	return &Exec{
		cfg:  cfg,
		log:  log.With(slog.String("component", "exec-recognizer")),
		args: args,
	}, nil
}

func (e *Exec) Bind(h Handlers) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers = h
}

func (e *Exec) Start(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd != nil {
		return fmt.Errorf("recognizer process already running")
	}

	procCtx, cancel := context.WithCancel(context.Background())

	cmdArgs := append([]string{}, e.args[1:]...)
	if e.cfg.Locale != "" {
		cmdArgs = append(cmdArgs, "--locale", e.cfg.Locale)
	}
	if e.cfg.Continuous {
		cmdArgs = append(cmdArgs, "--continuous")
	}
	if e.cfg.InterimResults {
		cmdArgs = append(cmdArgs, "--interim")
	}

	cmd := exec.CommandContext(procCtx, e.args[0], cmdArgs...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("recognizer stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start recognizer command: %w", err)
	}

	e.cmd = cmd
	e.cancel = cancel
	e.ended = false

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.readEvents(stdout)
		_ = cmd.Wait()
		e.finish()
	}()

	return nil
}

func (e *Exec) Stop(_ context.Context) error {
	e.mu.Lock()
	cmd := e.cmd
	e.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}
	// Ask the process to flush its final results; the reader goroutine
	// delivers end-of-session once stdout closes.
	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		return fmt.Errorf("signal recognizer process: %w", err)
	}
	return nil
}

func (e *Exec) readEvents(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var ev execEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			e.log.Warn("failed to decode recognizer event", slog.String("error", err.Error()))
			continue
		}
		e.dispatch(ev)
	}
	if err := scanner.Err(); err != nil {
		e.log.Warn("recognizer stream read failed", slog.String("error", err.Error()))
	}
}

func (e *Exec) dispatch(ev execEvent) {
	e.mu.Lock()
	h := e.handlers
	ended := e.ended
	if ev.Type == "end" || ev.Type == "error" {
		e.ended = true
	}
	e.mu.Unlock()

	if ended {
		return
	}

	switch ev.Type {
	case "result":
		if h.OnResult != nil {
			h.OnResult(protocol.TranscriptEvent{
				ResultIndex: ev.ResultIndex,
				Results:     ev.Results,
			})
		}
	case "end":
		if h.OnEnd != nil {
			h.OnEnd()
		}
	case "error":
		if h.OnError != nil {
			h.OnError(ev.Code)
		}
	default:
		e.log.Warn("unknown recognizer event type", slog.String("type", ev.Type))
	}
}

// finish runs after process exit: releases the slot and emits end-of-session
// if the command terminated without an explicit end or error event.
func (e *Exec) finish() {
	e.mu.Lock()
	h := e.handlers
	ended := e.ended
	e.ended = true
	e.cmd = nil
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.mu.Unlock()

	if !ended && h.OnEnd != nil {
		h.OnEnd()
	}
}
