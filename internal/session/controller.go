package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/loqalabs/loqa-caption/internal/protocol"
	"github.com/loqalabs/loqa-caption/internal/recognizer"
)

// ErrorCodeNoSpeech is the recognizer code for a listening attempt that ended
// without hearing any speech. It gets a friendlier message than other codes.
const ErrorCodeNoSpeech = "no-speech"

const (
	msgUnsupported = "Speech recognition is not supported in this environment."
	msgNoSpeech    = "No speech detected. Please try again."
)

// Message is a finished utterance promoted into conversation history.
// Seq is the identity key: wall-clock timestamps can collide when two
// utterances finalize within the same instant.
type Message struct {
	Seq       int64
	Text      string
	Timestamp time.Time
}

// Snapshot is a point-in-time view of the session for display layers.
type Snapshot struct {
	Listening      bool
	LiveTranscript string
	LastError      string
}

// Controller owns the recognition session lifecycle: start, streaming
// transcript reconciliation, stop, and promotion of finished utterances into
// conversation history. All state transitions happen inside the three
// capability handlers plus Toggle, each applied atomically under one lock.
type Controller struct {
	cap   recognizer.Capability
	log   *slog.Logger
	clock func() time.Time

	mu        sync.Mutex
	listening bool
	live      string
	lastErr   string
	history   []Message
	seq       int64

	updates chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock overrides the timestamp source.
func WithClock(clock func() time.Time) Option {
	return func(c *Controller) {
		c.clock = clock
	}
}

// New binds the controller to a capability. A nil capability puts the
// controller into a permanent unsupported state: the error is surfaced once
// and start commands are rejected.
func New(cap recognizer.Capability, log *slog.Logger, opts ...Option) *Controller {
	c := &Controller{
		cap:     cap,
		log:     log.With(slog.String("component", "session-controller")),
		clock:   time.Now,
		updates: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	if cap == nil {
		c.lastErr = msgUnsupported
		return c
	}
	cap.Bind(recognizer.Handlers{
		OnResult: c.handleResult,
		OnEnd:    c.handleEnd,
		OnError:  c.handleError,
	})
	return c
}

// Toggle flips the session per logical click: listening requests stop (the
// authoritative transition back to idle is the capability's end-of-session
// signal), idle clears error and transcript and requests start.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	if c.cap == nil {
		c.mu.Unlock()
		return recognizer.ErrUnavailable
	}
	if c.listening {
		c.mu.Unlock()
		if err := c.cap.Stop(ctx); err != nil {
			return fmt.Errorf("stop recognition: %w", err)
		}
		return nil
	}
	c.lastErr = ""
	c.live = ""
	c.listening = true
	c.mu.Unlock()
	c.notify()

	if err := c.cap.Start(ctx); err != nil {
		c.mu.Lock()
		c.listening = false
		c.lastErr = fmt.Sprintf("Speech recognition failed to start (%s).", err.Error())
		c.mu.Unlock()
		c.notify()
		return fmt.Errorf("start recognition: %w", err)
	}
	return nil
}

// handleResult recomputes the live transcript from the event's result slots:
// finalized fragments in order, then interim fragments in order. The event
// replaces the previous value; the recognizer owns the cumulative text of the
// in-progress utterance.
func (c *Controller) handleResult(ev protocol.TranscriptEvent) {
	c.mu.Lock()
	if !c.listening {
		// Stale delivery after the session closed.
		c.mu.Unlock()
		return
	}
	var finalPart, interimPart strings.Builder
	for _, slot := range ev.Results {
		if slot.Final {
			finalPart.WriteString(slot.Transcript)
		} else {
			interimPart.WriteString(slot.Transcript)
		}
	}
	c.live = finalPart.String() + interimPart.String()
	c.mu.Unlock()
	c.notify()
}

// handleEnd is the authoritative session close: trim the live transcript,
// append it to history when non-empty, and return to idle.
func (c *Controller) handleEnd() {
	c.mu.Lock()
	if !c.listening && c.live == "" {
		c.mu.Unlock()
		return
	}
	text := strings.TrimSpace(c.live)
	if text != "" {
		c.seq++
		c.history = append(c.history, Message{
			Seq:       c.seq,
			Text:      text,
			Timestamp: c.clock(),
		})
	}
	c.live = ""
	c.listening = false
	c.mu.Unlock()

	if text != "" {
		c.log.Info("utterance appended to history", slog.Int("chars", len([]rune(text))))
	}
	c.notify()
}

// handleError records a user-readable error and returns to idle without
// flushing the live transcript into history.
func (c *Controller) handleError(code string) {
	c.mu.Lock()
	if code == ErrorCodeNoSpeech {
		c.lastErr = msgNoSpeech
	} else {
		c.lastErr = fmt.Sprintf("Speech recognition failed (%s).", code)
	}
	c.live = ""
	c.listening = false
	c.mu.Unlock()

	c.log.Warn("recognizer error", slog.String("code", code))
	c.notify()
}

// Snapshot returns the current session view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		Listening:      c.listening,
		LiveTranscript: c.live,
		LastError:      c.lastErr,
	}
}

// History returns a copy of the conversation history in append order.
func (c *Controller) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.history...)
}

// Updates is a coalesced change notification: receive once, then re-read
// Snapshot and History. Display layers hang their re-render trigger on it.
func (c *Controller) Updates() <-chan struct{} {
	return c.updates
}

func (c *Controller) notify() {
	select {
	case c.updates <- struct{}{}:
	default:
	}
}
