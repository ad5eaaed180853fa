package recognizer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/loqa-caption/internal/bus"
	"github.com/loqalabs/loqa-caption/internal/config"
	"github.com/loqalabs/loqa-caption/internal/protocol"
	"github.com/nats-io/nats.go"
)

// Bus bridges to a recognizer running elsewhere on the NATS bus: start/stop
// commands go out on control subjects, transcript events stream back in.
type Bus struct {
	cfg      config.RecognizerConfig
	client   *bus.Client
	log      *slog.Logger
	mu       sync.Mutex
	handlers Handlers
	session  string
	subs     []*nats.Subscription
}

func NewBus(cfg config.RecognizerConfig, client *bus.Client, log *slog.Logger) *Bus {
	return &Bus{
		cfg:    cfg,
		client: client,
		log:    log.With(slog.String("component", "bus-recognizer")),
	}
}

func (b *Bus) Bind(h Handlers) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = h
}

func (b *Bus) Start(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session != "" {
		return fmt.Errorf("recognition session %s already active", b.session)
	}

	sessionID := uuid.NewString()
	conn := b.client.Conn()

	subEvent, err := conn.Subscribe(protocol.SubjectRecognizerEvent, b.handleEvent)
	if err != nil {
		return fmt.Errorf("subscribe recognizer events: %w", err)
	}
	subEnd, err := conn.Subscribe(protocol.SubjectRecognizerEnd, b.handleEnd)
	if err != nil {
		_ = subEvent.Drain()
		return fmt.Errorf("subscribe recognizer end: %w", err)
	}
	subErr, err := conn.Subscribe(protocol.SubjectRecognizerError, b.handleError)
	if err != nil {
		_ = subEvent.Drain()
		_ = subEnd.Drain()
		return fmt.Errorf("subscribe recognizer error: %w", err)
	}
	b.subs = []*nats.Subscription{subEvent, subEnd, subErr}
	b.session = sessionID

	cmd := protocol.RecognizerCommand{
		SessionID:      sessionID,
		Locale:         b.cfg.Locale,
		Continuous:     b.cfg.Continuous,
		InterimResults: b.cfg.InterimResults,
		Timestamp:      time.Now().UTC(),
	}
	data, err := json.Marshal(cmd)
	if err != nil {
		b.teardownLocked()
		return err
	}
	if err := conn.Publish(protocol.SubjectRecognizerStart, data); err != nil {
		b.teardownLocked()
		return fmt.Errorf("publish recognizer start: %w", err)
	}
	return nil
}

func (b *Bus) Stop(_ context.Context) error {
	b.mu.Lock()
	sessionID := b.session
	b.mu.Unlock()

	if sessionID == "" {
		return nil
	}
	cmd := protocol.RecognizerCommand{SessionID: sessionID, Timestamp: time.Now().UTC()}
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	// Teardown happens when the recognizer answers with its end signal.
	return b.client.Conn().Publish(protocol.SubjectRecognizerStop, data)
}

func (b *Bus) handleEvent(msg *nats.Msg) {
	var ev protocol.TranscriptEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		b.log.Warn("failed to decode transcript event", slog.String("error", err.Error()))
		return
	}

	b.mu.Lock()
	match := b.session != "" && ev.SessionID == b.session
	h := b.handlers.OnResult
	b.mu.Unlock()

	if match && h != nil {
		h(ev)
	}
}

func (b *Bus) handleEnd(msg *nats.Msg) {
	var end protocol.SessionEnd
	if err := json.Unmarshal(msg.Data, &end); err != nil {
		b.log.Warn("failed to decode session end", slog.String("error", err.Error()))
		return
	}

	b.mu.Lock()
	match := b.session != "" && end.SessionID == b.session
	h := b.handlers.OnEnd
	if match {
		b.teardownLocked()
	}
	b.mu.Unlock()

	if match && h != nil {
		h()
	}
}

func (b *Bus) handleError(msg *nats.Msg) {
	var serr protocol.SessionError
	if err := json.Unmarshal(msg.Data, &serr); err != nil {
		b.log.Warn("failed to decode session error", slog.String("error", err.Error()))
		return
	}

	b.mu.Lock()
	match := b.session != "" && serr.SessionID == b.session
	h := b.handlers.OnError
	if match {
		b.teardownLocked()
	}
	b.mu.Unlock()

	if match && h != nil {
		h(serr.Code)
	}
}

func (b *Bus) teardownLocked() {
	for _, sub := range b.subs {
		_ = sub.Drain()
	}
	b.subs = nil
	b.session = ""
}
