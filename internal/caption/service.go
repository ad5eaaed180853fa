package caption

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/loqa-caption/internal/bus"
	"github.com/loqalabs/loqa-caption/internal/display"
	"github.com/loqalabs/loqa-caption/internal/protocol"
	"github.com/loqalabs/loqa-caption/internal/session"
	"github.com/loqalabs/loqa-caption/internal/timeline"
	"github.com/nats-io/nats.go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Service bridges the session controller onto the bus: remote toggles come in
// on a control subject, display updates and finalized messages go out on every
// state change, and session lifecycle lands on the diagnostic timeline.
type Service struct {
	bus    *bus.Client
	ctrl   *session.Controller
	engine *display.Engine
	store  *timeline.Store
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	sub    *nats.Subscription
	wg     sync.WaitGroup

	meter            metric.Meter
	sessionsStarted  metric.Int64Counter
	messagesAppended metric.Int64Counter
	recognizerErrors metric.Int64Counter

	mu            sync.Mutex
	timelineID    string
	lastSeq       int64
	lastListening bool
	lastError     string
}

func NewService(parent context.Context, busClient *bus.Client, ctrl *session.Controller, engine *display.Engine, store *timeline.Store, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	s := &Service{
		bus:    busClient,
		ctrl:   ctrl,
		engine: engine,
		store:  store,
		logger: log.With(slog.String("component", "caption-service")),
		ctx:    ctx,
		cancel: cancel,
		meter:  otel.Meter("github.com/loqalabs/loqa-caption/caption"),
	}
	if err := s.initMetrics(); err != nil {
		s.logger.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}
	return s
}

func (s *Service) Start() error {
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectSessionToggle, s.handleToggle)
	if err != nil {
		return fmt.Errorf("subscribe session toggle: %w", err)
	}
	s.sub = sub

	s.wg.Add(1)
	go s.watch()
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return s.sub != nil
}

func (s *Service) handleToggle(_ *nats.Msg) {
	if err := s.ctrl.Toggle(s.ctx); err != nil {
		s.logger.Warn("toggle failed", slog.String("error", err.Error()))
	}
}

// watch consumes the controller's coalesced update stream and fans state out
// to the bus and the timeline.
func (s *Service) watch() {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.ctrl.Updates():
			s.publishState()
		}
	}
}

func (s *Service) publishState() {
	snap := s.ctrl.Snapshot()
	box := s.engine.SetText(snap.LiveTranscript)

	s.mu.Lock()
	started := snap.Listening && !s.lastListening
	errored := snap.LastError != "" && snap.LastError != s.lastError
	if started {
		s.timelineID = uuid.NewString()
	}
	ended := !snap.Listening && s.lastListening
	timelineID := s.timelineID
	s.lastListening = snap.Listening
	s.lastError = snap.LastError
	s.mu.Unlock()

	if started {
		s.count(s.sessionsStarted, 1)
		s.record(timeline.Entry{SessionID: timelineID, Kind: timeline.KindSessionStarted})
	}
	if errored {
		s.count(s.recognizerErrors, 1)
		s.record(timeline.Entry{SessionID: timelineID, Kind: timeline.KindRecognizerError, Detail: snap.LastError})
	}
	if ended && !errored {
		s.record(timeline.Entry{SessionID: timelineID, Kind: timeline.KindSessionEnded})
	}

	s.publishNewMessages(timelineID)

	update := protocol.DisplayUpdate{
		Listening:      snap.Listening,
		LiveTranscript: snap.LiveTranscript,
		FontSizePx:     box.FontSizePx,
		LastError:      snap.LastError,
		Timestamp:      time.Now().UTC(),
	}
	data, err := json.Marshal(update)
	if err != nil {
		s.logger.Warn("failed to marshal display update", slog.String("error", err.Error()))
		return
	}
	if err := s.bus.Conn().Publish(protocol.SubjectDisplayUpdate, data); err != nil {
		s.logger.Warn("failed to publish display update", slog.String("error", err.Error()))
	}
}

func (s *Service) publishNewMessages(timelineID string) {
	history := s.ctrl.History()

	s.mu.Lock()
	lastSeq := s.lastSeq
	if n := len(history); n > 0 {
		s.lastSeq = history[n-1].Seq
	}
	s.mu.Unlock()

	for _, msg := range history {
		if msg.Seq <= lastSeq {
			continue
		}
		s.count(s.messagesAppended, 1)
		s.record(timeline.Entry{
			SessionID: timelineID,
			Kind:      timeline.KindMessageAppended,
			Detail:    strconv.Itoa(len([]rune(msg.Text))),
		})

		final := protocol.FinalMessage{Seq: msg.Seq, Text: msg.Text, Timestamp: msg.Timestamp}
		data, err := json.Marshal(final)
		if err != nil {
			s.logger.Warn("failed to marshal final message", slog.String("error", err.Error()))
			continue
		}
		if err := s.bus.Conn().Publish(protocol.SubjectMessageFinal, data); err != nil {
			s.logger.Warn("failed to publish final message", slog.String("error", err.Error()))
		}
	}
}

// count tolerates instruments left nil by a failed metrics init; the service
// keeps captioning without telemetry.
func (s *Service) count(c metric.Int64Counter, n int64) {
	if c == nil {
		return
	}
	c.Add(s.ctx, n)
}

func (s *Service) record(e timeline.Entry) {
	if s.store == nil {
		return
	}
	if err := s.store.Append(s.ctx, e); err != nil {
		s.logger.Warn("failed to record timeline entry", slog.String("error", err.Error()))
	}
}

func (s *Service) initMetrics() error {
	var err error
	s.sessionsStarted, err = s.meter.Int64Counter("caption.sessions.started",
		metric.WithDescription("Recognition sessions started"))
	if err != nil {
		return err
	}
	s.messagesAppended, err = s.meter.Int64Counter("caption.messages.appended",
		metric.WithDescription("Finished utterances appended to history"))
	if err != nil {
		return err
	}
	s.recognizerErrors, err = s.meter.Int64Counter("caption.recognizer.errors",
		metric.WithDescription("Recognizer errors surfaced to the user"))
	if err != nil {
		return err
	}
	gauge, err := s.meter.Int64ObservableGauge("caption.history.messages",
		metric.WithDescription("Messages held in conversation history"))
	if err != nil {
		return err
	}
	_, err = s.meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		obs.ObserveInt64(gauge, int64(len(s.ctrl.History())))
		return nil
	}, gauge)
	return err
}
