package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/loqa-caption/internal/bus"
	"github.com/loqalabs/loqa-caption/internal/caption"
	"github.com/loqalabs/loqa-caption/internal/config"
	"github.com/loqalabs/loqa-caption/internal/display"
	"github.com/loqalabs/loqa-caption/internal/natsserver"
	"github.com/loqalabs/loqa-caption/internal/protocol"
	"github.com/loqalabs/loqa-caption/internal/recognizer"
	"github.com/loqalabs/loqa-caption/internal/session"
	"github.com/loqalabs/loqa-caption/internal/timeline"
)

// Runtime assembles the captioning daemon: telemetry, bus, recognizer
// capability, session controller, auto-fit engine, caption service, timeline,
// and the HTTP surface.
type Runtime struct {
	cfg         config.Config
	logger      *slog.Logger
	httpServer  *http.Server
	tracerClose func(context.Context) error
	ctrl        *session.Controller
	ready       atomic.Bool
	wg          sync.WaitGroup
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

// Start runs the daemon until ctx is cancelled.
func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	embedded, err := natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}
	defer embedded.Shutdown()

	busCfg := r.cfg.Bus
	if busCfg.Embedded {
		busCfg.Servers = []string{fmt.Sprintf("nats://localhost:%d", busCfg.Port)}
	}
	busClient, err := bus.Connect(busCfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}
	defer busClient.Close()

	store, err := timeline.Open(ctx, r.cfg.Timeline, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open timeline: %w", err)
	}
	defer store.Close()

	capability, err := recognizer.New(r.cfg.Recognizer, busClient, r.logger)
	if err != nil {
		return fmt.Errorf("failed to build recognizer capability: %w", err)
	}
	r.ctrl = session.New(capability, r.logger)

	engine := display.NewEngine(display.DefaultMetrics(),
		r.cfg.Display.ViewportWidth, r.cfg.Display.ViewportHeight)

	svc := caption.NewService(ctx, busClient, r.ctrl, engine, store, r.logger)
	if err := svc.Start(); err != nil {
		return fmt.Errorf("failed to start caption service: %w", err)
	}
	defer svc.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	mux.HandleFunc("/v1/session", r.handleSession)
	mux.HandleFunc("/v1/history", r.handleHistory)
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started",
		slog.String("addr", addr),
		slog.String("recognizer_mode", r.cfg.Recognizer.Mode),
		slog.String("locale", r.cfg.Recognizer.Locale))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	r.wg.Wait()

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

// handleSession returns the session snapshot; POST toggles it first, mirroring
// the bus toggle subject for environments without a NATS client handy.
func (r *Runtime) handleSession(w http.ResponseWriter, req *http.Request) {
	if req.Method == http.MethodPost {
		if err := r.ctrl.Toggle(req.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusConflict)
			return
		}
	}
	snap := r.ctrl.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"listening":       snap.Listening,
		"live_transcript": snap.LiveTranscript,
		"last_error":      snap.LastError,
	})
}

func (r *Runtime) handleHistory(w http.ResponseWriter, _ *http.Request) {
	history := r.ctrl.History()
	messages := make([]protocol.FinalMessage, 0, len(history))
	for _, m := range history {
		messages = append(messages, protocol.FinalMessage{Seq: m.Seq, Text: m.Text, Timestamp: m.Timestamp})
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(messages)
}
