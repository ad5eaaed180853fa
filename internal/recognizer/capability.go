package recognizer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/loqalabs/loqa-caption/internal/bus"
	"github.com/loqalabs/loqa-caption/internal/config"
	"github.com/loqalabs/loqa-caption/internal/protocol"
)

// ErrUnavailable is returned when no speech-recognition capability exists.
var ErrUnavailable = errors.New("speech recognition capability unavailable")

// Handlers are the three notification slots a capability invokes. A capability
// never calls two handlers concurrently for the same event; consumers still
// guard their state because different transports may deliver from different
// goroutines.
type Handlers struct {
	OnResult func(protocol.TranscriptEvent)
	OnEnd    func()
	OnError  func(code string)
}

// Capability abstracts the platform speech recognizer. Start and Stop are
// fire-and-forget: completion is observed through the bound handlers, never
// through a return value. The returned error covers command dispatch only.
type Capability interface {
	Bind(Handlers)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// New builds the capability selected by config. Mode "none" yields a nil
// capability; the session controller surfaces that as a permanent
// unsupported state.
func New(cfg config.RecognizerConfig, busClient *bus.Client, log *slog.Logger) (Capability, error) {
	switch cfg.Mode {
	case "none":
		return nil, nil
	case "mock":
		return NewMock(), nil
	case "exec":
		return NewExec(cfg, log)
	case "bus":
		if busClient == nil {
			return nil, errors.New("bus recognizer requires a connected bus client")
		}
		return NewBus(cfg, busClient, log), nil
	default:
		return nil, fmt.Errorf("unknown recognizer mode %q", cfg.Mode)
	}
}
