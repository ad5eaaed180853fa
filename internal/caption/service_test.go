package caption

import (
	"context"
	"testing"
)

func TestCountToleratesNilInstruments(t *testing.T) {
	// Instruments stay nil when metrics init fails; state fan-out must not
	// panic because of it.
	s := &Service{ctx: context.Background()}
	s.count(s.sessionsStarted, 1)
	s.count(s.messagesAppended, 1)
	s.count(s.recognizerErrors, 1)
}
