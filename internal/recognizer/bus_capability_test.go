package recognizer

import (
	"encoding/json"
	"testing"

	"github.com/loqalabs/loqa-caption/internal/protocol"
	"github.com/nats-io/nats.go"
)

func marshal(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}

func TestBusFiltersEventsBySession(t *testing.T) {
	b := &Bus{log: testLogger()}
	var events []protocol.TranscriptEvent
	b.Bind(Handlers{OnResult: func(ev protocol.TranscriptEvent) {
		events = append(events, ev)
	}})
	b.session = "session-a"

	b.handleEvent(&nats.Msg{Data: marshal(t, protocol.TranscriptEvent{
		SessionID: "session-b",
		Results:   []protocol.ResultSlot{{Transcript: "wrong room", Final: false}},
	})})
	if len(events) != 0 {
		t.Fatalf("events from another session must be dropped, got %d", len(events))
	}

	b.handleEvent(&nats.Msg{Data: marshal(t, protocol.TranscriptEvent{
		SessionID: "session-a",
		Results:   []protocol.ResultSlot{{Transcript: "안녕하세요", Final: false}},
	})})
	if len(events) != 1 || events[0].Results[0].Transcript != "안녕하세요" {
		t.Fatalf("events = %+v, want one matching event", events)
	}
}

func TestBusEndTearsDownOnce(t *testing.T) {
	b := &Bus{log: testLogger()}
	ends := 0
	b.Bind(Handlers{OnEnd: func() { ends++ }})
	b.session = "session-a"

	b.handleEnd(&nats.Msg{Data: marshal(t, protocol.SessionEnd{SessionID: "session-b"})})
	if ends != 0 || b.session != "session-a" {
		t.Fatalf("foreign end must not tear down: ends=%d session=%q", ends, b.session)
	}

	b.handleEnd(&nats.Msg{Data: marshal(t, protocol.SessionEnd{SessionID: "session-a"})})
	if ends != 1 {
		t.Fatalf("ends = %d, want 1", ends)
	}
	if b.session != "" {
		t.Fatalf("session = %q, want cleared after end", b.session)
	}

	// A duplicate end for the closed session is stale and must not redeliver.
	b.handleEnd(&nats.Msg{Data: marshal(t, protocol.SessionEnd{SessionID: "session-a"})})
	if ends != 1 {
		t.Fatalf("ends = %d after duplicate end, want 1", ends)
	}
}

func TestBusErrorDeliversCodeAndTearsDown(t *testing.T) {
	b := &Bus{log: testLogger()}
	var codes []string
	b.Bind(Handlers{OnError: func(code string) { codes = append(codes, code) }})
	b.session = "session-a"

	b.handleError(&nats.Msg{Data: marshal(t, protocol.SessionError{
		SessionID: "session-a",
		Code:      "no-speech",
	})})
	if len(codes) != 1 || codes[0] != "no-speech" {
		t.Fatalf("codes = %v, want [no-speech]", codes)
	}
	if b.session != "" {
		t.Fatalf("session = %q, want cleared after error", b.session)
	}
}
