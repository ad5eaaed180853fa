package protocol

import "time"

// ResultSlot is one recognizer result: a transcript fragment that is either
// finalized or still interim.
type ResultSlot struct {
	Transcript string `json:"transcript"`
	Final      bool   `json:"final"`
}

// TranscriptEvent carries the recognizer's current view of the in-progress
// utterance: every result slot from ResultIndex to the end of known results.
type TranscriptEvent struct {
	SessionID   string       `json:"session_id"`
	ResultIndex int          `json:"result_index"`
	Results     []ResultSlot `json:"results"`
	Timestamp   time.Time    `json:"timestamp"`
}

// SessionEnd is the authoritative end-of-session signal.
type SessionEnd struct {
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// SessionError reports a recognizer failure with its raw error code.
type SessionError struct {
	SessionID string    `json:"session_id"`
	Code      string    `json:"code"`
	Timestamp time.Time `json:"timestamp"`
}

// RecognizerCommand starts or stops a recognition session.
type RecognizerCommand struct {
	SessionID      string    `json:"session_id"`
	Locale         string    `json:"locale,omitempty"`
	Continuous     bool      `json:"continuous,omitempty"`
	InterimResults bool      `json:"interim_results,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// DisplayUpdate is broadcast whenever the rendered caption state changes.
type DisplayUpdate struct {
	Listening      bool      `json:"listening"`
	LiveTranscript string    `json:"live_transcript"`
	FontSizePx     int       `json:"font_size_px"`
	LastError      string    `json:"last_error,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// FinalMessage is a finished utterance promoted into conversation history.
type FinalMessage struct {
	Seq       int64     `json:"seq"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectRecognizerStart = "ctrl.recognizer.start"
	SubjectRecognizerStop  = "ctrl.recognizer.stop"
	SubjectRecognizerEvent = "caption.recognizer.event"
	SubjectRecognizerEnd   = "caption.recognizer.end"
	SubjectRecognizerError = "caption.recognizer.error"
	SubjectSessionToggle   = "caption.session.toggle"
	SubjectDisplayUpdate   = "caption.display.update"
	SubjectMessageFinal    = "caption.message.final"
)
