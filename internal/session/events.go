package session

import "github.com/satriahrh/voicebot-connector/domain/repositories"

// RecognitionEventKind tags a RecognitionEvent
type RecognitionEventKind int

const (
	Interim RecognitionEventKind = iota
	Final
	NoMatch
	Canceled
)

func (k RecognitionEventKind) String() string {
	switch k {
	case Interim:
		return "interim"
	case Final:
		return "final"
	case NoMatch:
		return "no_match"
	case Canceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// RecognitionEvent is one recognizer output. Only Final carries a committed transcript.
type RecognitionEvent struct {
	Kind         RecognitionEventKind
	Text         string
	Cancellation repositories.Cancellation
}

// DialogActivity is one bot reply
type DialogActivity struct {
	SessionID string
	Text      string
}

// SynthesisResult is the outcome of one synthesis request. Seq orders requests within a session.
type SynthesisResult struct {
	Seq   uint64
	Text  string
	Audio []byte
	Err   error
}

// Completed reports whether synthesis produced audio
func (r SynthesisResult) Completed() bool {
	return r.Err == nil
}
