package repositories

import "context"

// SynthesisConfig configures a synthesizer for one session
type SynthesisConfig struct {
	Language string `json:"language"`
	Voice    string `json:"voice"`
}

type TextToSpeech interface {
	NewSynthesizer(ctx context.Context, config SynthesisConfig) (Synthesizer, error)
}

// Synthesizer returns raw 16 kHz 16-bit mono PCM for a text
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
	Close()
}
