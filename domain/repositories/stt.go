package repositories

import "context"

// AudioConfig represents the PCM stream format fed into a recognizer
type AudioConfig struct {
	SampleRate    int    `json:"sample_rate"`
	BitsPerSample int    `json:"bits_per_sample"`
	Channels      int    `json:"channels"`
	Language      string `json:"language"`
}

// TelephonyAudioConfig is the 16 kHz, 16-bit, mono format sent by the telephony client
func TelephonyAudioConfig(language string) AudioConfig {
	return AudioConfig{
		SampleRate:    16000,
		BitsPerSample: 16,
		Channels:      1,
		Language:      language,
	}
}

// ResultReason tells why a recognizer produced a result
type ResultReason int

const (
	ReasonOther ResultReason = iota
	ReasonRecognizedSpeech
	ReasonNoMatch
)

// RecognitionResult is a single recognizer result
type RecognitionResult struct {
	Reason ResultReason
	Text   string
}

// Cancellation carries the details an engine reports when it cancels
type Cancellation struct {
	Reason string
	Code   string
	Detail string
}

// RecognitionHandler receives recognizer callbacks in engine order.
// Implementations must not block for long; engines call them from their own goroutines.
type RecognitionHandler interface {
	OnRecognizing(text string)
	OnRecognized(result RecognitionResult)
	OnCanceled(cancellation Cancellation)
	OnSessionStarted()
	OnSessionStopped()
}

// SpeechToText abstracts streaming speech recognition services
type SpeechToText interface {
	// NewRecognizer creates a continuous recognizer bound to its own audio input stream
	NewRecognizer(ctx context.Context, config AudioConfig, handler RecognitionHandler) (Recognizer, error)
}

// Recognizer is one continuous recognition stream
type Recognizer interface {
	// Write pushes a PCM chunk into the input stream
	Write(chunk []byte) error
	// CloseStream signals end of audio
	CloseStream() error
	StartContinuousRecognition() error
	StopContinuousRecognition() error
	// Close releases engine resources
	Close()
}
