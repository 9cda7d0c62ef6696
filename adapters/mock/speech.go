// Package mock provides offline engines for local runs and demos.
package mock

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/voicebot-connector/domain/repositories"
)

// utteranceBytes is how much audio makes up one mock utterance, 2 s at 16 kHz 16-bit mono
const utteranceBytes = 64000

// MockSpeechToText is a placeholder implementation for speech recognition.
// Every two seconds of audio produce one final transcript.
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) *MockSpeechToText {
	return &MockSpeechToText{logger: logger}
}

func (s *MockSpeechToText) NewRecognizer(_ context.Context, config repositories.AudioConfig, handler repositories.RecognitionHandler) (repositories.Recognizer, error) {
	s.logger.Info("Initializing mock recognizer",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("language", config.Language))

	return &MockRecognizer{handler: handler, logger: s.logger}, nil
}

// MockRecognizer is a mock continuous recognizer
type MockRecognizer struct {
	handler repositories.RecognitionHandler
	logger  *zap.Logger

	mu        sync.Mutex
	running   bool
	buffered  int
	utterance int
}

func (m *MockRecognizer) Write(chunk []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return nil
	}

	m.buffered += len(chunk)
	if m.buffered < utteranceBytes {
		if m.buffered%(utteranceBytes/4) < len(chunk) {
			m.handler.OnRecognizing(transcriptFor(m.utterance)[:5])
		}
		return nil
	}

	m.buffered -= utteranceBytes
	text := transcriptFor(m.utterance)
	m.utterance++
	m.handler.OnRecognized(repositories.RecognitionResult{
		Reason: repositories.ReasonRecognizedSpeech,
		Text:   text,
	})
	return nil
}

func (m *MockRecognizer) CloseStream() error {
	return nil
}

func (m *MockRecognizer) StartContinuousRecognition() error {
	m.mu.Lock()
	m.running = true
	m.mu.Unlock()

	m.handler.OnSessionStarted()
	return nil
}

func (m *MockRecognizer) StopContinuousRecognition() error {
	m.mu.Lock()
	wasRunning := m.running
	m.running = false
	m.mu.Unlock()

	if wasRunning {
		m.handler.OnSessionStopped()
	}
	return nil
}

func (m *MockRecognizer) Close() {
	m.logger.Debug("Closed mock recognizer")
}

var transcripts = []string{
	"Hello, is anybody there?",
	"I would like to check my order status.",
	"Thank you, that is all.",
}

func transcriptFor(utterance int) string {
	return transcripts[utterance%len(transcripts)]
}
