package mock

import (
	"context"
	"encoding/binary"
	"math"

	"go.uber.org/zap"

	"github.com/satriahrh/voicebot-connector/domain/repositories"
)

const (
	sampleRate     = 16000
	toneHz         = 440
	samplesPerChar = sampleRate / 20 // 50 ms of tone per character
	maxSamples     = sampleRate * 10
)

// MockTextToSpeech is a placeholder implementation for text-to-speech
type MockTextToSpeech struct {
	logger *zap.Logger
}

// NewMockTextToSpeech creates a new mock text-to-speech service
func NewMockTextToSpeech(logger *zap.Logger) *MockTextToSpeech {
	return &MockTextToSpeech{logger: logger}
}

func (t *MockTextToSpeech) NewSynthesizer(_ context.Context, config repositories.SynthesisConfig) (repositories.Synthesizer, error) {
	return &ToneSynthesizer{logger: t.logger.With(zap.String("voice", config.Voice))}, nil
}

// ToneSynthesizer renders a sine tone whose length follows the text length
type ToneSynthesizer struct {
	logger *zap.Logger
}

func (s *ToneSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	samples := min(len(text)*samplesPerChar, maxSamples)
	audio := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(math.Sin(2*math.Pi*toneHz*float64(i)/sampleRate) * math.MaxInt16 / 4)
		binary.LittleEndian.PutUint16(audio[i*2:], uint16(v))
	}

	s.logger.Info("Processing text-to-speech", zap.String("text", text), zap.Int("bytes", len(audio)))
	return audio, nil
}

func (s *ToneSynthesizer) Close() {}
