package azure

import (
	"context"
	"fmt"
	"sync"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
	"go.uber.org/zap"

	"github.com/satriahrh/voicebot-connector/domain/repositories"
)

// TextToSpeech creates synthesizers producing raw 16 kHz 16-bit mono PCM
type TextToSpeech struct {
	credentials Credentials
	logger      *zap.Logger
}

var _ repositories.TextToSpeech = (*TextToSpeech)(nil)

func NewTextToSpeech(credentials Credentials, logger *zap.Logger) (*TextToSpeech, error) {
	if err := credentials.Validate(); err != nil {
		return nil, err
	}
	return &TextToSpeech{credentials: credentials, logger: logger}, nil
}

func (t *TextToSpeech) NewSynthesizer(_ context.Context, config repositories.SynthesisConfig) (repositories.Synthesizer, error) {
	speechConfig, err := t.credentials.speechConfig()
	if err != nil {
		return nil, err
	}

	if err := speechConfig.SetSpeechSynthesisLanguage(config.Language); err != nil {
		speechConfig.Close()
		return nil, fmt.Errorf("failed to set synthesis language: %w", err)
	}
	if config.Voice != "" {
		if err := speechConfig.SetSpeechSynthesisVoiceName(config.Voice); err != nil {
			speechConfig.Close()
			return nil, fmt.Errorf("failed to set synthesis voice: %w", err)
		}
	}
	if err := speechConfig.SetSpeechSynthesisOutputFormat(common.Raw16Khz16BitMonoPcm); err != nil {
		speechConfig.Close()
		return nil, fmt.Errorf("failed to set synthesis output format: %w", err)
	}

	// nil audio config keeps the audio in the result instead of a speaker
	synthesizer, err := speech.NewSpeechSynthesizerFromConfig(speechConfig, nil)
	if err != nil {
		speechConfig.Close()
		return nil, fmt.Errorf("failed to create speech synthesizer: %w", err)
	}

	return &azureSynthesizer{
		speak: func(text string) <-chan speech.SpeechSynthesisOutcome {
			return synthesizer.SpeakTextAsync(text)
		},
		release: func() {
			synthesizer.Close()
			speechConfig.Close()
		},
		logger: t.logger,
	}, nil
}

type azureSynthesizer struct {
	speak   func(text string) <-chan speech.SpeechSynthesisOutcome
	release func()
	logger  *zap.Logger

	// speaking counts SpeakTextAsync tasks whose outcome was not received yet
	speaking sync.WaitGroup
}

func (s *azureSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.speaking.Add(1)
	task := s.speak(text)

	var outcome speech.SpeechSynthesisOutcome
	select {
	case outcome = <-task:
		s.speaking.Done()
	case <-ctx.Done():
		// the native call keeps running; its outcome still has to be released
		go func() {
			defer s.speaking.Done()
			late := <-task
			late.Close()
		}()
		return nil, fmt.Errorf("context cancelled while waiting for synthesis result: %w", ctx.Err())
	}
	defer outcome.Close()

	if outcome.Error != nil {
		return nil, fmt.Errorf("synthesis outcome error: %w", outcome.Error)
	}

	if outcome.Result.Reason != common.SynthesizingAudioCompleted {
		cancellation, err := speech.NewCancellationDetailsFromSpeechSynthesisResult(outcome.Result)
		if err != nil {
			return nil, fmt.Errorf("synthesis failed: reason=%v", outcome.Result.Reason)
		}
		return nil, fmt.Errorf("synthesis failed: reason=%v, details=%s", outcome.Result.Reason, cancellation.ErrorDetails)
	}

	audio := make([]byte, len(outcome.Result.AudioData))
	copy(audio, outcome.Result.AudioData)

	s.logger.Debug("Synthesized reply", zap.Int("bytes", len(audio)))
	return audio, nil
}

// Close waits for outstanding speak tasks before releasing the native handles
func (s *azureSynthesizer) Close() {
	s.speaking.Wait()
	s.release()
}
