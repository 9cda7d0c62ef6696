package azure

import (
	"context"
	"fmt"

	"github.com/Microsoft/cognitive-services-speech-sdk-go/common"
	"github.com/Microsoft/cognitive-services-speech-sdk-go/speech"
	"go.uber.org/zap"

	"github.com/satriahrh/voicebot-connector/domain/repositories"
)

// SpeechToText creates continuous dictation recognizers
type SpeechToText struct {
	credentials Credentials
	logger      *zap.Logger
}

var _ repositories.SpeechToText = (*SpeechToText)(nil)

// NewSpeechToText returns a recognizer factory for the speech resource
func NewSpeechToText(credentials Credentials, logger *zap.Logger) (*SpeechToText, error) {
	if err := credentials.Validate(); err != nil {
		return nil, err
	}
	return &SpeechToText{credentials: credentials, logger: logger}, nil
}

func (s *SpeechToText) NewRecognizer(_ context.Context, config repositories.AudioConfig, handler repositories.RecognitionHandler) (repositories.Recognizer, error) {
	speechConfig, err := s.credentials.speechConfig()
	if err != nil {
		return nil, err
	}

	if err := speechConfig.SetSpeechRecognitionLanguage(config.Language); err != nil {
		speechConfig.Close()
		return nil, fmt.Errorf("failed to set recognition language: %w", err)
	}
	speechConfig.EnableDictation()

	input, err := newPushInput(config.SampleRate, config.BitsPerSample, config.Channels)
	if err != nil {
		speechConfig.Close()
		return nil, err
	}

	recognizer, err := speech.NewSpeechRecognizerFromConfig(speechConfig, input.config)
	if err != nil {
		input.close()
		speechConfig.Close()
		return nil, fmt.Errorf("failed to create speech recognizer: %w", err)
	}

	recognizer.SessionStarted(func(e speech.SessionEventArgs) {
		defer e.Close()
		handler.OnSessionStarted()
	})
	recognizer.SessionStopped(func(e speech.SessionEventArgs) {
		defer e.Close()
		handler.OnSessionStopped()
	})
	recognizer.Recognizing(func(e speech.SpeechRecognitionEventArgs) {
		defer e.Close()
		handler.OnRecognizing(e.Result.Text)
	})
	recognizer.Recognized(func(e speech.SpeechRecognitionEventArgs) {
		defer e.Close()
		handler.OnRecognized(repositories.RecognitionResult{
			Reason: resultReason(e.Result.Reason),
			Text:   e.Result.Text,
		})
	})
	recognizer.Canceled(func(e speech.SpeechRecognitionCanceledEventArgs) {
		defer e.Close()
		handler.OnCanceled(repositories.Cancellation{
			Reason: fmt.Sprint(e.Reason),
			Code:   fmt.Sprint(e.ErrorCode),
			Detail: e.ErrorDetails,
		})
	})

	s.logger.Debug("Created azure recognizer", zap.String("language", config.Language))

	return &azureRecognizer{
		config:     speechConfig,
		input:      input,
		recognizer: recognizer,
	}, nil
}

func resultReason(reason common.ResultReason) repositories.ResultReason {
	switch reason {
	case common.RecognizedSpeech:
		return repositories.ReasonRecognizedSpeech
	case common.NoMatch:
		return repositories.ReasonNoMatch
	default:
		return repositories.ReasonOther
	}
}

type azureRecognizer struct {
	config     *speech.SpeechConfig
	input      *pushInput
	recognizer *speech.SpeechRecognizer
}

func (r *azureRecognizer) Write(chunk []byte) error {
	return r.input.stream.Write(chunk)
}

func (r *azureRecognizer) CloseStream() error {
	r.input.stream.CloseStream()
	return nil
}

func (r *azureRecognizer) StartContinuousRecognition() error {
	return <-r.recognizer.StartContinuousRecognitionAsync()
}

func (r *azureRecognizer) StopContinuousRecognition() error {
	return <-r.recognizer.StopContinuousRecognitionAsync()
}

func (r *azureRecognizer) Close() {
	r.recognizer.Close()
	r.input.close()
	r.config.Close()
}
