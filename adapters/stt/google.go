package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/satriahrh/voicebot-connector/domain/repositories"
)

// stopTimeout bounds how long Stop waits for the final results after end of audio
const stopTimeout = 5 * time.Second

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	logger *zap.Logger
}

var _ repositories.SpeechToText = (*GoogleSpeechToText)(nil)

// NewGoogleSpeechToText uses Application Default Credentials
func NewGoogleSpeechToText(logger *zap.Logger) *GoogleSpeechToText {
	return &GoogleSpeechToText{logger: logger}
}

func (g *GoogleSpeechToText) NewRecognizer(ctx context.Context, config repositories.AudioConfig, handler repositories.RecognitionHandler) (repositories.Recognizer, error) {
	if config.BitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported sample size: %d bits", config.BitsPerSample)
	}

	// Create Google Cloud Speech client
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	// the stream outlives the request context, Close cancels it
	streamCtx, cancel := context.WithCancel(context.Background())
	stream, err := client.StreamingRecognize(streamCtx)
	if err != nil {
		cancel()
		client.Close()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	// Send initial configuration
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config: &speechpb.RecognitionConfig{
					Encoding:                   speechpb.RecognitionConfig_LINEAR16,
					SampleRateHertz:            int32(config.SampleRate),
					AudioChannelCount:          int32(config.Channels),
					LanguageCode:               config.Language,
					EnableAutomaticPunctuation: true,
				},
				InterimResults:  true,
				SingleUtterance: false,
			},
		},
	}); err != nil {
		cancel()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	return &GoogleRecognizer{
		client:   client,
		stream:   stream,
		ctx:      streamCtx,
		cancel:   cancel,
		handler:  handler,
		logger:   g.logger.With(zap.String("language", config.Language)),
		received: make(chan struct{}),
	}, nil
}

// GoogleRecognizer is one StreamingRecognize call. Results are delivered to the
// handler from a single receive goroutine.
type GoogleRecognizer struct {
	client  *speech.Client
	stream  speechpb.Speech_StreamingRecognizeClient
	ctx     context.Context
	cancel  context.CancelFunc
	handler repositories.RecognitionHandler
	logger  *zap.Logger

	sendMu     sync.Mutex
	sendClosed bool

	startOnce sync.Once
	started   bool
	received  chan struct{}
}

func (g *GoogleRecognizer) Write(chunk []byte) error {
	g.sendMu.Lock()
	defer g.sendMu.Unlock()

	if g.sendClosed || len(chunk) == 0 {
		return nil
	}

	// Send audio data to Google
	if err := g.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: chunk,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

func (g *GoogleRecognizer) CloseStream() error {
	g.sendMu.Lock()
	defer g.sendMu.Unlock()

	if g.sendClosed {
		return nil
	}
	g.sendClosed = true

	if err := g.stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close send stream: %w", err)
	}
	return nil
}

func (g *GoogleRecognizer) StartContinuousRecognition() error {
	g.startOnce.Do(func() {
		g.sendMu.Lock()
		g.started = true
		g.sendMu.Unlock()

		go g.receiveResults()
	})
	return nil
}

// StopContinuousRecognition ends the audio and waits for the remaining results
func (g *GoogleRecognizer) StopContinuousRecognition() error {
	if err := g.CloseStream(); err != nil {
		g.logger.Debug("Close send on stop", zap.Error(err))
	}

	g.sendMu.Lock()
	started := g.started
	g.sendMu.Unlock()
	if !started {
		return nil
	}

	select {
	case <-g.received:
		return nil
	case <-time.After(stopTimeout):
		g.cancel()
		return errors.New("timed out waiting for final recognition results")
	}
}

func (g *GoogleRecognizer) Close() {
	g.cancel()
	if err := g.client.Close(); err != nil {
		g.logger.Debug("Failed to close speech client", zap.Error(err))
	}
}

func (g *GoogleRecognizer) receiveResults() {
	defer close(g.received)

	g.handler.OnSessionStarted()
	defer g.handler.OnSessionStopped()

	for {
		resp, err := g.stream.Recv()
		if err == io.EOF {
			// Stream ended normally
			return
		}
		if err != nil {
			if g.ctx.Err() != nil || status.Code(err) == codes.Canceled {
				return
			}
			g.handler.OnCanceled(repositories.Cancellation{
				Reason: "Error",
				Code:   status.Code(err).String(),
				Detail: err.Error(),
			})
			return
		}

		if resp.Error != nil {
			g.handler.OnCanceled(repositories.Cancellation{
				Reason: "Error",
				Code:   codes.Code(resp.Error.Code).String(),
				Detail: resp.Error.Message,
			})
			return
		}

		for _, result := range resp.Results {
			transcript := ""
			if len(result.Alternatives) > 0 {
				// Take the best alternative
				transcript = result.Alternatives[0].Transcript
			}

			if !result.IsFinal {
				g.handler.OnRecognizing(transcript)
				continue
			}

			reason := repositories.ReasonRecognizedSpeech
			if len(result.Alternatives) == 0 {
				reason = repositories.ReasonNoMatch
			}
			g.handler.OnRecognized(repositories.RecognitionResult{Reason: reason, Text: transcript})
		}
	}
}
