package session

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/voicebot-connector/domain/entities"
	"github.com/satriahrh/voicebot-connector/domain/repositories"
)

// RecognitionSession bridges one continuous recognizer to RecognitionEvents.
// It is the recognizer's callback handler.
type RecognitionSession struct {
	session    *entities.Session
	recognizer repositories.Recognizer
	events     chan<- RecognitionEvent
	done       <-chan struct{}
	logger     *zap.Logger

	// mu orders Start against Stop: a stop waits for a start call in flight
	// and no start is issued once stopping began
	mu        sync.Mutex
	stopping  bool
	startDone chan struct{}

	stopOnce  sync.Once
	closeOnce sync.Once
	stopped   chan struct{}
}

var _ repositories.RecognitionHandler = (*RecognitionSession)(nil)

// NewRecognitionSession creates the recognizer for the session locale.
// Events are dropped once done is closed.
func NewRecognitionSession(
	ctx context.Context,
	stt repositories.SpeechToText,
	session *entities.Session,
	events chan<- RecognitionEvent,
	done <-chan struct{},
	logger *zap.Logger,
) (*RecognitionSession, error) {
	r := &RecognitionSession{
		session: session,
		events:  events,
		done:    done,
		logger:  logger,
		stopped: make(chan struct{}),
	}

	recognizer, err := stt.NewRecognizer(ctx, repositories.TelephonyAudioConfig(session.Language), r)
	if err != nil {
		return nil, fmt.Errorf("failed to create recognizer: %w", err)
	}
	r.recognizer = recognizer

	return r, nil
}

// Input returns the recognizer's audio input stream
func (r *RecognitionSession) Input() StreamWriter {
	return r.recognizer
}

// Start begins continuous recognition without waiting for it. It does nothing
// once Stop was called.
func (r *RecognitionSession) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopping || r.startDone != nil {
		return
	}
	startDone := make(chan struct{})
	r.startDone = startDone

	go func() {
		defer close(startDone)
		if err := r.recognizer.StartContinuousRecognition(); err != nil {
			r.logger.Error("Failed to start continuous recognition", zap.Error(err))
			r.emit(RecognitionEvent{
				Kind: Canceled,
				Cancellation: repositories.Cancellation{
					Reason: "Error",
					Detail: err.Error(),
				},
			})
			return
		}
		r.logger.Info("Speech recognition started", zap.String("language", r.session.Language))
	}()
}

// Stop requests graceful termination. Only the first call reaches the
// recognizer, after any start call returned. A recognizer never started is
// not stopped.
func (r *RecognitionSession) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.stopping = true
		startDone := r.startDone
		r.mu.Unlock()

		go func() {
			defer close(r.stopped)
			if startDone == nil {
				return
			}
			<-startDone
			if err := r.recognizer.StopContinuousRecognition(); err != nil {
				r.logger.Warn("Failed to stop continuous recognition", zap.Error(err))
			}
		}()
	})
}

// Close stops recognition and releases the recognizer once stopping completed
func (r *RecognitionSession) Close() {
	r.Stop()
	r.closeOnce.Do(func() {
		go func() {
			<-r.stopped
			r.recognizer.Close()
		}()
	})
}

func (r *RecognitionSession) OnRecognizing(text string) {
	r.emit(RecognitionEvent{Kind: Interim, Text: text})
}

func (r *RecognitionSession) OnRecognized(result repositories.RecognitionResult) {
	switch result.Reason {
	case repositories.ReasonRecognizedSpeech:
		if result.Text == "" {
			r.logger.Info("Empty transcript")
			return
		}
		r.session.SetLatestTranscript(result.Text)
		r.emit(RecognitionEvent{Kind: Final, Text: result.Text})
	case repositories.ReasonNoMatch:
		r.emit(RecognitionEvent{Kind: NoMatch})
	default:
		r.logger.Debug("Ignoring recognition result", zap.Int("reason", int(result.Reason)))
	}
}

func (r *RecognitionSession) OnCanceled(cancellation repositories.Cancellation) {
	r.emit(RecognitionEvent{Kind: Canceled, Cancellation: cancellation})
	r.Stop()
}

func (r *RecognitionSession) OnSessionStarted() {
	r.logger.Debug("Recognizer session started")
}

func (r *RecognitionSession) OnSessionStopped() {
	r.logger.Info("Recognizer session stopped")
	r.Stop()
}

func (r *RecognitionSession) emit(event RecognitionEvent) {
	select {
	case r.events <- event:
	case <-r.done:
	}
}
