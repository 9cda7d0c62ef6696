// Package session runs one caller connection: audio in, recognition, bot
// turns, synthesis and paced playback out.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/satriahrh/voicebot-connector/domain/entities"
	"github.com/satriahrh/voicebot-connector/domain/repositories"
	"github.com/satriahrh/voicebot-connector/internal/metrics"
	"github.com/satriahrh/voicebot-connector/internal/playback"
)

const eventBufferSize = 64

// State is the coordinator lifecycle state
type State int32

const (
	StateConnecting State = iota
	StateActive
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Notifier reports a completed bot turn
type Notifier interface {
	Notify(session *entities.Session, request, reply string)
}

// Engines are the process-wide backends shared by every session
type Engines struct {
	SpeechToText repositories.SpeechToText
	Dialog       repositories.DialogService
	// TextToSpeech is optional; nil disables audio replies.
	TextToSpeech repositories.TextToSpeech
	Voice        string
	Notifier     Notifier
	// Clock drives playback; nil uses wall time.
	Clock clock.Clock
}

// Coordinator owns every per-connection resource and runs the session event
// loop. All event handling happens on the loop goroutine.
type Coordinator struct {
	session *entities.Session
	logger  *zap.Logger

	audio       *AudioFrameChannel
	recognition *RecognitionSession
	dialog      *DialogSession
	synthesis   *SynthesisStep
	playback    *playback.Scheduler
	notifier    Notifier

	recognitionEvents chan RecognitionEvent
	dialogActivities  chan DialogActivity
	synthesisResults  chan SynthesisResult

	state     atomic.Int32
	closing   chan struct{}
	closed    chan struct{}
	closeOnce sync.Once

	// lastPlayedSeq is only touched by the loop
	lastPlayedSeq uint64
}

// NewCoordinator builds every sub-resource for session and starts the event
// loop. Frames are paced into sink. Synthesis failing to initialize degrades
// to a session without audio replies.
func NewCoordinator(
	ctx context.Context,
	session *entities.Session,
	sink playback.Sink,
	engines Engines,
	logger *zap.Logger,
) (*Coordinator, error) {
	logger = logger.With(
		zap.String("sessionID", session.ID),
		zap.String("originalUUID", session.OriginalUUID))

	c := &Coordinator{
		session:           session,
		logger:            logger,
		notifier:          engines.Notifier,
		playback:          playback.NewScheduler(sink, engines.Clock, logger),
		recognitionEvents: make(chan RecognitionEvent, eventBufferSize),
		dialogActivities:  make(chan DialogActivity, eventBufferSize),
		synthesisResults:  make(chan SynthesisResult, eventBufferSize),
		closing:           make(chan struct{}),
		closed:            make(chan struct{}),
	}
	c.state.Store(int32(StateConnecting))

	recognition, err := NewRecognitionSession(ctx, engines.SpeechToText, session, c.recognitionEvents, c.closing, logger)
	if err != nil {
		return nil, err
	}
	c.recognition = recognition
	c.audio = NewAudioFrameChannel(recognition.Input())

	dialog, err := NewDialogSession(ctx, engines.Dialog, session, c.dialogActivities, c.closing, logger)
	if err != nil {
		c.audio.Close()
		recognition.Close()
		return nil, err
	}
	c.dialog = dialog

	if engines.TextToSpeech != nil {
		synthesis, err := NewSynthesisStep(ctx, engines.TextToSpeech, session, engines.Voice, c.synthesisResults, c.closing, logger)
		if err != nil {
			logger.Error("Synthesis unavailable, continuing without audio replies", zap.Error(err))
		} else {
			c.synthesis = synthesis
		}
	}

	go c.run()

	return c, nil
}

// Session returns the session the coordinator serves
func (c *Coordinator) Session() *entities.Session {
	return c.session
}

// State returns the current lifecycle state
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Start connects the bot and starts recognition without waiting for either,
// then considers the session active. Only a connecting session starts; after
// Close it does nothing.
func (c *Coordinator) Start() {
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateActive)) {
		c.logger.Debug("Session not started", zap.Stringer("state", c.State()))
		return
	}

	c.dialog.Connect()
	c.recognition.Start()

	c.logger.Info("Session active", zap.String("language", c.session.Language))
}

// PushAudio forwards a binary frame from the caller to the recognizer
func (c *Coordinator) PushAudio(chunk []byte) error {
	if err := c.audio.Push(chunk); err != nil {
		return fmt.Errorf("failed to push audio chunk: %w", err)
	}
	return nil
}

// HandleSettings receives a text frame. No settings are applied.
func (c *Coordinator) HandleSettings(message []byte) {
	c.logger.Info("Websocket settings", zap.ByteString("settings", message))
}

// Close tears the session down and waits for the loop to exit. Safe to call
// more than once and from any goroutine.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosing))
		close(c.closing)
	})
	<-c.closed
}

// Done is closed once the session reached StateClosed
func (c *Coordinator) Done() <-chan struct{} {
	return c.closed
}

func (c *Coordinator) run() {
	defer close(c.closed)

	for {
		select {
		case <-c.closing:
			c.teardown()
			return
		case event := <-c.recognitionEvents:
			c.handleRecognition(event)
		case activity := <-c.dialogActivities:
			c.handleActivity(activity)
		case result := <-c.synthesisResults:
			c.handleSynthesis(result)
		}
	}
}

func (c *Coordinator) teardown() {
	if err := c.audio.Close(); err != nil {
		c.logger.Warn("Failed to close audio stream", zap.Error(err))
	}
	c.dialog.Close()
	c.recognition.Close()
	if c.synthesis != nil {
		c.synthesis.Close()
	}
	c.playback.Stop()

	c.state.Store(int32(StateClosed))
	c.logger.Info("Session closed")
}

func (c *Coordinator) handleRecognition(event RecognitionEvent) {
	metrics.RecognitionEvents.WithLabelValues(event.Kind.String()).Inc()

	switch event.Kind {
	case Interim:
		c.logger.Debug("Intermediate transcript", zap.String("text", event.Text))
	case Final:
		c.logger.Info("Final transcript", zap.String("transcript", event.Text))
		c.dialog.SendTurn(event.Text)
	case NoMatch:
		c.logger.Info("No speech detected")
	case Canceled:
		c.logger.Warn("Speech recognition canceled",
			zap.String("reason", event.Cancellation.Reason),
			zap.String("code", event.Cancellation.Code),
			zap.String("detail", event.Cancellation.Detail))
	}
}

func (c *Coordinator) handleActivity(activity DialogActivity) {
	metrics.DialogActivities.Inc()
	c.logger.Info("Bot reply", zap.String("reply", activity.Text))

	if c.notifier != nil {
		c.notifier.Notify(c.session, c.session.LatestTranscript(), activity.Text)
	}

	if c.synthesis != nil {
		c.synthesis.Synthesize(activity.Text)
	}
}

func (c *Coordinator) handleSynthesis(result SynthesisResult) {
	if !result.Completed() {
		metrics.SynthesisResults.WithLabelValues("failed").Inc()
		c.logger.Error("Speech synthesis failed", zap.Uint64("seq", result.Seq), zap.Error(result.Err))
		return
	}

	// an older reply finishing late must not replace a newer one
	if result.Seq < c.lastPlayedSeq {
		metrics.SynthesisResults.WithLabelValues("stale").Inc()
		c.logger.Debug("Discarding stale synthesis result", zap.Uint64("seq", result.Seq))
		return
	}
	c.lastPlayedSeq = result.Seq
	metrics.SynthesisResults.WithLabelValues("completed").Inc()

	frames, err := c.playback.Play(result.Audio)
	if err != nil {
		c.logger.Debug("Playback not started", zap.Error(err))
		return
	}
	c.logger.Info("Playing synthesized reply",
		zap.Uint64("seq", result.Seq),
		zap.Int("bytes", len(result.Audio)),
		zap.Int("frames", frames))
}
