// Package playback paces synthesized PCM back to the caller in real time.
package playback

import (
	"errors"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/satriahrh/voicebot-connector/internal/metrics"
)

const (
	// FrameSize is 20 ms of 16 kHz 16-bit mono PCM.
	FrameSize = 640

	// FrameInterval is the playback tick.
	FrameInterval = 20 * time.Millisecond
)

// ErrStopped is returned by Play once the scheduler has been stopped.
var ErrStopped = errors.New("playback scheduler stopped")

// Sink receives paced frames, usually the caller's WebSocket.
type Sink interface {
	IsOpen() bool
	WriteFrame(frame []byte) error
}

// Split cuts audio into floor(len/FrameSize)+1 frames. When the length is an
// exact multiple of FrameSize the last frame is empty.
func Split(audio []byte) [][]byte {
	count := len(audio)/FrameSize + 1
	frames := make([][]byte, count)
	for i := range frames {
		start := i * FrameSize
		end := min(start+FrameSize, len(audio))
		frames[i] = audio[start:end]
	}
	return frames
}

type job struct {
	timers []*clock.Timer
}

// Scheduler emits at most one job at a time. Starting a job cancels every
// pending frame of the previous one.
type Scheduler struct {
	sink   Sink
	clock  clock.Clock
	logger *zap.Logger

	mu      sync.Mutex
	current *job
	stopped bool
}

// NewScheduler creates a scheduler writing to sink. A nil clock uses wall time.
func NewScheduler(sink Sink, clk clock.Clock, logger *zap.Logger) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	return &Scheduler{
		sink:   sink,
		clock:  clk,
		logger: logger,
	}
}

// Play replaces the current job with audio and returns the number of frames scheduled.
// Frame i fires i*FrameInterval after the call.
func (s *Scheduler) Play(audio []byte) (int, error) {
	frames := Split(audio)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return 0, ErrStopped
	}

	if cancelled := s.cancelLocked(); cancelled > 0 {
		s.logger.Debug("Superseded pending playback", zap.Int("cancelledFrames", cancelled))
	}

	j := &job{timers: make([]*clock.Timer, 0, len(frames))}
	s.current = j
	for i, frame := range frames {
		j.timers = append(j.timers, s.clock.AfterFunc(time.Duration(i)*FrameInterval, func() {
			s.emit(j, frame)
		}))
	}

	s.logger.Debug("Scheduled playback",
		zap.Int("bytes", len(audio)),
		zap.Int("frames", len(frames)))

	return len(frames), nil
}

// Stop cancels the current job and rejects further ones. Safe to call more than once.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelLocked()
	s.stopped = true
}

// cancelLocked stops every timer of the current job and reports how many had not fired yet.
func (s *Scheduler) cancelLocked() int {
	if s.current == nil {
		return 0
	}

	cancelled := 0
	for _, t := range s.current.timers {
		if t.Stop() {
			cancelled++
		}
	}
	s.current = nil
	metrics.PlaybackFrames.WithLabelValues("cancelled").Add(float64(cancelled))
	return cancelled
}

// emit writes one frame if its job is still current. The check runs under the
// same lock Play holds, so a superseded job never writes even if its timer
// already fired.
func (s *Scheduler) emit(j *job, frame []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != j {
		return
	}

	if !s.sink.IsOpen() {
		metrics.PlaybackFrames.WithLabelValues("dropped").Inc()
		return
	}

	if err := s.sink.WriteFrame(frame); err != nil {
		metrics.PlaybackFrames.WithLabelValues("dropped").Inc()
		s.logger.Debug("Failed to write playback frame", zap.Error(err))
		return
	}
	metrics.PlaybackFrames.WithLabelValues("sent").Inc()
}
