package session

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/satriahrh/voicebot-connector/domain/entities"
	"github.com/satriahrh/voicebot-connector/domain/repositories"
)

// SynthesisStep turns bot replies into PCM. Requests run concurrently; every
// result is tagged with the sequence number of its request.
type SynthesisStep struct {
	synthesizer repositories.Synthesizer
	results     chan<- SynthesisResult
	done        <-chan struct{}
	logger      *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc

	// seq is only touched by the coordinator loop
	seq uint64

	inflight  sync.WaitGroup
	closeOnce sync.Once
}

// NewSynthesisStep creates a synthesizer for the session locale and the configured voice
func NewSynthesisStep(
	ctx context.Context,
	tts repositories.TextToSpeech,
	session *entities.Session,
	voice string,
	results chan<- SynthesisResult,
	done <-chan struct{},
	logger *zap.Logger,
) (*SynthesisStep, error) {
	synthesizer, err := tts.NewSynthesizer(ctx, repositories.SynthesisConfig{
		Language: session.Language,
		Voice:    voice,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	stepCtx, cancel := context.WithCancel(context.Background())
	return &SynthesisStep{
		synthesizer: synthesizer,
		results:     results,
		done:        done,
		logger:      logger,
		ctx:         stepCtx,
		cancel:      cancel,
	}, nil
}

// Synthesize requests audio for text in the background. Blank text is not
// synthesized and reports false.
func (s *SynthesisStep) Synthesize(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	s.seq++
	seq := s.seq

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()

		audio, err := s.synthesizer.Synthesize(s.ctx, text)
		result := SynthesisResult{Seq: seq, Text: text, Audio: audio, Err: err}

		select {
		case s.results <- result:
		case <-s.done:
		}
	}()

	return true
}

// Close cancels in-flight requests and releases the synthesizer after they return
func (s *SynthesisStep) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		go func() {
			s.inflight.Wait()
			s.synthesizer.Close()
		}()
	})
}
