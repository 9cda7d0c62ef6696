package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/satriahrh/voicebot-connector/domain/entities"
	"github.com/satriahrh/voicebot-connector/domain/repositories"
)

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

type fakeRecognizer struct {
	mu           sync.Mutex
	handler      repositories.RecognitionHandler
	chunks       [][]byte
	streamClosed int
	started      int
	stopped      int
	closed       int
	startErr     error
	// startGate, when set, holds StartContinuousRecognition until closed
	startGate    chan struct{}
	starting     int
	calls        []string
}

func (r *fakeRecognizer) Write(chunk []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chunks = append(r.chunks, chunk)
	return nil
}

func (r *fakeRecognizer) CloseStream() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.streamClosed++
	return nil
}

func (r *fakeRecognizer) StartContinuousRecognition() error {
	r.mu.Lock()
	r.starting++
	gate := r.startGate
	r.mu.Unlock()

	if gate != nil {
		<-gate
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.started++
	r.calls = append(r.calls, "start")
	return r.startErr
}

func (r *fakeRecognizer) StopContinuousRecognition() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped++
	r.calls = append(r.calls, "stop")
	return nil
}

func (r *fakeRecognizer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed++
	r.calls = append(r.calls, "close")
}

func (r *fakeRecognizer) history() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func (r *fakeRecognizer) startingCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starting
}

func (r *fakeRecognizer) counts() (streamClosed, started, stopped, closed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.streamClosed, r.started, r.stopped, r.closed
}

type fakeSpeechToText struct {
	recognizer *fakeRecognizer
	config     repositories.AudioConfig
}

func (f *fakeSpeechToText) NewRecognizer(_ context.Context, config repositories.AudioConfig, handler repositories.RecognitionHandler) (repositories.Recognizer, error) {
	f.config = config
	f.recognizer.handler = handler
	return f.recognizer, nil
}

type fakeConnector struct {
	mu           sync.Mutex
	handler      repositories.DialogHandler
	connectErr   error
	sendErr      error
	connected    int
	disconnected int
	closed       int
	sent         chan string
	calls        []string
}

func (c *fakeConnector) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected++
	c.calls = append(c.calls, "connect")
	return c.connectErr
}

func (c *fakeConnector) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnected++
	c.calls = append(c.calls, "disconnect")
	return nil
}

func (c *fakeConnector) SendActivity(activity string) error {
	c.sent <- activity
	return c.sendErr
}

func (c *fakeConnector) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed++
	c.calls = append(c.calls, "close")
}

func (c *fakeConnector) history() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func (c *fakeConnector) counts() (connected, disconnected, closed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected, c.disconnected, c.closed
}

type fakeDialogService struct {
	connector *fakeConnector
	err       error
}

func (f *fakeDialogService) NewConnector(_ context.Context, _ repositories.DialogConfig, handler repositories.DialogHandler) (repositories.DialogConnector, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.connector.handler = handler
	return f.connector, nil
}

type fakeSynthesizer struct {
	mu     sync.Mutex
	audio  map[string][]byte
	gates  map[string]chan struct{}
	texts  []string
	closed int
}

func (s *fakeSynthesizer) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.mu.Lock()
	s.texts = append(s.texts, text)
	gate := s.gates[text]
	audio, ok := s.audio[text]
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if !ok {
		return nil, errors.New("synthesis canceled: voice not available")
	}
	return audio, nil
}

func (s *fakeSynthesizer) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
}

func (s *fakeSynthesizer) requested() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.texts...)
}

func (s *fakeSynthesizer) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeTextToSpeech struct {
	synthesizer *fakeSynthesizer
}

func (f *fakeTextToSpeech) NewSynthesizer(context.Context, repositories.SynthesisConfig) (repositories.Synthesizer, error) {
	return f.synthesizer, nil
}

type notification struct {
	session *entities.Session
	request string
	reply   string
}

type fakeNotifier struct {
	calls chan notification
}

func (n *fakeNotifier) Notify(session *entities.Session, request, reply string) {
	n.calls <- notification{session: session, request: request, reply: reply}
}

type recordingSink struct {
	mu     sync.Mutex
	open   bool
	frames [][]byte
}

func (s *recordingSink) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func (s *recordingSink) WriteFrame(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, frame)
	return nil
}

func (s *recordingSink) snapshot() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.frames...)
}
